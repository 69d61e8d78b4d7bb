package main

import (
	"github.com/parley-labs/Parley/cli/cmd"
	"github.com/parley-labs/Parley/cli/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
