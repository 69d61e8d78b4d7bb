package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init installs the process-wide slog logger. The default level is error
// only: debug output on stderr would tear the live meeting view apart, so
// anything chattier must be asked for explicitly and is best combined with
// PARLEY_LOG_FILE.
func Init() {
	var out io.Writer = os.Stderr
	if path := os.Getenv("PARLEY_LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			out = f
		}
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: levelFromEnv(),
	}))
	slog.SetDefault(logger)
}

func levelFromEnv() slog.Level {
	l := os.Getenv("PARLEY_LOG_LEVEL")
	if l == "" {
		l = os.Getenv("LOG_LEVEL")
	}
	switch l {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
