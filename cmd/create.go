package cmd

import (
	"context"
	"fmt"

	"github.com/parley-labs/Parley/cli/internal/api"
	"github.com/parley-labs/Parley/cli/internal/config"
	"github.com/parley-labs/Parley/cli/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagCreateDomain  string
	flagCreateName    string
	flagCreateDisplay string
)

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a new meeting room",
	Long: `Create a new meeting room and print its id, link and creator key.

Examples:
  parley create
  parley create --name standup
  parley create --domain meet.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return createMeeting(cmd.Context())
	},
}

func createMeeting(ctx context.Context) error {
	cfg, err := LoadConfig(config.Options{
		Domain:  flagCreateDomain,
		Display: flagCreateDisplay,
	})
	if err != nil {
		return err
	}

	stopSpinner := ui.RunConnectionSpinner("Creating meeting...")
	defer stopSpinner()

	client := api.NewClient(cfg.APIBaseURL)
	resp, err := client.CreateRoom(ctx, api.CreateRoomRequest{
		Name:    flagCreateName,
		Display: cfg.Display,
	})
	if err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	stopSpinner()

	fmt.Println()
	ui.RenderMeetingInfo(resp.RoomID, cfg.GetRoomLink(resp.RoomID))

	if resp.CreatorKey != "" {
		fmt.Println()
		ui.PrintInfof("Creator key: %s", ui.BoldStyle.Render(resp.CreatorKey))
		ui.PrintInfof("Join with:   parley join %s --creator-key %s", resp.RoomID, resp.CreatorKey)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&flagCreateDomain, "domain", "d", "", "Custom domain")
	createCmd.Flags().StringVarP(&flagCreateName, "name", "n", "", "Meeting name")
	createCmd.Flags().StringVar(&flagCreateDisplay, "display", "", "Display name")
}
