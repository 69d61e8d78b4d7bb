package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/parley-labs/Parley/cli/internal/api"
	"github.com/parley-labs/Parley/cli/internal/config"
	"github.com/parley-labs/Parley/cli/internal/room"
	"github.com/parley-labs/Parley/cli/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagJoinDomain      string
	flagJoinDisplay     string
	flagJoinSTUN        string
	flagJoinTURN        string
	flagJoinTURNUser    string
	flagJoinTURNPass    string
	flagJoinRelay       bool
	flagJoinCreatorKey  string
	flagJoinInviteToken string
	flagJoinInviteCode  string
	flagJoinViewOnly    bool
)

var joinCmd = &cobra.Command{
	Use:     "join <meeting-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a meeting",
	Long: `Join a meeting, publish your microphone and camera, and watch the
other participants from the terminal.

Examples:
  parley join ABC123 --display Alice
  parley join https://parley.chat/r/ABC123 --invite-code 482910
  parley join ABC123 --creator-key k3y --relay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseMeetingInput(args[0])
		if err != nil {
			return err
		}
		return joinMeeting(cmd.Context(), roomID)
	},
}

func joinMeeting(ctx context.Context, roomID string) error {
	cfg, err := LoadConfig(config.Options{
		Domain:     flagJoinDomain,
		Display:    flagJoinDisplay,
		STUNServer: flagJoinSTUN,
		TURNServer: flagJoinTURN,
		TURNUser:   flagJoinTURNUser,
		TURNPass:   flagJoinTURNPass,
		ForceRelay: flagJoinRelay,
	})
	if err != nil {
		return err
	}

	if status, statusErr := api.NewClient(cfg.APIBaseURL).GetMediaStatus(ctx); statusErr == nil && !status.Available {
		ui.PrintWarningf("Media servers report degraded availability: %s", status.Detail)
	}

	session := room.NewSession(cfg)

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Joining meeting...")
	defer stopSpinner()

	err = session.Join(ctx, roomID, cfg.Display, room.JoinAuth{
		CreatorKey:  flagJoinCreatorKey,
		InviteToken: flagJoinInviteToken,
		InviteCode:  flagJoinInviteCode,
	})
	if err != nil {
		stopSpinner()
		var sessionErr *room.SessionError
		if errors.As(err, &sessionErr) {
			return errors.New(sessionErr.UserMessage())
		}
		return err
	}
	stopSpinner()
	ui.PrintSuccessf("Joined meeting %s as %s", roomID, cfg.Display)

	if !flagJoinViewOnly {
		if err := session.StartPublishing(ctx); err != nil {
			ui.PrintWarningf("Publishing unavailable, joining as viewer: %v", err)
		}
	}

	return runMeeting(ctx, session)
}

func parseMeetingInput(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("meeting ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, ".") {
		roomID, err := extractMeetingIDFromURL(input)
		if err != nil {
			return "", err
		}
		ui.PrintSuccessf("Extracted meeting ID: %s", roomID)
		return roomID, nil
	}

	return input, nil
}

func extractMeetingIDFromURL(urlStr string) (string, error) {
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid meeting URL: %w", err)
	}

	parts := strings.Split(strings.Trim(parsedURL.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "r" && parts[1] != "" {
		return parts[1], nil
	}
	if len(parts) == 1 && parts[0] != "" && parts[0] != "r" {
		return parts[0], nil
	}

	return "", fmt.Errorf("could not extract meeting ID from URL: %s", urlStr)
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagJoinDomain, "domain", "d", "", "Custom domain")
	joinCmd.Flags().StringVar(&flagJoinDisplay, "display", "", "Display name")
	joinCmd.Flags().StringVarP(&flagJoinSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagJoinTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagJoinTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagJoinTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagJoinRelay, "relay", "r", false, "Force relay mode")
	joinCmd.Flags().StringVar(&flagJoinCreatorKey, "creator-key", "", "Creator key for the meeting")
	joinCmd.Flags().StringVar(&flagJoinInviteToken, "invite-token", "", "Invitation token")
	joinCmd.Flags().StringVar(&flagJoinInviteCode, "invite-code", "", "Six digit invite code")
	joinCmd.Flags().BoolVar(&flagJoinViewOnly, "view-only", false, "Join without publishing audio or video")
}
