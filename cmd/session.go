package cmd

import (
	"context"
	"fmt"

	"github.com/parley-labs/Parley/cli/internal/config"
	"github.com/parley-labs/Parley/cli/internal/room"
	"github.com/parley-labs/Parley/cli/internal/ui"
)

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

func rosterRows(session *room.Session) []ui.RosterRow {
	self := session.UserID()
	var rows []ui.RosterRow
	for _, p := range session.Participants() {
		rows = append(rows, ui.RosterRow{
			Display:    p.Display,
			UserID:     p.UserID,
			Self:       p.UserID == self,
			Publishing: p.Publishing,
			Muted:      p.Muted,
			VideoOff:   p.VideoOff,
		})
	}
	return rows
}

func meetingState(session *room.Session) ui.MeetingState {
	state := ui.MeetingState{
		RoomID:       session.RoomID(),
		ScreenShared: session.ScreenSharing(),
		Roster:       rosterRows(session),
	}
	self := session.UserID()
	for _, p := range session.Participants() {
		if p.UserID == self {
			state.Publishing = p.Publishing
			state.Muted = p.Muted
			state.VideoOff = p.VideoOff
			break
		}
	}
	return state
}

// runMeeting drives the live view until the user leaves, then prints the
// post-meeting summary.
func runMeeting(ctx context.Context, session *room.Session) error {
	seen := make(map[string]struct{})
	peakFeeds := 0
	screenShared := false

	record := func() {
		for _, p := range session.Participants() {
			seen[p.UserID] = struct{}{}
		}
		if n := len(session.Publishers()); n > peakFeeds {
			peakFeeds = n
		}
		if session.ScreenSharing() {
			screenShared = true
		}
	}
	record()

	view := ui.NewMeetingUI(meetingState(session), ui.MeetingControls{
		ToggleMute:  session.ToggleMute,
		ToggleVideo: session.ToggleVideo,
		ToggleScreen: func() (bool, error) {
			if session.ScreenSharing() {
				return false, session.StopScreenShare()
			}
			return true, session.StartScreenShare(ctx)
		},
	})

	unsub := session.OnStateChange(func() {
		record()
		view.Push(meetingState(session))
	})
	defer unsub()

	err := view.Run()

	roomID := session.RoomID()
	duration := view.Elapsed()
	session.Leave(ctx)

	fmt.Println()
	ui.RenderMeetingSummary(ui.MeetingSummary{
		RoomID:       roomID,
		Duration:     duration,
		Participants: len(seen),
		PeakFeeds:    peakFeeds,
		ScreenShared: screenShared,
	})

	return err
}
