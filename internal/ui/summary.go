package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/parley-labs/Parley/cli/internal/utils"
)

// MeetingSummary holds the stats printed after leaving a meeting
type MeetingSummary struct {
	RoomID       string
	Duration     time.Duration
	Participants int
	PeakFeeds    int
	ScreenShared bool
}

// RenderMeetingSummary prints the post-meeting stats table to stdout
func RenderMeetingSummary(summary MeetingSummary) {
	screen := "No"
	if summary.ScreenShared {
		screen = "Yes"
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("%s Meeting Summary", IconComplete)
	t.AppendRows([]table.Row{
		{"Meeting ID", summary.RoomID},
		{"Duration", utils.FormatDuration(summary.Duration)},
		{"Participants", fmt.Sprintf("%d", summary.Participants)},
		{"Peak video feeds", fmt.Sprintf("%d", summary.PeakFeeds)},
		{"Screen shared", screen},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
