package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/parley-labs/Parley/cli/internal/utils"
)

// RosterRow is a single participant line in the meeting roster
type RosterRow struct {
	Display    string
	UserID     string
	Self       bool
	Publishing bool
	Muted      bool
	VideoOff   bool
}

func micIcon(r RosterRow) string {
	if !r.Publishing {
		return MutedStyle.Render("-")
	}
	if r.Muted {
		return IconMuted
	}
	return IconMic
}

func cameraIcon(r RosterRow) string {
	if !r.Publishing {
		return MutedStyle.Render("-")
	}
	if r.VideoOff {
		return IconNoVideo
	}
	return IconCamera
}

// RosterView renders the participant roster as a bordered table
func RosterView(rows []RosterRow) string {
	headers := []string{"Participant", "Mic", "Camera", "Status"}

	var data [][]string
	for _, r := range rows {
		name := utils.TruncateString(r.Display, 24)
		if r.Self {
			name = name + " (you)"
		}
		status := MutedStyle.Render("viewing")
		if r.Publishing {
			status = SuccessStyle.Render("live")
		}
		data = append(data, []string{name, micIcon(r), cameraIcon(r), status})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

type MeetingInfo struct {
	RoomID   string
	RoomLink string
}

func NewMeetingInfo(roomID, roomLink string) *MeetingInfo {
	return &MeetingInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (m *MeetingInfo) View() string {
	content := fmt.Sprintf("%s Meeting Created!\n\n%s Meeting ID:    %s\n%s Meeting Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(colorIndigo).Render(m.RoomID),
		IconWeb, MutedStyle.Render(m.RoomLink),
	)

	return SuccessBoxStyle.Render(content)
}

func RenderMeetingInfo(roomID, roomLink string) {
	fmt.Println(NewMeetingInfo(roomID, roomLink).View())
}
