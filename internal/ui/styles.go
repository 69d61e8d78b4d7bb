package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Parley palette
var (
	colorIndigo  = lipgloss.Color("#818CF8")
	colorCyan    = lipgloss.Color("#22D3EE")
	colorEmerald = lipgloss.Color("#10B981")
	colorAmber   = lipgloss.Color("#F59E0B")
	colorRed     = lipgloss.Color("#EF4444")
	colorGray    = lipgloss.Color("#6B7280")
	colorSlate   = lipgloss.Color("#1F2937")
)

var (
	SubtitleStyle = lipgloss.NewStyle().Foreground(colorCyan).Italic(true)
	SuccessStyle  = lipgloss.NewStyle().Foreground(colorEmerald).Bold(true)
	ErrorStyle    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	WarningStyle  = lipgloss.NewStyle().Foreground(colorAmber)
	MutedStyle    = lipgloss.NewStyle().Foreground(colorGray)
	BoldStyle     = lipgloss.NewStyle().Bold(true)

	// HeaderStyle bands the room id and elapsed time across the top of the
	// live view; FooterStyle carries the key hints under it.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorIndigo).
			Background(colorSlate).
			Padding(0, 2).
			MarginBottom(1)

	FooterStyle = lipgloss.NewStyle().Foreground(colorGray).MarginTop(1)

	SuccessBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorEmerald).
			Padding(1, 2)

	SpinnerStyle = lipgloss.NewStyle().Foreground(colorIndigo)
)

// Roster table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorIndigo).
				Align(lipgloss.Center)

	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

	TableRowStyle    = tableCellStyle.Foreground(lipgloss.Color("255"))
	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))

	tableBorderStyle = lipgloss.NewStyle().Foreground(colorIndigo)
)

const (
	IconSuccess  = "✅"
	IconError    = "❌"
	IconWarning  = "⚠️"
	IconInfo     = "ℹ️"
	IconRoom     = "🚪"
	IconTime     = "⏱️"
	IconComplete = "🎉"
	IconCopy     = "📋"
	IconWeb      = "🌐"
	IconMic      = "🎙️"
	IconMuted    = "🔇"
	IconCamera   = "🎥"
	IconNoVideo  = "🚫"
	IconScreen   = "🖥️"
)

// PrintError writes a styled error line to stdout.
func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintWarningf(format string, args ...any) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(fmt.Sprintf(format, args...)))
}

func PrintSuccessf(format string, args ...any) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), fmt.Sprintf(format, args...))
}

func PrintInfof(format string, args ...any) {
	fmt.Printf("%s %s\n", IconInfo, fmt.Sprintf(format, args...))
}
