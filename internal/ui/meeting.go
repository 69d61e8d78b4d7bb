package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-labs/Parley/cli/internal/utils"
)

// MeetingState is a snapshot of the meeting pushed into the live view
type MeetingState struct {
	RoomID       string
	Publishing   bool
	Muted        bool
	VideoOff     bool
	ScreenShared bool
	Roster       []RosterRow
}

// MeetingControls wires key presses back to the session
type MeetingControls struct {
	ToggleMute   func() (bool, error)
	ToggleVideo  func() (bool, error)
	ToggleScreen func() (bool, error)
}

type controlResult struct {
	action string
	err    error
}

type meetingTick time.Time

// MeetingUI drives the live in-meeting terminal view
type MeetingUI struct {
	program    *tea.Program
	model      *meetingModel
	updateChan chan MeetingState
	wg         sync.WaitGroup
	err        error
}

type meetingModel struct {
	state      MeetingState
	controls   MeetingControls
	spinner    spinner.Model
	startTime  time.Time
	updateChan chan MeetingState
	notice     string
	busy       bool
	quitting   bool
	mu         sync.RWMutex
}

// NewMeetingUI creates the live meeting view for a joined room
func NewMeetingUI(initial MeetingState, controls MeetingControls) *MeetingUI {
	updateChan := make(chan MeetingState, 16)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	model := &meetingModel{
		state:      initial,
		controls:   controls,
		spinner:    s,
		startTime:  time.Now(),
		updateChan: updateChan,
	}

	return &MeetingUI{
		model:      model,
		updateChan: updateChan,
	}
}

// Push delivers a fresh meeting snapshot to the view. Non-blocking;
// intermediate snapshots may be dropped when updates arrive in bursts.
func (ui *MeetingUI) Push(state MeetingState) {
	select {
	case ui.updateChan <- state:
	default:
	}
}

// Run blocks until the user leaves the meeting
func (ui *MeetingUI) Run() error {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		// Inline mode keeps previous terminal output visible
		ui.program = tea.NewProgram(ui.model)
		if _, err := ui.program.Run(); err != nil {
			ui.err = err
		}
	}()
	ui.wg.Wait()
	return ui.err
}

// Stop ends the view from outside (e.g. on signal)
func (ui *MeetingUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
}

// Elapsed reports how long the view has been running
func (ui *MeetingUI) Elapsed() time.Duration {
	return time.Since(ui.model.startTime)
}

func (m *meetingModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForUpdates(),
		tea.Tick(time.Second, func(t time.Time) tea.Msg {
			return meetingTick(t)
		}),
	)
}

func (m *meetingModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updateChan
	}
}

func (m *meetingModel) control(action string, fn func() (bool, error)) tea.Cmd {
	if fn == nil {
		return nil
	}
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil
	}
	m.busy = true
	m.mu.Unlock()

	return func() tea.Msg {
		_, err := fn()
		return controlResult{action: action, err: err}
	}
}

func (m *meetingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "m":
			if cmd := m.control("mute", m.controls.ToggleMute); cmd != nil {
				cmds = append(cmds, cmd)
			}
		case "v":
			if cmd := m.control("video", m.controls.ToggleVideo); cmd != nil {
				cmds = append(cmds, cmd)
			}
		case "s":
			if cmd := m.control("screen", m.controls.ToggleScreen); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case meetingTick:
		if !m.quitting {
			cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg {
				return meetingTick(t)
			}))
		}

	case MeetingState:
		m.mu.Lock()
		m.state = msg
		m.mu.Unlock()
		cmds = append(cmds, m.listenForUpdates())

	case controlResult:
		m.mu.Lock()
		m.busy = false
		if msg.err != nil {
			m.notice = ErrorStyle.Render(fmt.Sprintf("%s failed: %v", msg.action, msg.err))
		} else {
			m.notice = ""
		}
		m.mu.Unlock()
	}

	return m, tea.Batch(cmds...)
}

func (m *meetingModel) View() string {
	if m.quitting {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	elapsed := utils.FormatDuration(time.Since(m.startTime))
	b.WriteString("\n")
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s %s  %s %s", IconRoom, m.state.RoomID, IconTime, elapsed)))
	b.WriteString("\n")

	if len(m.state.Roster) == 0 {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), MutedStyle.Render("Waiting for participants...")))
	} else {
		b.WriteString(RosterView(m.state.Roster))
		b.WriteString("\n")
	}

	var status []string
	if m.state.Publishing {
		if m.state.Muted {
			status = append(status, IconMuted+" muted")
		} else {
			status = append(status, IconMic+" live")
		}
		if m.state.VideoOff {
			status = append(status, IconNoVideo+" camera off")
		}
	} else {
		status = append(status, "viewing only")
	}
	if m.state.ScreenShared {
		status = append(status, IconScreen+" sharing screen")
	}
	b.WriteString(SubtitleStyle.Render(strings.Join(status, "  ")))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(m.notice)
		b.WriteString("\n")
	}

	b.WriteString(FooterStyle.Render("m mute  v video  s screen  q leave"))
	b.WriteString("\n")

	return b.String()
}
