package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner animates a one-line progress indicator on stdout until stopped.
// It is for the blocking phases before the bubbletea meeting view takes
// over the terminal.
type Spinner struct {
	message string
	frames  []string
	period  time.Duration
	done    chan struct{}
	once    sync.Once
}

func newSpinner(message string, kind spinner.Spinner, period time.Duration) *Spinner {
	return &Spinner{
		message: message,
		frames:  kind.Frames,
		period:  period,
		done:    make(chan struct{}),
	}
}

// NewConnectionSpinner animates network operations (globe frames).
func NewConnectionSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Globe, 180*time.Millisecond)
}

// NewLoadingSpinner animates local work (dot frames).
func NewLoadingSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Dot, 80*time.Millisecond)
}

// Start begins animating. Stop must be called before printing anything else
// to stdout.
func (s *Spinner) Start() {
	go func() {
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Printf("\r%s %s", SpinnerStyle.Render(s.frames[i%len(s.frames)]), s.message)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the animation and clears the line. Safe to call repeatedly.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		fmt.Print("\r\033[K")
	})
}

// RunConnectionSpinner starts a connection spinner and returns its stop
// function.
func RunConnectionSpinner(message string) func() {
	sp := NewConnectionSpinner(message)
	sp.Start()
	return sp.Stop
}
