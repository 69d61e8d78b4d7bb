package media

import (
	"fmt"
	"log/slog"
)

// Engine owns the capture sources and assembles local streams from them.
type Engine struct {
	mic         Source
	camera      Source
	screen      Source
	screenAudio Source
}

// NewEngine creates an engine over the platform capture pipelines.
func NewEngine() *Engine {
	return &Engine{
		mic:         NewMicrophoneSource(),
		camera:      NewCameraSource(),
		screen:      NewScreenSource(),
		screenAudio: NewSystemAudioSource(),
	}
}

// NewEngineWithSources creates an engine over explicit sources. Sources may
// be nil to make a kind unavailable.
func NewEngineWithSources(mic, camera, screen, screenAudio Source) *Engine {
	return &Engine{mic: mic, camera: camera, screen: screen, screenAudio: screenAudio}
}

// Capture acquires local audio/video per the given constraints, merged over
// the defaults. On any failure, already-opened tracks are stopped.
func (e *Engine) Capture(c Constraints) (*Stream, error) {
	merged := DefaultConstraints().Merge(c)
	stream := NewStream()

	if merged.Audio != nil && e.mic != nil {
		t, err := e.mic.Open(merged)
		if err != nil {
			stream.Close()
			return nil, err
		}
		stream.AddTrack(t)
	}
	if merged.Video != nil && e.camera != nil {
		t, err := e.camera.Open(merged)
		if err != nil {
			stream.Close()
			return nil, err
		}
		stream.AddTrack(t)
	}

	if len(stream.Tracks()) == 0 {
		return nil, fmt.Errorf("%w: no capture source available", ErrAccessDenied)
	}
	return stream, nil
}

// CaptureScreen acquires the desktop video and, when requested, system
// audio. Missing system audio is not fatal: many platforms expose no
// monitor device, and the caller falls back to camera audio.
func (e *Engine) CaptureScreen(withAudio bool) (*Stream, error) {
	if e.screen == nil {
		return nil, fmt.Errorf("%w: no screen capture source", ErrAccessDenied)
	}
	stream := NewStream()

	t, err := e.screen.Open(Constraints{Video: &VideoConstraints{FrameRate: 15}})
	if err != nil {
		stream.Close()
		return nil, err
	}
	stream.AddTrack(t)

	if withAudio && e.screenAudio != nil {
		at, err := e.screenAudio.Open(Constraints{Audio: &AudioConstraints{}})
		if err != nil {
			slog.Warn("system audio capture unavailable", "err", err)
		} else {
			stream.AddTrack(at)
		}
	}
	return stream, nil
}
