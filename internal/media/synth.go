package media

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// SynthSource emits silence or black frames on a timer. It stands in for a
// real device on headless machines and in tests.
type SynthSource struct {
	kind    string
	trackID string
}

// NewSynthSource creates a synthetic source of the given kind.
func NewSynthSource(kind, trackID string) *SynthSource {
	return &SynthSource{kind: kind, trackID: trackID}
}

// Kind returns the media kind this source produces.
func (s *SynthSource) Kind() string {
	return s.kind
}

// Open starts the sample generator.
func (s *SynthSource) Open(Constraints) (*Track, error) {
	var codec webrtc.RTPCodecCapability
	var interval time.Duration
	switch s.kind {
	case KindAudio:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}
		interval = 20 * time.Millisecond
	case KindVideo:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}
		interval = 33 * time.Millisecond
	default:
		return nil, fmt.Errorf("unknown media kind %q", s.kind)
	}

	track, err := webrtc.NewTrackLocalStaticSample(codec, s.trackID, "synth")
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", s.kind, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := NewTrack(track, s.kind, cancel)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		payload := make([]byte, 16)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !out.Enabled() {
					continue
				}
				if err := track.WriteSample(media.Sample{Data: payload, Duration: interval}); err != nil {
					return
				}
			}
		}
	}()

	return out, nil
}
