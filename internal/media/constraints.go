package media

// Media kinds, matching webrtc track kinds.
const (
	KindAudio = "audio"
	KindVideo = "video"
)

// AudioConstraints selects audio processing for capture.
type AudioConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// VideoConstraints selects the ideal capture geometry.
type VideoConstraints struct {
	Width     int
	Height    int
	FrameRate int
}

// Constraints describes what to capture. A nil kind is not captured.
type Constraints struct {
	Audio *AudioConstraints
	Video *VideoConstraints
}

// DefaultConstraints returns the sane capture defaults: full audio
// processing and 1280x720 at 30 fps.
func DefaultConstraints() Constraints {
	return Constraints{
		Audio: &AudioConstraints{
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
		Video: &VideoConstraints{
			Width:     1280,
			Height:    720,
			FrameRate: 30,
		},
	}
}

// Merge overlays caller constraints on top of c. Only kinds the caller
// specifies are replaced.
func (c Constraints) Merge(over Constraints) Constraints {
	merged := c
	if over.Audio != nil {
		merged.Audio = over.Audio
	}
	if over.Video != nil {
		merged.Video = over.Video
	}
	return merged
}
