package rtc

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/parley-labs/Parley/cli/internal/media"
	"github.com/pion/webrtc/v4"
)

// Publisher owns the outbound peer connection and the local capture stream.
// It never retries negotiation itself; failures propagate to the caller.
type Publisher struct {
	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	stream  *media.Stream
	senders []*webrtc.RTPSender

	muted      bool
	videoOff   bool
	forceRelay bool
	publishing atomic.Bool

	onCandidate callbacks[webrtc.ICECandidateInit]
	onState     callbacks[webrtc.PeerConnectionState]
}

// NewPublisher creates an idle publisher session.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// SetForceRelay restricts ICE to relayed candidates for restrictive
// networks. Takes effect on the next Initialize.
func (p *Publisher) SetForceRelay(force bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forceRelay = force
}

// Initialize creates a fresh peer connection, discarding any previous one.
// ICE and state observers are wired before any negotiation starts.
func (p *Publisher) Initialize(iceServers []webrtc.ICEServer) error {
	p.mu.Lock()
	policy := webrtc.ICETransportPolicyAll
	if p.forceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}
	p.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return fmt.Errorf("%w: create publisher connection: %v", ErrNegotiationFailed, err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		p.onCandidate.emit(c.ToJSON())
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		// Publishing reflects actual media flow, not user intent.
		switch s {
		case webrtc.PeerConnectionStateConnected:
			p.publishing.Store(true)
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			p.publishing.Store(false)
		}
		p.onState.emit(s)
	})

	p.mu.Lock()
	if p.pc != nil {
		p.pc.Close()
	}
	p.pc = pc
	p.senders = nil
	p.mu.Unlock()
	return nil
}

// StartCapture acquires local media, merging caller constraints over the
// defaults. A previously captured stream is released first.
func (p *Publisher) StartCapture(engine *media.Engine, c media.Constraints) error {
	stream, err := engine.Capture(c)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.stream != nil {
		p.stream.Close()
	}
	p.stream = stream
	p.muted = false
	p.videoOff = false
	p.mu.Unlock()
	return nil
}

// AddTracks attaches every captured track to the peer connection as
// send-only. Safe to retry after a fresh Initialize: senders belong to the
// connection they were created on.
func (p *Publisher) AddTracks() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pc == nil || p.stream == nil {
		return ErrNotInitialized
	}
	for _, t := range p.stream.Tracks() {
		tx, err := p.pc.AddTransceiverFromTrack(t.Local(), webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendonly,
		})
		if err != nil {
			return fmt.Errorf("%w: attach %s track: %v", ErrNegotiationFailed, t.Kind(), err)
		}
		p.senders = append(p.senders, tx.Sender())
	}
	return nil
}

// AddTrack attaches one additional track as send-only, beyond the captured
// stream. Used when a restart must negotiate screen tracks in.
func (p *Publisher) AddTrack(t *media.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pc == nil {
		return ErrNotInitialized
	}
	tx, err := p.pc.AddTransceiverFromTrack(t.Local(), webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		return fmt.Errorf("%w: attach %s track: %v", ErrNegotiationFailed, t.Kind(), err)
	}
	p.senders = append(p.senders, tx.Sender())
	return nil
}

// CreateOffer produces and applies the publish-only local offer. Send-only
// transceivers keep recvonly media out of it.
func (p *Publisher) CreateOffer() (string, error) {
	p.mu.Lock()
	pc := p.pc
	p.mu.Unlock()
	if pc == nil {
		return "", ErrNotInitialized
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: create offer: %v", ErrNegotiationFailed, err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("%w: set local description: %v", ErrNegotiationFailed, err)
	}
	return pc.LocalDescription().SDP, nil
}

// SetAnswer applies the server's SDP answer.
func (p *Publisher) SetAnswer(sdp string) error {
	p.mu.Lock()
	pc := p.pc
	p.mu.Unlock()
	if pc == nil {
		return ErrNotInitialized
	}
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("%w: set answer: %v", ErrNegotiationFailed, err)
	}
	return nil
}

// AddICECandidate applies a trickled remote candidate.
func (p *Publisher) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	pc := p.pc
	p.mu.Unlock()
	if pc == nil {
		return ErrNotInitialized
	}
	if err := pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("%w: add candidate: %v", ErrNegotiationFailed, err)
	}
	return nil
}

// ToggleMute flips audio track enablement without stopping tracks and
// returns the new muted state.
func (p *Publisher) ToggleMute() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return false, ErrNotInitialized
	}
	p.muted = !p.muted
	p.stream.SetEnabled(media.KindAudio, !p.muted)
	return p.muted, nil
}

// ToggleVideo flips video track enablement and returns the new video-off
// state.
func (p *Publisher) ToggleVideo() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return false, ErrNotInitialized
	}
	p.videoOff = !p.videoOff
	p.stream.SetEnabled(media.KindVideo, !p.videoOff)
	return p.videoOff, nil
}

// ReplaceTrack swaps the track of the existing sender with a matching kind.
// Reports false with no error when no sender matches: the caller must then
// fall back to a fresh offer/answer cycle, because adding a brand-new
// sender is not covered by the current negotiation.
func (p *Publisher) ReplaceTrack(t *media.Track) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pc == nil {
		return false, ErrNotInitialized
	}
	for _, sender := range p.senders {
		current := sender.Track()
		if current == nil || current.Kind().String() != t.Kind() {
			continue
		}
		if err := sender.ReplaceTrack(t.Local()); err != nil {
			return false, fmt.Errorf("%w: replace %s track: %v", ErrNegotiationFailed, t.Kind(), err)
		}
		return true, nil
	}
	return false, nil
}

// Publishing reports whether media is actually flowing, derived from the
// connection state.
func (p *Publisher) Publishing() bool {
	return p.publishing.Load()
}

// Muted reports the audio gate state.
func (p *Publisher) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// VideoOff reports the video gate state.
func (p *Publisher) VideoOff() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videoOff
}

// Stream returns the captured local stream, or nil before capture.
func (p *Publisher) Stream() *media.Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream
}

// OnICECandidate registers a local-candidate observer.
func (p *Publisher) OnICECandidate(fn func(webrtc.ICECandidateInit)) func() {
	return p.onCandidate.add(fn)
}

// OnConnectionStateChange registers a connection-state observer.
func (p *Publisher) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) func() {
	return p.onState.add(fn)
}

// Stop stops all local tracks, closes the peer connection and clears all
// callbacks. Idempotent.
func (p *Publisher) Stop() {
	p.mu.Lock()
	stream := p.stream
	pc := p.pc
	p.stream = nil
	p.pc = nil
	p.senders = nil
	p.muted = false
	p.videoOff = false
	p.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			slog.Debug("closing publisher connection", "err", err)
		}
	}
	p.publishing.Store(false)
	p.onCandidate.clear()
	p.onState.clear()
}
