package room

import (
	"context"
	"log/slog"

	"github.com/parley-labs/Parley/cli/internal/media"
	"github.com/parley-labs/Parley/cli/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// StartPublishing captures local media and negotiates the outbound
// connection. Guarded by a single-flight flag: a concurrent call is ignored
// with a warning, not queued.
func (s *Session) StartPublishing(ctx context.Context) error {
	return s.startPublishing(ctx, nil)
}

func (s *Session) startPublishing(ctx context.Context, extra []*media.Track) error {
	s.mu.Lock()
	if s.publishFlight {
		s.mu.Unlock()
		slog.Warn("publish already in progress, ignoring")
		return nil
	}
	s.publishFlight = true
	iceServers := s.iceServers
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.publishFlight = false
		s.mu.Unlock()
	}()

	if err := s.publisher.Initialize(iceServers); err != nil {
		return newError("publish", MsgPublishFailed, err)
	}
	s.wirePublisher()

	if err := s.publisher.StartCapture(s.engine, media.Constraints{}); err != nil {
		s.publisher.Stop()
		return newError("publish", MsgPublishFailed, err)
	}

	if err := s.addTracks(extra); err != nil {
		// One recovery attempt with a fresh connection; the previous one
		// is discarded by Initialize, not leaked.
		slog.Warn("attaching tracks failed, retrying once", "err", err)
		if err := s.publisher.Initialize(iceServers); err != nil {
			s.publisher.Stop()
			return newError("publish", MsgPublishFailed, err)
		}
		s.wirePublisher()
		if err := s.addTracks(extra); err != nil {
			s.publisher.Stop()
			return newError("publish", MsgPublishFailed, err)
		}
	}

	offer, err := s.publisher.CreateOffer()
	if err != nil {
		s.publisher.Stop()
		return newError("publish", MsgPublishFailed, err)
	}

	resp, err := s.channel.SendRequest(signaling.MessageTypePublishOffer,
		signaling.PublishOfferPayload{SDP: offer, Kind: "both"})
	if err != nil {
		s.publisher.Stop()
		return newError("publish", MsgPublishFailed, err)
	}
	answer, err := signaling.DecodePayload[signaling.PublishAnswerPayload](resp)
	if err != nil {
		s.publisher.Stop()
		return newError("publish", MsgPublishFailed, err)
	}
	if err := s.publisher.SetAnswer(answer.SDP); err != nil {
		s.publisher.Stop()
		return newError("publish", MsgPublishFailed, err)
	}

	s.mu.Lock()
	if member, ok := s.participants[s.userID]; ok {
		member.Publishing = true
	}
	s.mu.Unlock()
	s.listeners.notify()

	// A safety re-check: the publisher set may have moved while we were
	// negotiating.
	s.requestSync()
	return nil
}

func (s *Session) addTracks(extra []*media.Track) error {
	if err := s.publisher.AddTracks(); err != nil {
		return err
	}
	for _, t := range extra {
		if err := s.publisher.AddTrack(t); err != nil {
			return err
		}
	}
	return nil
}

// wirePublisher attaches ICE and state observers to a freshly initialized
// publisher connection.
func (s *Session) wirePublisher() {
	offCandidate := s.publisher.OnICECandidate(func(c webrtc.ICECandidateInit) {
		payload := signaling.TrickleICEPayload{
			Candidate:     c.Candidate,
			SDPMid:        c.SDPMid,
			SDPMLineIndex: c.SDPMLineIndex,
			Target:        signaling.TargetPublisher,
		}
		if err := s.channel.Send(signaling.MessageTypeTrickleICE, payload); err != nil {
			slog.Debug("trickle dropped", "err", err)
		}
	})
	offState := s.publisher.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("publisher connection state", "state", state)
		s.listeners.notify()
	})
	s.mu.Lock()
	s.offFuncs = append(s.offFuncs, offCandidate, offState)
	s.mu.Unlock()
}

// StopPublishing stops the outbound session and marks self as a
// non-publishing participant.
func (s *Session) StopPublishing() {
	s.publisher.Stop()
	s.mu.Lock()
	if member, ok := s.participants[s.userID]; ok {
		member.Publishing = false
		member.Muted = false
		member.VideoOff = false
	}
	s.mu.Unlock()
	s.listeners.notify()
}

// ToggleMute flips the microphone gate and returns the new muted state.
func (s *Session) ToggleMute() (bool, error) {
	muted, err := s.publisher.ToggleMute()
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	if member, ok := s.participants[s.userID]; ok {
		member.Muted = muted
	}
	s.mu.Unlock()
	s.listeners.notify()
	return muted, nil
}

// ToggleVideo flips the camera gate and returns the new video-off state.
func (s *Session) ToggleVideo() (bool, error) {
	videoOff, err := s.publisher.ToggleVideo()
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	if member, ok := s.participants[s.userID]; ok {
		member.VideoOff = videoOff
	}
	s.mu.Unlock()
	s.listeners.notify()
	return videoOff, nil
}

// ScreenSharing reports whether a screen stream currently replaces the
// camera.
func (s *Session) ScreenSharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenStream != nil
}

// ScreenShareAudio reports whether system audio is part of the share.
func (s *Session) ScreenShareAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenAudio
}

// StartScreenShare swaps the published video (and, when available, audio)
// for a desktop capture. The fast path reuses existing senders via
// replaceTrack; when a screen track finds no matching sender the publisher
// is restarted with the screen tracks included, then the screen tracks are
// re-applied on top of the fresh connection.
func (s *Session) StartScreenShare(ctx context.Context) error {
	s.mu.Lock()
	if s.screenStream != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	screen, err := s.engine.CaptureScreen(true)
	if err != nil {
		return newError("screen-share", MsgScreenFailed, err)
	}

	needRestart := false
	for _, t := range screen.Tracks() {
		replaced, err := s.publisher.ReplaceTrack(t)
		if err != nil {
			screen.Close()
			return newError("screen-share", MsgScreenFailed, err)
		}
		if !replaced {
			needRestart = true
			break
		}
	}

	if needRestart {
		// No reusable sender for at least one screen track: restart the
		// publisher with the screen tracks negotiated in, then re-apply
		// them so every sender carries screen media.
		s.publisher.Stop()
		s.mu.Lock()
		if member, ok := s.participants[s.userID]; ok {
			member.Publishing = false
		}
		s.mu.Unlock()

		if err := s.startPublishing(ctx, screen.Tracks()); err != nil {
			screen.Close()
			return err
		}
		for _, t := range screen.Tracks() {
			if _, err := s.publisher.ReplaceTrack(t); err != nil {
				screen.Close()
				return newError("screen-share", MsgScreenFailed, err)
			}
		}
	}

	s.mu.Lock()
	s.screenStream = screen
	s.screenAudio = len(screen.TracksOfKind(media.KindAudio)) > 0
	s.mu.Unlock()
	s.listeners.notify()
	return nil
}

// StopScreenShare restores the camera stream's tracks through the same
// replaceTrack path and releases the screen capture.
func (s *Session) StopScreenShare() error {
	s.mu.Lock()
	screen := s.screenStream
	s.screenStream = nil
	s.screenAudio = false
	s.mu.Unlock()
	if screen == nil {
		return nil
	}

	camera := s.publisher.Stream()
	if camera != nil {
		for _, t := range camera.Tracks() {
			if _, err := s.publisher.ReplaceTrack(t); err != nil {
				slog.Warn("restoring camera track failed", "kind", t.Kind(), "err", err)
			}
		}
	}
	screen.Close()
	s.listeners.notify()
	return nil
}
