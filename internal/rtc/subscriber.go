package rtc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/parley-labs/Parley/cli/internal/media"
	"github.com/pion/webrtc/v4"
)

// CandidateEvent is a locally discovered subscriber-side ICE candidate.
// FeedID is zero for a batched connection covering several feeds.
type CandidateEvent struct {
	FeedID    int64
	Candidate webrtc.ICECandidateInit
}

// StateEvent reports a subscriber connection state change for a feed.
type StateEvent struct {
	FeedID int64
	State  webrtc.PeerConnectionState
}

// Subscription is one negotiated feed: its connection, aggregated stream
// and the publisher's identity.
type Subscription struct {
	FeedID  int64
	Display string
	UserID  string

	pc     *webrtc.PeerConnection
	shared bool // pc is a batch connection covering other feeds too
	stream *media.RemoteStream
}

// Subscriber owns the inbound peer connections and aggregates their tracks
// into per-feed remote streams. At most one subscription exists per feed.
type Subscriber struct {
	mu         sync.Mutex
	iceServers []webrtc.ICEServer
	forceRelay bool
	subs       map[int64]*Subscription

	onStream    callbacks[*media.RemoteStream]
	onCandidate callbacks[CandidateEvent]
	onState     callbacks[StateEvent]
}

// NewSubscriber creates an empty subscriber session.
func NewSubscriber() *Subscriber {
	return &Subscriber{subs: make(map[int64]*Subscription)}
}

// SetICEServers stores the servers used for all future peer connections.
func (s *Subscriber) SetICEServers(servers []webrtc.ICEServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iceServers = servers
}

// SetForceRelay restricts ICE to relayed candidates for restrictive
// networks. Takes effect on the next negotiation.
func (s *Subscriber) SetForceRelay(force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceRelay = force
}

// OnRemoteStream registers an observer fired when a feed's stream gains a
// track.
func (s *Subscriber) OnRemoteStream(fn func(*media.RemoteStream)) func() {
	return s.onStream.add(fn)
}

// OnICECandidate registers a local-candidate observer.
func (s *Subscriber) OnICECandidate(fn func(CandidateEvent)) func() {
	return s.onCandidate.add(fn)
}

// OnConnectionStateChange registers a connection-state observer.
func (s *Subscriber) OnConnectionStateChange(fn func(StateEvent)) func() {
	return s.onState.add(fn)
}

// Subscribe negotiates a single feed over its own receive-only connection.
// An existing subscription for the feed is replaced, never duplicated.
func (s *Subscriber) Subscribe(feedID int64, offerSDP, display, userID string) (string, error) {
	s.Unsubscribe(feedID)
	return s.negotiate([]int64{feedID}, offerSDP, []string{display}, []string{userID})
}

// SubscribeMultiple negotiates one batched receive-only connection covering
// exactly the given feed set, which replaces every current subscription.
// feedIDs order must match the transceiver order implied by the offer;
// mismatched ordering corrupts the feed-to-stream mapping.
func (s *Subscriber) SubscribeMultiple(feedIDs []int64, offerSDP string, displays, userIDs []string) (string, error) {
	if len(feedIDs) == 0 {
		return "", fmt.Errorf("%w: empty feed set", ErrNegotiationFailed)
	}
	s.Cleanup()
	return s.negotiate(feedIDs, offerSDP, displays, userIDs)
}

func (s *Subscriber) negotiate(feedIDs []int64, offerSDP string, displays, userIDs []string) (string, error) {
	s.mu.Lock()
	servers := s.iceServers
	policy := webrtc.ICETransportPolicyAll
	if s.forceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}
	s.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return "", fmt.Errorf("%w: create subscriber connection: %v", ErrNegotiationFailed, err)
	}

	batch := len(feedIDs) > 1
	streams := make(map[int64]*media.RemoteStream, len(feedIDs))
	subs := make([]*Subscription, 0, len(feedIDs))
	for i, feedID := range feedIDs {
		stream := media.NewRemoteStream(feedID)
		streams[feedID] = stream
		sub := &Subscription{FeedID: feedID, pc: pc, shared: batch, stream: stream}
		if i < len(displays) {
			sub.Display = displays[i]
		}
		if i < len(userIDs) {
			sub.UserID = userIDs[i]
		}
		subs = append(subs, sub)
	}

	candidateFeed := feedIDs[0]
	if batch {
		candidateFeed = 0
	}
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		s.onCandidate.emit(CandidateEvent{FeedID: candidateFeed, Candidate: c.ToJSON()})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		for _, feedID := range feedIDs {
			s.onState.emit(StateEvent{FeedID: feedID, State: state})
		}
	})

	// The mid-to-feed mapping is fixed once the remote offer is applied;
	// OnTrack may fire as soon as negotiation completes.
	midFeed := make(map[string]int64)
	var midMu sync.Mutex
	pc.OnTrack(func(tr *webrtc.TrackRemote, recv *webrtc.RTPReceiver) {
		mid := midForReceiver(pc, recv)
		midMu.Lock()
		feedID, ok := midFeed[mid]
		midMu.Unlock()
		if !ok {
			slog.Warn("track for unmapped mid", "mid", mid, "track", tr.ID())
			return
		}
		stream := streams[feedID]
		if stream.AddTrack(tr) {
			s.onStream.emit(stream)
		}
	})

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return "", fmt.Errorf("%w: set subscribe offer: %v", ErrNegotiationFailed, err)
	}

	// Transceivers appear in m-line order; the offer lists each feed's
	// m-lines contiguously in feedIDs order.
	transceivers := pc.GetTransceivers()
	perFeed := len(transceivers) / len(feedIDs)
	if perFeed == 0 {
		perFeed = 1
	}
	midMu.Lock()
	for i, tx := range transceivers {
		idx := i / perFeed
		if idx >= len(feedIDs) {
			idx = len(feedIDs) - 1
		}
		midFeed[tx.Mid()] = feedIDs[idx]
	}
	midMu.Unlock()

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("%w: create answer: %v", ErrNegotiationFailed, err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return "", fmt.Errorf("%w: set local description: %v", ErrNegotiationFailed, err)
	}

	s.mu.Lock()
	for _, sub := range subs {
		s.subs[sub.FeedID] = sub
	}
	s.mu.Unlock()

	return pc.LocalDescription().SDP, nil
}

// GetRemoteStream returns the aggregated stream for a feed, or nil.
func (s *Subscriber) GetRemoteStream(feedID int64) *media.RemoteStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[feedID]; ok {
		return sub.stream
	}
	return nil
}

// Subscriptions returns a snapshot of the live subscriptions.
func (s *Subscriber) Subscriptions() []*Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

// AddICECandidate applies a trickled candidate to the subscription owning
// the feed. A candidate for an unknown feed arrived after teardown; that is
// a no-op, not an error.
func (s *Subscriber) AddICECandidate(feedID int64, c webrtc.ICECandidateInit) error {
	s.mu.Lock()
	sub, ok := s.subs[feedID]
	s.mu.Unlock()
	if !ok {
		slog.Debug("candidate for unknown feed ignored", "feed", feedID)
		return nil
	}
	if err := sub.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("%w: add candidate for feed %d: %v", ErrNegotiationFailed, feedID, err)
	}
	return nil
}

// Unsubscribe stops the feed's tracks and closes its connection, unless the
// connection is a batch still serving other feeds.
func (s *Subscriber) Unsubscribe(feedID int64) {
	s.mu.Lock()
	sub, ok := s.subs[feedID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subs, feedID)
	closePC := true
	for _, other := range s.subs {
		if other.pc == sub.pc {
			closePC = false
			break
		}
	}
	s.mu.Unlock()

	if closePC {
		if err := sub.pc.Close(); err != nil {
			slog.Debug("closing subscriber connection", "feed", feedID, "err", err)
		}
	}
}

// Cleanup tears down every live subscription. Idempotent.
func (s *Subscriber) Cleanup() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[int64]*Subscription)
	s.mu.Unlock()

	closed := make(map[*webrtc.PeerConnection]struct{})
	for _, sub := range subs {
		if _, done := closed[sub.pc]; done {
			continue
		}
		closed[sub.pc] = struct{}{}
		if err := sub.pc.Close(); err != nil {
			slog.Debug("closing subscriber connection", "feed", sub.FeedID, "err", err)
		}
	}
}

// midForReceiver resolves the mid of the transceiver owning a receiver.
func midForReceiver(pc *webrtc.PeerConnection, recv *webrtc.RTPReceiver) string {
	for _, tx := range pc.GetTransceivers() {
		if tx.Receiver() == recv {
			return tx.Mid()
		}
	}
	return ""
}
