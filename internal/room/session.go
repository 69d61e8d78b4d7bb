package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-labs/Parley/cli/internal/api"
	"github.com/parley-labs/Parley/cli/internal/config"
	"github.com/parley-labs/Parley/cli/internal/media"
	"github.com/parley-labs/Parley/cli/internal/rtc"
	"github.com/parley-labs/Parley/cli/internal/signaling"
	"github.com/parley-labs/Parley/cli/internal/utils"
	"github.com/pion/webrtc/v4"
)

const pingInterval = 25 * time.Second

// JoinAuth carries one of the accepted join credentials.
type JoinAuth struct {
	CreatorKey  string
	InviteToken string
	InviteCode  string
}

// Session is the orchestrator tying the signaling channel, publisher and
// subscriber together. It exclusively owns the participant and publisher
// maps; consumers read snapshots and trigger methods, never mutate.
type Session struct {
	cfg        *config.Config
	api        *api.Client
	channel    *signaling.Channel
	engine     *media.Engine
	publisher  *rtc.Publisher
	subscriber *rtc.Subscriber

	mu           sync.Mutex
	joined       bool
	roomID       string
	userID       string
	display      string
	iceServers   []webrtc.ICEServer
	participants map[string]*Participant
	publishers   map[int64]*RemotePublisher

	prejoin []*signaling.Message

	publishFlight bool
	syncRunning   bool
	syncPending   bool

	screenStream *media.Stream
	screenAudio  bool

	offFuncs []func()
	pingStop chan struct{}

	listeners notifier
}

// Deps allows injecting collaborators, used by tests and by presentation
// code that shares one channel instance process-wide.
type Deps struct {
	API        *api.Client
	Channel    *signaling.Channel
	Engine     *media.Engine
	Publisher  *rtc.Publisher
	Subscriber *rtc.Subscriber
}

// NewSession creates a session with production collaborators.
func NewSession(cfg *config.Config) *Session {
	return NewSessionWithDeps(cfg, Deps{})
}

// NewSessionWithDeps creates a session, filling missing collaborators with
// production defaults.
func NewSessionWithDeps(cfg *config.Config, deps Deps) *Session {
	if deps.API == nil {
		deps.API = api.NewClient(cfg.APIBaseURL)
	}
	if deps.Channel == nil {
		deps.Channel = signaling.NewChannel(signaling.ChannelConfig{})
	}
	if deps.Engine == nil {
		deps.Engine = media.NewEngine()
	}
	if deps.Publisher == nil {
		deps.Publisher = rtc.NewPublisher()
	}
	if deps.Subscriber == nil {
		deps.Subscriber = rtc.NewSubscriber()
	}
	return &Session{
		cfg:          cfg,
		api:          deps.API,
		channel:      deps.Channel,
		engine:       deps.Engine,
		publisher:    deps.Publisher,
		subscriber:   deps.Subscriber,
		participants: make(map[string]*Participant),
		publishers:   make(map[int64]*RemotePublisher),
	}
}

// UserID returns the local user id once joined.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// RoomID returns the joined room id.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Join drives the full join sequence: room metadata, REST join, signaling
// connect, handler registration, join_room and one subscription sync pass.
// Any failing step triggers full cleanup; partial state is never left live.
func (s *Session) Join(ctx context.Context, roomID, display string, auth JoinAuth) error {
	if _, err := s.api.GetRoom(ctx, roomID); err != nil {
		var status *api.StatusError
		if errors.As(err, &status) && status.Status == 404 {
			return newError("join", MsgRoomNotFound, err)
		}
		return newError("join", MsgJoinFailed, err)
	}

	joinResp, err := s.api.JoinRoom(ctx, roomID, api.JoinRequest{
		Display:     display,
		CreatorKey:  auth.CreatorKey,
		InviteToken: auth.InviteToken,
		InviteCode:  auth.InviteCode,
	})
	if err != nil {
		return newError("join", MsgJoinFailed, err)
	}

	s.mu.Lock()
	s.roomID = joinResp.RoomID
	s.userID = joinResp.UserID
	s.display = display
	s.iceServers = iceServersFromAPI(joinResp.ICEServers, s.cfg)
	// Optimistic fill from REST; the joined payload replaces it below.
	s.participants = make(map[string]*Participant)
	s.publishers = make(map[int64]*RemotePublisher)
	for _, p := range joinResp.Participants {
		s.participants[p.UserID] = &Participant{
			UserID:   p.UserID,
			Display:  p.Display,
			JoinedAt: time.Now(),
		}
	}
	iceServers := s.iceServers
	s.mu.Unlock()

	wsURL := joinResp.WSURL
	if wsURL == "" {
		wsURL = s.cfg.WebSocketBaseURL
	}
	if joinResp.Token != "" {
		wsURL = fmt.Sprintf("%s?token=%s", wsURL, joinResp.Token)
	}
	if err := s.channel.Connect(wsURL); err != nil {
		s.Cleanup()
		return newError("join", MsgJoinFailed, err)
	}

	s.registerHandlers()
	s.subscriber.SetICEServers(iceServers)
	if s.cfg.ForceRelay || utils.ShouldForceRelay() {
		s.publisher.SetForceRelay(true)
		s.subscriber.SetForceRelay(true)
	}

	resp, err := s.channel.SendRequest(signaling.MessageTypeJoinRoom, signaling.JoinRoomPayload{
		RoomID:  joinResp.RoomID,
		Display: display,
	})
	if err != nil {
		s.Cleanup()
		return newError("join", MsgJoinFailed, err)
	}
	joined, err := signaling.DecodePayload[signaling.JoinedPayload](resp)
	if err != nil {
		s.Cleanup()
		return newError("join", MsgJoinFailed, err)
	}

	s.mu.Lock()
	// The joined payload is authoritative: clear and rebuild.
	s.participants = make(map[string]*Participant)
	s.publishers = make(map[int64]*RemotePublisher)
	now := time.Now()
	for _, p := range joined.Participants {
		s.participants[p.UserID] = &Participant{
			UserID:     p.UserID,
			Display:    p.Display,
			Publishing: p.Publishing,
			Muted:      p.Muted,
			VideoOff:   p.VideoOff,
			JoinedAt:   now,
		}
	}
	for _, p := range joined.Publishers {
		s.publishers[p.FeedID] = &RemotePublisher{
			FeedID:   p.FeedID,
			Display:  p.Display,
			UserID:   p.UserID,
			JoinedAt: now,
		}
		if member, ok := s.participants[p.UserID]; ok {
			member.Publishing = true
		} else {
			s.participants[p.UserID] = &Participant{
				UserID:     p.UserID,
				Display:    p.Display,
				Publishing: true,
				JoinedAt:   now,
			}
		}
	}
	// Insert self.
	s.participants[s.userID] = &Participant{
		UserID:   s.userID,
		Display:  display,
		JoinedAt: now,
	}
	s.joined = true
	queued := s.prejoin
	s.prejoin = nil
	s.pingStop = make(chan struct{})
	pingStop := s.pingStop
	s.mu.Unlock()

	go s.pingLoop(pingStop)
	// Events that raced the rebuild were buffered; apply them on top of the
	// authoritative state in arrival order.
	for _, queuedMsg := range queued {
		s.replayRosterEvent(queuedMsg)
	}
	s.listeners.notify()
	s.requestSync()

	slog.Info("joined room", "room", joinResp.RoomID, "user", joinResp.UserID)
	return nil
}

// registerHandlers wires server-pushed events. All subscription changes are
// funneled through requestSync, never inline subscribe calls.
func (s *Session) registerHandlers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offFuncs = append(s.offFuncs,
		s.channel.On(signaling.MessageTypePublisherJoined, s.handlePublisherJoined),
		s.channel.On(signaling.MessageTypePublisherLeft, s.handlePublisherLeft),
		s.channel.On(signaling.MessageTypeMemberJoined, s.handleMemberJoined),
		s.channel.On(signaling.MessageTypeMemberLeft, s.handleMemberLeft),
		s.channel.On(signaling.MessageTypeRemoteCandidate, s.handleRemoteCandidate),
		s.channel.On(signaling.MessageTypeError, s.handleServerError),
		s.subscriber.OnICECandidate(s.handleSubscriberCandidate),
	)
}

// queueIfPreJoin buffers roster events that land between the join_room
// response settling and Join's rebuild from the joined payload. Applying
// them immediately would be futile: the rebuild clears the maps, and a
// sync request before joined is set is dropped. Join replays the buffer
// once the rebuild is done.
func (s *Session) queueIfPreJoin(msg *signaling.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joined {
		return false
	}
	s.prejoin = append(s.prejoin, msg)
	return true
}

func (s *Session) replayRosterEvent(msg *signaling.Message) {
	switch msg.Type {
	case signaling.MessageTypePublisherJoined:
		s.handlePublisherJoined(msg)
	case signaling.MessageTypePublisherLeft:
		s.handlePublisherLeft(msg)
	case signaling.MessageTypeMemberJoined:
		s.handleMemberJoined(msg)
	case signaling.MessageTypeMemberLeft:
		s.handleMemberLeft(msg)
	}
}

func (s *Session) handlePublisherJoined(msg *signaling.Message) {
	if s.queueIfPreJoin(msg) {
		return
	}
	payload, err := signaling.DecodePayload[signaling.PublisherJoinedPayload](msg)
	if err != nil {
		slog.Warn("bad publisher_joined payload", "err", err)
		return
	}
	now := time.Now()
	s.mu.Lock()
	s.publishers[payload.FeedID] = &RemotePublisher{
		FeedID:   payload.FeedID,
		Display:  payload.Display,
		UserID:   payload.UserID,
		JoinedAt: now,
	}
	if member, ok := s.participants[payload.UserID]; ok {
		member.Publishing = true
	} else {
		s.participants[payload.UserID] = &Participant{
			UserID:     payload.UserID,
			Display:    payload.Display,
			Publishing: true,
			JoinedAt:   now,
		}
	}
	s.mu.Unlock()

	s.listeners.notify()
	s.requestSync()
}

func (s *Session) handlePublisherLeft(msg *signaling.Message) {
	if s.queueIfPreJoin(msg) {
		return
	}
	payload, err := signaling.DecodePayload[signaling.PublisherLeftPayload](msg)
	if err != nil {
		slog.Warn("bad publisher_left payload", "err", err)
		return
	}
	s.mu.Lock()
	if pub, ok := s.publishers[payload.FeedID]; ok {
		delete(s.publishers, payload.FeedID)
		stillPublishing := false
		for _, other := range s.publishers {
			if other.UserID == pub.UserID {
				stillPublishing = true
				break
			}
		}
		if member, ok := s.participants[pub.UserID]; ok && !stillPublishing {
			member.Publishing = false
		}
	}
	s.mu.Unlock()

	s.listeners.notify()
	s.requestSync()
}

func (s *Session) handleMemberJoined(msg *signaling.Message) {
	if s.queueIfPreJoin(msg) {
		return
	}
	payload, err := signaling.DecodePayload[signaling.MemberJoinedPayload](msg)
	if err != nil {
		slog.Warn("bad member_joined payload", "err", err)
		return
	}
	s.mu.Lock()
	if _, ok := s.participants[payload.UserID]; !ok {
		s.participants[payload.UserID] = &Participant{
			UserID:   payload.UserID,
			Display:  payload.Display,
			JoinedAt: time.Now(),
		}
	}
	s.mu.Unlock()
	s.listeners.notify()
}

func (s *Session) handleMemberLeft(msg *signaling.Message) {
	if s.queueIfPreJoin(msg) {
		return
	}
	payload, err := signaling.DecodePayload[signaling.MemberLeftPayload](msg)
	if err != nil {
		slog.Warn("bad member_left payload", "err", err)
		return
	}
	s.mu.Lock()
	delete(s.participants, payload.UserID)
	s.mu.Unlock()
	s.listeners.notify()
}

func (s *Session) handleRemoteCandidate(msg *signaling.Message) {
	payload, err := signaling.DecodePayload[signaling.RemoteCandidatePayload](msg)
	if err != nil {
		slog.Warn("bad remote_candidate payload", "err", err)
		return
	}
	candidate := webrtc.ICECandidateInit{
		Candidate:     payload.Candidate,
		SDPMid:        payload.SDPMid,
		SDPMLineIndex: payload.SDPMLineIndex,
	}
	if payload.FeedID == nil {
		// No feed id routes the candidate to the publisher session.
		if err := s.publisher.AddICECandidate(candidate); err != nil {
			slog.Warn("publisher candidate rejected", "err", err)
		}
		return
	}
	if err := s.subscriber.AddICECandidate(*payload.FeedID, candidate); err != nil {
		slog.Warn("subscriber candidate rejected", "feed", *payload.FeedID, "err", err)
	}
}

func (s *Session) handleServerError(msg *signaling.Message) {
	payload, err := signaling.DecodePayload[signaling.ErrorPayload](msg)
	if err != nil {
		slog.Warn("bad error payload", "err", err)
		return
	}
	slog.Error("signaling server error", "code", payload.Code, "message", payload.Message)
}

func (s *Session) handleSubscriberCandidate(ev rtc.CandidateEvent) {
	payload := signaling.TrickleICEPayload{
		Candidate:     ev.Candidate.Candidate,
		SDPMid:        ev.Candidate.SDPMid,
		SDPMLineIndex: ev.Candidate.SDPMLineIndex,
		Target:        signaling.TargetSubscriber,
		FeedID:        ev.FeedID,
	}
	if err := s.channel.Send(signaling.MessageTypeTrickleICE, payload); err != nil {
		slog.Debug("trickle dropped", "err", err)
	}
}

// pingLoop keeps application-level liveness while joined.
func (s *Session) pingLoop(stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.channel.Send(signaling.MessageTypePing, struct{}{}); err != nil {
				slog.Debug("ping dropped", "err", err)
			}
		}
	}
}

// Leave signals departure best-effort and then tears everything down
// unconditionally.
func (s *Session) Leave(ctx context.Context) {
	s.mu.Lock()
	roomID, userID := s.roomID, s.userID
	joined := s.joined
	s.mu.Unlock()

	if joined {
		if err := s.channel.Send(signaling.MessageTypeLeave, struct{}{}); err != nil {
			slog.Debug("leave frame dropped", "err", err)
		}
		if err := s.api.LeaveRoom(ctx, roomID, userID); err != nil {
			slog.Debug("rest leave failed", "err", err)
		}
	}
	s.Cleanup()
}

// Cleanup tears down publisher, subscriber and channel state. Idempotent.
func (s *Session) Cleanup() {
	s.mu.Lock()
	offs := s.offFuncs
	s.offFuncs = nil
	pingStop := s.pingStop
	s.pingStop = nil
	screen := s.screenStream
	s.screenStream = nil
	s.screenAudio = false
	s.joined = false
	s.prejoin = nil
	s.publishFlight = false
	s.participants = make(map[string]*Participant)
	s.publishers = make(map[int64]*RemotePublisher)
	s.mu.Unlock()

	if pingStop != nil {
		close(pingStop)
	}
	for _, off := range offs {
		off()
	}
	if screen != nil {
		screen.Close()
	}
	s.publisher.Stop()
	s.subscriber.Cleanup()
	s.channel.Disconnect()
	s.listeners.notify()
}

// iceServersFromAPI converts the REST ICE list, falling back to the
// configured STUN/TURN servers when the server advertises none.
func iceServersFromAPI(servers []api.ICEServer, cfg *config.Config) []webrtc.ICEServer {
	if len(servers) == 0 {
		out := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}
		if turn := cfg.GetTURNServers(); turn != nil {
			user, pass := cfg.GetTURNCredentials()
			out = append(out, webrtc.ICEServer{URLs: turn, Username: user, Credential: pass})
		}
		return out
	}
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, srv := range servers {
		out = append(out, webrtc.ICEServer{
			URLs:       srv.URLs,
			Username:   srv.Username,
			Credential: srv.Credential,
		})
	}
	return out
}
