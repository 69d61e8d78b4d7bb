package room

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parley-labs/Parley/cli/internal/api"
	"github.com/parley-labs/Parley/cli/internal/config"
	"github.com/parley-labs/Parley/cli/internal/media"
	"github.com/parley-labs/Parley/cli/internal/rtc"
	"github.com/parley-labs/Parley/cli/internal/signaling"
	"github.com/parley-labs/Parley/cli/internal/testutil"
	"github.com/pion/webrtc/v4"
)

// feedOfferSDP builds the offer a media server would produce for the given
// feeds: one sendonly audio and one sendonly video m-line per feed.
func feedOfferSDP(t *testing.T, feeds int) string {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("create offering connection: %v", err)
	}
	defer pc.Close()

	for i := 0; i < feeds; i++ {
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionSendonly,
			}); err != nil {
				t.Fatalf("add transceiver: %v", err)
			}
		}
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatalf("set local description: %v", err)
	}
	return pc.LocalDescription().SDP
}

// answerSDP answers a publish offer the way a media server would.
func answerSDP(t *testing.T, offer string) string {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("create answering connection: %v", err)
	}
	defer pc.Close()

	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}
	if err := pc.SetRemoteDescription(desc); err != nil {
		t.Fatalf("apply publish offer: %v", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		t.Fatalf("create answer: %v", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		t.Fatalf("set local description: %v", err)
	}
	return pc.LocalDescription().SDP
}

// fixture wires a Session to an in-process REST backend and signal server.
type fixture struct {
	t       *testing.T
	srv     *testutil.SignalServer
	session *Session
	sub     *rtc.Subscriber

	joined signaling.JoinedPayload

	// autoSubscribe answers subscribe requests with a generated offer;
	// autoPublish answers publish offers. When off, those frames land in
	// srv.Inbound for manual scripting.
	autoSubscribe bool
	autoPublish   bool

	publishOffers atomic.Int32
	leaveCalls    atomic.Int32
}

func newFixture(t *testing.T, engine *media.Engine) *fixture {
	t.Helper()
	f := &fixture{t: t, srv: testutil.NewSignalServer(t)}

	mux := http.NewServeMux()
	mux.HandleFunc("/rooms/R1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Room{RoomID: "R1"})
	})
	mux.HandleFunc("/rooms/R1/join", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.JoinResponse{
			RoomID: "R1",
			UserID: "u-self",
			WSURL:  f.srv.URL(),
			Token:  "tok",
		})
	})
	mux.HandleFunc("/rooms/R1/leave", func(w http.ResponseWriter, r *http.Request) {
		f.leaveCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	})
	rest := httptest.NewServer(mux)
	t.Cleanup(rest.Close)

	f.srv.Respond = func(fr testutil.Frame) []testutil.Frame {
		switch fr.Type {
		case signaling.MessageTypeJoinRoom:
			return []testutil.Frame{testutil.NewFrame(t, signaling.MessageTypeJoined, fr.RequestID, f.joined)}
		case signaling.MessageTypePing, signaling.MessageTypeTrickleICE:
			return []testutil.Frame{}
		case signaling.MessageTypeSubscribe:
			if !f.autoSubscribe {
				return nil
			}
			var req signaling.SubscribePayload
			if err := json.Unmarshal(fr.Payload, &req); err != nil {
				t.Errorf("decode subscribe: %v", err)
				return []testutil.Frame{}
			}
			feedIDs := make([]int64, len(req.Feeds))
			for i, ref := range req.Feeds {
				feedIDs[i] = ref.FeedID
			}
			return []testutil.Frame{testutil.NewFrame(t, signaling.MessageTypeSubscribeOffer, fr.RequestID,
				signaling.SubscribeOfferPayload{SDP: feedOfferSDP(t, len(feedIDs)), FeedIDs: feedIDs})}
		case signaling.MessageTypePublishOffer:
			f.publishOffers.Add(1)
			if !f.autoPublish {
				return nil
			}
			var req signaling.PublishOfferPayload
			if err := json.Unmarshal(fr.Payload, &req); err != nil {
				t.Errorf("decode publish_offer: %v", err)
				return []testutil.Frame{}
			}
			return []testutil.Frame{testutil.NewFrame(t, signaling.MessageTypePublishAnswer, fr.RequestID,
				signaling.PublishAnswerPayload{SDP: answerSDP(t, req.SDP)})}
		}
		return nil
	}

	cfg := &config.Config{
		Domain:           "test.local",
		APIBaseURL:       rest.URL,
		WebSocketBaseURL: f.srv.URL(),
		Display:          "Me",
		STUNServer:       "stun:127.0.0.1:3478",
	}
	if engine == nil {
		engine = media.NewEngineWithSources(
			media.NewSynthSource(media.KindAudio, "mic"),
			media.NewSynthSource(media.KindVideo, "cam"),
			media.NewSynthSource(media.KindVideo, "screen"),
			media.NewSynthSource(media.KindAudio, "sysaudio"))
	}
	f.sub = rtc.NewSubscriber()
	f.session = NewSessionWithDeps(cfg, Deps{
		Channel: signaling.NewChannel(signaling.ChannelConfig{
			RequestTimeout:       5 * time.Second,
			InitialBackoff:       10 * time.Millisecond,
			MaxReconnectAttempts: 1,
		}),
		Engine:     engine,
		Subscriber: f.sub,
	})
	t.Cleanup(f.session.Cleanup)
	return f
}

func (f *fixture) join(t *testing.T) {
	t.Helper()
	if f.joined.RoomID == "" {
		f.joined = signaling.JoinedPayload{RoomID: "R1", UserID: "u-self"}
	}
	if err := f.session.Join(context.Background(), "R1", "Me", JoinAuth{}); err != nil {
		t.Fatalf("Join: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func participant(s *Session, userID string) (Participant, bool) {
	for _, p := range s.Participants() {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

func TestJoinAuthoritativeState(t *testing.T) {
	f := newFixture(t, nil)
	f.autoSubscribe = true
	f.joined = signaling.JoinedPayload{
		RoomID: "R1",
		UserID: "u-self",
		Participants: []signaling.ParticipantInfo{
			{UserID: "u-a", Display: "Alice"},
		},
		Publishers: []signaling.PublisherInfo{
			{FeedID: 7, Display: "Bob", UserID: "u-b"},
		},
	}
	f.join(t)

	if f.session.UserID() != "u-self" || f.session.RoomID() != "R1" {
		t.Fatalf("identity = %s/%s", f.session.UserID(), f.session.RoomID())
	}

	if _, ok := participant(f.session, "u-self"); !ok {
		t.Fatal("self missing from roster")
	}
	if p, ok := participant(f.session, "u-a"); !ok || p.Publishing {
		t.Fatalf("alice = %+v, ok=%v", p, ok)
	}
	bob, ok := participant(f.session, "u-b")
	if !ok || !bob.Publishing {
		t.Fatalf("bob = %+v, ok=%v; publishers imply presence and publishing", bob, ok)
	}

	pubs := f.session.Publishers()
	if len(pubs) != 1 || pubs[7].Display != "Bob" {
		t.Fatalf("publishers = %+v", pubs)
	}

	// The join triggers one subscription sync for Bob's feed, finished by a
	// fire-and-forget answer.
	fr := f.srv.NextFrame(5 * time.Second)
	if fr.Type != signaling.MessageTypeSubscribeAnswer {
		t.Fatalf("frame = %s, want subscribe_answer", fr.Type)
	}
	if fr.RequestID != "" {
		t.Fatal("subscribe_answer must not expect a response")
	}
	waitFor(t, 2*time.Second, func() bool { return f.sub.GetRemoteStream(7) != nil },
		"feed 7 never mapped to a remote stream")
}

func TestPublisherPushDuringJoinSurvivesRebuild(t *testing.T) {
	f := newFixture(t, nil)
	f.autoSubscribe = true
	f.joined = signaling.JoinedPayload{RoomID: "R1", UserID: "u-self"}

	// Deliver a publisher_joined push ahead of the join reply on the wire,
	// so it lands after the request settles but before the roster rebuild.
	base := f.srv.Respond
	f.srv.Respond = func(fr testutil.Frame) []testutil.Frame {
		if fr.Type == signaling.MessageTypeJoinRoom {
			return []testutil.Frame{
				testutil.NewFrame(t, signaling.MessageTypePublisherJoined, "",
					signaling.PublisherJoinedPayload{FeedID: 9, Display: "Eve", RoomID: "R1", UserID: "u-e"}),
				testutil.NewFrame(t, signaling.MessageTypeJoined, fr.RequestID, f.joined),
			}
		}
		return base(fr)
	}

	f.join(t)

	if _, ok := f.session.Publishers()[9]; !ok {
		t.Fatal("publisher pushed during join lost")
	}
	if p, ok := participant(f.session, "u-e"); !ok || !p.Publishing {
		t.Fatalf("eve = %+v, ok=%v", p, ok)
	}

	// The replayed event must still drive a subscription.
	waitFor(t, 2*time.Second, func() bool { return f.sub.GetRemoteStream(9) != nil },
		"feed 9 never subscribed")
}

func TestJoinRoomNotFound(t *testing.T) {
	f := newFixture(t, nil)
	err := f.session.Join(context.Background(), "missing", "Me", JoinAuth{})
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) {
		t.Fatalf("err = %v, want *SessionError", err)
	}
	if sessionErr.UserMessage() != MsgRoomNotFound {
		t.Fatalf("user message = %q, want %q", sessionErr.UserMessage(), MsgRoomNotFound)
	}
}

func TestJoinSignalingRejectionCleansUp(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Respond = func(fr testutil.Frame) []testutil.Frame {
		if fr.Type == signaling.MessageTypeJoinRoom {
			return []testutil.Frame{testutil.NewFrame(t, signaling.MessageTypeError, fr.RequestID,
				signaling.ErrorPayload{Code: "unauthorized", Message: "bad token"})}
		}
		return []testutil.Frame{}
	}

	err := f.session.Join(context.Background(), "R1", "Me", JoinAuth{})
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) {
		t.Fatalf("err = %v, want *SessionError", err)
	}
	if sessionErr.UserMessage() != MsgJoinFailed {
		t.Fatalf("user message = %q, want %q", sessionErr.UserMessage(), MsgJoinFailed)
	}
	var serverErr *signaling.ServerError
	if !errors.As(err, &serverErr) || serverErr.Code != "unauthorized" {
		t.Fatalf("cause = %v, want wrapped ServerError", err)
	}
	if len(f.session.Participants()) != 0 {
		t.Fatal("partial state left after failed join")
	}
}

func TestSyncCoalescesRapidPublisherChanges(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t)

	push := func(feed int64, user string) {
		f.srv.Push(testutil.NewFrame(t, signaling.MessageTypePublisherJoined, "",
			signaling.PublisherJoinedPayload{FeedID: feed, Display: user, RoomID: "R1", UserID: user}))
	}

	// First publisher triggers a sync; the server holds the offer.
	push(1, "u-1")
	first := f.srv.NextFrame(5 * time.Second)
	if first.Type != signaling.MessageTypeSubscribe {
		t.Fatalf("frame = %s, want subscribe", first.Type)
	}
	var req1 signaling.SubscribePayload
	if err := json.Unmarshal(first.Payload, &req1); err != nil {
		t.Fatalf("decode subscribe: %v", err)
	}
	if len(req1.Feeds) != 1 || req1.Feeds[0].FeedID != 1 {
		t.Fatalf("first subscribe feeds = %+v", req1.Feeds)
	}

	// Two more publishers land while the first negotiation is in flight.
	push(2, "u-2")
	push(3, "u-3")
	waitFor(t, 2*time.Second, func() bool { return len(f.session.Publishers()) == 3 },
		"publisher set never reached 3")

	// Release the held offer. The in-flight pass finishes, then exactly one
	// follow-up pass covers the full feed set.
	f.srv.Push(testutil.NewFrame(t, signaling.MessageTypeSubscribeOffer, first.RequestID,
		signaling.SubscribeOfferPayload{SDP: feedOfferSDP(t, 1), FeedIDs: []int64{1}}))

	if fr := f.srv.NextFrame(5 * time.Second); fr.Type != signaling.MessageTypeSubscribeAnswer {
		t.Fatalf("frame = %s, want subscribe_answer", fr.Type)
	}

	second := f.srv.NextFrame(5 * time.Second)
	if second.Type != signaling.MessageTypeSubscribe {
		t.Fatalf("frame = %s, want coalesced subscribe", second.Type)
	}
	var req2 signaling.SubscribePayload
	if err := json.Unmarshal(second.Payload, &req2); err != nil {
		t.Fatalf("decode subscribe: %v", err)
	}
	if len(req2.Feeds) != 3 {
		t.Fatalf("coalesced subscribe feeds = %+v, want all three", req2.Feeds)
	}

	f.srv.Push(testutil.NewFrame(t, signaling.MessageTypeSubscribeOffer, second.RequestID,
		signaling.SubscribeOfferPayload{SDP: feedOfferSDP(t, 3), FeedIDs: []int64{1, 2, 3}}))
	if fr := f.srv.NextFrame(5 * time.Second); fr.Type != signaling.MessageTypeSubscribeAnswer {
		t.Fatalf("frame = %s, want subscribe_answer", fr.Type)
	}

	// No third pass: the pending flag coalesced both triggers.
	select {
	case fr := <-f.srv.Inbound:
		t.Fatalf("unexpected frame after coalesced sync: %s", fr.Type)
	case <-time.After(300 * time.Millisecond):
	}

	for _, feed := range []int64{1, 2, 3} {
		if f.sub.GetRemoteStream(feed) == nil {
			t.Fatalf("feed %d unmapped after sync", feed)
		}
	}
}

func TestStartPublishingSingleFlight(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- f.session.StartPublishing(context.Background())
		}()
	}

	offer := f.srv.NextFrame(5 * time.Second)
	if offer.Type != signaling.MessageTypePublishOffer {
		t.Fatalf("frame = %s, want publish_offer", offer.Type)
	}

	// The duplicate call must return without a second negotiation.
	select {
	case err := <-errs:
		if err != nil {
			t.Fatalf("duplicate StartPublishing = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("duplicate StartPublishing did not return")
	}

	var req signaling.PublishOfferPayload
	if err := json.Unmarshal(offer.Payload, &req); err != nil {
		t.Fatalf("decode publish_offer: %v", err)
	}
	if req.Kind != "both" {
		t.Fatalf("offer kind = %q, want both", req.Kind)
	}
	f.srv.Push(testutil.NewFrame(t, signaling.MessageTypePublishAnswer, offer.RequestID,
		signaling.PublishAnswerPayload{SDP: answerSDP(t, req.SDP)}))

	select {
	case err := <-errs:
		if err != nil {
			t.Fatalf("StartPublishing = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StartPublishing did not finish")
	}

	if got := f.publishOffers.Load(); got != 1 {
		t.Fatalf("publish offers = %d, want 1", got)
	}
	self, _ := participant(f.session, "u-self")
	if !self.Publishing {
		t.Fatal("self not marked publishing")
	}
}

func TestTogglesUpdateRoster(t *testing.T) {
	f := newFixture(t, nil)
	f.autoPublish = true
	f.join(t)
	if err := f.session.StartPublishing(context.Background()); err != nil {
		t.Fatalf("StartPublishing: %v", err)
	}

	muted, err := f.session.ToggleMute()
	if err != nil || !muted {
		t.Fatalf("ToggleMute = %v, %v", muted, err)
	}
	self, _ := participant(f.session, "u-self")
	if !self.Muted {
		t.Fatal("roster does not reflect mute")
	}

	videoOff, err := f.session.ToggleVideo()
	if err != nil || !videoOff {
		t.Fatalf("ToggleVideo = %v, %v", videoOff, err)
	}
	self, _ = participant(f.session, "u-self")
	if !self.VideoOff || !self.Muted {
		t.Fatalf("roster self = %+v", self)
	}
}

func TestScreenShareFastPath(t *testing.T) {
	f := newFixture(t, nil)
	f.autoPublish = true
	f.join(t)
	if err := f.session.StartPublishing(context.Background()); err != nil {
		t.Fatalf("StartPublishing: %v", err)
	}

	if err := f.session.StartScreenShare(context.Background()); err != nil {
		t.Fatalf("StartScreenShare: %v", err)
	}
	if !f.session.ScreenSharing() {
		t.Fatal("screen sharing not reported")
	}
	if !f.session.ScreenShareAudio() {
		t.Fatal("system audio track missing from share")
	}
	// Existing senders were reused; no renegotiation.
	if got := f.publishOffers.Load(); got != 1 {
		t.Fatalf("publish offers = %d, want 1", got)
	}

	// Second start is a no-op.
	if err := f.session.StartScreenShare(context.Background()); err != nil {
		t.Fatalf("repeated StartScreenShare: %v", err)
	}

	if err := f.session.StopScreenShare(); err != nil {
		t.Fatalf("StopScreenShare: %v", err)
	}
	if f.session.ScreenSharing() {
		t.Fatal("screen sharing still reported after stop")
	}
	if err := f.session.StopScreenShare(); err != nil {
		t.Fatalf("repeated StopScreenShare: %v", err)
	}
}

func TestScreenShareRestartsWhenNoVideoSender(t *testing.T) {
	// Audio-only capture: the screen track finds no video sender and the
	// publisher must renegotiate with the screen track included.
	engine := media.NewEngineWithSources(
		media.NewSynthSource(media.KindAudio, "mic"),
		nil,
		media.NewSynthSource(media.KindVideo, "screen"),
		nil)
	f := newFixture(t, engine)
	f.autoPublish = true
	f.join(t)
	if err := f.session.StartPublishing(context.Background()); err != nil {
		t.Fatalf("StartPublishing: %v", err)
	}

	if err := f.session.StartScreenShare(context.Background()); err != nil {
		t.Fatalf("StartScreenShare: %v", err)
	}
	if !f.session.ScreenSharing() {
		t.Fatal("screen sharing not reported")
	}
	if f.session.ScreenShareAudio() {
		t.Fatal("no system audio source, share must report audio off")
	}
	waitFor(t, 2*time.Second, func() bool { return f.publishOffers.Load() == 2 },
		"restart path must negotiate a second publish offer")
}

func TestRosterEvents(t *testing.T) {
	f := newFixture(t, nil)
	f.autoSubscribe = true
	f.joined = signaling.JoinedPayload{
		RoomID: "R1",
		UserID: "u-self",
		Publishers: []signaling.PublisherInfo{
			{FeedID: 7, Display: "Bob", UserID: "u-b"},
		},
	}
	f.join(t)
	waitFor(t, 2*time.Second, func() bool { return f.sub.GetRemoteStream(7) != nil },
		"initial sync never mapped feed 7")
	if fr := f.srv.NextFrame(2 * time.Second); fr.Type != signaling.MessageTypeSubscribeAnswer {
		t.Fatalf("frame = %s, want subscribe_answer", fr.Type)
	}

	changes := make(chan struct{}, 64)
	off := f.session.OnStateChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer off()

	f.srv.Push(testutil.NewFrame(t, signaling.MessageTypeMemberJoined, "",
		signaling.MemberJoinedPayload{UserID: "u-c", Display: "Carol"}))
	waitFor(t, 2*time.Second, func() bool {
		_, ok := participant(f.session, "u-c")
		return ok
	}, "member_joined not applied")
	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("state change not observed")
	}

	f.srv.Push(testutil.NewFrame(t, signaling.MessageTypeMemberLeft, "",
		signaling.MemberLeftPayload{UserID: "u-c"}))
	waitFor(t, 2*time.Second, func() bool {
		_, ok := participant(f.session, "u-c")
		return !ok
	}, "member_left not applied")

	f.srv.Push(testutil.NewFrame(t, signaling.MessageTypePublisherLeft, "",
		signaling.PublisherLeftPayload{FeedID: 7, RoomID: "R1"}))
	waitFor(t, 2*time.Second, func() bool { return len(f.session.Publishers()) == 0 },
		"publisher_left not applied")

	// The sync pass tells the server to stop forwarding the dropped feed.
	unsub := f.srv.NextFrame(2 * time.Second)
	if unsub.Type != signaling.MessageTypeUnsubscribe {
		t.Fatalf("frame = %s, want unsubscribe", unsub.Type)
	}
	var unsubReq signaling.UnsubscribePayload
	if err := json.Unmarshal(unsub.Payload, &unsubReq); err != nil {
		t.Fatalf("decode unsubscribe: %v", err)
	}
	if len(unsubReq.FeedIDs) != 1 || unsubReq.FeedIDs[0] != 7 {
		t.Fatalf("unsubscribe feeds = %v, want [7]", unsubReq.FeedIDs)
	}
	waitFor(t, 2*time.Second, func() bool {
		p, ok := participant(f.session, "u-b")
		return ok && !p.Publishing
	}, "bob still marked publishing after feed left")
	waitFor(t, 2*time.Second, func() bool { return f.sub.GetRemoteStream(7) == nil },
		"feed 7 subscription survived the publisher leaving")
}

func TestLeaveTearsDown(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t)

	f.session.Leave(context.Background())

	fr := f.srv.NextFrame(2 * time.Second)
	if fr.Type != signaling.MessageTypeLeave {
		t.Fatalf("frame = %s, want leave", fr.Type)
	}
	if f.leaveCalls.Load() != 1 {
		t.Fatalf("rest leave calls = %d, want 1", f.leaveCalls.Load())
	}
	if len(f.session.Participants()) != 0 {
		t.Fatal("participants survive leave")
	}
	if f.session.ScreenSharing() {
		t.Fatal("screen share state survives leave")
	}

	// Leave is idempotent.
	f.session.Leave(context.Background())
	if f.leaveCalls.Load() != 1 {
		t.Fatal("second leave repeated the rest call")
	}
}

func TestRemoteCandidateRouting(t *testing.T) {
	f := newFixture(t, nil)
	f.autoPublish = true
	f.join(t)
	if err := f.session.StartPublishing(context.Background()); err != nil {
		t.Fatalf("StartPublishing: %v", err)
	}

	// A candidate without a feed id goes to the publisher connection; one
	// with an unknown feed id is dropped quietly. Neither may crash the
	// read loop, which the follow-up roster event proves alive.
	feed := int64(99)
	mid := "0"
	var line uint16
	f.srv.Push(testutil.NewFrame(t, signaling.MessageTypeRemoteCandidate, "",
		signaling.RemoteCandidatePayload{Candidate: "candidate:0 1 udp 1 127.0.0.1 50000 typ host", SDPMid: &mid, SDPMLineIndex: &line}))
	f.srv.Push(testutil.NewFrame(t, signaling.MessageTypeRemoteCandidate, "",
		signaling.RemoteCandidatePayload{Candidate: "candidate:0 1 udp 1 127.0.0.1 50001 typ host", FeedID: &feed}))

	f.srv.Push(testutil.NewFrame(t, signaling.MessageTypeMemberJoined, "",
		signaling.MemberJoinedPayload{UserID: "u-d", Display: "Dan"}))
	waitFor(t, 2*time.Second, func() bool {
		_, ok := participant(f.session, "u-d")
		return ok
	}, "read loop dead after candidate frames")
}
