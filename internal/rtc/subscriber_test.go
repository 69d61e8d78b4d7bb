package rtc

import (
	"strings"
	"testing"

	"github.com/parley-labs/Parley/cli/internal/media"
	"github.com/pion/webrtc/v4"
)

// remoteOffer builds the SDP a media server would send for the given feed
// count: one sendonly audio and one sendonly video m-line per feed, in feed
// order.
func remoteOffer(t *testing.T, feeds int) string {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("create offering connection: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	for i := 0; i < feeds; i++ {
		for _, kind := range []string{media.KindAudio, media.KindVideo} {
			tr, err := media.NewSynthSource(kind, "srv").Open(media.Constraints{})
			if err != nil {
				t.Fatalf("open source: %v", err)
			}
			t.Cleanup(tr.Stop)
			if _, err := pc.AddTransceiverFromTrack(tr.Local(), webrtc.RTPTransceiverInit{
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

func TestSubscribeMultipleMapsEveryFeed(t *testing.T) {
	s := NewSubscriber()
	t.Cleanup(s.Cleanup)

	answer, err := s.SubscribeMultiple(
		[]int64{7, 9},
		remoteOffer(t, 2),
		[]string{"Alice", "Bob"},
		[]string{"u-7", "u-9"})
	if err != nil {
		t.Fatalf("SubscribeMultiple: %v", err)
	}
	if !strings.Contains(answer, "a=recvonly") {
		t.Error("answer must be receive-only")
	}

	if s.GetRemoteStream(7) == nil || s.GetRemoteStream(9) == nil {
		t.Fatal("missing remote stream for a subscribed feed")
	}
	if s.GetRemoteStream(7) == s.GetRemoteStream(9) {
		t.Fatal("feeds share one stream")
	}

	subs := s.Subscriptions()
	if len(subs) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(subs))
	}
	byFeed := map[int64]*Subscription{}
	for _, sub := range subs {
		byFeed[sub.FeedID] = sub
	}
	if byFeed[7].Display != "Alice" || byFeed[9].Display != "Bob" {
		t.Fatalf("display mapping wrong: %+v", byFeed)
	}
}

func TestSubscribeMultipleReplacesPreviousSet(t *testing.T) {
	s := NewSubscriber()
	t.Cleanup(s.Cleanup)

	if _, err := s.SubscribeMultiple([]int64{7}, remoteOffer(t, 1), nil, nil); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if _, err := s.SubscribeMultiple([]int64{9, 11}, remoteOffer(t, 2), nil, nil); err != nil {
		t.Fatalf("second subscribe: %v", err)
	}

	if s.GetRemoteStream(7) != nil {
		t.Fatal("stale feed survived batch replacement")
	}
	if s.GetRemoteStream(9) == nil || s.GetRemoteStream(11) == nil {
		t.Fatal("new feed set not fully mapped")
	}
}

func TestSubscribeMultipleEmptySet(t *testing.T) {
	s := NewSubscriber()
	if _, err := s.SubscribeMultiple(nil, "", nil, nil); err == nil {
		t.Fatal("empty feed set must fail")
	}
}

func TestSubscribeReplacesSameFeed(t *testing.T) {
	s := NewSubscriber()
	t.Cleanup(s.Cleanup)

	if _, err := s.Subscribe(7, remoteOffer(t, 1), "Alice", "u-7"); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	first := s.GetRemoteStream(7)

	if _, err := s.Subscribe(7, remoteOffer(t, 1), "Alice", "u-7"); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	if len(s.Subscriptions()) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(s.Subscriptions()))
	}
	if s.GetRemoteStream(7) == first {
		t.Fatal("renegotiation must build a fresh stream")
	}
}

func TestUnsubscribeKeepsSharedBatchAlive(t *testing.T) {
	s := NewSubscriber()
	t.Cleanup(s.Cleanup)

	if _, err := s.SubscribeMultiple([]int64{7, 9}, remoteOffer(t, 2), nil, nil); err != nil {
		t.Fatalf("SubscribeMultiple: %v", err)
	}

	s.Unsubscribe(7)

	if s.GetRemoteStream(7) != nil {
		t.Fatal("unsubscribed feed still mapped")
	}
	sub := s.Subscriptions()
	if len(sub) != 1 || sub[0].FeedID != 9 {
		t.Fatalf("remaining subscriptions = %+v", sub)
	}
	// The shared connection must survive for feed 9.
	if sub[0].pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
		t.Fatal("batch connection closed while still serving a feed")
	}

	s.Unsubscribe(9)
	if len(s.Subscriptions()) != 0 {
		t.Fatal("subscriptions remain after full teardown")
	}
}

func TestUnsubscribeUnknownFeed(t *testing.T) {
	s := NewSubscriber()
	s.Unsubscribe(42) // must not panic
}

func TestAddICECandidateUnknownFeedIsNoOp(t *testing.T) {
	s := NewSubscriber()
	err := s.AddICECandidate(42, webrtc.ICECandidateInit{Candidate: "candidate:1"})
	if err != nil {
		t.Fatalf("candidate after teardown must be ignored, got %v", err)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	s := NewSubscriber()
	if _, err := s.SubscribeMultiple([]int64{7, 9}, remoteOffer(t, 2), nil, nil); err != nil {
		t.Fatalf("SubscribeMultiple: %v", err)
	}
	s.Cleanup()
	s.Cleanup()
	if len(s.Subscriptions()) != 0 {
		t.Fatal("subscriptions remain after cleanup")
	}
}
