package room

import (
	"log/slog"
	"sort"

	"github.com/parley-labs/Parley/cli/internal/signaling"
)

// requestSync asks for a subscription recomputation. All triggers (join,
// publisher_joined, publisher_left, startPublishing) land here; the
// operation is single-flight with pending-retry semantics, so at most one
// subscribe negotiation is ever in flight and rapid triggers coalesce into
// one follow-up pass reflecting the latest publisher set.
func (s *Session) requestSync() {
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return
	}
	if s.syncRunning {
		s.syncPending = true
		s.mu.Unlock()
		return
	}
	s.syncRunning = true
	s.mu.Unlock()

	go s.syncLoop()
}

func (s *Session) syncLoop() {
	for {
		s.syncOnce()

		s.mu.Lock()
		if s.syncPending {
			s.syncPending = false
			s.mu.Unlock()
			continue
		}
		s.syncRunning = false
		s.mu.Unlock()
		return
	}
}

// syncOnce runs one negotiation cycle: compute the wanted feed set, request
// one batched offer for it, answer through the subscriber session and send
// the answer fire-and-forget (the server does not acknowledge it).
func (s *Session) syncOnce() {
	s.mu.Lock()
	selfID := s.userID
	wanted := make([]*RemotePublisher, 0, len(s.publishers))
	for _, pub := range s.publishers {
		if pub.UserID != selfID {
			wanted = append(wanted, pub)
		}
	}
	s.mu.Unlock()

	sort.Slice(wanted, func(i, j int) bool { return wanted[i].FeedID < wanted[j].FeedID })
	feeds := make([]signaling.FeedRef, len(wanted))
	byFeed := make(map[int64]*RemotePublisher, len(wanted))
	for i, pub := range wanted {
		feeds[i] = signaling.FeedRef{FeedID: pub.FeedID}
		byFeed[pub.FeedID] = pub
	}

	// Tell the server about feeds dropped from the wanted set so it stops
	// forwarding their media.
	var removed []int64
	for _, sub := range s.subscriber.Subscriptions() {
		if _, keep := byFeed[sub.FeedID]; !keep {
			removed = append(removed, sub.FeedID)
		}
	}
	if len(removed) > 0 {
		sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
		if err := s.channel.Send(signaling.MessageTypeUnsubscribe,
			signaling.UnsubscribePayload{FeedIDs: removed}); err != nil {
			slog.Warn("unsubscribe frame dropped", "feeds", len(removed), "err", err)
		}
	}

	if len(wanted) == 0 {
		s.subscriber.Cleanup()
		s.listeners.notify()
		return
	}

	resp, err := s.channel.SendRequest(signaling.MessageTypeSubscribe,
		signaling.SubscribePayload{Feeds: feeds})
	if err != nil {
		slog.Warn("subscribe request failed", "feeds", len(feeds), "err", err)
		return
	}
	offer, err := signaling.DecodePayload[signaling.SubscribeOfferPayload](resp)
	if err != nil {
		slog.Warn("bad subscribe_offer payload", "err", err)
		return
	}

	// The server's feed ordering is authoritative for the offer's m-lines.
	feedIDs := offer.FeedIDs
	if len(feedIDs) == 0 {
		feedIDs = make([]int64, len(wanted))
		for i, pub := range wanted {
			feedIDs[i] = pub.FeedID
		}
	}
	displays := make([]string, len(feedIDs))
	userIDs := make([]string, len(feedIDs))
	for i, feedID := range feedIDs {
		if pub, ok := byFeed[feedID]; ok {
			displays[i] = pub.Display
			userIDs[i] = pub.UserID
		}
	}

	answer, err := s.subscriber.SubscribeMultiple(feedIDs, offer.SDP, displays, userIDs)
	if err != nil {
		slog.Warn("subscribe negotiation failed", "feeds", len(feedIDs), "err", err)
		return
	}
	if err := s.channel.Send(signaling.MessageTypeSubscribeAnswer,
		signaling.SubscribeAnswerPayload{SDP: answer}); err != nil {
		slog.Warn("subscribe answer dropped", "err", err)
		return
	}

	slog.Debug("subscriptions synced", "feeds", len(feedIDs))
	s.listeners.notify()
}
