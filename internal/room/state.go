package room

import (
	"sort"
	"sync"
	"time"
)

// Participant is a presence record, updated independently of feed
// negotiation. It may exist with Publishing false before any feed appears
// and survives transient negotiation failures.
type Participant struct {
	UserID     string
	Display    string
	Publishing bool
	Muted      bool
	VideoOff   bool
	JoinedAt   time.Time
}

// RemotePublisher is a remote participant's advertised outgoing media,
// independent of whether the subscriber session has negotiated it yet.
type RemotePublisher struct {
	FeedID   int64
	Display  string
	UserID   string
	JoinedAt time.Time
}

// notifier is a multi-subscriber state-change registry with unregister
// tokens.
type notifier struct {
	mu   sync.Mutex
	next uint64
	ids  []uint64
	fns  map[uint64]func()
}

func (n *notifier) add(fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fns == nil {
		n.fns = make(map[uint64]func())
	}
	n.next++
	id := n.next
	n.ids = append(n.ids, id)
	n.fns[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.fns, id)
		for i, v := range n.ids {
			if v == id {
				n.ids = append(n.ids[:i:i], n.ids[i+1:]...)
				return
			}
		}
	}
}

func (n *notifier) notify() {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.ids))
	for _, id := range n.ids {
		if fn, ok := n.fns[id]; ok {
			fns = append(fns, fn)
		}
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Participants returns a consistent snapshot sorted by join time.
func (s *Session) Participants() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Publishers returns a consistent snapshot of the known remote feeds.
func (s *Session) Publishers() map[int64]RemotePublisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]RemotePublisher, len(s.publishers))
	for id, p := range s.publishers {
		out[id] = *p
	}
	return out
}

// OnStateChange registers a state-change observer and returns its
// unregister func. Observers fire after each consistent batch of changes.
func (s *Session) OnStateChange(fn func()) func() {
	return s.listeners.add(fn)
}
