package media

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Track wraps a local track with an enabled gate. Disabling a track drops
// its samples without stopping the source, keeping the sender alive for
// fast re-enable.
type Track struct {
	local   webrtc.TrackLocal
	kind    string
	enabled atomic.Bool
	stop    func()
	once    sync.Once
}

// NewTrack wraps a local track. stop releases the underlying source and may
// be nil.
func NewTrack(local webrtc.TrackLocal, kind string, stop func()) *Track {
	t := &Track{local: local, kind: kind, stop: stop}
	t.enabled.Store(true)
	return t
}

// ID returns the underlying track id.
func (t *Track) ID() string {
	return t.local.ID()
}

// Kind returns "audio" or "video".
func (t *Track) Kind() string {
	return t.kind
}

// Local exposes the track for attachment to a peer connection.
func (t *Track) Local() webrtc.TrackLocal {
	return t.local
}

// Enabled reports whether the track is currently passing media.
func (t *Track) Enabled() bool {
	return t.enabled.Load()
}

// SetEnabled flips the media gate without touching the source.
func (t *Track) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// Stop releases the source. Idempotent.
func (t *Track) Stop() {
	t.once.Do(func() {
		if t.stop != nil {
			t.stop()
		}
	})
}

// Stream is an ordered set of local tracks with de-duplication by track id.
type Stream struct {
	id string

	mu     sync.Mutex
	tracks []*Track
	seen   map[string]struct{}
	closed bool
}

// NewStream creates an empty local stream.
func NewStream() *Stream {
	return &Stream{
		id:   uuid.NewString(),
		seen: make(map[string]struct{}),
	}
}

// ID returns the stream id.
func (s *Stream) ID() string {
	return s.id
}

// AddTrack appends a track, ignoring duplicates by track id. Reports
// whether the track was added.
func (s *Stream) AddTrack(t *Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, dup := s.seen[t.ID()]; dup {
		return false
	}
	s.seen[t.ID()] = struct{}{}
	s.tracks = append(s.tracks, t)
	return true
}

// Tracks returns a snapshot of all tracks in insertion order.
func (s *Stream) Tracks() []*Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// TracksOfKind returns a snapshot of tracks of one kind.
func (s *Stream) TracksOfKind(kind string) []*Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Track
	for _, t := range s.tracks {
		if t.kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// SetEnabled flips every track of the given kind and returns the new state.
func (s *Stream) SetEnabled(kind string, enabled bool) {
	for _, t := range s.TracksOfKind(kind) {
		t.SetEnabled(enabled)
	}
}

// Close stops every track. Idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tracks := s.tracks
	s.mu.Unlock()

	for _, t := range tracks {
		t.Stop()
	}
}

// RemoteStream aggregates the inbound tracks of one feed. Duplicate track
// ids are ignored no matter how many ontrack events deliver them.
type RemoteStream struct {
	feedID int64

	mu     sync.Mutex
	order  []string
	tracks map[string]*webrtc.TrackRemote
}

// NewRemoteStream creates an empty aggregate for a feed.
func NewRemoteStream(feedID int64) *RemoteStream {
	return &RemoteStream{
		feedID: feedID,
		tracks: make(map[string]*webrtc.TrackRemote),
	}
}

// FeedID returns the owning feed.
func (r *RemoteStream) FeedID() int64 {
	return r.feedID
}

// AddTrack records an inbound track, reporting whether it was new.
func (r *RemoteStream) AddTrack(tr *webrtc.TrackRemote) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tracks[tr.ID()]; dup {
		return false
	}
	r.tracks[tr.ID()] = tr
	r.order = append(r.order, tr.ID())
	return true
}

// Tracks returns the aggregated tracks in arrival order.
func (r *RemoteStream) Tracks() []*webrtc.TrackRemote {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*webrtc.TrackRemote, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tracks[id])
	}
	return out
}
