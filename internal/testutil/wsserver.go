package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Frame mirrors the signaling envelope without importing the signaling
// package, so signaling's own tests can use this server.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewFrame builds a frame with a JSON encoded payload. A nil payload is
// omitted from the wire form.
func NewFrame(t *testing.T, frameType, requestID string, payload any) Frame {
	t.Helper()
	f := Frame{Type: frameType, RequestID: requestID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal %s payload: %v", frameType, err)
		}
		f.Payload = raw
	}
	return f
}

// SignalServer is an in-process websocket endpoint standing in for the
// signaling backend. Each frame read from the client is either answered by
// the Respond hook or pushed to Inbound for the test to inspect.
type SignalServer struct {
	t   *testing.T
	srv *httptest.Server

	// Respond, when set before the client connects, is consulted for every
	// inbound frame. Returned frames are written back; a nil return leaves
	// the frame for Inbound.
	Respond func(f Frame) []Frame

	// Inbound receives every frame the Respond hook did not consume.
	Inbound chan Frame

	mu       sync.Mutex
	conns    []*websocket.Conn
	accepted chan *websocket.Conn
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewSignalServer(t *testing.T) *SignalServer {
	t.Helper()
	s := &SignalServer{
		t:        t,
		Inbound:  make(chan Frame, 64),
		accepted: make(chan *websocket.Conn, 8),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// address clients should dial.
func (s *SignalServer) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *SignalServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	select {
	case s.accepted <- conn:
	default:
	}

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		if s.Respond != nil {
			if replies := s.Respond(f); replies != nil {
				for i := range replies {
					s.write(conn, replies[i])
				}
				continue
			}
		}
		select {
		case s.Inbound <- f:
		default:
			s.t.Errorf("inbound frame dropped: %s", f.Type)
		}
	}
}

func (s *SignalServer) write(conn *websocket.Conn, f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := conn.WriteJSON(f); err != nil {
		s.t.Logf("signal server write: %v", err)
	}
}

// WaitConn blocks until a client connects.
func (s *SignalServer) WaitConn(timeout time.Duration) *websocket.Conn {
	s.t.Helper()
	select {
	case conn := <-s.accepted:
		return conn
	case <-time.After(timeout):
		s.t.Fatalf("no client connected within %v", timeout)
		return nil
	}
}

// NextFrame blocks until the client sends a frame the Respond hook left alone.
func (s *SignalServer) NextFrame(timeout time.Duration) Frame {
	s.t.Helper()
	select {
	case f := <-s.Inbound:
		return f
	case <-time.After(timeout):
		s.t.Fatalf("no frame received within %v", timeout)
		return Frame{}
	}
}

// Push writes a server initiated frame to the most recent client connection.
func (s *SignalServer) Push(f Frame) {
	s.t.Helper()
	s.mu.Lock()
	if len(s.conns) == 0 {
		s.mu.Unlock()
		s.t.Fatal("push with no connected client")
		return
	}
	conn := s.conns[len(s.conns)-1]
	err := conn.WriteJSON(f)
	s.mu.Unlock()
	if err != nil {
		s.t.Logf("signal server push: %v", err)
	}
}

// DropConnections severs every active connection without a close handshake,
// simulating an abnormal network failure.
func (s *SignalServer) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		if tcp := conn.UnderlyingConn(); tcp != nil {
			tcp.Close()
		}
	}
	s.conns = nil
}

// Close shuts the server down. Safe to call more than once.
func (s *SignalServer) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
	s.srv.Close()
}
