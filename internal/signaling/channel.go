package signaling

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/parley-labs/Parley/cli/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024

	defaultRequestTimeout = 30 * time.Second
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultMaxReconnects  = 5
)

// State is the channel lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Handler receives inbound messages for a subscribed type.
type Handler func(msg *Message)

// ChannelConfig tunes timeouts and reconnect behavior. Zero values select
// production defaults.
type ChannelConfig struct {
	RequestTimeout       time.Duration
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = defaultMaxReconnects
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	return c
}

type result struct {
	msg *Message
	err error
}

// link holds the resources of one live socket. Reconnection replaces the
// whole link so a stale socket can never deliver into a fresh one.
type link struct {
	conn     *websocket.Conn
	outgoing chan *Message
	done     chan struct{} // manual close requested
	down     chan struct{} // socket unusable, closed exactly once
	once     sync.Once
}

func (l *link) shutdown() {
	l.once.Do(func() {
		close(l.down)
		l.conn.Close()
	})
}

type subscription struct {
	id uint64
	fn Handler
}

// Channel manages the WebSocket connection to the signaling server: framing,
// request/response correlation, event dispatch and reconnection. One Channel
// owns at most one live socket at a time.
type Channel struct {
	cfg    ChannelConfig
	dialer *websocket.Dialer

	mu             sync.Mutex
	url            string
	state          State
	link           *link
	pending        map[string]chan result
	handlers       map[string][]subscription
	nextSubID      uint64
	attempts       int
	gaveUp         bool
	reconnectTimer *time.Timer
}

// NewChannel creates a disconnected channel.
func NewChannel(cfg ChannelConfig) *Channel {
	cfg = cfg.withDefaults()
	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		NetDial: func(network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			// Robust DNS lookup with public-resolver fallback
			resolvedIP, err := dns.Lookup(host)
			if err != nil {
				return nil, fmt.Errorf("dns lookup failed: %w", err)
			}
			return net.Dial(network, net.JoinHostPort(resolvedIP, port))
		},
	}
	return &Channel{
		cfg:      cfg,
		dialer:   dialer,
		state:    StateIdle,
		pending:  make(map[string]chan result),
		handlers: make(map[string][]subscription),
	}
}

// State reports the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the socket. Calling it while already connected to the same
// normalized URL is a no-op; a lingering stale socket is closed first.
func (c *Channel) Connect(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid signaling URL: %w", err)
	}
	normalized := u.String()

	c.mu.Lock()
	if c.state == StateConnected && c.link != nil && c.url == normalized {
		c.mu.Unlock()
		return nil
	}
	if stale := c.link; stale != nil {
		c.link = nil
		stale.shutdown()
	}
	c.url = normalized
	c.state = StateConnecting
	c.gaveUp = false
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(normalized, nil)
	if err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	l := &link{
		conn:     conn,
		outgoing: make(chan *Message, 16),
		done:     make(chan struct{}),
		down:     make(chan struct{}),
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect raced the dial; drop the fresh socket.
		c.mu.Unlock()
		l.shutdown()
		return ErrDisconnected
	}
	c.link = l
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()

	go c.readPump(l)
	go c.writePump(l)

	slog.Debug("signaling channel connected", "url", normalized)
	return nil
}

// readPump reads frames from the socket and routes them until the socket
// dies, then kicks off close handling.
func (c *Channel) readPump(l *link) {
	defer l.shutdown()

	for {
		var msg Message
		if err := l.conn.ReadJSON(&msg); err != nil {
			c.handleClose(l, err)
			return
		}
		c.route(&msg)
	}
}

// writePump writes outbound frames and keeps the socket alive with pings.
func (c *Channel) writePump(l *link) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		l.shutdown()
	}()

	for {
		select {
		case msg := <-l.outgoing:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-l.done:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			l.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-l.down:
			return
		}
	}
}

// route settles the pending request matching the frame, if any, and then
// dispatches to subscribers. Wildcard subscribers see every inbound frame;
// type subscribers see frames not consumed as correlated responses.
func (c *Channel) route(msg *Message) {
	correlated := false
	if msg.RequestID != "" {
		if ch := c.takePending(msg.RequestID); ch != nil {
			correlated = true
			if msg.Type == MessageTypeError {
				payload, err := DecodePayload[ErrorPayload](msg)
				if err != nil {
					ch <- result{err: err}
				} else {
					ch <- result{err: &ServerError{Code: payload.Code, Message: payload.Message}}
				}
			} else {
				ch <- result{msg: msg}
			}
		} else {
			slog.Debug("dropping frame for unknown request id",
				"type", msg.Type, "request_id", msg.RequestID)
		}
	}

	c.dispatch(MessageTypeAny, msg)
	if !correlated {
		c.dispatch(msg.Type, msg)
	}
}

func (c *Channel) dispatch(msgType string, msg *Message) {
	c.mu.Lock()
	subs := make([]subscription, len(c.handlers[msgType]))
	copy(subs, c.handlers[msgType])
	c.mu.Unlock()

	// Registration order; one panicking handler must not block the rest.
	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("signaling handler panicked", "type", msgType, "panic", r)
				}
			}()
			sub.fn(msg)
		}()
	}
}

// On registers a handler for a message type ("*" for all messages) and
// returns its unregister func.
func (c *Channel) On(msgType string, h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.handlers[msgType] = append(c.handlers[msgType], subscription{id: id, fn: h})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.handlers[msgType]
		for i, sub := range subs {
			if sub.id == id {
				c.handlers[msgType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SendRequest sends a correlated request and blocks until the matching
// response, the request timeout, or disconnect. Each request resolves
// exactly once.
func (c *Channel) SendRequest(msgType string, payload any) (*Message, error) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return nil, err
	}
	msg.RequestID = uuid.NewString()

	ch := make(chan result, 1)
	c.mu.Lock()
	l := c.link
	if c.state != StateConnected || l == nil {
		gaveUp := c.gaveUp
		c.mu.Unlock()
		if gaveUp {
			return nil, ErrRetriesExhausted
		}
		return nil, ErrNotConnected
	}
	if _, exists := c.pending[msg.RequestID]; exists {
		c.mu.Unlock()
		return nil, ErrDuplicateRequest
	}
	c.pending[msg.RequestID] = ch
	c.mu.Unlock()

	if err := enqueue(l, msg); err != nil {
		c.takePending(msg.RequestID)
		return nil, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.msg, res.err
	case <-timer.C:
		if c.takePending(msg.RequestID) != nil {
			return nil, ErrRequestTimeout
		}
		// The response raced the timeout and already settled.
		res := <-ch
		return res.msg, res.err
	}
}

// Send frames a fire-and-forget message.
func (c *Channel) Send(msgType string, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	l := c.link
	connected := c.state == StateConnected
	gaveUp := c.gaveUp
	c.mu.Unlock()
	if !connected || l == nil {
		if gaveUp {
			return ErrRetriesExhausted
		}
		return ErrNotConnected
	}
	return enqueue(l, msg)
}

func enqueue(l *link, msg *Message) error {
	select {
	case l.outgoing <- msg:
		return nil
	case <-l.down:
		return ErrDisconnected
	case <-l.done:
		return ErrDisconnected
	}
}

// takePending removes and returns the settlement channel for a request id.
// Removal happens before settlement so a request can never settle twice.
func (c *Channel) takePending(requestID string) chan result {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[requestID]
	if !ok {
		return nil
	}
	delete(c.pending, requestID)
	return ch
}

// rejectPendingLocked fails every outstanding request. Caller holds c.mu.
func (c *Channel) rejectPendingLocked(err error) {
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- result{err: err}
	}
}

// handleClose reacts to a dead socket: rejects in-flight requests and, for
// abnormal closures, schedules a reconnect with exponential backoff.
func (c *Channel) handleClose(l *link, err error) {
	c.mu.Lock()
	if c.link != l {
		// A stale socket settling after reconnect or manual close.
		c.mu.Unlock()
		return
	}
	c.link = nil
	c.rejectPendingLocked(ErrDisconnected)

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.state = StateIdle
		c.mu.Unlock()
		slog.Debug("signaling channel closed", "reason", err)
		return
	}

	c.state = StateDisconnected
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	slog.Warn("signaling channel lost", "err", err)
}

// scheduleReconnectLocked arms the backoff timer. Caller holds c.mu.
func (c *Channel) scheduleReconnectLocked() {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.state = StateIdle
		c.gaveUp = true
		slog.Error("signaling reconnect attempts exhausted", "attempts", c.attempts)
		return
	}
	delay := backoffDelay(c.cfg.InitialBackoff, c.cfg.MaxBackoff, c.attempts)
	c.attempts++
	slog.Info("scheduling signaling reconnect", "attempt", c.attempts, "delay", delay)
	c.reconnectTimer = time.AfterFunc(delay, c.reconnect)
}

// backoffDelay returns the reconnect delay for the given attempt number,
// doubling from initial and capped at max.
func backoffDelay(initial, max time.Duration, attempt int) time.Duration {
	delay := initial << attempt
	if delay > max {
		delay = max
	}
	return delay
}

func (c *Channel) reconnect() {
	c.mu.Lock()
	if c.state != StateDisconnected {
		// Manual disconnect or a competing connect won the race.
		c.mu.Unlock()
		return
	}
	target := c.url
	c.state = StateIdle
	c.mu.Unlock()

	if err := c.Connect(target); err != nil {
		c.mu.Lock()
		if c.state == StateIdle && c.link == nil {
			c.state = StateDisconnected
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
	}
}

// Disconnect cancels any scheduled reconnect, closes the socket with a
// normal-closure code and rejects every pending request.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	l := c.link
	c.link = nil
	c.rejectPendingLocked(ErrDisconnected)
	c.state = StateIdle
	c.attempts = 0
	c.gaveUp = false
	c.mu.Unlock()

	if l != nil {
		// writePump sends the normal-closure frame, then tears the link down.
		close(l.done)
	}
}
