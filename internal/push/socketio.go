package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Engine.IO v4 / socket.io v5 packet prefixes used by this client.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = "3"
	eioMessage = '4'

	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// writeWait bounds control frame writes during shutdown.
const writeWait = time.Second

// Reconnect defaults: five attempts, 1s first delay doubling up to 5s.
const (
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = time.Second
	defaultReconnectMaxDelay = 5 * time.Second
)

// SocketIODialer connects to a socket.io server over a raw WebSocket
// (no long-polling upgrade) on the default namespace.
type SocketIODialer struct {
	url    string
	dialer *websocket.Dialer

	attempts int
	delay    time.Duration
	maxDelay time.Duration
}

// SocketIOOption configures a SocketIODialer.
type SocketIOOption func(*SocketIODialer)

// WithReconnect sets how many consecutive reconnect attempts a channel makes
// after the transport drops, and the backoff between them. The delay doubles
// after each failure up to maxDelay. attempts <= 0 disables reconnecting.
func WithReconnect(attempts int, delay, maxDelay time.Duration) SocketIOOption {
	return func(d *SocketIODialer) {
		d.attempts = attempts
		d.delay = delay
		d.maxDelay = maxDelay
	}
}

// NewSocketIODialer creates a dialer for the socket.io server at rawURL
// (http, https, ws or wss).
func NewSocketIODialer(rawURL string, opts ...SocketIOOption) *SocketIODialer {
	d := &SocketIODialer{
		url: rawURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		attempts: defaultReconnectAttempts,
		delay:    defaultReconnectDelay,
		maxDelay: defaultReconnectMaxDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxDelay < d.delay {
		d.maxDelay = d.delay
	}
	return d
}

// endpoint builds the Engine.IO websocket URL from the configured base.
func (d *SocketIODialer) endpoint() (string, error) {
	u, err := url.Parse(d.url)
	if err != nil {
		return "", fmt.Errorf("push: parsing socket.io url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("push: unsupported socket.io scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial performs the Engine.IO handshake and joins the default namespace.
// The returned channel reconnects on its own if the transport drops.
func (d *SocketIODialer) Dial(ctx context.Context, token string) (Channel, error) {
	endpoint, err := d.endpoint()
	if err != nil {
		return nil, err
	}

	conn, err := d.connect(ctx, endpoint, token)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ch := &socketIOChannel{
		dialer:   d,
		endpoint: endpoint,
		token:    token,
		ctx:      runCtx,
		cancel:   cancel,
		conn:     conn,
		events:   make(chan Event),
		done:     make(chan struct{}),
	}
	go ch.run(conn)
	return ch, nil
}

// connect opens the websocket, reads the open packet and sends the
// namespace connect packet carrying token.
func (d *SocketIODialer) connect(ctx context.Context, endpoint, token string) (*websocket.Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("push: dialing %s: %w", endpoint, err)
	}

	// The server opens with "0{sid,...}".
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("push: reading open packet: %w", err)
	}
	if len(msg) == 0 || msg[0] != eioOpen {
		conn.Close()
		return nil, fmt.Errorf("push: unexpected open packet %q", msg)
	}

	connect := []byte{eioMessage, sioConnect}
	if token != "" {
		auth, _ := json.Marshal(map[string]string{"token": token})
		connect = append(connect, auth...)
	}
	if err := conn.WriteMessage(websocket.TextMessage, connect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("push: joining namespace: %w", err)
	}
	return conn, nil
}

// socketIOChannel is one logical socket.io subscription. The underlying
// connection is replaced when the transport drops and a reconnect succeeds.
type socketIOChannel struct {
	dialer   *SocketIODialer
	endpoint string
	token    string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards conn and writes to it
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (c *socketIOChannel) Events() <-chan Event { return c.events }

// Close stops delivery and closes the websocket. Safe to call more than once.
func (c *socketIOChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.conn.Close()
		c.mu.Unlock()
	})
	return err
}

func (c *socketIOChannel) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// run reads from conn and reconnects after transport failures until the
// server ends the session, the attempts run out or the channel is closed.
func (c *socketIOChannel) run(conn *websocket.Conn) {
	defer close(c.events)

	for {
		if !c.readLoop(conn) {
			return
		}
		next, ok := c.reconnect()
		if !ok {
			return
		}
		conn = next
	}
}

// reconnect dials again with exponential backoff. It installs and returns
// the new connection, or reports false when giving up or closed.
func (c *socketIOChannel) reconnect() (*websocket.Conn, bool) {
	delay := c.dialer.delay
	for attempt := 1; attempt <= c.dialer.attempts; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-c.done:
			timer.Stop()
			return nil, false
		case <-timer.C:
		}

		conn, err := c.dialer.connect(c.ctx, c.endpoint, c.token)
		if err != nil {
			slog.Warn("push reconnect failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			delay = min(delay*2, c.dialer.maxDelay)
			continue
		}

		c.mu.Lock()
		if c.closed() {
			c.mu.Unlock()
			conn.Close()
			return nil, false
		}
		old := c.conn
		c.conn = conn
		c.mu.Unlock()
		old.Close()
		slog.Info("push channel reconnected", slog.Int("attempt", attempt))
		return conn, true
	}
	if c.dialer.attempts > 0 {
		slog.Warn("push channel gave up reconnecting", slog.Int("attempts", c.dialer.attempts))
	}
	return nil, false
}

// readLoop is the only reader of conn, which keeps events in receipt order.
// It reports whether the connection was lost to a transport failure worth
// reconnecting after; server-initiated disconnects and Close report false.
func (c *socketIOChannel) readLoop(conn *websocket.Conn) bool {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if c.closed() {
				return false
			}
			slog.Warn("push transport dropped", slog.Any("error", err))
			return true
		}
		if len(msg) == 0 {
			continue
		}

		switch msg[0] {
		case eioPing:
			c.mu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte(eioPong))
			c.mu.Unlock()
			if err != nil {
				return !c.closed()
			}
		case eioClose:
			return false
		case eioMessage:
			ev, ok, stop := parseSocketIOPacket(msg[1:])
			if stop {
				return false
			}
			if !ok {
				continue
			}
			select {
			case c.events <- ev:
			case <-c.done:
				return false
			}
		}
	}
}

// parseSocketIOPacket decodes a socket.io packet (the bytes after the
// Engine.IO message prefix). ok reports an event worth delivering; stop
// reports that the server ended the session.
func parseSocketIOPacket(p []byte) (ev Event, ok bool, stop bool) {
	if len(p) == 0 {
		return Event{}, false, false
	}
	switch p[0] {
	case sioDisconnect:
		return Event{}, false, true
	case sioConnectError:
		slog.Warn("push namespace connect rejected", slog.String("payload", string(p[1:])))
		return Event{}, false, true
	case sioConnect:
		return Event{}, false, false
	case sioEvent:
	default:
		return Event{}, false, false
	}

	body := p[1:]
	// Skip an optional namespace ("/ns,") and ack id digits.
	if len(body) > 0 && body[0] == '/' {
		if i := bytes.IndexByte(body, ','); i >= 0 {
			body = body[i+1:]
		}
	}
	for len(body) > 0 && body[0] >= '0' && body[0] <= '9' {
		body = body[1:]
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil || len(parts) == 0 {
		slog.Warn("push dropped malformed event", slog.String("packet", string(p)))
		return Event{}, false, false
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		slog.Warn("push dropped event without name", slog.String("packet", string(p)))
		return Event{}, false, false
	}
	ev = Event{Name: name}
	if len(parts) > 1 {
		ev.Data = parts[1]
	}
	return ev, true, false
}
