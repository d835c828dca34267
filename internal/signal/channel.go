package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/satsuralala/face-detection/internal/domain"
)

// Status is the connection state surfaced to the caller, independent of
// message handling.
type Status int

const (
	StatusConnected Status = iota
	StatusDisconnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "error"
	}
}

var (
	ErrClosed       = errors.New("signal: channel closed")
	ErrNotConnected = errors.New("signal: not connected")
)

const defaultRetryDelay = 3 * time.Second

// Channel is a managed duplex JSON channel to the signaling server. One
// Channel maps to one logical endpoint; relay and frame-uplink traffic are
// never multiplexed on the same socket.
//
// An abnormal closure (anything but close code 1000) arms a single reconnect
// at a fixed delay, which re-runs the same connect routine. There is no
// backoff growth and no attempt cap.
type Channel struct {
	url        string
	retryDelay time.Duration
	dialer     *websocket.Dialer
	log        *logrus.Entry

	onMessage func(data []byte)
	onStatus  func(Status)

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool
}

// Option tweaks channel construction.
type Option func(*Channel)

// WithRetryDelay overrides the fixed reconnect delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Channel) { c.retryDelay = d }
}

// NewRelayChannel targets the per-client relay endpoint
// /video/ws/{id}/{role}. Nothing is dialed until Connect.
func NewRelayChannel(serverURL string, id domain.Identity, opts ...Option) (*Channel, error) {
	u, err := wsURL(serverURL, fmt.Sprintf("/video/ws/%s/%s", id.ID, id.Role))
	if err != nil {
		return nil, err
	}
	return newChannel(u, "relay", opts...), nil
}

// NewUplinkChannel targets the frame-uplink endpoint /ws/{personID}.
func NewUplinkChannel(serverURL, personID string, opts ...Option) (*Channel, error) {
	u, err := wsURL(serverURL, "/ws/"+personID)
	if err != nil {
		return nil, err
	}
	return newChannel(u, "uplink", opts...), nil
}

func newChannel(rawURL, mode string, opts ...Option) *Channel {
	c := &Channel{
		url:        rawURL,
		retryDelay: defaultRetryDelay,
		dialer:     websocket.DefaultDialer,
		log:        logrus.WithFields(logrus.Fields{"comp": "signal", "mode": mode}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wsURL rewrites an http(s) base URL to ws(s) and appends path.
func wsURL(serverURL, path string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// OnMessage registers the inbound payload handler. Set it before Connect.
func (c *Channel) OnMessage(fn func(data []byte)) { c.onMessage = fn }

// OnStatus registers the connection-state callback.
func (c *Channel) OnStatus(fn func(Status)) { c.onStatus = fn }

// Connect dials the endpoint and starts the read loop. A failed dial counts
// as an abnormal closure and arms the fixed-delay retry.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		c.log.WithError(err).Error("dial failed")
		c.notify(StatusError)
		c.scheduleReconnect()
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.log.Info("connected")
	c.notify(StatusConnected)
	go c.readLoop(conn)
	return nil
}

// IsOpen reports whether the socket is currently usable.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closing
}

// Send marshals v and writes it as one text frame.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close performs a deliberate shutdown with a normal close code. No reconnect
// is armed afterwards.
func (c *Channel) Close(reason string) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	}
	c.log.WithField("reason", reason).Info("closed")
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closing := c.closing
			c.mu.Unlock()

			if closing {
				return
			}
			c.notify(StatusDisconnected)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.log.Info("closed by server")
				return
			}
			c.log.WithError(err).Warn("connection lost")
			c.scheduleReconnect()
			return
		}

		if !json.Valid(data) {
			c.log.WithField("payload", truncate(data)).Warn("dropping malformed message")
			continue
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

// scheduleReconnect arms exactly one retry at the fixed delay. The failed
// socket is already torn down before the new dial happens, so reconnects
// never leak connections.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.log.WithField("delay", c.retryDelay).Info("reconnecting")
	time.AfterFunc(c.retryDelay, func() {
		if err := c.Connect(); err != nil && !errors.Is(err, ErrClosed) {
			c.log.WithError(err).Warn("reconnect failed")
		}
	})
}

func (c *Channel) notify(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

func truncate(data []byte) string {
	const max = 128
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
