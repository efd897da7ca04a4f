// Package wsclient implements the interview transport over gorilla/websocket.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"interviewmic/internal/ports"
)

const (
	DefaultURL = "ws://localhost:8080/interview"

	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	closeFrameTimeout       = time.Second
	maxInboundMessageBytes  = 1 << 20
)

// Config controls how the interview server is reached.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	// WriteTimeout bounds a single frame write to a server that stopped reading.
	WriteTimeout time.Duration
}

// Client dials the interview websocket endpoint.
type Client struct {
	url          string
	dialer       *websocket.Dialer
	writeTimeout time.Duration
}

func New(cfg Config) (*Client, error) {
	wsURL, err := normalizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = timeout
	return &Client{url: wsURL, dialer: &dialer, writeTimeout: writeTimeout}, nil
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) Dial(ctx context.Context) (ports.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to interview server %s: %w", c.url, err)
	}
	conn.SetReadLimit(maxInboundMessageBytes)
	return &wsConn{conn: conn, writeTimeout: c.writeTimeout}, nil
}

// normalizeURL accepts ws(s) or http(s) URLs and returns the websocket form.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultURL
	}

	switch {
	case strings.HasPrefix(raw, "https://"):
		raw = "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		raw = "ws://" + strings.TrimPrefix(raw, "http://")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid interview server URL: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid interview server URL %q: unsupported scheme %q", raw, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid interview server URL %q: missing host", raw)
	}
	return parsed.String(), nil
}

// wsConn serializes data writes; gorilla allows one concurrent reader and one
// writer, while WriteControl and Close may be called at any time.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) WriteText(payload []byte) error {
	return c.write(websocket.TextMessage, payload)
}

func (c *wsConn) WriteBinary(payload []byte) error {
	return c.write(websocket.BinaryMessage, payload)
}

func (c *wsConn) write(kind int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(kind, payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (c *wsConn) Read() (ports.MessageKind, []byte, error) {
	kind, payload, err := c.conn.ReadMessage()
	if err != nil {
		if isNormalClose(err) {
			return 0, nil, fmt.Errorf("%w: %v", ports.ErrClosedByPeer, err)
		}
		return 0, nil, err
	}
	switch kind {
	case websocket.TextMessage:
		return ports.TextMessage, payload, nil
	default:
		return ports.BinaryMessage, payload, nil
	}
}

// Close sends a normal close frame when possible, then drops the socket. It
// does not wait for a stalled writer; closing the socket fails its write.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeFrameTimeout),
		)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// isNormalClose reports whether err is an orderly close rather than a failure.
func isNormalClose(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
