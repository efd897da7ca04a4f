package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"interviewmic/internal/ports"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                                DefaultURL,
		"http://localhost:9000/interview": "ws://localhost:9000/interview",
		"https://example.com/interview":   "wss://example.com/interview",
		" wss://example.com/interview ":   "wss://example.com/interview",
	}
	for in, want := range cases {
		got, err := normalizeURL(in)
		if err != nil {
			t.Fatalf("normalizeURL(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("normalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeURLRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"ftp://example.com/x", "ws:///interview", "://bad"} {
		if _, err := normalizeURL(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestClientExchangesFrames(t *testing.T) {
	t.Parallel()

	received := make(chan frame, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/interview" {
			http.NotFound(w, r)
			return
		}
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for i := 0; i < 2; i++ {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- frame{kind: kind, payload: payload}
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transcription","content":"hi"}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	client, err := New(Config{URL: server.URL + "/interview", HandshakeTimeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if !strings.HasPrefix(client.URL(), "ws://") {
		t.Fatalf("expected ws url, got %s", client.URL())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := client.Dial(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := conn.WriteText([]byte(`{"type":"setup"}`)); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if err := conn.WriteBinary([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	first := <-received
	second := <-received
	if first.kind != websocket.TextMessage || string(first.payload) != `{"type":"setup"}` {
		t.Fatalf("unexpected first frame: %+v", first)
	}
	if second.kind != websocket.BinaryMessage || len(second.payload) != 3 {
		t.Fatalf("unexpected second frame: %+v", second)
	}

	kind, payload, err := conn.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != ports.TextMessage || !strings.Contains(string(payload), "transcription") {
		t.Fatalf("unexpected inbound frame: %d %s", kind, payload)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}

func TestClientDialFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client, err := New(Config{URL: server.URL + "/interview"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Dial(context.Background()); err == nil {
		t.Fatalf("expected handshake failure")
	}
}

func TestIsNormalClose(t *testing.T) {
	t.Parallel()

	if !isNormalClose(&websocket.CloseError{Code: websocket.CloseNormalClosure}) {
		t.Fatalf("normal closure should be normal")
	}
	if isNormalClose(&websocket.CloseError{Code: websocket.CloseAbnormalClosure}) {
		t.Fatalf("abnormal closure should not be normal")
	}
	if isNormalClose(nil) {
		t.Fatalf("nil is not a close")
	}
}

func TestConnReadReportsServerClose(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	conn := dialTestServer(t, server, Config{})
	defer conn.Close()

	_, _, err := conn.Read()
	if !errors.Is(err, ports.ErrClosedByPeer) {
		t.Fatalf("expected ErrClosedByPeer, got %v", err)
	}
}

// stalledServer accepts the upgrade and never reads, so client writes back up.
func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})
	return server
}

func writeUntilError(conn ports.Conn) <-chan error {
	done := make(chan error, 1)
	chunk := make([]byte, 256<<10)
	go func() {
		for {
			if err := conn.WriteBinary(chunk); err != nil {
				done <- err
				return
			}
		}
	}()
	return done
}

func TestConnCloseUnblocksStalledWrite(t *testing.T) {
	t.Parallel()

	conn := dialTestServer(t, stalledServer(t), Config{WriteTimeout: time.Minute})
	writeErr := writeUntilError(conn)
	time.Sleep(300 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = conn.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatalf("close blocked behind a stalled write")
	}
	select {
	case err := <-writeErr:
		if err == nil {
			t.Fatalf("expected the pending write to fail")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("pending write was not released by close")
	}
}

func TestConnWriteTimesOut(t *testing.T) {
	t.Parallel()

	conn := dialTestServer(t, stalledServer(t), Config{WriteTimeout: 200 * time.Millisecond})
	defer conn.Close()

	select {
	case err := <-writeUntilError(conn):
		if err == nil {
			t.Fatalf("expected a write error")
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("write to a stalled server never timed out")
	}
}

func dialTestServer(t *testing.T, server *httptest.Server, cfg Config) ports.Conn {
	t.Helper()
	cfg.URL = server.URL
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := client.Dial(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

type frame struct {
	kind    int
	payload []byte
}
