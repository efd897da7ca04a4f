package usecase

import (
	"context"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeConn is an in-memory channel to the interview server.
type fakeConn struct {
	inbound chan fakeFrame
	dropped chan struct{}
	closed  chan struct{}

	dropOnce  sync.Once
	closeOnce sync.Once

	// writeGate, when set, holds every binary write until it is closed.
	writeGate chan struct{}

	mu       sync.Mutex
	texts    [][]byte
	binaries [][]byte
	writeErr error
	pending  int
	dropErr  error
}

type fakeFrame struct {
	kind    ports.MessageKind
	payload []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan fakeFrame, 16),
		dropped: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) WriteText(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) WriteBinary(payload []byte) error {
	if c.writeGate != nil {
		c.mu.Lock()
		c.pending++
		c.mu.Unlock()
		<-c.writeGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.binaries = append(c.binaries, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Read() (ports.MessageKind, []byte, error) {
	select {
	case frame := <-c.inbound:
		return frame.kind, frame.payload, nil
	case <-c.dropped:
		c.mu.Lock()
		err := c.dropErr
		c.mu.Unlock()
		if err == nil {
			err = errors.New("connection reset by peer")
		}
		return 0, nil, err
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(kind ports.MessageKind, payload string) {
	c.inbound <- fakeFrame{kind: kind, payload: []byte(payload)}
}

// closeByServer simulates an orderly close initiated by the server.
func (c *fakeConn) closeByServer() {
	c.mu.Lock()
	c.dropErr = fmt.Errorf("%w: close 1000 (normal)", ports.ErrClosedByPeer)
	c.mu.Unlock()
	c.drop()
}

// drop simulates the server going away.
func (c *fakeConn) drop() {
	c.dropOnce.Do(func() { close(c.dropped) })
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sentTexts() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.texts...)
}

func (c *fakeConn) stalledWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *fakeConn) sentBinaries() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.binaries...)
}

// dialStep scripts one Dial outcome.
type dialStep struct {
	conn  *fakeConn
	err   error
	block bool // wait for the dial context to end
}

type fakeTransport struct {
	mu       sync.Mutex
	steps    []dialStep
	fallback func() dialStep
	dials    int
	conns    []*fakeConn
}

func (f *fakeTransport) Dial(ctx context.Context) (ports.Conn, error) {
	f.mu.Lock()
	f.dials++
	var step dialStep
	switch {
	case len(f.steps) > 0:
		step = f.steps[0]
		f.steps = f.steps[1:]
	case f.fallback != nil:
		step = f.fallback()
	default:
		step = dialStep{err: errors.New("connection refused")}
	}
	if step.conn != nil {
		f.conns = append(f.conns, step.conn)
	}
	f.mu.Unlock()

	if step.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.err != nil {
		return nil, step.err
	}
	return step.conn, nil
}

func (f *fakeTransport) setFallback(fn func() dialStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = fn
}

func (f *fakeTransport) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeTransport) lastConn() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

type recordedError struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu       sync.Mutex
	statuses []domain.ConnectionStatus
	turns    []domain.ChatTurn
	flags    []domain.UIFlags
	errors   []recordedError
}

func (f *fakeEventSink) ConnectionChanged(status domain.ConnectionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeEventSink) TurnAppended(turn domain.ChatTurn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
}

func (f *fakeEventSink) FlagsChanged(flags domain.UIFlags) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags = append(f.flags, flags)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, recordedError{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStatuses() []domain.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ConnectionStatus(nil), f.statuses...)
}

func (f *fakeEventSink) snapshotErrors() []recordedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedError(nil), f.errors...)
}

func (f *fakeEventSink) hasError(code domain.ErrorCode) bool {
	for _, e := range f.snapshotErrors() {
		if e.code == code {
			return true
		}
	}
	return false
}

type fakeHandler struct {
	mu       sync.Mutex
	messages []domain.ServerMessage
}

func (f *fakeHandler) HandleMessage(msg domain.ServerMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return msg.Type == domain.MessageTypeTranscription || msg.Type == domain.MessageTypeAssistantResponse
}

func (f *fakeHandler) snapshot() []domain.ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ServerMessage(nil), f.messages...)
}

// fakeAudioSession serves data, then either fails with readErr or blocks
// until stopped and reports EOF.
type fakeAudioSession struct {
	mu      sync.Mutex
	data    []byte
	readErr error

	stopped   chan struct{}
	stopOnce  sync.Once
	stopCalls int
}

func newFakeAudioSession(data []byte, readErr error) *fakeAudioSession {
	return &fakeAudioSession{data: data, readErr: readErr, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.data) > 0 {
		n := copy(p, f.data)
		f.data = f.data[n:]
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()

	if f.readErr != nil {
		return 0, f.readErr
	}
	<-f.stopped
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return f.Stop() }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAudioSession) isStopped() bool {
	select {
	case <-f.stopped:
		return true
	default:
		return false
	}
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	configs  []ports.CaptureConfig
}

func (f *fakeAudioCapture) Start(_ context.Context, cfg ports.CaptureConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.sessions) == 0 {
		return newFakeAudioSession(nil, nil), nil
	}
	session := f.sessions[0]
	f.sessions = f.sessions[1:]
	return session, nil
}

type fakeAudioSink struct {
	mu     sync.Mutex
	chunks [][]byte
	err    error
}

func (f *fakeAudioSink) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.chunks = append(f.chunks, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeAudioSink) snapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.chunks...)
}

type recordingEvent struct {
	started bool
	source  domain.AudioSource
}

type fakeObserver struct {
	mu     sync.Mutex
	events []recordingEvent
}

func (f *fakeObserver) RecordingStarted(source domain.AudioSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordingEvent{started: true, source: source})
}

func (f *fakeObserver) RecordingStopped(source domain.AudioSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordingEvent{started: false, source: source})
}

func (f *fakeObserver) snapshot() []recordingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordingEvent(nil), f.events...)
}

// lockedBuffer collects log output written from other goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
