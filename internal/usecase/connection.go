package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"interviewmic/internal/domain"
	"interviewmic/internal/observability/metrics"
	"interviewmic/internal/ports"
)

var ErrConnectionClosed = errors.New("session connection is closed")

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = 3 * time.Second
	defaultDialTimeout          = 10 * time.Second
)

// ConnectionConfig controls reconnection behavior.
type ConnectionConfig struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	DialTimeout          time.Duration
	// SendQueueSize bounds the frames waiting for a slow server.
	SendQueueSize int
	// ResendSetupOnReconnect re-sends the stored setup payload on every open.
	// When false the payload is only sent until one send succeeds.
	ResendSetupOnReconnect bool
}

// MessageHandler consumes classified inbound messages. It reports false for
// message types it does not handle.
type MessageHandler interface {
	HandleMessage(msg domain.ServerMessage) bool
}

// SessionConnection owns the channel to the interview server.
//
// Every command, dial result, inbound frame and retry timer runs as a closure
// on a single loop goroutine, so state is never touched concurrently.
// Callbacks from superseded channels are recognized by their generation and
// dropped.
type SessionConnection struct {
	transport ports.Transport
	handler   MessageHandler
	events    ports.EventSink
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	cfg       ConnectionConfig
	now       func() time.Time

	inbox     chan func()
	quit      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	snapshotMu sync.RWMutex
	snapshot   domain.ConnectionStatus

	// loop-owned
	status     domain.ConnectionStatus
	conn       ports.Conn
	writer     *frameWriter
	generation uint64
	dialCancel context.CancelFunc
	retryTimer *time.Timer
	retrySeq   uint64
	setup      *domain.SetupPayload
	setupSent  bool
	closed     bool
}

func NewSessionConnection(
	transport ports.Transport,
	handler MessageHandler,
	events ports.EventSink,
	m *metrics.Metrics,
	logger zerolog.Logger,
	cfg ConnectionConfig,
) *SessionConnection {
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = defaultSendQueueSize
	}

	status := domain.ConnectionStatus{
		State:                domain.ConnectionClosed,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}
	c := &SessionConnection{
		transport: transport,
		handler:   handler,
		events:    events,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		inbox:     make(chan func(), 64),
		quit:      make(chan struct{}),
		loopDone:  make(chan struct{}),
		status:    status,
		snapshot:  status,
	}
	go c.run()
	return c
}

// DefaultConnectionConfig returns the reconnection policy used when nothing is configured.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxReconnectAttempts:   defaultMaxReconnectAttempts,
		ReconnectDelay:         defaultReconnectDelay,
		DialTimeout:            defaultDialTimeout,
		SendQueueSize:          defaultSendQueueSize,
		ResendSetupOnReconnect: true,
	}
}

// Connect opens a fresh channel, discarding any live or in-flight one.
func (c *SessionConnection) Connect() error {
	return c.call(c.connect)
}

// ManualRetry cancels any scheduled retry, resets the attempt counter and
// connects immediately.
func (c *SessionConnection) ManualRetry() error {
	return c.call(func() {
		c.logger.Info().Msg("manual reconnect requested")
		c.status.ReconnectAttempts = 0
		c.status.Notice = domain.NoticeNone
		c.connect()
	})
}

// SendSetup stores the payload and sends it when the channel is open.
func (c *SessionConnection) SendSetup(jobDescription, background string) error {
	var sendErr error
	err := c.call(func() {
		c.setup = &domain.SetupPayload{JobDescription: jobDescription, Background: background}
		c.setupSent = false
		if c.writer == nil || c.status.State != domain.ConnectionOpen {
			c.logger.Warn().Str("state", string(c.status.State)).Msg("setup stored; channel not open")
			sendErr = domain.ErrTransportUnavailable
			return
		}
		sendErr = c.sendSetupFrame()
	})
	if err != nil {
		return err
	}
	return sendErr
}

// SendAudio queues one binary frame. Empty chunks are dropped silently.
func (c *SessionConnection) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		c.metrics.RecordAudioDropped("empty")
		return nil
	}

	var sendErr error
	err := c.call(func() {
		if c.writer == nil || c.status.State != domain.ConnectionOpen {
			c.metrics.RecordAudioDropped("not_open")
			sendErr = domain.ErrTransportUnavailable
			return
		}
		if !c.writer.enqueue(outboundFrame{kind: ports.BinaryMessage, payload: chunk}) {
			c.metrics.RecordAudioDropped("queue_full")
			sendErr = fmt.Errorf("%w: send queue full", domain.ErrTransportUnavailable)
		}
	})
	if err != nil {
		return err
	}
	return sendErr
}

// Status returns the latest connection snapshot.
func (c *SessionConnection) Status() domain.ConnectionStatus {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	return c.snapshot
}

// Close tears down the channel. No retry fires after Close returns.
func (c *SessionConnection) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
	<-c.loopDone
	return nil
}

func (c *SessionConnection) run() {
	defer close(c.loopDone)
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.quit:
			c.shutdown()
			return
		}
	}
}

func (c *SessionConnection) post(fn func()) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.inbox <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (c *SessionConnection) call(fn func()) error {
	done := make(chan struct{})
	if !c.post(func() {
		defer close(done)
		fn()
	}) {
		return ErrConnectionClosed
	}
	select {
	case <-done:
		return nil
	case <-c.loopDone:
		return ErrConnectionClosed
	}
}

func (c *SessionConnection) connect() {
	c.cancelRetry()
	c.dropChannel()

	c.generation++
	gen := c.generation
	c.setState(domain.ConnectionConnecting)
	c.metrics.RecordConnectAttempt()
	c.logger.Info().Uint64("generation", gen).Int("attempt", c.status.ReconnectAttempts).Msg("connecting")

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	c.dialCancel = cancel
	go func() {
		conn, err := c.transport.Dial(ctx)
		cancel()
		if !c.post(func() { c.handleDialResult(gen, conn, err) }) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (c *SessionConnection) handleDialResult(gen uint64, conn ports.Conn, err error) {
	if gen != c.generation || c.closed {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.dialCancel = nil

	if err != nil {
		c.logger.Warn().Err(err).Uint64("generation", gen).Msg("connect failed")
		c.handleDisconnect(err)
		return
	}

	c.conn = conn
	c.writer = newFrameWriter(conn, c.cfg.SendQueueSize, c.frameSent, func(frame outboundFrame, err error) {
		c.frameFailed(conn, frame, err)
	})
	c.status.ReconnectAttempts = 0
	c.status.Notice = domain.NoticeNone
	c.status.LastActivityAt = c.now()
	c.setState(domain.ConnectionOpen)
	c.metrics.RecordConnectionOpened()
	c.logger.Info().Uint64("generation", gen).Msg("connection open")

	go c.readLoop(gen, conn)

	if c.setup != nil && (c.cfg.ResendSetupOnReconnect || !c.setupSent) {
		if err := c.sendSetupFrame(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to send stored setup")
		}
	}
}

func (c *SessionConnection) readLoop(gen uint64, conn ports.Conn) {
	for {
		kind, payload, err := conn.Read()
		if err != nil {
			c.post(func() { c.handleChannelClosed(gen, err) })
			return
		}
		if !c.post(func() { c.handleFrame(gen, kind, payload) }) {
			return
		}
	}
}

func (c *SessionConnection) handleChannelClosed(gen uint64, err error) {
	if gen != c.generation || c.closed || c.conn == nil {
		return
	}
	if errors.Is(err, ports.ErrClosedByPeer) {
		c.logger.Info().Err(err).Uint64("generation", gen).Msg("server closed the connection")
	} else {
		c.logger.Warn().Err(err).Uint64("generation", gen).Msg("connection failed")
	}
	c.dropChannel()
	c.handleDisconnect(err)
}

func (c *SessionConnection) handleDisconnect(cause error) {
	if c.status.ReconnectAttempts < c.cfg.MaxReconnectAttempts {
		c.status.ReconnectAttempts++
		c.status.Notice = domain.NoticeConnectionLost
		c.setState(domain.ConnectionReconnecting)
		c.metrics.RecordReconnectScheduled()
		c.logger.Info().
			Int("attempt", c.status.ReconnectAttempts).
			Int("max", c.cfg.MaxReconnectAttempts).
			Dur("delay", c.cfg.ReconnectDelay).
			Msg("reconnect scheduled")
		if c.status.ReconnectAttempts == 1 {
			c.events.SessionError(domain.ErrorCodeConnectionLost, "connection lost. attempting to reconnect")
		}
		c.scheduleRetry()
		return
	}

	c.status.Notice = domain.NoticeReconnectExhausted
	c.setState(domain.ConnectionFailed)
	c.metrics.RecordReconnectExhausted()
	c.logger.Error().Err(cause).Int("attempts", c.status.ReconnectAttempts).Msg("reconnect attempts exhausted")
	c.events.SessionError(domain.ErrorCodeReconnectExhausted, "unable to reconnect. please retry manually")
}

func (c *SessionConnection) handleFrame(gen uint64, kind ports.MessageKind, payload []byte) {
	if gen != c.generation || c.closed {
		return
	}
	c.status.LastActivityAt = c.now()
	c.publishSnapshot()

	if kind != ports.TextMessage {
		c.logger.Debug().Int("bytes", len(payload)).Msg("ignoring binary frame")
		return
	}

	var msg domain.ServerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.metrics.RecordMalformed()
		c.logger.Warn().Err(err).Int("bytes", len(payload)).Msg("malformed server message")
		c.events.SessionError(domain.ErrorCodeMalformedMessage, fmt.Sprintf("malformed server message: %v", err))
		return
	}

	c.metrics.RecordMessage(string(msg.Type))
	if !c.handler.HandleMessage(msg) {
		c.logger.Warn().Str("type", string(msg.Type)).Msg("unknown message type")
	}
}

func (c *SessionConnection) sendSetupFrame() error {
	frame, err := json.Marshal(domain.SetupMessage{
		Type:                  domain.MessageTypeSetup,
		JobDescription:        c.setup.JobDescription,
		IntervieweeBackground: c.setup.Background,
	})
	if err != nil {
		return fmt.Errorf("encode setup: %w", err)
	}
	if !c.writer.enqueue(outboundFrame{kind: ports.TextMessage, payload: frame}) {
		return fmt.Errorf("send setup: %w: send queue full", domain.ErrTransportUnavailable)
	}
	c.setupSent = true
	return nil
}

// frameSent and frameFailed run on the writer goroutine.
func (c *SessionConnection) frameSent(frame outboundFrame) {
	if frame.kind == ports.TextMessage {
		c.metrics.RecordSetupSent()
		c.logger.Info().Msg("setup sent")
		return
	}
	c.metrics.RecordAudioSent(len(frame.payload))
}

// frameFailed closes the channel so the read loop reports the disconnect.
func (c *SessionConnection) frameFailed(conn ports.Conn, frame outboundFrame, err error) {
	if frame.kind == ports.BinaryMessage {
		c.metrics.RecordAudioDropped("write_failed")
	}
	c.logger.Warn().Err(err).Int("bytes", len(frame.payload)).Msg("failed to write frame")
	_ = conn.Close()
}

func (c *SessionConnection) scheduleRetry() {
	c.cancelRetry()
	seq := c.retrySeq
	c.retryTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.post(func() {
			if seq != c.retrySeq || c.closed {
				return
			}
			c.retryTimer = nil
			c.connect()
		})
	})
}

func (c *SessionConnection) cancelRetry() {
	c.retrySeq++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// dropChannel abandons the in-flight dial and the live channel, if any.
func (c *SessionConnection) dropChannel() {
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if c.writer != nil {
		c.writer.stop()
		c.writer = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *SessionConnection) shutdown() {
	c.closed = true
	c.cancelRetry()
	c.dropChannel()
	c.generation++
	c.setState(domain.ConnectionClosed)
	c.logger.Info().Msg("connection closed by client")
}

func (c *SessionConnection) setState(state domain.ConnectionState) {
	c.status.State = state
	c.metrics.SetConnectionState(state)
	c.publishSnapshot()
	c.events.ConnectionChanged(c.status)
}

func (c *SessionConnection) publishSnapshot() {
	c.snapshotMu.Lock()
	c.snapshot = c.status
	c.snapshotMu.Unlock()
}

// ClearSetup forgets the stored setup payload.
func (c *SessionConnection) ClearSetup() error {
	return c.call(func() {
		c.setup = nil
		c.setupSent = false
	})
}
