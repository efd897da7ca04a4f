package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"interviewmic/internal/domain"
	"interviewmic/internal/observability/metrics"
	"interviewmic/internal/ports"
	"interviewmic/internal/vad"
)

// CaptureConfig controls how each source is recorded and chunked.
type CaptureConfig struct {
	Microphone    ports.CaptureConfig
	ScreenAudio   ports.CaptureConfig
	ChunkInterval time.Duration
	ReadSize      int
	Gate          vad.Config
}

// AudioSink receives recorded chunks.
type AudioSink interface {
	SendAudio(chunk []byte) error
}

// RecordingObserver is told when a recording starts and stops.
type RecordingObserver interface {
	RecordingStarted(source domain.AudioSource)
	RecordingStopped(source domain.AudioSource)
}

// AudioSourceCapture records from one source at a time and forwards chunks
// to an AudioSink. Microphone audio is chunked on a fixed interval; screen
// audio goes through a voice activity gate.
type AudioSourceCapture struct {
	capture  ports.AudioCapture
	sink     AudioSink
	observer RecordingObserver
	events   ports.EventSink
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	cfg      CaptureConfig

	mu      sync.Mutex
	current *recording
}

func NewAudioSourceCapture(
	capture ports.AudioCapture,
	sink AudioSink,
	observer RecordingObserver,
	events ports.EventSink,
	m *metrics.Metrics,
	logger zerolog.Logger,
	cfg CaptureConfig,
) *AudioSourceCapture {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = defaultChunkInterval
	}
	if cfg.ReadSize < 256 {
		cfg.ReadSize = defaultReadSize
	}
	return &AudioSourceCapture{
		capture:  capture,
		sink:     sink,
		observer: observer,
		events:   events,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start releases any previous recording and begins capturing source.
func (c *AudioSourceCapture) Start(ctx context.Context, source domain.AudioSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.logger.Info().Str("from", string(c.current.source)).Str("to", string(source)).Msg("switching audio source")
		_ = c.stopLocked()
	}

	captureCfg := c.captureConfig(source)
	recCtx, cancel := context.WithCancel(ctx)
	session, err := c.capture.Start(recCtx, captureCfg)
	if err != nil {
		cancel()
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			err = &domain.SourceUnavailableError{Source: source, Err: err}
		}
		c.logger.Error().Err(err).Str("source", string(source)).Msg("audio source unavailable")
		c.events.SessionError(domain.ErrorCodeSourceUnavailable, err.Error())
		return err
	}

	rec := &recording{
		source:   source,
		cancel:   cancel,
		audio:    session,
		pumpDone: make(chan struct{}),
	}
	if source == domain.AudioSourceScreenAudio {
		gateCfg := c.cfg.Gate
		gateCfg.SampleRate = captureCfg.SampleRate
		gateCfg.Channels = captureCfg.Channels
		rec.gate = vad.NewGate(gateCfg, func(chunk []byte, trigger vad.Trigger) {
			c.metrics.RecordVoiceSegment(string(trigger))
			c.logger.Debug().
				Str("trigger", string(trigger)).
				Int("bytes", len(chunk)).
				Float64("energy", rec.gate.Level()).
				Msg("voice segment")
			c.deliver(chunk)
		})
	}

	c.current = rec
	c.metrics.SetRecording(true)
	c.logger.Info().Str("source", string(source)).Msg("recording started")
	c.observer.RecordingStarted(source)

	go c.pump(rec)
	return nil
}

// Stop ends the current recording. It is a no-op when nothing is recording.
func (c *AudioSourceCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// Recording reports the active source, if any.
func (c *AudioSourceCapture) Recording() (domain.AudioSource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return "", false
	}
	return c.current.source, true
}

func (c *AudioSourceCapture) captureConfig(source domain.AudioSource) ports.CaptureConfig {
	cfg := c.cfg.Microphone
	if source == domain.AudioSourceScreenAudio {
		cfg = c.cfg.ScreenAudio
	}
	cfg.Source = source
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return cfg
}

func (c *AudioSourceCapture) pump(rec *recording) {
	var err error
	if rec.gate != nil {
		err = pumpGated(rec.audio, rec.gate, c.cfg.ReadSize)
	} else {
		err = pumpTimedChunks(rec.audio, c.cfg.ReadSize, c.cfg.ChunkInterval, c.deliver)
	}
	close(rec.pumpDone)

	if err == nil {
		return
	}
	c.logger.Error().Err(err).Str("source", string(rec.source)).Msg("audio capture failed")
	c.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == rec {
		_ = c.stopLocked()
	}
}

func (c *AudioSourceCapture) stopLocked() error {
	rec := c.current
	if rec == nil {
		return nil
	}
	c.current = nil

	stopErr := rec.audio.Stop()
	<-rec.pumpDone
	if rec.gate != nil {
		_ = rec.gate.Close()
	}
	rec.cancel()

	c.metrics.SetRecording(false)
	if stopErr != nil {
		c.logger.Warn().Err(stopErr).Str("source", string(rec.source)).Msg("audio capture did not stop cleanly")
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	c.logger.Info().Str("source", string(rec.source)).Msg("recording stopped")
	c.observer.RecordingStopped(rec.source)
	return stopErr
}

func (c *AudioSourceCapture) deliver(chunk []byte) {
	err := c.sink.SendAudio(chunk)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTransportUnavailable):
		c.logger.Debug().Int("bytes", len(chunk)).Msg("audio dropped; channel not open")
	default:
		c.logger.Warn().Err(err).Msg("failed to send audio")
		c.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", err))
	}
}
