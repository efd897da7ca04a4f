package vad

import (
	"errors"
	"sync"
	"time"
)

// Trigger names the reason a buffered segment was flushed.
type Trigger string

const (
	TriggerSilence   Trigger = "silence"
	TriggerMaxBuffer Trigger = "max_buffer"
	TriggerStop      Trigger = "stop"
)

var ErrGateClosed = errors.New("vad: gate closed")

// Config controls segment detection. Durations are measured in audio time,
// so a gate fed faster than real time behaves the same as a live one.
type Config struct {
	SampleRate      int
	Channels        int
	Threshold       float64
	TrailingSilence time.Duration
	Tick            time.Duration
	FFTSize         int
	Smoothing       float64
	MaxBuffer       time.Duration // 0 disables the forced flush
}

func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		Channels:        1,
		Threshold:       15,
		TrailingSilence: time.Second,
		Tick:            16 * time.Millisecond,
		FFTSize:         defaultFFTSize,
		MaxBuffer:       30 * time.Second,
	}
}

// FlushFunc receives one combined segment.
type FlushFunc func(chunk []byte, trigger Trigger)

// Gate is an io.Writer over s16le PCM that buffers audio from the first tick
// at or above Threshold until TrailingSilence of quieter audio has elapsed,
// then hands the whole segment to the flush callback as one chunk.
type Gate struct {
	cfg      Config
	flush    FlushFunc
	analyser *Analyser

	tickBytes int

	mu        sync.Mutex
	pending   []byte
	samples   []float64
	buffer    []byte
	active    bool
	silentFor time.Duration
	buffered  time.Duration
	level     float64
	closed    bool
}

func NewGate(cfg Config, flush FlushFunc) *Gate {
	defaults := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaults.SampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = defaults.Channels
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaults.Threshold
	}
	if cfg.TrailingSilence <= 0 {
		cfg.TrailingSilence = defaults.TrailingSilence
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaults.Tick
	}
	if cfg.MaxBuffer < 0 {
		cfg.MaxBuffer = 0
	}

	tickFrames := int(int64(cfg.SampleRate) * int64(cfg.Tick) / int64(time.Second))
	if tickFrames < 1 {
		tickFrames = 1
	}

	return &Gate{
		cfg:       cfg,
		flush:     flush,
		analyser:  NewAnalyser(AnalyserConfig{FFTSize: cfg.FFTSize, Smoothing: cfg.Smoothing}),
		tickBytes: tickFrames * 2 * cfg.Channels,
	}
}

// Write feeds PCM into the gate. Partial ticks are kept until completed.
func (g *Gate) Write(p []byte) (int, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return 0, ErrGateClosed
	}

	data := append(g.pending, p...)
	off := 0
	var segments []segment
	for len(data)-off >= g.tickBytes {
		if seg, ok := g.processTick(data[off : off+g.tickBytes]); ok {
			segments = append(segments, seg)
		}
		off += g.tickBytes
	}
	g.pending = append([]byte(nil), data[off:]...)
	g.mu.Unlock()

	g.emit(segments)
	return len(p), nil
}

// Close stops the gate and flushes any segment still being buffered.
// A gate that never heard speech emits nothing.
func (g *Gate) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true

	var segments []segment
	if g.active && len(g.pending) > 0 {
		g.buffer = append(g.buffer, g.pending...)
	}
	g.pending = nil
	if seg, ok := g.takeLocked(TriggerStop); ok {
		segments = append(segments, seg)
	}
	g.active = false
	g.mu.Unlock()

	g.emit(segments)
	return nil
}

// Active reports whether a segment is currently being buffered.
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Level returns the energy measured on the most recent tick.
func (g *Gate) Level() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level
}

type segment struct {
	chunk   []byte
	trigger Trigger
}

func (g *Gate) processTick(frame []byte) (segment, bool) {
	g.samples = decodePCM16(frame, g.cfg.Channels, g.samples)
	g.analyser.Push(g.samples)
	g.level = g.analyser.Level()
	voiced := g.level >= g.cfg.Threshold

	if voiced {
		g.active = true
		g.silentFor = 0
	}
	if !g.active {
		return segment{}, false
	}

	g.buffer = append(g.buffer, frame...)
	g.buffered += g.cfg.Tick

	if !voiced {
		g.silentFor += g.cfg.Tick
		if g.silentFor >= g.cfg.TrailingSilence {
			g.active = false
			return g.takeLocked(TriggerSilence)
		}
	}
	if g.cfg.MaxBuffer > 0 && g.buffered >= g.cfg.MaxBuffer {
		return g.takeLocked(TriggerMaxBuffer)
	}
	return segment{}, false
}

func (g *Gate) takeLocked(trigger Trigger) (segment, bool) {
	chunk := g.buffer
	g.buffer = nil
	g.buffered = 0
	g.silentFor = 0
	if len(chunk) == 0 {
		return segment{}, false
	}
	return segment{chunk: chunk, trigger: trigger}, true
}

func (g *Gate) emit(segments []segment) {
	if g.flush == nil {
		return
	}
	for _, seg := range segments {
		g.flush(seg.chunk, seg.trigger)
	}
}
