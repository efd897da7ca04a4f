// Package metrics provides Prometheus metrics for the interview session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"interviewmic/internal/domain"
)

const namespace = "interviewmic"

// Metrics holds all Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Connection metrics
	ConnectAttempts     prometheus.Counter
	ConnectionsOpened   prometheus.Counter
	ReconnectsScheduled prometheus.Counter
	ReconnectsExhausted prometheus.Counter
	ConnectionState     *prometheus.GaugeVec

	// Protocol metrics
	MessagesReceived  *prometheus.CounterVec
	MalformedMessages prometheus.Counter
	SetupSent         prometheus.Counter

	// Audio metrics
	AudioChunksSent    prometheus.Counter
	AudioBytesSent     prometheus.Counter
	AudioChunksDropped *prometheus.CounterVec
	VoiceSegments      *prometheus.CounterVec
	RecordingActive    prometheus.Gauge
}

var connectionStates = []domain.ConnectionState{
	domain.ConnectionConnecting,
	domain.ConnectionOpen,
	domain.ConnectionClosed,
	domain.ConnectionReconnecting,
	domain.ConnectionFailed,
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of transport dial attempts",
		}),
		ConnectionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Total number of successfully opened transports",
		}),
		ReconnectsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Total number of automatic reconnects scheduled",
		}),
		ReconnectsExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_exhausted_total",
			Help:      "Total number of times the automatic reconnect bound was hit",
		}),
		ConnectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),

		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of inbound server messages by type",
		}, []string{"type"}),
		MalformedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_messages_total",
			Help:      "Total number of inbound frames that could not be decoded",
		}),
		SetupSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_sent_total",
			Help:      "Total number of setup handshakes transmitted",
		}),

		AudioChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_sent_total",
			Help:      "Total number of audio chunks transmitted",
		}),
		AudioBytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Total audio bytes transmitted",
		}),
		AudioChunksDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_dropped_total",
			Help:      "Total number of audio chunks not transmitted",
		}, []string{"reason"}),
		VoiceSegments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_segments_total",
			Help:      "Total number of voice-gated segments flushed",
		}, []string{"trigger"}),
		RecordingActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording_active",
			Help:      "1 while audio capture is running",
		}),
	}
}

// RecordConnectAttempt records a dial attempt.
func (m *Metrics) RecordConnectAttempt() {
	if m == nil {
		return
	}
	m.ConnectAttempts.Inc()
}

// RecordConnectionOpened records a successful open.
func (m *Metrics) RecordConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsOpened.Inc()
}

// RecordReconnectScheduled records an automatic retry.
func (m *Metrics) RecordReconnectScheduled() {
	if m == nil {
		return
	}
	m.ReconnectsScheduled.Inc()
}

// RecordReconnectExhausted records hitting the retry bound.
func (m *Metrics) RecordReconnectExhausted() {
	if m == nil {
		return
	}
	m.ReconnectsExhausted.Inc()
}

// SetConnectionState marks state as the only active connection state.
func (m *Metrics) SetConnectionState(state domain.ConnectionState) {
	if m == nil {
		return
	}
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.ConnectionState.WithLabelValues(string(s)).Set(value)
	}
}

// RecordMessage records an inbound message by type.
func (m *Metrics) RecordMessage(messageType string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(messageType).Inc()
}

// RecordMalformed records an undecodable frame.
func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.MalformedMessages.Inc()
}

// RecordSetupSent records a transmitted setup handshake.
func (m *Metrics) RecordSetupSent() {
	if m == nil {
		return
	}
	m.SetupSent.Inc()
}

// RecordAudioSent records one transmitted chunk.
func (m *Metrics) RecordAudioSent(bytes int) {
	if m == nil {
		return
	}
	m.AudioChunksSent.Inc()
	m.AudioBytesSent.Add(float64(bytes))
}

// RecordAudioDropped records a chunk that was not transmitted.
func (m *Metrics) RecordAudioDropped(reason string) {
	if m == nil {
		return
	}
	m.AudioChunksDropped.WithLabelValues(reason).Inc()
}

// RecordVoiceSegment records a voice-gated flush.
func (m *Metrics) RecordVoiceSegment(trigger string) {
	if m == nil {
		return
	}
	m.VoiceSegments.WithLabelValues(trigger).Inc()
}

// SetRecording flips the recording gauge.
func (m *Metrics) SetRecording(active bool) {
	if m == nil {
		return
	}
	if active {
		m.RecordingActive.Set(1)
		return
	}
	m.RecordingActive.Set(0)
}
