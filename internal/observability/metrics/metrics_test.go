package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"interviewmic/internal/domain"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.RecordConnectAttempt()
	m.RecordConnectionOpened()
	m.RecordReconnectScheduled()
	m.RecordReconnectExhausted()
	m.SetConnectionState(domain.ConnectionOpen)
	m.RecordMessage("transcription")
	m.RecordMalformed()
	m.RecordSetupSent()
	m.RecordAudioSent(10)
	m.RecordAudioDropped("empty")
	m.RecordVoiceSegment("silence")
	m.SetRecording(true)
}

func TestRecordAudioSentCountsChunksAndBytes(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())
	m.RecordAudioSent(100)
	m.RecordAudioSent(28)

	if got := testutil.ToFloat64(m.AudioChunksSent); got != 2 {
		t.Fatalf("unexpected chunk count: %v", got)
	}
	if got := testutil.ToFloat64(m.AudioBytesSent); got != 128 {
		t.Fatalf("unexpected byte count: %v", got)
	}
}

func TestSetConnectionStateIsExclusive(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())
	m.SetConnectionState(domain.ConnectionConnecting)
	m.SetConnectionState(domain.ConnectionOpen)

	if got := testutil.ToFloat64(m.ConnectionState.WithLabelValues("open")); got != 1 {
		t.Fatalf("expected open=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.ConnectionState.WithLabelValues("connecting")); got != 0 {
		t.Fatalf("expected connecting=0, got %v", got)
	}
}

func TestNewRegistersOnSeparateRegistries(t *testing.T) {
	t.Parallel()

	// promauto panics on duplicate registration, so two registries must not collide.
	_ = New(prometheus.NewRegistry())
	_ = New(prometheus.NewRegistry())
}
