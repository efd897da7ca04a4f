package bootstrap

import (
	"context"
	"testing"
	"time"

	"interviewmic/internal/config"
	"interviewmic/internal/domain"
)

func TestBuildSuccess(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("INTERVIEWMIC_CONFIG", "")

	services, err := Build(noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Shutdown(context.Background())

	if services.Interview == nil || services.Registry == nil {
		t.Fatalf("expected interview and registry")
	}
	if services.Interview.Status().Connection.State != domain.ConnectionClosed {
		t.Fatalf("interview should not connect during build")
	}
}

func TestBuildRejectsInvalidServerURL(t *testing.T) {
	cfg := config.Default()
	cfg.Server.URL = "ftp://example.com/interview"

	if _, err := BuildWithConfig(cfg, noopEventSink{}); err == nil {
		t.Fatalf("expected invalid server url error")
	}
}

func TestInterviewConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxReconnectAttempts = 2
	cfg.Audio.ScreenDevice = "monitor-2"
	cfg.Audio.ChunkInterval = 10 * time.Second
	cfg.VAD.Threshold = 30

	got := InterviewConfig(cfg)
	if got.Connection.MaxReconnectAttempts != 2 || got.Connection.ReconnectDelay != 3*time.Second {
		t.Fatalf("unexpected connection config: %+v", got.Connection)
	}
	if got.Capture.ScreenAudio.InputDevice != "monitor-2" || got.Capture.Microphone.InputDevice != "default" {
		t.Fatalf("unexpected devices: %+v", got.Capture)
	}
	if got.Capture.ChunkInterval != 10*time.Second || got.Capture.Gate.Threshold != 30 {
		t.Fatalf("unexpected capture config: %+v", got.Capture)
	}
}

type noopEventSink struct{}

func (noopEventSink) ConnectionChanged(_ domain.ConnectionStatus) {}
func (noopEventSink) TurnAppended(_ domain.ChatTurn)              {}
func (noopEventSink) FlagsChanged(_ domain.UIFlags)               {}
func (noopEventSink) SessionError(_ domain.ErrorCode, _ string)   {}
