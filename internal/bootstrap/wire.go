package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"interviewmic/internal/audio"
	"interviewmic/internal/config"
	"interviewmic/internal/logging"
	"interviewmic/internal/observability"
	"interviewmic/internal/observability/metrics"
	"interviewmic/internal/ports"
	"interviewmic/internal/transport/wsclient"
	"interviewmic/internal/usecase"
	"interviewmic/internal/vad"
)

// Services is the assembled runtime graph.
type Services struct {
	Interview *usecase.Interview
	Config    config.Config
	Registry  *prometheus.Registry

	metricsServer *observability.Server
}

// Build loads configuration and wires all backend dependencies.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWithConfig(cfg, eventSink)
}

// BuildWithConfig wires the runtime from an already resolved configuration.
func BuildWithConfig(cfg config.Config, eventSink ports.EventSink) (Services, error) {
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	transport, err := wsclient.New(wsclient.Config{
		URL:              cfg.Server.URL,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
	})
	if err != nil {
		return Services{}, fmt.Errorf("configure interview server: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	interview := usecase.NewInterview(
		transport,
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		eventSink,
		m,
		InterviewConfig(cfg),
	)

	services := Services{Interview: interview, Config: cfg, Registry: registry}
	if cfg.Metrics.Addr != "" {
		services.metricsServer = observability.NewServer(cfg.Metrics.Addr, registry)
		services.metricsServer.Start()
	}
	return services, nil
}

// InterviewConfig maps file/env configuration onto the use case settings.
func InterviewConfig(cfg config.Config) usecase.InterviewConfig {
	return usecase.InterviewConfig{
		Connection: usecase.ConnectionConfig{
			MaxReconnectAttempts:   cfg.Server.MaxReconnectAttempts,
			ReconnectDelay:         cfg.Server.ReconnectDelay,
			DialTimeout:            cfg.Server.HandshakeTimeout,
			ResendSetupOnReconnect: cfg.Server.ResendSetupOnReconnect,
		},
		Capture: usecase.CaptureConfig{
			Microphone: ports.CaptureConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.MicrophoneDevice,
			},
			ScreenAudio: ports.CaptureConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.ScreenInputFormat,
				InputDevice: cfg.Audio.ScreenDevice,
			},
			ChunkInterval: cfg.Audio.ChunkInterval,
			ReadSize:      cfg.Audio.ReadSize,
			Gate: vad.Config{
				Threshold:       cfg.VAD.Threshold,
				TrailingSilence: cfg.VAD.TrailingSilence,
				Tick:            cfg.VAD.Tick,
				FFTSize:         cfg.VAD.FFTSize,
				MaxBuffer:       cfg.VAD.MaxBuffer,
			},
		},
	}
}

// Shutdown closes the interview and stops the metrics server.
func (s Services) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.Interview != nil {
		firstErr = s.Interview.Close()
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
