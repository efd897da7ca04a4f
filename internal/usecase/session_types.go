package usecase

import (
	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
	"interviewmic/internal/vad"
)

// recording is one live capture from a single source.
type recording struct {
	source domain.AudioSource
	cancel func()
	audio  ports.AudioSession
	gate   *vad.Gate // nil for sources that are not gated

	pumpDone chan struct{}
}
