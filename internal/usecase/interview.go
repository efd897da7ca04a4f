package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"interviewmic/internal/domain"
	"interviewmic/internal/logging"
	"interviewmic/internal/observability/metrics"
	"interviewmic/internal/ports"
	"interviewmic/internal/transcript"
)

var ErrRecordingActive = errors.New("cannot change audio source while recording")

// InterviewConfig groups the settings of one interview session.
type InterviewConfig struct {
	Connection ConnectionConfig
	Capture    CaptureConfig
}

// Interview is the presentation-facing facade: it owns the transcript, the
// server connection and the audio capture for one interview.
type Interview struct {
	id      string
	store   *transcript.Store
	tracker *transcript.Tracker
	conn    *SessionConnection
	capture *AudioSourceCapture
	logger  zerolog.Logger

	mu     sync.Mutex
	source domain.AudioSource
	setup  *domain.SetupPayload
}

func NewInterview(
	transport ports.Transport,
	audio ports.AudioCapture,
	events ports.EventSink,
	m *metrics.Metrics,
	cfg InterviewConfig,
) *Interview {
	id := uuid.NewString()
	store := transcript.NewStore()
	tracker := transcript.NewTracker(store, events)

	iv := &Interview{
		id:      id,
		store:   store,
		tracker: tracker,
		logger:  logging.WithInterview("interview", id),
		source:  domain.AudioSourceMicrophone,
	}
	iv.conn = NewSessionConnection(transport, tracker, events, m, logging.WithInterview("connection", id), cfg.Connection)
	iv.capture = NewAudioSourceCapture(audio, iv.conn, iv, events, m, logging.WithInterview("capture", id), cfg.Capture)
	return iv
}

func (iv *Interview) ID() string {
	return iv.id
}

// Connect opens the channel to the interview server.
func (iv *Interview) Connect() error {
	return iv.conn.Connect()
}

// CompleteSetup records the interview context and hands it to the server.
// A closed channel is not an error; the payload goes out on the next open.
func (iv *Interview) CompleteSetup(jobDescription, background string) error {
	payload := domain.SetupPayload{
		JobDescription: strings.TrimSpace(jobDescription),
		Background:     strings.TrimSpace(background),
	}

	iv.mu.Lock()
	iv.setup = &payload
	iv.mu.Unlock()

	err := iv.conn.SendSetup(payload.JobDescription, payload.Background)
	if errors.Is(err, domain.ErrTransportUnavailable) {
		iv.logger.Warn().Msg("setup will be sent once the connection opens")
		return nil
	}
	return err
}

// SelectSource picks the source for the next recording.
func (iv *Interview) SelectSource(source domain.AudioSource) error {
	parsed, err := domain.ParseAudioSource(string(source))
	if err != nil {
		return err
	}
	if _, recording := iv.capture.Recording(); recording {
		return ErrRecordingActive
	}

	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.source = parsed
	return nil
}

func (iv *Interview) Source() domain.AudioSource {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.source
}

// StartRecording captures from the selected source.
func (iv *Interview) StartRecording(ctx context.Context) error {
	return iv.capture.Start(ctx, iv.Source())
}

func (iv *Interview) StopRecording() error {
	return iv.capture.Stop()
}

// RetryConnection is the manual reconnect requested by the user.
func (iv *Interview) RetryConnection() error {
	return iv.conn.ManualRetry()
}

// Reset stops recording, clears the transcript and returns to the setup step.
func (iv *Interview) Reset() error {
	stopErr := iv.capture.Stop()
	iv.tracker.Reset()

	iv.mu.Lock()
	iv.source = domain.AudioSourceMicrophone
	iv.setup = nil
	iv.mu.Unlock()

	if err := iv.conn.ClearSetup(); err != nil {
		return err
	}
	iv.logger.Info().Msg("interview reset")
	return stopErr
}

func (iv *Interview) Status() domain.Status {
	source, recording := iv.capture.Recording()

	iv.mu.Lock()
	defer iv.mu.Unlock()
	if !recording {
		source = iv.source
	}
	return domain.Status{
		Connection:    iv.conn.Status(),
		Flags:         iv.store.Flags(),
		Source:        source,
		Recording:     recording,
		SetupComplete: iv.setup != nil,
		Turns:         iv.store.Len(),
	}
}

func (iv *Interview) Transcript() []domain.ChatTurn {
	return iv.store.Turns()
}

// Close stops recording and tears down the connection.
func (iv *Interview) Close() error {
	stopErr := iv.capture.Stop()
	if err := iv.conn.Close(); err != nil {
		return err
	}
	return stopErr
}

func (iv *Interview) RecordingStarted(_ domain.AudioSource) {
	iv.tracker.SetListening(true)
}

func (iv *Interview) RecordingStopped(_ domain.AudioSource) {
	iv.tracker.SetListening(false)
}
