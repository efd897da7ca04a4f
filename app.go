package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"interviewmic/internal/bootstrap"
	"interviewmic/internal/config"
	"interviewmic/internal/domain"
	"interviewmic/internal/usecase"
)

const (
	eventConnection = "interviewmic:connection"
	eventTurn       = "interviewmic:turn"
	eventFlags      = "interviewmic:flags"
	eventError      = "interviewmic:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services  bootstrap.Services
	interview *usecase.Interview
	cfg       config.Config
	bootErr   error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.interview = services.Interview
	if err := a.interview.Connect(); err != nil {
		a.SessionError(domain.ErrorCodeStartup, err.Error())
	}
}

func (a *App) shutdown(ctx context.Context) {
	if a.interview == nil {
		return
	}
	_ = a.services.Shutdown(ctx)
}

// CompleteSetup submits the job description and candidate background.
func (a *App) CompleteSetup(jobDescription string, background string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.interview.CompleteSetup(jobDescription, background); err != nil {
		return domain.Status{}, err
	}
	return a.interview.Status(), nil
}

// SelectSource chooses microphone or screen audio for the next recording.
func (a *App) SelectSource(source string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	parsed, err := domain.ParseAudioSource(source)
	if err != nil {
		return domain.Status{}, err
	}
	if err := a.interview.SelectSource(parsed); err != nil {
		return domain.Status{}, err
	}
	return a.interview.Status(), nil
}

// StartRecording starts capturing from the selected source.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.interview.StartRecording(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.interview.Status(), nil
}

// StopRecording stops the active recording.
func (a *App) StopRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.interview.StopRecording(); err != nil {
		return domain.Status{}, err
	}
	return a.interview.Status(), nil
}

// RetryConnection reconnects after the automatic retries gave up.
func (a *App) RetryConnection() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.interview.RetryConnection()
}

// Reset clears the conversation and returns to the setup step.
func (a *App) Reset() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.interview.Reset(); err != nil {
		return domain.Status{}, err
	}
	return a.interview.Status(), nil
}

// GetStatus returns the current interview status.
func (a *App) GetStatus() domain.Status {
	if a.interview == nil {
		return domain.Status{
			Connection: domain.ConnectionStatus{State: domain.ConnectionClosed},
			Source:     domain.AudioSourceMicrophone,
		}
	}
	return a.interview.Status()
}

// GetTranscript returns every chat turn in order.
func (a *App) GetTranscript() []domain.ChatTurn {
	if a.interview == nil {
		return []domain.ChatTurn{}
	}
	return a.interview.Transcript()
}

// CopyTranscript places the conversation on the system clipboard.
func (a *App) CopyTranscript() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return runtime.ClipboardSetText(a.ctx, formatTranscript(a.interview.Transcript()))
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"serverUrl":        a.cfg.Server.URL,
		"microphoneDevice": a.cfg.Audio.MicrophoneDevice,
		"screenDevice":     a.cfg.Audio.ScreenDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"configFile":       a.cfg.Source,
	}
	if a.interview != nil {
		info["interviewId"] = a.interview.ID()
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.interview == nil {
		return errors.New("application is not initialized")
	}
	return nil
}

// ConnectionChanged emits connection status updates to the frontend.
func (a *App) ConnectionChanged(status domain.ConnectionStatus) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventConnection, map[string]any{
		"state":                string(status.State),
		"reconnectAttempts":    status.ReconnectAttempts,
		"maxReconnectAttempts": status.MaxReconnectAttempts,
		"notice":               string(status.Notice),
		"message":              connectionMessage(status),
	})
}

// TurnAppended emits each new chat turn.
func (a *App) TurnAppended(turn domain.ChatTurn) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTurn, turn)
}

// FlagsChanged emits loading, typing and listening indicators.
func (a *App) FlagsChanged(flags domain.UIFlags) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFlags, flags)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func connectionMessage(status domain.ConnectionStatus) string {
	switch status.Notice {
	case domain.NoticeConnectionLost:
		return fmt.Sprintf("Connection lost. Attempting to reconnect (%d/%d)...", status.ReconnectAttempts, status.MaxReconnectAttempts)
	case domain.NoticeReconnectExhausted:
		return "Unable to reconnect. Please retry."
	}
	switch status.State {
	case domain.ConnectionConnecting:
		return "Connecting..."
	case domain.ConnectionOpen:
		return "Connected"
	case domain.ConnectionClosed:
		return "Disconnected"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeSourceUnavailable:
		return "Could not access the selected audio source"
	case domain.ErrorCodeTransportUnavailable:
		return "Not connected to the interview server"
	case domain.ErrorCodeConnectionLost:
		return "Connection lost. Attempting to reconnect..."
	case domain.ErrorCodeReconnectExhausted:
		return "Unable to reconnect. Please retry."
	case domain.ErrorCodeMalformedMessage:
		return "Received an unreadable message"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

func formatTranscript(turns []domain.ChatTurn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := "Interviewer"
		if turn.Sender == domain.SenderAssistant {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(turn.Content)
	}
	return b.String()
}
