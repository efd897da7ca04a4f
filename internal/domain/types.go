package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionState models the lifecycle of the interview server channel.
type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionOpen         ConnectionState = "open"
	ConnectionClosed       ConnectionState = "closed"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionFailed       ConnectionState = "failed"
)

// ConnectionNotice is the operator-facing notice attached to a connection status.
type ConnectionNotice string

const (
	NoticeNone               ConnectionNotice = ""
	NoticeConnectionLost     ConnectionNotice = "connection_lost"
	NoticeReconnectExhausted ConnectionNotice = "reconnect_exhausted"
)

// ConnectionStatus is a snapshot of the session connection.
type ConnectionStatus struct {
	State                ConnectionState  `json:"state"`
	ReconnectAttempts    int              `json:"reconnectAttempts"`
	MaxReconnectAttempts int              `json:"maxReconnectAttempts"`
	Notice               ConnectionNotice `json:"notice,omitempty"`
	LastActivityAt       time.Time        `json:"lastActivityAt"`
}

// Sender attributes a chat turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatTurn is one immutable entry of the transcript.
type ChatTurn struct {
	Sequence   int       `json:"sequence"`
	Sender     Sender    `json:"sender"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// UIFlags are transient view flags derived from server messages and recording events.
type UIFlags struct {
	IsLoading   bool `json:"isLoading"`
	IsTyping    bool `json:"isTyping"`
	IsListening bool `json:"isListening"`
}

// FlagUpdate is a partial UIFlags update; nil fields are left untouched.
type FlagUpdate struct {
	IsLoading   *bool
	IsTyping    *bool
	IsListening *bool
}

// AudioSource selects where audio is captured from.
type AudioSource string

const (
	AudioSourceMicrophone  AudioSource = "microphone"
	AudioSourceScreenAudio AudioSource = "screen_audio"
)

// ParseAudioSource accepts the canonical names plus a few UI aliases.
func ParseAudioSource(value string) (AudioSource, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "microphone", "mic":
		return AudioSourceMicrophone, nil
	case "screen_audio", "screen", "screen-audio", "tab", "system":
		return AudioSourceScreenAudio, nil
	default:
		return "", fmt.Errorf("unknown audio source %q", value)
	}
}

// SetupPayload is the interview context supplied by the setup form.
type SetupPayload struct {
	JobDescription string `json:"jobDescription"`
	Background     string `json:"background"`
}

// MessageType identifies protocol frames exchanged with the interview server.
type MessageType string

const (
	MessageTypeSetup             MessageType = "setup"
	MessageTypeTranscription     MessageType = "transcription"
	MessageTypeAssistantResponse MessageType = "assistant_response"
)

// ServerMessage is an inbound text frame.
type ServerMessage struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// SetupMessage is the outbound setup handshake frame.
type SetupMessage struct {
	Type                  MessageType `json:"type"`
	JobDescription        string      `json:"jobDescription"`
	IntervieweeBackground string      `json:"intervieweeBackground"`
}

// ErrorCode identifies non-fatal backend errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup              ErrorCode = "startup"
	ErrorCodeSourceUnavailable    ErrorCode = "source_unavailable"
	ErrorCodeTransportUnavailable ErrorCode = "transport_unavailable"
	ErrorCodeConnectionLost       ErrorCode = "connection_lost"
	ErrorCodeReconnectExhausted   ErrorCode = "reconnect_exhausted"
	ErrorCodeMalformedMessage     ErrorCode = "malformed_message"
	ErrorCodeAudioStream          ErrorCode = "audio_stream"
	ErrorCodeAudioStop            ErrorCode = "audio_stop"
)

// Status summarizes the interview for the presentation layer.
type Status struct {
	Connection    ConnectionStatus `json:"connection"`
	Flags         UIFlags          `json:"flags"`
	Source        AudioSource      `json:"source"`
	Recording     bool             `json:"recording"`
	SetupComplete bool             `json:"setupComplete"`
	Turns         int              `json:"turns"`
}
