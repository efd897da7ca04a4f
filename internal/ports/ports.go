package ports

import (
	"context"
	"errors"
	"io"

	"interviewmic/internal/domain"
)

// CaptureConfig describes how an audio source should be captured.
type CaptureConfig struct {
	Source      domain.AudioSource
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session producing PCM bytes.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture acquires platform audio streams.
type AudioCapture interface {
	Start(ctx context.Context, cfg CaptureConfig) (AudioSession, error)
}

// MessageKind distinguishes text and binary frames.
type MessageKind int

const (
	TextMessage MessageKind = iota + 1
	BinaryMessage
)

// ErrClosedByPeer is wrapped by Conn.Read when the server ended the channel
// with an orderly close.
var ErrClosedByPeer = errors.New("channel closed by server")

// Conn is one live duplex channel to the interview server.
type Conn interface {
	// Writes may block on a slow server; Close unblocks them.
	WriteText(payload []byte) error
	WriteBinary(payload []byte) error
	// Read blocks until the next frame arrives or the channel fails.
	Read() (MessageKind, []byte, error)
	Close() error
}

// Transport opens channels to the interview server.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// EventSink emits backend state/events to the presentation layer.
type EventSink interface {
	ConnectionChanged(status domain.ConnectionStatus)
	TurnAppended(turn domain.ChatTurn)
	FlagsChanged(flags domain.UIFlags)
	SessionError(code domain.ErrorCode, detail string)
}
