package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportUnavailable is returned when a send is attempted while the channel is not open.
	ErrTransportUnavailable = errors.New("transport is not open")
	// ErrSourceUnavailable matches every SourceUnavailableError.
	ErrSourceUnavailable = errors.New("audio source unavailable")
)

// SourceUnavailableError reports that an audio source could not be acquired.
type SourceUnavailableError struct {
	Source AudioSource
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("could not access %s: %v", sourceLabel(e.Source), e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

func sourceLabel(source AudioSource) string {
	switch source {
	case AudioSourceMicrophone:
		return "the microphone"
	case AudioSourceScreenAudio:
		return "screen audio"
	default:
		return string(source)
	}
}
