package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a session-level failure.
type ErrorKind string

const (
	KindMediaLoad    ErrorKind = "media_load"
	KindInvalidInput ErrorKind = "invalid_input"
	KindInvalidState ErrorKind = "invalid_state"
)

// Sentinels matched by SessionError.Is on its Kind.
var (
	ErrMediaLoad    = errors.New("media failed to load")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("operation not allowed in current state")
)

// SessionError is reported upward as session status instead of being raised
// inside playback callbacks.
type SessionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match a SessionError against the kind sentinels.
func (e *SessionError) Is(target error) bool {
	switch target {
	case ErrMediaLoad:
		return e.Kind == KindMediaLoad
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrInvalidState:
		return e.Kind == KindInvalidState
	}
	return false
}

func invalidInput(format string, args ...any) error {
	return &SessionError{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func invalidState(format string, args ...any) error {
	return &SessionError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}
