package chat

import (
	"errors"
	"fmt"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")

	// Sentinels matched by the typed errors below through errors.Is.
	ErrInvalidTurn      = errors.New("invalid turn")
	ErrCompletionFailed = errors.New("completion failed")
	ErrInvalidState     = errors.New("invalid state")
)

// InvalidTurnError reports a turn that cannot be appended to a log.
type InvalidTurnError struct {
	Reason string
}

func (e *InvalidTurnError) Error() string {
	return "invalid turn: " + e.Reason
}

func (e *InvalidTurnError) Is(target error) bool {
	return target == ErrInvalidTurn
}

// CompletionServiceError wraps any failure returned by the completion service.
type CompletionServiceError struct {
	Reason string
	Err    error
}

func (e *CompletionServiceError) Error() string {
	return "completion failed, reason: " + e.Reason
}

func (e *CompletionServiceError) Unwrap() error {
	return e.Err
}

func (e *CompletionServiceError) Is(target error) bool {
	return target == ErrCompletionFailed
}

// InvalidStateError reports an operation issued outside the Idle state.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
