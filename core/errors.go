package orchestration

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrTurnTimeout is the reason of a turn that outlived the per-turn
	// hard timeout.
	ErrTurnTimeout = errors.New("turn timed out")
	// ErrRemoteTurnFailure is the reason of a turn the provider aborted with
	// an error fragment.
	ErrRemoteTurnFailure = errors.New("provider failed the turn")
	// ErrConversationStopped is returned by operations interrupted by
	// StopConversation.
	ErrConversationStopped = errors.New("conversation stopped")
	ErrNoAudioSource       = errors.New("no audio source configured")
)

// StateError is returned when an operation is not valid in the current
// state. Nothing is sent or received when it is returned.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

// TurnError reports a failed turn. The connection survives it and the
// session is back in Ready.
type TurnError struct {
	TurnID uuid.UUID
	Reason error
	Err    error
}

func (e *TurnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("turn %s failed: %v: %v", e.TurnID, e.Reason, e.Err)
	}
	return fmt.Sprintf("turn %s failed: %v", e.TurnID, e.Reason)
}

func (e *TurnError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}
