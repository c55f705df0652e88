package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	// KindTurnStarted identifies the start of a turn.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnSpeechEnded identifies the end of user input and the commit
	// that requests a reply.
	KindTurnSpeechEnded Kind = "turn_state.speech_ended"
	// KindTurnCompleted identifies a delivered turn.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnFailed identifies a turn that failed without a result.
	KindTurnFailed Kind = "turn_state.failed"
	// KindTurnCancelled identifies turn cancellation.
	KindTurnCancelled Kind = "turn_state.cancelled"
)

// TurnStarted marks the start of a turn.
type TurnStarted struct {
	Base
	TurnID uuid.UUID
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(turnID uuid.UUID) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), TurnID: turnID}
}

// TurnSpeechEnded marks the end of user input. Explicit is false when local
// turn detection decided the user finished speaking.
type TurnSpeechEnded struct {
	Base
	TurnID   uuid.UUID
	Explicit bool
}

// NewTurnSpeechEnded creates a turn speech ended event.
func NewTurnSpeechEnded(turnID uuid.UUID, explicit bool) TurnSpeechEnded {
	return TurnSpeechEnded{Base: NewBase(KindTurnSpeechEnded), TurnID: turnID, Explicit: explicit}
}

// TurnCompleted marks delivery of a turn.
type TurnCompleted struct {
	Base
	TurnID   uuid.UUID
	Text     string
	TimedOut bool
	Duration time.Duration
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(turnID uuid.UUID, text string, timedOut bool, duration time.Duration) TurnCompleted {
	return TurnCompleted{
		Base:     NewBase(KindTurnCompleted),
		TurnID:   turnID,
		Text:     text,
		TimedOut: timedOut,
		Duration: duration,
	}
}

// TurnFailed marks a turn that ended without a result.
type TurnFailed struct {
	Base
	TurnID uuid.UUID
	Err    error
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(turnID uuid.UUID, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), TurnID: turnID, Err: err}
}

// TurnCancelled marks cancellation of the current turn.
type TurnCancelled struct {
	Base
	TurnID uuid.UUID
}

// NewTurnCancelled creates a turn cancelled event.
func NewTurnCancelled(turnID uuid.UUID) TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled), TurnID: turnID}
}
