// Package conversations holds what a voice session exchanges with the text
// conversation layer around it: the delivered turns, the interviewee profile
// used to personalize the session, and the history completed turns are
// appended to.
package conversations

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type InputKind string

const (
	InputKindAudio InputKind = "audio"
	InputKindText  InputKind = "text"
)

// EndReason records how a turn was finalized.
type EndReason string

const (
	EndReasonTurnComplete EndReason = "turn_complete"
	// EndReasonSilenceWindow means no completion arrived in time and the
	// turn was finalized with whatever was accumulated.
	EndReasonSilenceWindow EndReason = "silence_window"
	// EndReasonConnectionClosed means the peer closed the connection before
	// completing the turn.
	EndReasonConnectionClosed EndReason = "connection_closed"
)

// Turn is one user utterance together with the assistant's reply.
type Turn struct {
	ID uuid.UUID `json:"id"`

	Input      InputKind `json:"input"`
	InputAudio []byte    `json:"-"`
	InputText  string    `json:"input_text,omitempty"`

	// Text and Audio are the reply, concatenated in arrival order.
	Text  string `json:"text"`
	Audio []byte `json:"-"`

	Complete  bool      `json:"complete"`
	TimedOut  bool      `json:"timed_out"`
	EndReason EndReason `json:"end_reason,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

func (t Turn) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

var copyTimes = copier.TypeConverter{
	SrcType: time.Time{},
	DstType: time.Time{},
	Fn: func(src any) (any, error) {
		return src, nil
	},
}

// CloneTurn returns a copy of t that shares no buffers with it.
func CloneTurn(t Turn) (Turn, error) {
	var clone Turn
	err := copier.CopyWithOption(&clone, &t, copier.Option{
		DeepCopy:   true,
		Converters: []copier.TypeConverter{copyTimes},
	})
	if err != nil {
		return Turn{}, fmt.Errorf("failed to copy turn: %w", err)
	}
	return clone, nil
}
