package orchestration

import (
	"bytes"
	"strings"
	"time"

	"github.com/koscakluka/memoir-voice/core/conversations"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

type outcome int

const (
	// outcomeStray is a fragment that arrived before commit or after the
	// turn finished. It is dropped.
	outcomeStray outcome = iota
	outcomeAccepted
	outcomeComplete
	outcomeFailed
)

// accumulator folds the fragments of one turn into its reply. It is only
// touched by the flow driving the turn.
type accumulator struct {
	turn conversations.Turn

	text  strings.Builder
	audio bytes.Buffer

	committed bool
	done      bool
	err       error
}

func (a *accumulator) open(turn conversations.Turn) {
	a.turn = turn
	a.text.Reset()
	a.audio.Reset()
	a.committed, a.done, a.err = false, false, nil
}

// commit starts accepting reply fragments.
func (a *accumulator) commit() {
	if !a.done {
		a.committed = true
	}
}

func (a *accumulator) add(fragment realtime.Fragment) outcome {
	if !a.committed || a.done {
		return outcomeStray
	}

	switch fragment.Kind {
	case realtime.FragmentTranscriptDelta:
		a.text.WriteString(fragment.Text)
		return outcomeAccepted

	case realtime.FragmentAudioChunk:
		a.audio.Write(fragment.Audio)
		return outcomeAccepted

	case realtime.FragmentTurnComplete:
		a.done = true
		a.turn.Complete = true
		a.turn.EndReason = conversations.EndReasonTurnComplete
		return outcomeComplete

	case realtime.FragmentError:
		a.err = fragment.Err()
		a.discard()
		return outcomeFailed
	}
	return outcomeStray
}

// timeout finishes the turn with whatever arrived so far.
func (a *accumulator) timeout(reason conversations.EndReason) conversations.Turn {
	a.done = true
	a.turn.TimedOut = true
	a.turn.EndReason = reason
	return a.result()
}

func (a *accumulator) result() conversations.Turn {
	turn := a.turn
	turn.Text = a.text.String()
	turn.Audio = bytes.Clone(a.audio.Bytes())
	turn.CompletedAt = time.Now()
	return turn
}

func (a *accumulator) failure() error {
	return a.err
}

// discard drops partial results; nothing is accepted afterwards.
func (a *accumulator) discard() {
	a.done = true
	a.text.Reset()
	a.audio.Reset()
}
