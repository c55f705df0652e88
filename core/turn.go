package orchestration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/conversations"
	"github.com/koscakluka/memoir-voice/core/events"
	"github.com/koscakluka/memoir-voice/core/realtime"
	"github.com/koscakluka/memoir-voice/core/vad"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type turnInFlight struct {
	id        uuid.UUID
	startedAt time.Time
	deadline  time.Time

	inputAudio bytes.Buffer
	inputText  string

	acc         accumulator
	committed   bool
	reconnected bool
	awaiting    bool

	ctx  context.Context
	span trace.Span
}

func (t *turnInFlight) fail(err error) {
	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, err.Error())
	t.span.End()
}

// BeginTurn starts streaming a spoken turn. It fails with a *StateError,
// without touching the connection, unless the session is Ready.
func (s *Session) BeginTurn(ctx context.Context) (uuid.UUID, error) {
	turn, err := s.beginTurn(ctx, conversations.InputKindAudio)
	if err != nil {
		return uuid.Nil, err
	}
	return turn.id, nil
}

func (s *Session) beginTurn(ctx context.Context, input conversations.InputKind) (*turnInFlight, error) {
	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return nil, &StateError{Op: "begin turn", State: state}
	}

	now := time.Now()
	turn := &turnInFlight{
		id:        uuid.New(),
		startedAt: now,
		deadline:  now.Add(s.turnTimeout),
	}
	turn.acc.open(conversations.Turn{ID: turn.id, Input: input, StartedAt: now})
	turn.ctx, turn.span = tracer.Start(ctx, "Session.turn", trace.WithAttributes(
		attribute.String("turn.id", turn.id.String()),
		attribute.String("turn.input", string(input)),
	))

	s.turn = turn
	s.state = StateStreaming
	s.explicitEnd.Store(false)
	l := s.link
	s.mu.Unlock()

	if s.detector != nil {
		s.detector.Reset()
	}
	s.emitState(StateReady, StateStreaming, nil)
	s.emit(events.NewTurnStarted(turn.id))

	// The connection may have gone away while nobody was listening. Errors
	// queued by now belong to an earlier turn.
	failure, ended, err := s.drainStray(l)
	if failure != nil {
		logger.Info("discarding error of an earlier turn", "turn", turn.id, "error", failure)
	}
	if ended {
		if err == nil {
			err = realtime.NewRetryableError(s.transport.Provider(), realtime.OperationReceive, realtime.ErrConnectionClosed)
		}
		if err := s.recoverTurn(ctx, turn, err); err != nil {
			return nil, err
		}
	}
	return turn, nil
}

// PushAudio streams a chunk of the user's utterance. An earlier
// SignalEndOfUtterance, then the local turn detector, may end the input and
// request the reply, moving the session to Finalizing.
func (s *Session) PushAudio(ctx context.Context, chunk []byte) error {
	s.mu.Lock()
	if s.state != StateStreaming {
		state := s.state
		s.mu.Unlock()
		return &StateError{Op: "push audio", State: state}
	}
	turn := s.turn
	s.mu.Unlock()

	if time.Now().After(turn.deadline) {
		return s.failTurn(turn, ErrTurnTimeout, nil)
	}

	turn.inputAudio.Write(chunk)
	if err := s.send(ctx, turn, realtime.NewAudioChunk(chunk)); err != nil {
		return err
	}

	if s.explicitEnd.Load() {
		return s.commit(ctx, turn, true)
	}
	if s.detector != nil && s.detector.Process(chunk, s.cfg.Encoding()) == vad.EndOfTurn {
		return s.commit(ctx, turn, false)
	}
	return nil
}

// SignalEndOfUtterance marks the user as done speaking. It is honored at the
// next PushAudio or EndTurn and wins over the turn detector.
func (s *Session) SignalEndOfUtterance() {
	s.explicitEnd.Store(true)
}

// EndTurn ends the user's input if that has not happened yet, then waits for
// the reply. The delivered turn has been played through the sink and
// appended to the history. A *TurnError leaves the session Ready.
func (s *Session) EndTurn(ctx context.Context) (conversations.Turn, error) {
	s.mu.Lock()
	state, turn := s.state, s.turn
	if !state.inTurn() || turn == nil || turn.awaiting {
		s.mu.Unlock()
		return conversations.Turn{}, &StateError{Op: "end turn", State: state}
	}
	turn.awaiting = true
	s.mu.Unlock()

	if state == StateStreaming {
		if err := s.commit(ctx, turn, true); err != nil {
			return conversations.Turn{}, err
		}
	}
	return s.await(ctx, turn)
}

// SendText runs a typed turn.
func (s *Session) SendText(ctx context.Context, text string) (conversations.Turn, error) {
	turn, err := s.beginTurn(ctx, conversations.InputKindText)
	if err != nil {
		return conversations.Turn{}, err
	}

	turn.inputText = text
	turn.acc.turn.InputText = text
	if err := s.send(ctx, turn, realtime.NewTranscriptDelta(text)); err != nil {
		return conversations.Turn{}, err
	}
	return s.EndTurn(ctx)
}

// SpeakTurn plays prompt when the provider can synthesize it, records one
// capture window from the source and runs it as a spoken turn.
func (s *Session) SpeakTurn(ctx context.Context, prompt string) (conversations.Turn, error) {
	if s.source == nil {
		return conversations.Turn{}, ErrNoAudioSource
	}

	if prompt != "" {
		if err := s.playPrompt(ctx, prompt); err != nil {
			return conversations.Turn{}, err
		}
	}

	turn, err := s.beginTurn(ctx, conversations.InputKindAudio)
	if err != nil {
		return conversations.Turn{}, err
	}

	recorded, err := s.source.Record(ctx, s.captureWindow)
	if err != nil {
		if s.stopped() {
			return conversations.Turn{}, ErrConversationStopped
		}
		return conversations.Turn{}, s.endTurn(turn, fmt.Errorf("failed to record: %w", err))
	}

	for _, chunk := range audio.Chunks(recorded, s.chunkSize()) {
		if s.State() != StateStreaming {
			break
		}
		if err := s.PushAudio(ctx, chunk); err != nil {
			return conversations.Turn{}, err
		}
	}
	return s.EndTurn(ctx)
}

func (s *Session) playPrompt(ctx context.Context, prompt string) error {
	speech, err := s.Speak(ctx, prompt)
	var capabilityErr *realtime.CapabilityError
	switch {
	case errors.As(err, &capabilityErr):
		logger.Info("provider cannot synthesize, prompt not played", "provider", capabilityErr.Provider)
		return nil
	case err != nil:
		return err
	}

	if s.sink != nil && len(speech) > 0 {
		if err := s.sink.Play(ctx, speech); err != nil {
			logger.Warn("failed to play prompt", "error", err)
		}
	}
	return nil
}

// commit ends the user's input and requests the reply.
func (s *Session) commit(ctx context.Context, turn *turnInFlight, explicit bool) error {
	s.mu.Lock()
	if s.state != StateStreaming || s.turn != turn {
		state := s.state
		s.mu.Unlock()
		return &StateError{Op: "commit", State: state}
	}
	s.state = StateFinalizing
	l := s.link
	s.mu.Unlock()

	s.emitState(StateStreaming, StateFinalizing, nil)
	s.emit(events.NewTurnSpeechEnded(turn.id, explicit))
	turn.span.AddEvent("committed", trace.WithAttributes(attribute.Bool("explicit", explicit)))

	// Replies queued so far belong to an earlier turn, an error fails this one.
	failure, ended, err := s.drainStray(l)
	if failure != nil {
		return s.failTurn(turn, ErrRemoteTurnFailure, failure)
	}
	turn.committed = true
	turn.acc.commit()
	if ended {
		if err == nil {
			err = realtime.NewRetryableError(s.transport.Provider(), realtime.OperationReceive, realtime.ErrConnectionClosed)
		}
		return s.recoverTurn(ctx, turn, err)
	}

	return s.send(ctx, turn, realtime.NewCommit())
}

func (s *Session) send(ctx context.Context, turn *turnInFlight, fragment realtime.Fragment) error {
	l := s.currentLink()
	if l == nil {
		return ErrConversationStopped
	}

	if ended, err := l.ended(); ended {
		if err == nil {
			err = realtime.NewRetryableError(l.provider, realtime.OperationSend, realtime.ErrConnectionClosed)
		}
		return s.recoverTurn(ctx, turn, err)
	}

	if err := l.conn.Send(ctx, fragment); err != nil {
		return s.recoverTurn(ctx, turn, err)
	}
	return nil
}

// drainStray discards queued fragments and reports whether the link's worker
// has stopped. The first queued error fragment is returned as failure.
func (s *Session) drainStray(l *link) (failure error, ended bool, err error) {
	if l == nil {
		return nil, false, nil
	}
	for {
		select {
		case fragment := <-l.inbound:
			if fragment.Kind == realtime.FragmentError && failure == nil {
				failure = fragment.Err()
				continue
			}
			logger.Info("discarding stray fragment", "kind", fragment.Kind)
		default:
			ended, err = l.ended()
			if ended && len(l.inbound) > 0 {
				continue
			}
			return failure, ended, err
		}
	}
}

// await collects the reply until it completes, fails or times out.
func (s *Session) await(ctx context.Context, turn *turnInFlight) (conversations.Turn, error) {
	s.mu.Lock()
	lifetime := s.lifetime
	s.mu.Unlock()

	silence := time.NewTimer(s.silenceWindow)
	defer silence.Stop()
	hard := time.NewTimer(time.Until(turn.deadline))
	defer hard.Stop()

	// Once the peer closed cleanly nothing more can arrive, the silence
	// window then finalizes what was received.
	peerClosed := false
	for {
		l := s.currentLink()
		if l == nil {
			return conversations.Turn{}, ErrConversationStopped
		}
		done := l.done
		if peerClosed {
			done = nil
		}

		select {
		case fragment := <-l.inbound:
			if finished, result, err := s.accept(ctx, turn, fragment); finished {
				return result, err
			}
			silence.Reset(s.silenceWindow)

		case <-done:
			for len(l.inbound) > 0 {
				if finished, result, err := s.accept(ctx, turn, <-l.inbound); finished {
					return result, err
				}
			}
			if l.err == nil {
				logger.Warn("connection closed before the turn completed", "turn", turn.id)
				peerClosed = true
				continue
			}
			if err := s.recoverTurn(ctx, turn, l.err); err != nil {
				return conversations.Turn{}, err
			}
			silence.Reset(s.silenceWindow)

		case <-silence.C:
			reason := conversations.EndReasonSilenceWindow
			if peerClosed {
				reason = conversations.EndReasonConnectionClosed
			}
			logger.Warn("no reply within the silence window, finalizing", "turn", turn.id, "window", s.silenceWindow, "reason", reason)
			return s.deliver(ctx, turn, turn.acc.timeout(reason))

		case <-hard.C:
			return conversations.Turn{}, s.failTurn(turn, ErrTurnTimeout, nil)

		case <-lifetime.Done():
			return conversations.Turn{}, ErrConversationStopped

		case <-ctx.Done():
			return conversations.Turn{}, s.endTurn(turn, ctx.Err())
		}
	}
}

func (s *Session) accept(ctx context.Context, turn *turnInFlight, fragment realtime.Fragment) (bool, conversations.Turn, error) {
	switch turn.acc.add(fragment) {
	case outcomeAccepted:
		switch fragment.Kind {
		case realtime.FragmentTranscriptDelta:
			s.emit(events.NewAssistantResponseSegment(turn.id, fragment.Text))
		case realtime.FragmentAudioChunk:
			s.emit(events.NewAssistantSpeechFrame(turn.id, fragment.Audio))
		}
		return false, conversations.Turn{}, nil

	case outcomeComplete:
		result, err := s.deliver(ctx, turn, turn.acc.result())
		return true, result, err

	case outcomeFailed:
		return true, conversations.Turn{}, s.failTurn(turn, ErrRemoteTurnFailure, turn.acc.failure())
	}

	logger.Info("discarding stray fragment", "kind", fragment.Kind, "turn", turn.id)
	return false, conversations.Turn{}, nil
}

// deliver plays the reply, appends the turn to the history and returns the
// session to Ready.
func (s *Session) deliver(ctx context.Context, turn *turnInFlight, result conversations.Turn) (conversations.Turn, error) {
	result.InputAudio = bytes.Clone(turn.inputAudio.Bytes())

	if s.sink != nil && len(result.Audio) > 0 {
		s.mu.Lock()
		lifetime := s.lifetime
		s.mu.Unlock()

		playCtx, release := cancelOnDone(ctx, lifetime)
		if err := s.sink.Play(playCtx, result.Audio); err != nil && lifetime.Err() == nil {
			logger.Warn("failed to play reply", "turn", turn.id, "error", err)
		}
		release()
	}

	if s.stopped() {
		return conversations.Turn{}, ErrConversationStopped
	}

	var historyErr error
	if s.history != nil {
		stored, err := conversations.CloneTurn(result)
		if err == nil {
			err = s.history.AppendCompletedTurn(stored)
		}
		if err != nil {
			historyErr = fmt.Errorf("failed to append turn to history: %w", err)
			logger.Error("failed to append turn to history", "turn", turn.id, "error", err)
		}
	}

	s.mu.Lock()
	if s.turn != turn || s.state == StateClosed {
		s.mu.Unlock()
		return conversations.Turn{}, ErrConversationStopped
	}
	s.turn = nil
	from := s.state
	s.state = StateReady
	s.mu.Unlock()

	attrs := metric.WithAttributes(
		attribute.String("provider", s.transport.Provider().String()),
		attribute.Bool("timed_out", result.TimedOut),
	)
	turnsCompleted.Add(turn.ctx, 1, attrs)
	if result.TimedOut {
		turnsTimedOut.Add(turn.ctx, 1, attrs)
	}
	turnDuration.Record(turn.ctx, result.Duration().Seconds(), attrs)
	turn.span.SetAttributes(attribute.Bool("turn.timed_out", result.TimedOut), attribute.Int("turn.audio_bytes", len(result.Audio)))
	turn.span.End()

	s.emitState(from, StateReady, nil)
	s.emit(events.NewTurnCompleted(turn.id, result.Text, result.TimedOut, result.Duration()))
	return result, historyErr
}

// failTurn discards the turn and reports it as a *TurnError.
func (s *Session) failTurn(turn *turnInFlight, reason, cause error) error {
	return s.endTurn(turn, &TurnError{TurnID: turn.id, Reason: reason, Err: cause})
}

// endTurn discards the turn, returns the session to Ready and returns err.
func (s *Session) endTurn(turn *turnInFlight, err error) error {
	turn.acc.discard()

	s.mu.Lock()
	if s.turn != turn || s.state == StateClosed {
		s.mu.Unlock()
		return ErrConversationStopped
	}
	s.turn = nil
	from := s.state
	s.state = StateReady
	s.mu.Unlock()

	turnsFailed.Add(turn.ctx, 1, metric.WithAttributes(attribute.String("provider", s.transport.Provider().String())))
	turn.fail(err)
	logger.Warn("turn failed", "turn", turn.id, "error", err)

	s.emitState(from, StateReady, nil)
	s.emit(events.NewTurnFailed(turn.id, err))
	return err
}
