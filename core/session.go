// Package orchestration drives one realtime voice conversation: it connects
// to a provider, streams user audio or text turn by turn, assembles the
// reply fragments and plays the result.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/config"
	"github.com/koscakluka/memoir-voice/core/conversations"
	"github.com/koscakluka/memoir-voice/core/events"
	"github.com/koscakluka/memoir-voice/core/realtime"
	"github.com/koscakluka/memoir-voice/core/vad"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session owns a single conversation. Turns are driven from one goroutine;
// StopConversation, SignalEndOfUtterance and State may be called from any.
type Session struct {
	cfg       config.SessionConfig
	transport realtime.Transport

	source    audio.Source
	sink      audio.Sink
	history   conversations.History
	profile   conversations.ProfileSource
	detector  *vad.Detector
	callbacks eventCallbacks
	emit      eventEmitter

	chunkDuration time.Duration
	silenceWindow time.Duration
	turnTimeout   time.Duration
	captureWindow time.Duration

	mu        sync.Mutex
	state     State
	handshake realtime.Handshake
	link      *link
	turn      *turnInFlight
	lifetime  context.Context
	stop      context.CancelFunc

	explicitEnd atomic.Bool
}

func NewSession(cfg config.SessionConfig, transport realtime.Transport, opts ...SessionOption) *Session {
	s := &Session{
		cfg:           cfg,
		transport:     transport,
		detector:      vad.New(cfg.VADThreshold, cfg.SilenceDuration),
		chunkDuration: DefaultChunkDuration,
		silenceWindow: orDefault(cfg.SilenceWindow, config.DefaultSilenceWindow),
		turnTimeout:   orDefault(cfg.TurnTimeout, config.DefaultTurnTimeout),
		captureWindow: orDefault(cfg.CaptureWindow, config.DefaultCaptureWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.emit = newCallbackEventEmitter(s.callbacks)
	s.lifetime, s.stop = context.WithCancel(context.Background())
	return s
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartConversation validates the configuration and connects. On failure the
// session is left in Error.
func (s *Session) StartConversation(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "Session.StartConversation",
		trace.WithAttributes(attribute.String("provider", s.transport.Provider().String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return &StateError{Op: "start conversation", State: state}
	}
	s.state = StateConnecting
	lifetime := s.lifetime
	s.mu.Unlock()
	s.emitState(StateIdle, StateConnecting, nil)

	if err := s.checkConfig(); err != nil {
		return s.fatal(nil, err)
	}

	handshake := s.newHandshake()
	connectCtx, release := cancelOnDone(ctx, lifetime)
	defer release()

	l, err := openLink(connectCtx, lifetime, s.transport, handshake)
	if err != nil {
		if lifetime.Err() != nil {
			return ErrConversationStopped
		}
		return s.fatal(nil, fmt.Errorf("failed to connect: %w", err))
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		l.close()
		return ErrConversationStopped
	}
	s.handshake = handshake
	s.link = l
	s.state = StateReady
	s.mu.Unlock()
	s.emitState(StateConnecting, StateReady, nil)

	logger.Info("conversation started", "provider", s.transport.Provider())
	return nil
}

func (s *Session) checkConfig() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.source != nil {
		if err := s.cfg.CheckAudio(s.source.EncodingInfo()); err != nil {
			return err
		}
	}
	if s.sink != nil {
		if err := s.cfg.CheckAudio(s.sink.EncodingInfo()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) newHandshake() realtime.Handshake {
	var profile conversations.Profile
	if s.profile != nil {
		profile = s.profile.ProfileSnapshot()
	}

	return realtime.Handshake{
		Model:        s.cfg.Model,
		Voice:        s.cfg.Voice,
		Language:     s.cfg.Language,
		Instructions: conversations.Instructions(s.cfg.Instructions, profile),
		Audio:        s.cfg.Encoding(),
		TurnDetection: realtime.TurnDetection{
			Remote:          s.cfg.RemoteTurnDetection,
			Threshold:       s.cfg.VADThreshold,
			SilenceDuration: s.cfg.SilenceDuration,
		},
	}
}

// StopConversation closes the connection and discards the turn in flight
// without delivering it. It is safe to call from any goroutine and more than
// once.
func (s *Session) StopConversation() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	from := s.state
	s.state = StateClosed
	l, turn := s.link, s.turn
	s.link, s.turn = nil, nil
	stop := s.stop
	s.mu.Unlock()

	stop()

	var err error
	if l != nil {
		if closeErr := l.close(); closeErr != nil {
			err = fmt.Errorf("failed to close connection: %w", closeErr)
		}
	}
	if turn != nil {
		turn.span.AddEvent("cancelled")
		turn.span.End()
		s.emit(events.NewTurnCancelled(turn.id))
	}
	s.emitState(from, StateClosed, nil)

	logger.Info("conversation stopped", "from", from)
	return err
}

// Reset returns a closed session to Idle so it can be started again.
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.state != StateClosed {
		state := s.state
		s.mu.Unlock()
		return &StateError{Op: "reset", State: state}
	}
	s.state = StateIdle
	s.handshake = realtime.Handshake{}
	s.lifetime, s.stop = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.emitState(StateClosed, StateIdle, nil)
	return nil
}

// Speak synthesizes text outside of a turn. Providers that cannot synthesize
// return a *realtime.CapabilityError.
func (s *Session) Speak(ctx context.Context, text string) (_ []byte, err error) {
	ctx, span := tracer.Start(ctx, "Session.Speak")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	s.mu.Lock()
	if s.state != StateReady || s.link == nil {
		state := s.state
		s.mu.Unlock()
		return nil, &StateError{Op: "speak", State: state}
	}
	l := s.link
	s.mu.Unlock()

	speech, err := realtime.Speak(ctx, l.provider, l.conn, text)
	if err != nil {
		return nil, fmt.Errorf("failed to speak: %w", err)
	}
	return speech, nil
}

// fatal moves the session to Error, releasing the connection and failing the
// turn in flight. It returns err.
func (s *Session) fatal(turn *turnInFlight, err error) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrConversationStopped
	}
	from := s.state
	s.state = StateFailed
	l := s.link
	s.link = nil
	if s.turn == turn {
		s.turn = nil
	}
	s.mu.Unlock()

	if l != nil {
		l.close()
	}
	if turn != nil {
		turn.acc.discard()
		turn.fail(err)
		s.emit(events.NewTurnFailed(turn.id, err))
	}
	s.emitState(from, StateFailed, err)

	logger.Error("conversation failed", "from", from, "error", err)
	return err
}

// recoverTurn applies the reconnect policy to a failure seen during a turn. A
// nil result means the turn can carry on over a new connection.
func (s *Session) recoverTurn(ctx context.Context, turn *turnInFlight, err error) error {
	if s.stopped() {
		return ErrConversationStopped
	}

	var capabilityErr *realtime.CapabilityError
	switch {
	case errors.As(err, &capabilityErr):
		return s.endTurn(turn, err)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return s.endTurn(turn, err)
	case realtime.IsRetryable(err) && !turn.reconnected:
		return s.reconnect(ctx, turn, err)
	}
	return s.fatal(turn, err)
}

// reconnect replaces the connection once per turn and replays the turn's
// input so the provider sees it whole.
func (s *Session) reconnect(ctx context.Context, turn *turnInFlight, cause error) (err error) {
	turn.reconnected = true
	provider := s.transport.Provider()

	ctx, span := tracer.Start(trace.ContextWithSpan(ctx, turn.span), "reconnect",
		trace.WithAttributes(attribute.String("provider", provider.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	reconnects.Add(ctx, 1)
	logger.Warn("connection lost, reconnecting", "provider", provider, "turn", turn.id, "error", cause)
	s.emit(events.NewConnectionReconnecting(provider.String(), cause))

	s.mu.Lock()
	old, lifetime, handshake := s.link, s.lifetime, s.handshake
	s.link = nil
	s.mu.Unlock()
	if old != nil {
		old.close()
	}

	connectCtx, release := cancelOnDone(ctx, lifetime)
	defer release()

	l, err := openLink(connectCtx, lifetime, s.transport, handshake)
	if err != nil {
		if lifetime.Err() != nil {
			return ErrConversationStopped
		}
		return s.fatal(turn, fmt.Errorf("failed to reconnect: %w", err))
	}

	s.mu.Lock()
	if s.state == StateClosed || s.turn != turn {
		s.mu.Unlock()
		l.close()
		return ErrConversationStopped
	}
	s.link = l
	s.mu.Unlock()

	// The new connection answers the replayed input from scratch.
	turn.acc.open(turn.acc.turn)
	if turn.committed {
		turn.acc.commit()
	}
	if err := s.replay(connectCtx, turn, l); err != nil {
		return s.fatal(turn, fmt.Errorf("failed to replay turn after reconnect: %w", err))
	}

	logger.Info("reconnected", "provider", provider, "turn", turn.id)
	s.emit(events.NewConnectionReconnected(provider.String()))
	return nil
}

func (s *Session) replay(ctx context.Context, turn *turnInFlight, l *link) error {
	for _, chunk := range audio.Chunks(turn.inputAudio.Bytes(), s.chunkSize()) {
		if err := l.conn.Send(ctx, realtime.NewAudioChunk(chunk)); err != nil {
			return err
		}
	}
	if turn.inputText != "" {
		if err := l.conn.Send(ctx, realtime.NewTranscriptDelta(turn.inputText)); err != nil {
			return err
		}
	}
	if turn.committed {
		if err := l.conn.Send(ctx, realtime.NewCommit()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

func (s *Session) currentLink() *link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

func (s *Session) chunkSize() int {
	return s.cfg.Encoding().BytesFor(s.chunkDuration)
}

func (s *Session) emitState(from, to State, err error) {
	logger.Debug("session state changed", "from", from, "to", to)
	s.emit(events.NewSessionStateChanged(from.String(), to.String(), err))
}
