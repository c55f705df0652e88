package orchestration

import (
	"time"

	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/conversations"
	"github.com/koscakluka/memoir-voice/core/events"
	"github.com/koscakluka/memoir-voice/core/vad"
)

const (
	DefaultChunkDuration = 100 * time.Millisecond

	inboundBuffer = 64
)

type SessionOption func(*Session)

func WithAudioSource(source audio.Source) SessionOption {
	return func(s *Session) { s.source = source }
}

func WithAudioSink(sink audio.Sink) SessionOption {
	return func(s *Session) { s.sink = sink }
}

// WithAudioDevice uses device for both capture and playback.
func WithAudioDevice(device audio.Device) SessionOption {
	return func(s *Session) {
		s.source = device
		s.sink = device
	}
}

// WithHistory sets where delivered turns are appended.
func WithHistory(history conversations.History) SessionOption {
	return func(s *Session) { s.history = history }
}

// WithProfile sets the profile used to personalize the instructions sent
// when connecting.
func WithProfile(profile conversations.ProfileSource) SessionOption {
	return func(s *Session) { s.profile = profile }
}

// WithEventHandler receives every event synchronously, in order, on the
// goroutine that caused it. The handler must not block.
func WithEventHandler(handler func(events.Event)) SessionOption {
	return func(s *Session) { s.callbacks.handler = handler }
}

// WithOnResponse receives reply text segments as they arrive.
func WithOnResponse(onResponse func(segment string)) SessionOption {
	return func(s *Session) { s.callbacks.onResponse = onResponse }
}

func WithOnCancellation(onCancellation func()) SessionOption {
	return func(s *Session) { s.callbacks.onCancellation = onCancellation }
}

// WithTurnDetector replaces the local end of utterance detector. A nil
// detector disables it, turns then end only when signalled.
func WithTurnDetector(detector *vad.Detector) SessionOption {
	return func(s *Session) { s.detector = detector }
}

// WithChunkDuration sets how much audio is sent per chunk when a recording
// is streamed or replayed.
func WithChunkDuration(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.chunkDuration = d
		}
	}
}

// WithSilenceWindow sets how long to wait for the next reply fragment before
// finalizing a turn with what arrived.
func WithSilenceWindow(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.silenceWindow = d
		}
	}
}

// WithTurnTimeout sets the hard limit on a turn, measured from its start.
func WithTurnTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.turnTimeout = d
		}
	}
}

// WithCaptureWindow sets how long SpeakTurn records for.
func WithCaptureWindow(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.captureWindow = d
		}
	}
}
