package orchestration

import (
	"testing"
	"time"

	"github.com/koscakluka/memoir-voice/core/config"
)

func TestDurationOptionsIgnoreNonPositiveValues(t *testing.T) {
	s := NewSession(testConfig(), &scriptedTransport{},
		WithChunkDuration(0),
		WithSilenceWindow(-time.Second),
		WithTurnTimeout(0),
		WithCaptureWindow(0),
	)

	if s.chunkDuration != DefaultChunkDuration {
		t.Fatalf("expected default chunk duration, got %s", s.chunkDuration)
	}
	if s.silenceWindow != config.DefaultSilenceWindow {
		t.Fatalf("expected configured silence window, got %s", s.silenceWindow)
	}
	if s.turnTimeout != config.DefaultTurnTimeout {
		t.Fatalf("expected configured turn timeout, got %s", s.turnTimeout)
	}
	if s.captureWindow != config.DefaultCaptureWindow {
		t.Fatalf("expected configured capture window, got %s", s.captureWindow)
	}
}

func TestZeroConfigDurationsFallBackToDefaults(t *testing.T) {
	s := NewSession(config.SessionConfig{}, &scriptedTransport{})

	if s.silenceWindow != config.DefaultSilenceWindow || s.turnTimeout != config.DefaultTurnTimeout {
		t.Fatalf("expected defaults, got silence=%s timeout=%s", s.silenceWindow, s.turnTimeout)
	}
}

func TestWithTurnDetectorNilDisablesDetection(t *testing.T) {
	s := NewSession(testConfig(), &scriptedTransport{}, WithTurnDetector(nil))

	if s.detector != nil {
		t.Fatalf("expected detector to be disabled")
	}
}

func TestEmitterIsNoopWithoutCallbacks(t *testing.T) {
	s := NewSession(testConfig(), &scriptedTransport{})

	// Must not panic.
	s.emit(nil)
}
