package audio

import (
	"context"
	"time"
)

// DefaultCaptureWindow is used by Record when no duration is given.
const DefaultCaptureWindow = 5 * time.Second

// Source acquires blocks of captured audio.
type Source interface {
	EncodingInfo() EncodingInfo
	// Record blocks until duration elapses (DefaultCaptureWindow when
	// duration is zero) or ctx is done, and returns what was captured.
	Record(ctx context.Context, duration time.Duration) ([]byte, error)
}

// Sink renders blocks of synthesized audio.
type Sink interface {
	EncodingInfo() EncodingInfo
	// Play blocks until the audio has been rendered or ctx is done.
	Play(ctx context.Context, audio []byte) error
}

// Device is a Source and Sink sharing one piece of hardware.
type Device interface {
	Source
	Sink
	Close() error
}

// CaptureWindow resolves the duration Record should capture for.
func CaptureWindow(duration time.Duration) time.Duration {
	if duration <= 0 {
		return DefaultCaptureWindow
	}
	return duration
}
