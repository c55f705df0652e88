package realtime

import (
	"errors"
	"time"

	"github.com/koscakluka/memoir-voice/core/audio"
)

// Handshake is the session configuration sent once when connecting.
type Handshake struct {
	Model        string
	Voice        string
	Language     string
	Instructions string
	Audio        audio.EncodingInfo

	TurnDetection TurnDetection
}

type TurnDetection struct {
	// Remote enables the provider's own end of turn detection. When false
	// the caller commits every turn explicitly.
	Remote bool

	Threshold       float64
	SilenceDuration time.Duration
	PrefixPadding   time.Duration
}

const DefaultPrefixPadding = 300 * time.Millisecond

func (h Handshake) Validate() error {
	var errs []error
	if h.Audio.IsZero() {
		errs = append(errs, errors.New("audio encoding is required"))
	}
	if h.TurnDetection.Threshold < 0 || h.TurnDetection.Threshold > 1 {
		errs = append(errs, errors.New("turn detection threshold must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

func (t TurnDetection) PrefixPaddingOrDefault() time.Duration {
	if t.PrefixPadding <= 0 {
		return DefaultPrefixPadding
	}
	return t.PrefixPadding
}
