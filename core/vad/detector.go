// Package vad detects the end of a spoken utterance from the loudness of the
// captured audio.
package vad

import (
	"sync"
	"time"

	"github.com/koscakluka/memoir-voice/core/audio"
)

const (
	DefaultThreshold       = 0.5
	DefaultSilenceDuration = 500 * time.Millisecond
	DefaultMinSpeech       = 100 * time.Millisecond
)

type Decision int

const (
	// Silence means no speech has been heard yet in this turn.
	Silence Decision = iota
	Speech
	// TrailingSilence means speech was heard and is followed by quiet audio
	// shorter than the silence duration.
	TrailingSilence
	EndOfTurn
)

func (d Decision) String() string {
	switch d {
	case Silence:
		return "silence"
	case Speech:
		return "speech"
	case TrailingSilence:
		return "trailing_silence"
	case EndOfTurn:
		return "end_of_turn"
	}
	return "unknown"
}

// Detector is a heuristic end-of-utterance detector. The zero value uses the
// defaults above. A Detector reports EndOfTurn at most once until Reset.
type Detector struct {
	Threshold       float64
	SilenceDuration time.Duration
	MinSpeech       time.Duration

	mu      sync.Mutex
	speech  time.Duration
	silence time.Duration
	fired   bool
}

func New(threshold float64, silenceDuration time.Duration) *Detector {
	return &Detector{Threshold: threshold, SilenceDuration: silenceDuration}
}

// Process accounts chunk, which must be encoded as enc, and reports what the
// turn looks like so far.
func (d *Detector) Process(chunk []byte, enc audio.EncodingInfo) Decision {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fired {
		return EndOfTurn
	}

	level := audio.Level(chunk, enc)
	duration := enc.Duration(len(chunk))

	if level >= d.threshold() {
		d.speech += duration
		d.silence = 0
		return Speech
	}

	if d.speech < d.minSpeech() {
		d.speech = 0
		return Silence
	}

	d.silence += duration
	if d.silence >= d.silenceDuration() {
		d.fired = true
		return EndOfTurn
	}
	return TrailingSilence
}

func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speech, d.silence, d.fired = 0, 0, false
}

func (d *Detector) threshold() float64 {
	if d.Threshold <= 0 {
		return DefaultThreshold
	}
	return d.Threshold
}

func (d *Detector) silenceDuration() time.Duration {
	if d.SilenceDuration <= 0 {
		return DefaultSilenceDuration
	}
	return d.SilenceDuration
}

func (d *Detector) minSpeech() time.Duration {
	if d.MinSpeech < 0 {
		return 0
	}
	if d.MinSpeech == 0 {
		return DefaultMinSpeech
	}
	return d.MinSpeech
}
