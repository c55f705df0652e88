package audio

import (
	"fmt"
	"time"
)

const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		Format:     encodingFormat(DefaultFormat),
	}
}

// EncodingInfo describes raw PCM audio as it flows between devices and
// remote providers. Audio is always interleaved when Channels > 1.
type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) channels() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// FrameSize is the number of bytes holding one sample for every channel.
func (e EncodingInfo) FrameSize() int {
	size := e.Format.ByteSize()
	if size <= 0 {
		return 0
	}
	return size * e.channels()
}

func (e EncodingInfo) BytesPerSecond() int {
	return e.FrameSize() * e.SampleRate
}

// Duration returns the playback duration of n bytes of audio.
func (e EncodingInfo) Duration(n int) time.Duration {
	bps := e.BytesPerSecond()
	if bps <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// BytesFor returns the frame-aligned number of bytes covering d.
func (e EncodingInfo) BytesFor(d time.Duration) int {
	frame := e.FrameSize()
	if frame <= 0 || d <= 0 {
		return 0
	}
	frames := int(d * time.Duration(e.SampleRate) / time.Second)
	return frames * frame
}

// Compatible reports an error when other cannot be consumed as e without
// resampling or remixing.
func (e EncodingInfo) Compatible(other EncodingInfo) error {
	if e.SampleRate != other.SampleRate {
		return fmt.Errorf("sample rate mismatch: %d != %d", e.SampleRate, other.SampleRate)
	}
	if e.channels() != other.channels() {
		return fmt.Errorf("channel count mismatch: %d != %d", e.channels(), other.channels())
	}
	if e.Format != other.Format {
		return fmt.Errorf("format mismatch: %s != %s", e.Format.Name(), other.Format.Name())
	}
	return nil
}

func (e EncodingInfo) String() string {
	return fmt.Sprintf("%s/%dHz/%dch", e.Format.Name(), e.SampleRate, e.channels())
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
