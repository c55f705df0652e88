package audio

import (
	"testing"
	"time"
)

func TestDefaultEncodingInfoDurations(t *testing.T) {
	info := GetDefaultEncodingInfo()

	if got := info.BytesPerSecond(); got != 48000 {
		t.Fatalf("expected 48000 bytes per second, got %d", got)
	}
	if got := info.Duration(4800); got != 100*time.Millisecond {
		t.Fatalf("expected 100ms, got %s", got)
	}
	if got := info.BytesFor(100 * time.Millisecond); got != 4800 {
		t.Fatalf("expected 4800 bytes, got %d", got)
	}
}

func TestZeroChannelsCountAsMono(t *testing.T) {
	info := EncodingInfo{SampleRate: 16000, Format: EncodingLinear16}
	if got := info.FrameSize(); got != 2 {
		t.Fatalf("expected frame size 2, got %d", got)
	}
	if err := info.Compatible(EncodingInfo{SampleRate: 16000, Channels: 1, Format: EncodingLinear16}); err != nil {
		t.Fatalf("expected mono encodings to be compatible, got %v", err)
	}
}

func TestCompatibleReportsMismatch(t *testing.T) {
	base := GetDefaultEncodingInfo()

	cases := map[string]EncodingInfo{
		"rate":     {SampleRate: 16000, Channels: 1, Format: EncodingLinear16},
		"channels": {SampleRate: DefaultSampleRate, Channels: 2, Format: EncodingLinear16},
		"format":   {SampleRate: DefaultSampleRate, Channels: 1, Format: EncodingMulaw},
	}
	for name, other := range cases {
		if err := base.Compatible(other); err == nil {
			t.Fatalf("%s: expected mismatch error", name)
		}
	}
}

func TestSilenceValue(t *testing.T) {
	if got := (EncodingInfo{Format: EncodingMulaw}).SilenceValue(); got != 0xFF {
		t.Fatalf("expected 0xFF for mulaw, got %#x", got)
	}
	if got := (EncodingInfo{Format: EncodingALaw}).SilenceValue(); got != 0x55 {
		t.Fatalf("expected 0x55 for alaw, got %#x", got)
	}
}
