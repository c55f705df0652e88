package audio

import (
	"bytes"
	"testing"
)

func TestChunksPreservesOrder(t *testing.T) {
	input := []byte{1, 2, 3, 4, 5, 6, 7}
	chunks := Chunks(input, 3)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if joined := bytes.Join(chunks, nil); !bytes.Equal(joined, input) {
		t.Fatalf("expected %v, got %v", input, joined)
	}
}

func TestChunksEmpty(t *testing.T) {
	if chunks := Chunks(nil, 10); chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestLevel(t *testing.T) {
	info := GetDefaultEncodingInfo()

	if got := Level(make([]byte, 480), info); got != 0 {
		t.Fatalf("expected silence to have level 0, got %f", got)
	}

	loud := make([]int16, 240)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = 32767
		} else {
			loud[i] = -32767
		}
	}
	if got := Level(Int16ToBytes(loud), info); got < 0.99 {
		t.Fatalf("expected full scale audio to have level ~1, got %f", got)
	}

	quiet := make([]int16, 240)
	for i := range quiet {
		quiet[i] = 33 // about -60 dBFS
	}
	if got := Level(Int16ToBytes(quiet), info); got > 0.05 {
		t.Fatalf("expected quiet audio to have level ~0, got %f", got)
	}
}

func TestInt16RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	out := make([]int16, len(samples))
	if n := BytesToInt16(Int16ToBytes(samples), out); n != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), n)
	}
	for i := range samples {
		if samples[i] != out[i] {
			t.Fatalf("expected %d at %d, got %d", samples[i], i, out[i])
		}
	}
}
