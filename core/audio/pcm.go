package audio

import (
	"encoding/binary"
	"math"
)

// Chunks splits audio into frame-aligned pieces of at most size bytes. The
// returned slices alias audio.
func Chunks(audio []byte, size int) [][]byte {
	if len(audio) == 0 {
		return nil
	}
	if size <= 0 || size >= len(audio) {
		return [][]byte{audio}
	}

	chunks := make([][]byte, 0, len(audio)/size+1)
	for start := 0; start < len(audio); start += size {
		end := min(start+size, len(audio))
		chunks = append(chunks, audio[start:end])
	}
	return chunks
}

// Level returns the loudness of linear16 audio mapped from [-60 dBFS, 0 dBFS]
// onto [0, 1]. Any other format reports 0.
func Level(audio []byte, encoding EncodingInfo) float64 {
	if encoding.Format != EncodingLinear16 || len(audio) < 2 {
		return 0
	}

	var sum float64
	samples := len(audio) / 2
	for i := range samples {
		sample := float64(int16(binary.LittleEndian.Uint16(audio[i*2:]))) / 32768
		sum += sample * sample
	}
	rms := math.Sqrt(sum / float64(samples))
	if rms <= 0 {
		return 0
	}

	dbfs := 20 * math.Log10(rms)
	level := (dbfs + 60) / 60
	return math.Max(0, math.Min(1, level))
}

// Int16ToBytes and BytesToInt16 convert between little-endian linear16 and
// sample slices used by device callbacks.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func BytesToInt16(audio []byte, samples []int16) int {
	n := min(len(audio)/2, len(samples))
	for i := range n {
		samples[i] = int16(binary.LittleEndian.Uint16(audio[i*2:]))
	}
	return n
}
