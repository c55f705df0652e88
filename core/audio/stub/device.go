// Package stub provides an audio device for environments without audio
// hardware or permission to use it. Recording yields nothing and playback
// only reports what would have been played.
package stub

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/koscakluka/memoir-voice/core/audio"
)

type Device struct {
	mu       sync.Mutex
	out      io.Writer
	encoding audio.EncodingInfo

	played  int
	records int
}

type Option func(*Device)

// WithOutput sets where playback is reported, os.Stdout by default.
func WithOutput(w io.Writer) Option {
	return func(d *Device) {
		d.out = w
	}
}

func WithEncodingInfo(encoding audio.EncodingInfo) Option {
	return func(d *Device) {
		d.encoding = encoding
	}
}

func New(opts ...Option) *Device {
	d := &Device{
		out:      os.Stdout,
		encoding: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Record returns an empty buffer immediately.
func (d *Device) Record(ctx context.Context, _ time.Duration) ([]byte, error) {
	d.mu.Lock()
	d.records++
	d.mu.Unlock()
	return []byte{}, ctx.Err()
}

// Play prints a line describing the audio instead of rendering it.
func (d *Device) Play(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.played++
	if d.out == nil {
		return nil
	}
	_, err := fmt.Fprintf(d.out, "[语音输出] %d bytes (%s)\n", len(pcm), d.encoding.Duration(len(pcm)).Round(time.Millisecond))
	return err
}

// Played reports how many times Play was called.
func (d *Device) Played() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.played
}

func (d *Device) EncodingInfo() audio.EncodingInfo {
	return d.encoding
}

func (d *Device) Close() error {
	return nil
}
