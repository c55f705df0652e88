package portaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/memoir-voice/core/audio"
)

const DefaultFramesPerBuffer = 480

// Client is a blocking local audio device on the default PortAudio input and
// output. Capture and playback use separate streams so that neither has to
// be serviced while the other runs.
type Client struct {
	mu sync.Mutex

	encoding        audio.EncodingInfo
	framesPerBuffer int

	input  *portaudio.Stream
	output *portaudio.Stream

	in  []int16
	out []int16

	closeOnce sync.Once
}

func NewClient(encoding audio.EncodingInfo, framesPerBuffer int) (*Client, error) {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	if encoding.Channels <= 0 {
		encoding.Channels = audio.DefaultChannels
	}
	if encoding.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported format %q", encoding.Format.Name())
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	c := &Client{
		encoding:        encoding,
		framesPerBuffer: framesPerBuffer,
		in:              make([]int16, framesPerBuffer*encoding.Channels),
		out:             make([]int16, framesPerBuffer*encoding.Channels),
	}

	var err error
	c.input, err = portaudio.OpenDefaultStream(encoding.Channels, 0, float64(encoding.SampleRate), framesPerBuffer, c.in)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open PortAudio input stream: %w", err)
	}

	c.output, err = portaudio.OpenDefaultStream(0, encoding.Channels, float64(encoding.SampleRate), framesPerBuffer, c.out)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open PortAudio output stream: %w", err)
	}

	return c, nil
}

func (c *Client) Record(ctx context.Context, duration time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := audio.CaptureWindow(duration)
	target := c.encoding.BytesFor(window)

	if err := c.input.Start(); err != nil {
		return nil, fmt.Errorf("failed to start PortAudio input stream: %w", err)
	}
	defer c.input.Stop()
	logger.Debug("capture started", "window", window)

	captured := make([]byte, 0, target)
	for len(captured) < target {
		if err := ctx.Err(); err != nil {
			return captured, err
		}

		if err := c.input.Read(); err != nil {
			// Overflows only lose samples, the capture itself can go on.
			if err == portaudio.InputOverflowed {
				logger.Warn("input overflowed while recording")
				continue
			}
			return captured, fmt.Errorf("failed to read from PortAudio stream: %w", err)
		}
		captured = append(captured, audio.Int16ToBytes(c.in)...)
	}

	return captured[:target], nil
}

func (c *Client) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.output.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio output stream: %w", err)
	}
	defer c.output.Stop()

	bufferSize := len(c.out) * 2
	for _, chunk := range audio.Chunks(pcm, bufferSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := audio.BytesToInt16(chunk, c.out)
		clear(c.out[n:])
		if err := c.output.Write(); err != nil && err != portaudio.OutputUnderflowed {
			return fmt.Errorf("failed to write to PortAudio stream: %w", err)
		}
	}
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.input != nil {
			c.input.Close()
		}
		if c.output != nil {
			c.output.Close()
		}
		portaudio.Terminate()
	})
	return nil
}
