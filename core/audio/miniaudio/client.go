package miniaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/memoir-voice/core/audio"
)

// Client is a local audio device backed by miniaudio. Record and Play block,
// and the two never run at the same time in a conversation, so capture and
// playback use separate devices sharing one context.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	encoding     audio.EncodingInfo
	playbackClient
	captureClient
}

func NewClient(encoding audio.EncodingInfo) (*Client, error) {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	if encoding.Channels <= 0 {
		encoding.Channels = audio.DefaultChannels
	}
	if encoding.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported format %q", encoding.Format.Name())
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
		encoding:     encoding,
	}

	if err := client.playbackClient.Init(audioCtx, encoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, encoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) Record(ctx context.Context, duration time.Duration) ([]byte, error) {
	window := audio.CaptureWindow(duration)
	target := c.encoding.BytesFor(window)

	done, err := c.captureClient.Start(target)
	if err != nil {
		return nil, err
	}
	logger.Debug("capture started", "window", window)

	timer := time.NewTimer(window + 200*time.Millisecond)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}

	captured, stopErr := c.captureClient.Stop()
	if stopErr != nil {
		return captured, stopErr
	}
	if len(captured) > target {
		captured = captured[:target]
	}
	return captured, ctx.Err()
}

func (c *Client) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return nil
	}

	drained, err := c.playbackClient.Enqueue(audio)
	if err != nil {
		return err
	}

	select {
	case <-drained:
	case <-ctx.Done():
		c.playbackClient.ClearBuffer()
		return ctx.Err()
	}

	// The device period still holds the last samples when the buffer drains.
	time.Sleep(c.encoding.Duration(c.encoding.BytesFor(playbackPeriod)))
	return c.playbackClient.Stop()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}

func (c *Client) Close() error {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
	return nil
}
