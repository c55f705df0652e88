// Package stub provides a realtime transport that never touches the network.
// It keeps a conversation usable, in a degraded way, when no provider is
// configured.
package stub

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"sync"

	"github.com/koscakluka/memoir-voice/core/realtime"
)

const (
	// VoiceUnavailableReply answers audio input.
	VoiceUnavailableReply = "[语音模式未启用，请输入文字]"
	textReplyPrefix       = "收到："
)

type Transport struct {
	out io.Writer
}

type TransportOption func(*Transport)

// WithOutput sets where Speak prints, os.Stdout by default.
func WithOutput(w io.Writer) TransportOption {
	return func(t *Transport) {
		t.out = w
	}
}

func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{out: os.Stdout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Provider() realtime.Provider {
	return realtime.ProviderStub
}

func (t *Transport) Connect(ctx context.Context, _ realtime.Handshake) (realtime.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &connection{
		out:     t.out,
		replies: make(chan realtime.Fragment, 16),
		done:    make(chan struct{}),
	}, nil
}

type connection struct {
	out io.Writer

	mu    sync.Mutex
	audio int
	text  []string

	replies   chan realtime.Fragment
	done      chan struct{}
	closeOnce sync.Once
}

func (c *connection) Send(ctx context.Context, fragment realtime.Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return realtime.NewFatalError(realtime.ProviderStub, realtime.OperationSend, realtime.ErrConnectionClosed)
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch fragment.Kind {
	case realtime.FragmentAudioChunk:
		c.audio += len(fragment.Audio)
		return nil
	case realtime.FragmentTranscriptDelta:
		c.text = append(c.text, fragment.Text)
		return nil
	case realtime.FragmentCommit:
		reply := VoiceUnavailableReply
		if len(c.text) > 0 {
			reply = textReplyPrefix + strings.Join(c.text, "")
		}
		c.audio, c.text = 0, nil
		return c.reply(ctx, realtime.NewTranscriptDelta(reply), realtime.NewTurnComplete())
	}

	return fmt.Errorf("cannot send %s fragment", fragment.Kind)
}

func (c *connection) reply(ctx context.Context, fragments ...realtime.Fragment) error {
	for _, fragment := range fragments {
		select {
		case c.replies <- fragment:
		case <-c.done:
			return realtime.NewFatalError(realtime.ProviderStub, realtime.OperationSend, realtime.ErrConnectionClosed)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *connection) Receive() iter.Seq2[realtime.Fragment, error] {
	return func(yield func(realtime.Fragment, error) bool) {
		for {
			select {
			case fragment := <-c.replies:
				if !yield(fragment, nil) {
					return
				}
			case <-c.done:
				return
			}
		}
	}
}

// Speak prints text instead of synthesizing it and returns no audio.
func (c *connection) Speak(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.out != nil {
		if _, err := fmt.Fprintf(c.out, "[语音输出] %s\n", text); err != nil {
			return nil, err
		}
	}
	return []byte{}, nil
}

func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}
