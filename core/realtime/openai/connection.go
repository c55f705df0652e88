package openai

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

type connection struct {
	provider realtime.Provider
	socket   *realtime.Socket
	speech   *speechClient
	voice    string

	// pendingAudio tracks whether the input buffer holds uncommitted audio,
	// committing an empty buffer is rejected by the server.
	pendingAudio atomic.Bool
}

func (c *connection) Send(ctx context.Context, fragment realtime.Fragment) error {
	switch fragment.Kind {
	case realtime.FragmentAudioChunk:
		if len(fragment.Audio) == 0 {
			return nil
		}
		if err := c.socket.WriteJSON(ctx, newAudioAppend(fragment.Audio)); err != nil {
			return err
		}
		c.pendingAudio.Store(true)
		return nil

	case realtime.FragmentTranscriptDelta:
		return c.socket.WriteJSON(ctx, newUserText(fragment.Text))

	case realtime.FragmentCommit:
		if c.pendingAudio.Swap(false) {
			if err := c.socket.WriteJSON(ctx, newAudioCommit()); err != nil {
				return err
			}
		}
		return c.socket.WriteJSON(ctx, newResponseCreate())
	}

	return fmt.Errorf("cannot send %s fragment", fragment.Kind)
}

func (c *connection) Receive() iter.Seq2[realtime.Fragment, error] {
	return func(yield func(realtime.Fragment, error) bool) {
		for {
			messageType, data, ok, err := c.socket.Read()
			if err != nil {
				yield(realtime.Fragment{}, err)
				return
			}
			if !ok {
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			eventType, fragments, err := decode(data)
			if eventType == eventInputAudioCommitted {
				// Server side turn detection commits on its own.
				c.pendingAudio.Store(false)
			}
			if err != nil {
				yield(realtime.Fragment{}, realtime.NewFatalError(c.provider, realtime.OperationReceive, err))
				return
			}
			for _, fragment := range fragments {
				if !yield(fragment, nil) {
					return
				}
			}
		}
	}
}

func (c *connection) Speak(ctx context.Context, text string) ([]byte, error) {
	if c.speech == nil {
		return nil, &realtime.CapabilityError{Provider: c.provider, Operation: realtime.OperationSpeak}
	}
	return c.speech.synthesize(ctx, c.provider, text, c.voice)
}

func (c *connection) Close() error {
	return c.socket.Close()
}
