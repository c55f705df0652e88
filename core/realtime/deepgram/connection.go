package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

const (
	messageFinalize = "Finalize"
	messageError    = "Error"
)

type connection struct {
	socket *realtime.Socket

	// Only touched by the receiving goroutine.
	segments int
}

type controlMessage struct {
	Type string `json:"type"`
}

func (c *connection) Send(ctx context.Context, fragment realtime.Fragment) error {
	switch fragment.Kind {
	case realtime.FragmentAudioChunk:
		if len(fragment.Audio) == 0 {
			return nil
		}
		return c.socket.WriteBinary(ctx, fragment.Audio)

	case realtime.FragmentCommit:
		return c.socket.WriteJSON(ctx, controlMessage{Type: messageFinalize})

	case realtime.FragmentTranscriptDelta:
		return &realtime.CapabilityError{Provider: realtime.ProviderDeepgram, Operation: realtime.OperationText}
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

			fragments, err := c.translate(data)
			if err != nil {
				yield(realtime.Fragment{}, realtime.NewFatalError(realtime.ProviderDeepgram, realtime.OperationReceive, err))
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

type resultsMetadata struct {
	FromFinalize bool `json:"from_finalize"`
}

type errorMessage struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Message     string `json:"message"`
	Variant     string `json:"variant"`
}

func (c *connection) translate(data []byte) ([]realtime.Fragment, error) {
	var parsedMsg controlMessage
	if err := json.Unmarshal(data, &parsedMsg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(data, &msgResp); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w", err)
		}
		var metadata resultsMetadata
		_ = json.Unmarshal(data, &metadata)

		if !msgResp.IsFinal {
			return nil, nil
		}

		var fragments []realtime.Fragment
		if len(msgResp.Channel.Alternatives) > 0 {
			if transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript); transcript != "" {
				if c.segments > 0 {
					transcript = " " + transcript
				}
				c.segments++
				fragments = append(fragments, realtime.NewTranscriptDelta(transcript))
			}
		}
		if metadata.FromFinalize {
			fragments = append(fragments, c.complete())
		}
		return fragments, nil

	case api.TypeUtteranceEndResponse:
		return []realtime.Fragment{c.complete()}, nil
	}

	if parsedMsg.Type == messageError {
		var msgErr errorMessage
		if err := json.Unmarshal(data, &msgErr); err != nil {
			return nil, fmt.Errorf("failed to decode error: %w", err)
		}
		reason := msgErr.Description
		if reason == "" {
			reason = msgErr.Message
		}
		return []realtime.Fragment{realtime.NewErrorFragment(msgErr.Variant, reason)}, nil
	}
	return nil, nil
}

func (c *connection) complete() realtime.Fragment {
	c.segments = 0
	return realtime.NewTurnComplete()
}

func (c *connection) Speak(context.Context, string) ([]byte, error) {
	return nil, &realtime.CapabilityError{Provider: realtime.ProviderDeepgram, Operation: realtime.OperationSpeak}
}

func (c *connection) Close() error {
	_ = c.socket.WriteJSON(context.Background(), controlMessage{Type: string(api.TypeCloseStreamResponse)})
	return c.socket.Close()
}
