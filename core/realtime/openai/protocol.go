package openai

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

const (
	eventSessionUpdate          = "session.update"
	eventInputAudioAppend       = "input_audio_buffer.append"
	eventInputAudioCommit       = "input_audio_buffer.commit"
	eventConversationItemCreate = "conversation.item.create"
	eventResponseCreate         = "response.create"

	eventError                         = "error"
	eventResponseTextDelta             = "response.text.delta"
	eventResponseOutputTextDelta       = "response.output_text.delta"
	eventResponseTranscriptDelta       = "response.audio_transcript.delta"
	eventResponseOutputTranscriptDelta = "response.output_audio_transcript.delta"
	eventResponseAudioDelta            = "response.audio.delta"
	eventResponseOutputAudioDelta      = "response.output_audio.delta"
	eventResponseDone                  = "response.done"
	eventInputAudioCommitted           = "input_audio_buffer.committed"
)

func newEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

type sessionUpdate struct {
	EventID string        `json:"event_id"`
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities              []string             `json:"modalities"`
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format"`
	OutputAudioFormat       string               `json:"output_audio_format"`
	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetectionConfig `json:"turn_detection"`
}

type transcriptionConfig struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type turnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int64   `json:"prefix_padding_ms"`
	SilenceDurationMs int64   `json:"silence_duration_ms"`
	CreateResponse    bool    `json:"create_response"`
}

func newSessionUpdate(handshake realtime.Handshake, transcriptionModel string) sessionUpdate {
	update := sessionUpdate{
		EventID: newEventID(),
		Type:    eventSessionUpdate,
		Session: sessionConfig{
			Modalities:        []string{"text", "audio"},
			Instructions:      handshake.Instructions,
			Voice:             handshake.Voice,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
		},
	}

	if transcriptionModel != "" {
		update.Session.InputAudioTranscription = &transcriptionConfig{
			Model:    transcriptionModel,
			Language: handshake.Language,
		}
	}

	// Turns are committed by the client unless the remote detector is asked
	// for, in which case it still only commits and never replies on its own.
	if detection := handshake.TurnDetection; detection.Remote {
		update.Session.TurnDetection = &turnDetectionConfig{
			Type:              "server_vad",
			Threshold:         detection.Threshold,
			PrefixPaddingMs:   detection.PrefixPaddingOrDefault().Milliseconds(),
			SilenceDurationMs: detection.SilenceDuration.Milliseconds(),
		}
	}

	return update
}

func newAudioAppend(audio []byte) map[string]any {
	return map[string]any{
		"event_id": newEventID(),
		"type":     eventInputAudioAppend,
		"audio":    base64.StdEncoding.EncodeToString(audio),
	}
}

func newAudioCommit() map[string]any {
	return map[string]any{
		"event_id": newEventID(),
		"type":     eventInputAudioCommit,
	}
}

func newResponseCreate() map[string]any {
	return map[string]any{
		"event_id": newEventID(),
		"type":     eventResponseCreate,
	}
}

func newUserText(text string) map[string]any {
	return map[string]any{
		"event_id": newEventID(),
		"type":     eventConversationItemCreate,
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	}
}

type serverEvent struct {
	Type     string          `json:"type"`
	Delta    string          `json:"delta"`
	Error    *serverError    `json:"error"`
	Response *serverResponse `json:"response"`
}

type serverError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type serverResponse struct {
	Status        string `json:"status"`
	StatusDetails *struct {
		Type   string       `json:"type"`
		Reason string       `json:"reason"`
		Error  *serverError `json:"error"`
	} `json:"status_details"`
}

// translate maps one server event onto fragments. Events with no meaning to
// a turn translate to nothing.
func translate(data []byte) ([]realtime.Fragment, error) {
	_, fragments, err := decode(data)
	return fragments, err
}

func decode(data []byte) (string, []realtime.Fragment, error) {
	var event serverEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", nil, fmt.Errorf("failed to decode server event: %w", err)
	}
	fragments, err := event.fragments()
	return event.Type, fragments, err
}

func (event serverEvent) fragments() ([]realtime.Fragment, error) {
	switch event.Type {
	case eventResponseTextDelta, eventResponseOutputTextDelta,
		eventResponseTranscriptDelta, eventResponseOutputTranscriptDelta:
		if event.Delta == "" {
			return nil, nil
		}
		return []realtime.Fragment{realtime.NewTranscriptDelta(event.Delta)}, nil

	case eventResponseAudioDelta, eventResponseOutputAudioDelta:
		audio, err := base64.StdEncoding.DecodeString(event.Delta)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audio delta: %w", err)
		}
		if len(audio) == 0 {
			return nil, nil
		}
		return []realtime.Fragment{realtime.NewAudioChunk(audio)}, nil

	case eventResponseDone:
		return []realtime.Fragment{responseDone(event.Response)}, nil

	case eventError:
		if event.Error == nil {
			return []realtime.Fragment{realtime.NewErrorFragment("unknown", "error event without details")}, nil
		}
		return []realtime.Fragment{realtime.NewErrorFragment(errorCode(event.Error), event.Error.Message)}, nil
	}

	return nil, nil
}

func responseDone(response *serverResponse) realtime.Fragment {
	if response == nil {
		return realtime.NewTurnComplete()
	}

	switch response.Status {
	case "failed":
		if details := response.StatusDetails; details != nil && details.Error != nil {
			return realtime.NewErrorFragment(errorCode(details.Error), details.Error.Message)
		}
		return realtime.NewErrorFragment("response_failed", "response failed")
	case "cancelled":
		reason := "response cancelled"
		if response.StatusDetails != nil && response.StatusDetails.Reason != "" {
			reason = response.StatusDetails.Reason
		}
		return realtime.NewErrorFragment("response_cancelled", reason)
	}
	return realtime.NewTurnComplete()
}

func errorCode(err *serverError) string {
	if err.Code != "" {
		return err.Code
	}
	return err.Type
}
