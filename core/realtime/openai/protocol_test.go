package openai

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

func TestTranslateDeltas(t *testing.T) {
	cases := map[string]realtime.FragmentKind{
		`{"type":"response.audio_transcript.delta","delta":"你好"}`: realtime.FragmentTranscriptDelta,
		`{"type":"response.text.delta","delta":"hi"}`:              realtime.FragmentTranscriptDelta,
		`{"type":"response.done","response":{"status":"completed"}}`: realtime.FragmentTurnComplete,
		`{"type":"error","error":{"type":"invalid_request_error","code":"bad","message":"nope"}}`: realtime.FragmentError,
	}

	for event, kind := range cases {
		fragments, err := translate([]byte(event))
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", event, err)
		}
		if len(fragments) != 1 || fragments[0].Kind != kind {
			t.Fatalf("%s: expected one %s fragment, got %v", event, kind, fragments)
		}
	}
}

func TestTranslateAudioDelta(t *testing.T) {
	event := `{"type":"response.audio.delta","delta":"` + base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) + `"}`

	fragments, err := translate([]byte(event))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(fragments) != 1 || string(fragments[0].Audio) != string([]byte{1, 2, 3}) {
		t.Fatalf("expected decoded audio chunk, got %v", fragments)
	}
}

func TestTranslateFailedResponse(t *testing.T) {
	event := `{"type":"response.done","response":{"status":"failed","status_details":{"type":"failed","error":{"type":"server_error","message":"overloaded"}}}}`

	fragments, err := translate([]byte(event))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(fragments) != 1 || fragments[0].Kind != realtime.FragmentError {
		t.Fatalf("expected error fragment, got %v", fragments)
	}
	if fragments[0].Code != "server_error" || fragments[0].Reason != "overloaded" {
		t.Fatalf("expected server_error/overloaded, got %s/%s", fragments[0].Code, fragments[0].Reason)
	}
}

func TestTranslateIgnoresBookkeeping(t *testing.T) {
	for _, event := range []string{
		`{"type":"session.created"}`,
		`{"type":"input_audio_buffer.speech_started"}`,
		`{"type":"response.audio_transcript.delta","delta":""}`,
	} {
		fragments, err := translate([]byte(event))
		if err != nil || len(fragments) != 0 {
			t.Fatalf("%s: expected nothing, got %v (err %v)", event, fragments, err)
		}
	}

	if _, err := translate([]byte("{")); err == nil {
		t.Fatalf("expected malformed event to fail")
	}
}

func TestSessionUpdateCarriesConfiguration(t *testing.T) {
	handshake := realtime.Handshake{
		Voice:        "alloy",
		Language:     "zh",
		Instructions: "be kind",
		Audio:        audio.GetDefaultEncodingInfo(),
		TurnDetection: realtime.TurnDetection{
			Threshold:       0.5,
			SilenceDuration: 500 * time.Millisecond,
		},
	}

	local, err := json.Marshal(newSessionUpdate(handshake, DefaultTranscriptionModel))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(string(local), `"turn_detection":null`) {
		t.Fatalf("expected remote turn detection to be disabled, got %s", local)
	}
	for _, want := range []string{`"voice":"alloy"`, `"input_audio_format":"pcm16"`, `"model":"whisper-1"`, `"language":"zh"`} {
		if !strings.Contains(string(local), want) {
			t.Fatalf("expected %s in %s", want, local)
		}
	}

	handshake.TurnDetection.Remote = true
	remote, err := json.Marshal(newSessionUpdate(handshake, DefaultTranscriptionModel))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{`"type":"server_vad"`, `"threshold":0.5`, `"silence_duration_ms":500`, `"prefix_padding_ms":300`, `"create_response":false`} {
		if !strings.Contains(string(remote), want) {
			t.Fatalf("expected %s in %s", want, remote)
		}
	}
}
