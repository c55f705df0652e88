package dashscope

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

func TestNewTransportUsesDashScopeIdentity(t *testing.T) {
	handshakes := make(chan map[string]any, 1)
	var gotModel, gotWorkspace string

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotModel = r.URL.Query().Get("model")
		gotWorkspace = r.Header.Get("X-DashScope-WorkSpace")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var handshake map[string]any
		if err := conn.ReadJSON(&handshake); err != nil {
			return
		}
		handshakes <- handshake
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	transport := NewTransport("key", WithURL("ws"+strings.TrimPrefix(server.URL, "http")), WithWorkspace("ws-1"))
	if transport.Provider() != realtime.ProviderDashScope {
		t.Fatalf("expected dashscope provider, got %s", transport.Provider())
	}

	conn, err := transport.Connect(context.Background(), realtime.Handshake{
		Voice: DefaultVoice,
		Audio: audio.GetDefaultEncodingInfo(),
	})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer conn.Close()

	select {
	case handshake := <-handshakes:
		session := handshake["session"].(map[string]any)
		if session["voice"] != DefaultVoice {
			t.Fatalf("expected voice %q, got %v", DefaultVoice, session["voice"])
		}
		transcription := session["input_audio_transcription"].(map[string]any)
		if transcription["model"] != DefaultTranscriptionModel {
			t.Fatalf("expected transcription model %q, got %v", DefaultTranscriptionModel, transcription["model"])
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for handshake")
	}

	if gotModel != DefaultModel || gotWorkspace != "ws-1" {
		t.Fatalf("expected model %q and workspace ws-1, got %q and %q", DefaultModel, gotModel, gotWorkspace)
	}

	_, err = realtime.Speak(context.Background(), transport.Provider(), conn, "您好")
	if !errors.Is(err, errors.ErrUnsupported) {
		t.Fatalf("expected speak to be unsupported, got %v", err)
	}
}
