package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "bye" {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSocketRejectsWritesBeforeHandshake(t *testing.T) {
	server := newEchoServer(t)
	header := http.Header{"Authorization": []string{"Bearer secret"}}

	socket, err := DialSocket(context.Background(), ProviderOpenAI, SocketConfig{URL: wsURL(server), Header: header})
	if err != nil {
		t.Fatalf("expected dial to succeed, got %v", err)
	}
	defer socket.Close()

	if err := socket.WriteBinary(context.Background(), []byte{1}); !errors.Is(err, ErrHandshakePending) {
		t.Fatalf("expected ErrHandshakePending, got %v", err)
	}

	if err := socket.WriteHandshake(context.Background(), map[string]string{"type": "session.update"}); err != nil {
		t.Fatalf("expected handshake to succeed, got %v", err)
	}
	if err := socket.WriteHandshake(context.Background(), map[string]string{"type": "session.update"}); err == nil {
		t.Fatalf("expected a second handshake to fail")
	}

	_, data, ok, err := socket.Read()
	if err != nil || !ok {
		t.Fatalf("expected handshake echo, got ok=%v err=%v", ok, err)
	}
	if !strings.Contains(string(data), "session.update") {
		t.Fatalf("expected handshake echo, got %q", data)
	}

	if err := socket.WriteBinary(context.Background(), []byte{1, 2}); err != nil {
		t.Fatalf("expected write after handshake to succeed, got %v", err)
	}
}

func TestSocketPeerCloseEndsReadCleanly(t *testing.T) {
	server := newEchoServer(t)
	header := http.Header{"Authorization": []string{"Bearer secret"}}

	socket, err := DialSocket(context.Background(), ProviderOpenAI, SocketConfig{URL: wsURL(server), Header: header})
	if err != nil {
		t.Fatalf("expected dial to succeed, got %v", err)
	}
	defer socket.Close()
	socket.MarkConfigured()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := socket.WriteJSON(ctx, "bye"); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}

	// JSON encoding quotes the string, so the server echoes it first.
	if _, _, ok, err := socket.Read(); !ok || err != nil {
		t.Fatalf("expected echo, got ok=%v err=%v", ok, err)
	}

	if err := socket.WriteBinary(ctx, []byte("bye")); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}
	_, _, ok, err := socket.Read()
	if ok || err != nil {
		t.Fatalf("expected clean end of stream, got ok=%v err=%v", ok, err)
	}
}

func TestDialSocketClassifiesRejectedUpgrade(t *testing.T) {
	server := newEchoServer(t)

	_, err := DialSocket(context.Background(), ProviderOpenAI, SocketConfig{URL: wsURL(server)})
	transportErr, ok := AsTransportError(err)
	if !ok {
		t.Fatalf("expected transport error, got %v", err)
	}
	if transportErr.Retryable || !transportErr.IsAuth() {
		t.Fatalf("expected fatal auth failure, got %v", transportErr)
	}
}

func TestSocketCloseIsIdempotent(t *testing.T) {
	server := newEchoServer(t)
	header := http.Header{"Authorization": []string{"Bearer secret"}}

	socket, err := DialSocket(context.Background(), ProviderOpenAI, SocketConfig{URL: wsURL(server), Header: header})
	if err != nil {
		t.Fatalf("expected dial to succeed, got %v", err)
	}

	if err := socket.Close(); err != nil {
		t.Fatalf("expected first close to succeed, got %v", err)
	}
	if err := socket.Close(); err != nil {
		t.Fatalf("expected second close to succeed, got %v", err)
	}
	socket.MarkConfigured()
	if err := socket.WriteBinary(context.Background(), []byte{1}); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
	if _, _, ok, err := socket.Read(); ok || err != nil {
		t.Fatalf("expected local close to end reads cleanly, got ok=%v err=%v", ok, err)
	}
}
