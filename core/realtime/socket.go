package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultHandshakeTimeout = 10 * time.Second

// SocketConfig describes how to dial a provider websocket.
type SocketConfig struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
}

// Socket is a websocket shared by the JSON framed provider transports. Writes
// are serialized, reads are expected from a single goroutine. Send style
// writes fail with ErrHandshakePending until MarkConfigured is called.
type Socket struct {
	provider Provider
	conn     *websocket.Conn

	writeMu    sync.Mutex
	configured atomic.Bool
	closed     atomic.Bool
	closeOnce  sync.Once
}

// DialSocket opens a websocket. Rejected upgrades are classified by their
// HTTP status, other dial failures by their cause.
func DialSocket(ctx context.Context, provider Provider, cfg SocketConfig) (*Socket, error) {
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, ClassifyStatus(provider, OperationConnect, resp.StatusCode, fmt.Errorf("failed to upgrade connection: %w", err))
		}
		return nil, ClassifyError(provider, OperationConnect, fmt.Errorf("failed to dial: %w", err))
	}

	return &Socket{provider: provider, conn: conn}, nil
}

// WriteHandshake writes the single configuration frame and unlocks Send
// style writes.
func (s *Socket) WriteHandshake(ctx context.Context, v any) error {
	if s.configured.Load() {
		return errors.New("handshake already sent")
	}
	if err := s.write(ctx, func() error { return s.conn.WriteJSON(v) }); err != nil {
		return ClassifyError(s.provider, OperationConnect, fmt.Errorf("failed to send handshake: %w", err))
	}
	s.MarkConfigured()
	return nil
}

// MarkConfigured is used by providers whose handshake is not a frame.
func (s *Socket) MarkConfigured() {
	s.configured.Store(true)
}

func (s *Socket) WriteJSON(ctx context.Context, v any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.write(ctx, func() error { return s.conn.WriteJSON(v) }); err != nil {
		return ClassifyError(s.provider, OperationSend, err)
	}
	return nil
}

func (s *Socket) WriteBinary(ctx context.Context, data []byte) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.write(ctx, func() error { return s.conn.WriteMessage(websocket.BinaryMessage, data) }); err != nil {
		return ClassifyError(s.provider, OperationSend, err)
	}
	return nil
}

func (s *Socket) ready() error {
	if s.closed.Load() {
		return NewFatalError(s.provider, OperationSend, ErrConnectionClosed)
	}
	if !s.configured.Load() {
		return ErrHandshakePending
	}
	return nil
}

func (s *Socket) write(ctx context.Context, write func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// A zero deadline clears any previous one.
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return write()
}

// Read returns the next data message. ok is false once the peer closed the
// connection normally or the socket was closed locally.
func (s *Socket) Read() (messageType int, data []byte, ok bool, err error) {
	messageType, data, err = s.conn.ReadMessage()
	if err == nil {
		return messageType, data, true, nil
	}

	if s.closed.Load() || websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		return 0, nil, false, nil
	}
	return 0, nil, false, ClassifyError(s.provider, OperationReceive, err)
}

// Close sends a close frame when possible and releases the socket. It is
// idempotent.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}
