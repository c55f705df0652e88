package orchestration

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/memoir-voice/core/audio"
	"github.com/koscakluka/memoir-voice/core/config"
	"github.com/koscakluka/memoir-voice/core/conversations"
	"github.com/koscakluka/memoir-voice/core/events"
	"github.com/koscakluka/memoir-voice/core/realtime"
)

func testConfig() config.SessionConfig {
	cfg := config.Default()
	cfg.Provider = string(realtime.ProviderStub)
	return cfg
}

// scriptedTransport hands out scriptedConnections. onConnect, when set,
// prepares each new connection before it is returned.
type scriptedTransport struct {
	mu          sync.Mutex
	connections []*scriptedConnection
	handshakes  []realtime.Handshake
	connectErr  error
	onConnect   func(n int, conn *scriptedConnection)
}

func (t *scriptedTransport) Provider() realtime.Provider {
	return realtime.ProviderOpenAI
}

func (t *scriptedTransport) Connect(ctx context.Context, handshake realtime.Handshake) (realtime.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.handshakes = append(t.handshakes, handshake)
	if t.connectErr != nil {
		return nil, t.connectErr
	}

	conn := newScriptedConnection()
	t.connections = append(t.connections, conn)
	if t.onConnect != nil {
		t.onConnect(len(t.connections), conn)
	}
	return conn, nil
}

func (t *scriptedTransport) connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handshakes)
}

func (t *scriptedTransport) connection(i int) *scriptedConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connections[i]
}

type received struct {
	fragment realtime.Fragment
	err      error
	eof      bool
}

type scriptedConnection struct {
	mu       sync.Mutex
	sent     []realtime.Fragment
	closed   int
	onCommit func(conn *scriptedConnection)
	sendErr  error

	incoming  chan received
	done      chan struct{}
	closeOnce sync.Once
}

func newScriptedConnection() *scriptedConnection {
	return &scriptedConnection{
		incoming: make(chan received, 32),
		done:     make(chan struct{}),
	}
}

func (c *scriptedConnection) Send(ctx context.Context, fragment realtime.Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.sendErr != nil {
		err := c.sendErr
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, fragment)
	onCommit := c.onCommit
	c.mu.Unlock()

	if fragment.Kind == realtime.FragmentCommit && onCommit != nil {
		onCommit(c)
	}
	return nil
}

func (c *scriptedConnection) Receive() iter.Seq2[realtime.Fragment, error] {
	return func(yield func(realtime.Fragment, error) bool) {
		for {
			select {
			case <-c.done:
				return
			case next := <-c.incoming:
				switch {
				case next.eof:
					return
				case next.err != nil:
					yield(realtime.Fragment{}, next.err)
					return
				}
				if !yield(next.fragment, nil) {
					return
				}
			}
		}
	}
}

func (c *scriptedConnection) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *scriptedConnection) reply(fragments ...realtime.Fragment) {
	for _, fragment := range fragments {
		c.incoming <- received{fragment: fragment}
	}
}

func (c *scriptedConnection) fail(err error) {
	c.incoming <- received{err: err}
}

func (c *scriptedConnection) hangUp() {
	c.incoming <- received{eof: true}
}

func (c *scriptedConnection) sentKinds() []realtime.FragmentKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]realtime.FragmentKind, 0, len(c.sent))
	for _, fragment := range c.sent {
		kinds = append(kinds, fragment.Kind)
	}
	return kinds
}

func (c *scriptedConnection) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *scriptedConnection) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *scriptedConnection) setOnCommit(onCommit func(conn *scriptedConnection)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCommit = onCommit
}

func replyWith(fragments ...realtime.Fragment) func(*scriptedConnection) {
	return func(conn *scriptedConnection) { conn.reply(fragments...) }
}

type recordingSink struct {
	mu     sync.Mutex
	played [][]byte
	err    error
}

func (s *recordingSink) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (s *recordingSink) Play(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, bytes.Clone(pcm))
	return s.err
}

func (s *recordingSink) plays() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played
}

type fixedSource struct {
	encoding audio.EncodingInfo
	audio    []byte
	windows  []time.Duration
}

func (s *fixedSource) EncodingInfo() audio.EncodingInfo {
	return s.encoding
}

func (s *fixedSource) Record(ctx context.Context, duration time.Duration) ([]byte, error) {
	s.windows = append(s.windows, duration)
	return s.audio, ctx.Err()
}

type failingHistory struct{}

func (failingHistory) AppendCompletedTurn(conversations.Turn) error {
	return errors.New("disk full")
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(event events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) count(kind events.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, event := range l.events {
		if event.Kind() == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) speechEnded() []events.TurnSpeechEnded {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ended []events.TurnSpeechEnded
	for _, event := range l.events {
		if typed, ok := event.(events.TurnSpeechEnded); ok {
			ended = append(ended, typed)
		}
	}
	return ended
}

func startSession(t *testing.T, transport realtime.Transport, opts ...SessionOption) *Session {
	t.Helper()

	session := NewSession(testConfig(), transport, opts...)
	if err := session.StartConversation(context.Background()); err != nil {
		t.Fatalf("expected conversation to start, got %v", err)
	}
	t.Cleanup(func() { session.StopConversation() })
	return session
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

func tone(amplitude int16, d time.Duration) []byte {
	encoding := audio.GetDefaultEncodingInfo()
	samples := make([]int16, encoding.BytesFor(d)/2)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return audio.Int16ToBytes(samples)
}
