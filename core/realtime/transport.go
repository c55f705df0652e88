package realtime

import (
	"context"
	"iter"
)

// Transport is a provider bound factory for realtime connections. Creating a
// Transport performs no I/O.
type Transport interface {
	Provider() Provider
	// Connect opens a connection and sends the handshake exactly once
	// before returning it.
	Connect(ctx context.Context, handshake Handshake) (Connection, error)
}

// Connection is a live, configured duplex session with a remote provider.
type Connection interface {
	Send(ctx context.Context, fragment Fragment) error
	// Receive yields inbound fragments in arrival order. The sequence ends
	// when the peer closes the connection and yields a single error on
	// protocol or I/O failure. It must only be consumed once.
	Receive() iter.Seq2[Fragment, error]
	// Close is idempotent.
	Close() error
}

// Speaker is implemented by connections able to synthesize speech outside
// of a conversational turn.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// Speak synthesizes text on conn, failing with a CapabilityError when the
// provider behind it cannot.
func Speak(ctx context.Context, provider Provider, conn Connection, text string) ([]byte, error) {
	speaker, ok := conn.(Speaker)
	if !ok {
		return nil, &CapabilityError{Provider: provider, Operation: OperationSpeak}
	}
	return speaker.Speak(ctx, text)
}
