package events

const (
	// KindConnectionReconnecting identifies the start of a reconnect attempt.
	KindConnectionReconnecting Kind = "connection.reconnecting"
	// KindConnectionReconnected identifies a successful reconnect.
	KindConnectionReconnected Kind = "connection.reconnected"
)

// ConnectionReconnecting carries the error that caused a reconnect.
type ConnectionReconnecting struct {
	Base
	Provider string
	Cause    error
}

// NewConnectionReconnecting creates a connection reconnecting event.
func NewConnectionReconnecting(provider string, cause error) ConnectionReconnecting {
	return ConnectionReconnecting{Base: NewBase(KindConnectionReconnecting), Provider: provider, Cause: cause}
}

// ConnectionReconnected marks a restored connection.
type ConnectionReconnected struct {
	Base
	Provider string
}

// NewConnectionReconnected creates a connection reconnected event.
func NewConnectionReconnected(provider string) ConnectionReconnected {
	return ConnectionReconnected{Base: NewBase(KindConnectionReconnected), Provider: provider}
}
