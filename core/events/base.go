package events

import "time"

// Kind names an event as "<namespace>.<name>", for example
// "turn_state.completed".
type Kind string

// Event is anything a Session reports to its event handler. Handlers run on
// the goroutine that drives the session and must not block it.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base is embedded by every session event. It stamps the event when it is
// built, which for reply segments and frames is when the fragment arrived.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
