package events

// KindSessionStateChanged identifies a session state transition.
const KindSessionStateChanged Kind = "session_state.changed"

// SessionStateChanged carries a session state transition. Err is set when
// the transition was caused by a failure.
type SessionStateChanged struct {
	Base
	From string
	To   string
	Err  error
}

// NewSessionStateChanged creates a session state changed event.
func NewSessionStateChanged(from, to string, err error) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), From: from, To: to, Err: err}
}
