package orchestration

// State is the lifecycle state of a Session.
//
//	Idle → Connecting → Ready → Streaming → Finalizing → Ready
//
// Closed is entered only through StopConversation, Failed from any state
// other than Idle and Closed on a failure the session cannot recover from.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateReady
	StateStreaming
	StateFinalizing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "error"
	}
	return "unknown"
}

// inTurn reports whether a turn owns the session.
func (s State) inTurn() bool {
	return s == StateStreaming || s == StateFinalizing
}
