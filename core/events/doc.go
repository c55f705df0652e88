// Package events defines the typed voice session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session_state.*
//   - turn_state.*
//   - assistant_response.*
//   - assistant_speech.*
//   - connection.*
//
// Semantics used across the package:
//
//   - Frame: binary audio frame/chunk payload.
//   - Segment: append-only text piece emitted in stream order.
//
// session_state events
//
//   - SessionStateChanged (session_state.changed): the session moved between
//     Idle, Connecting, Ready, Streaming, Finalizing, Closed and Failed.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): a turn began streaming user input.
//   - TurnSpeechEnded (turn_state.speech_ended): user input ended and the
//     reply was requested; explicit when the caller signalled it.
//   - TurnCompleted (turn_state.completed): the assembled turn was delivered,
//     possibly flagged as timed out.
//   - TurnFailed (turn_state.failed): the turn failed and its partial result
//     was discarded.
//   - TurnCancelled (turn_state.cancelled): the conversation stopped while
//     the turn was in flight.
//
// assistant_response events
//
//   - AssistantResponseSegment (assistant_response.segment): reply text
//     delta, in arrival order.
//
// assistant_speech events
//
//   - AssistantSpeechFrame (assistant_speech.frame): reply audio delta, in
//     arrival order.
//
// connection events
//
//   - ConnectionReconnecting (connection.reconnecting): a retryable
//     transport failure started the single reconnect attempt.
//   - ConnectionReconnected (connection.reconnected): the reconnect
//     succeeded and the turn resumed.
package events
