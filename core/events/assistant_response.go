package events

import "github.com/google/uuid"

// KindAssistantResponseSegment identifies streamed assistant response text.
const KindAssistantResponseSegment Kind = "assistant_response.segment"

// AssistantResponseSegment carries a streamed assistant response text segment.
type AssistantResponseSegment struct {
	Base
	TurnID  uuid.UUID
	Segment string
}

// NewAssistantResponseSegment creates an assistant response segment event.
func NewAssistantResponseSegment(turnID uuid.UUID, segment string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), TurnID: turnID, Segment: segment}
}
