package events

import "github.com/google/uuid"

// KindAssistantSpeechFrame identifies synthesized assistant speech audio.
const KindAssistantSpeechFrame Kind = "assistant_speech.frame"

// AssistantSpeechFrame carries a synthesized assistant speech audio frame as
// it arrives from the provider.
type AssistantSpeechFrame struct {
	Base
	TurnID uuid.UUID
	Audio  []byte
}

// NewAssistantSpeechFrame creates an assistant speech audio frame event.
func NewAssistantSpeechFrame(turnID uuid.UUID, audio []byte) AssistantSpeechFrame {
	return AssistantSpeechFrame{Base: NewBase(KindAssistantSpeechFrame), TurnID: turnID, Audio: audio}
}
