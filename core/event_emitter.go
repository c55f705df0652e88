package orchestration

import "github.com/koscakluka/memoir-voice/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

type eventCallbacks struct {
	handler        func(events.Event)
	onResponse     func(segment string)
	onCancellation func()
}

func newCallbackEventEmitter(callbacks eventCallbacks) eventEmitter {
	if callbacks.handler == nil && callbacks.onResponse == nil && callbacks.onCancellation == nil {
		return noopEventEmitter
	}

	return func(event events.Event) {
		if callbacks.handler != nil {
			callbacks.handler(event)
		}

		switch typedEvent := event.(type) {
		case events.AssistantResponseSegment:
			if callbacks.onResponse != nil {
				callbacks.onResponse(typedEvent.Segment)
			}
		case events.TurnCancelled:
			if callbacks.onCancellation != nil {
				callbacks.onCancellation()
			}
		}
	}
}
