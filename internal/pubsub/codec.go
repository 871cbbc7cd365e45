package pubsub

import (
	"encoding/json"
	"fmt"

	"quiz-coordinator/internal/domain"
)

// EncodeEvent serializes an event for the wire.
func EncodeEvent(ev domain.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses a wire payload into a tagged event, rejecting unknown
// types and shapes that do not match their tag.
func DecodeEvent(data []byte) (domain.Event, error) {
	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrUnknownEvent, err)
	}
	switch ev.Type {
	case domain.EventSessionStarted, domain.EventRoundAdvanced, domain.EventSessionFinished:
		if ev.State == nil {
			return domain.Event{}, fmt.Errorf("%w: %s without state", domain.ErrUnknownEvent, ev.Type)
		}
	case domain.EventAnswerSubmitted:
		if ev.Answer == nil {
			return domain.Event{}, fmt.Errorf("%w: answer event without answer", domain.ErrUnknownEvent)
		}
	default:
		return domain.Event{}, fmt.Errorf("%w: type %q", domain.ErrUnknownEvent, ev.Type)
	}
	return ev, nil
}
