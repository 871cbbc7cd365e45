package pubsub

import (
	"errors"
	"testing"

	"quiz-coordinator/internal/domain"
)

func TestEncodeDecodePhaseEvent(t *testing.T) {
	ev := domain.Event{
		Type:     domain.EventRoundAdvanced,
		Sequence: 4,
		State: &domain.SessionState{
			SessionID:            "s1",
			Phase:                domain.PhaseResolving,
			CurrentQuestionIndex: 2,
			Scores: map[string]domain.ScoreEntry{
				"A": {ParticipantID: "A", CorrectCount: 2, XPDelta: 150},
			},
		},
	}

	data, err := EncodeEvent(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Sequence != 4 || decoded.State.Phase != domain.PhaseResolving {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if decoded.State.Scores["A"].XPDelta != 150 {
		t.Fatalf("scores lost in round trip: %+v", decoded.State.Scores)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"type":"mystery","sequence":1}`)); !errors.Is(err, domain.ErrUnknownEvent) {
		t.Fatalf("expected unknown event error, got %v", err)
	}
}

func TestDecodeRejectsShapeMismatch(t *testing.T) {
	// Phase event without state.
	if _, err := DecodeEvent([]byte(`{"type":"sessionStarted","sequence":1}`)); !errors.Is(err, domain.ErrUnknownEvent) {
		t.Fatalf("expected shape rejection, got %v", err)
	}
	// Answer event without answer.
	if _, err := DecodeEvent([]byte(`{"type":"answerSubmitted"}`)); !errors.Is(err, domain.ErrUnknownEvent) {
		t.Fatalf("expected shape rejection, got %v", err)
	}
	// Not JSON at all.
	if _, err := DecodeEvent([]byte(`nope`)); !errors.Is(err, domain.ErrUnknownEvent) {
		t.Fatalf("expected parse rejection, got %v", err)
	}
}
