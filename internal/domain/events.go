package domain

// EventType tags a broadcast variant. Payload shapes are fixed per type so
// mirrors can reject unknown or malformed events safely.
type EventType string

const (
	// EventSessionStarted carries the initial full state when the host starts the session.
	EventSessionStarted EventType = "sessionStarted"
	// EventRoundAdvanced carries the full state after any host-driven phase move.
	EventRoundAdvanced EventType = "roundAdvanced"
	// EventSessionFinished carries the terminal state including final scores.
	EventSessionFinished EventType = "sessionFinished"
	// EventAnswerSubmitted carries a single participant's answer record. It has
	// no sequence ordering: each participant owns their answer slot exclusively
	// and the ledger's first-write-wins rule absorbs duplicates.
	EventAnswerSubmitted EventType = "answerSubmitted"
)

// Event is the tagged broadcast envelope. Phase events (SessionStarted,
// RoundAdvanced, SessionFinished) populate State and carry a monotonically
// increasing Sequence; answer events populate Answer and leave Sequence zero.
type Event struct {
	Type     EventType     `json:"type"`
	Sequence uint64        `json:"sequence,omitempty"`
	State    *SessionState `json:"state,omitempty"`
	Answer   *Answer       `json:"answer,omitempty"`
}

// IsPhaseEvent reports whether the event participates in sequence ordering.
func (e Event) IsPhaseEvent() bool {
	switch e.Type {
	case EventSessionStarted, EventRoundAdvanced, EventSessionFinished:
		return true
	}
	return false
}
