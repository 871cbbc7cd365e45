package domain

import "time"

// Participant identifies one member of a session. Identity is stable for the
// session lifetime; IsHost is fixed at session creation and never transferred.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
}

// PresenceRecord is the liveness/readiness signal each participant publishes
// for itself. Readers treat the presence map as a read-only snapshot; a record
// with no update inside the liveness window is stale and excluded from
// readiness counts.
type PresenceRecord struct {
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
	Ready         bool      `json:"ready"`
	LastSeenAt    time.Time `json:"lastSeenAt"`
}

// SessionPhase is the coordinator's stage in the session state machine.
type SessionPhase string

const (
	PhaseLobby     SessionPhase = "lobby"
	PhaseAnswering SessionPhase = "answering"
	PhaseResolving SessionPhase = "resolving"
	PhaseFinished  SessionPhase = "finished"
)

// QuestionRound is one question's answer-collection window. Immutable once
// broadcast by the host.
type QuestionRound struct {
	Index         int       `json:"index"`
	Prompt        string    `json:"prompt"`
	CorrectAnswer string    `json:"correctAnswer"`
	Distractors   []string  `json:"distractors"`
	OpensAt       time.Time `json:"opensAt"`
	ClosesAt      time.Time `json:"closesAt"`
}

// QuestionSet is the ordered list of rounds a session plays through.
type QuestionSet struct {
	ID     string          `json:"id"`
	DeckID string          `json:"deckId"`
	Rounds []QuestionRound `json:"rounds"`
}

// SessionMetadata is supplied by the external metadata provider at session
// creation and is read-only to the coordinator.
type SessionMetadata struct {
	SessionID      string      `json:"sessionId"`
	HostID         string      `json:"hostId"`
	DeckID         string      `json:"deckId"`
	QuestionSet    QuestionSet `json:"questionSet"`
	TotalQuestions int         `json:"totalQuestions"`
}

// Answer records one submission. At most one Answer exists per
// (participant, question index) pair; first write wins.
type Answer struct {
	ParticipantID  string    `json:"participantId"`
	QuestionIndex  int       `json:"questionIndex"`
	SubmittedValue string    `json:"submittedValue"`
	IsCorrect      bool      `json:"isCorrect"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// ScoreEntry accumulates across rounds and is immutable once the session
// reaches PhaseFinished.
type ScoreEntry struct {
	ParticipantID string `json:"participantId"`
	CorrectCount  int    `json:"correctCount"`
	WrongCount    int    `json:"wrongCount"`
	XPDelta       int    `json:"xpDelta"`
}

// SessionState is the full aggregate carried by every phase-change broadcast.
// Events are self-contained replacements, never deltas, so duplicate or
// reordered delivery cannot corrupt a mirror.
type SessionState struct {
	SessionID            string                `json:"sessionId"`
	Phase                SessionPhase          `json:"phase"`
	CurrentQuestionIndex int                   `json:"currentQuestionIndex"`
	CurrentRound         *QuestionRound        `json:"currentRound,omitempty"`
	Scores               map[string]ScoreEntry `json:"scores"`
}

// RankedEntry is one row of the final leaderboard.
type RankedEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	CorrectCount  int    `json:"correctCount"`
	WrongCount    int    `json:"wrongCount"`
	XPDelta       int    `json:"xpDelta"`
}

// SessionResults is what the persistence sink receives, exactly once per
// session (idempotency key = SessionID).
type SessionResults struct {
	SessionID  string        `json:"sessionId"`
	RankedList []RankedEntry `json:"rankedList"`
	FinishedAt time.Time     `json:"finishedAt"`
}
