package session

import (
	"testing"
	"time"

	"quiz-coordinator/internal/domain"
)

func scoringRound() domain.QuestionRound {
	opens := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)
	return domain.QuestionRound{
		Index:         0,
		CorrectAnswer: "Paris",
		OpensAt:       opens,
		ClosesAt:      opens.Add(100 * time.Second),
	}
}

func TestScoreRoundCorrectAndWrong(t *testing.T) {
	engine := NewScoreEngine(100, 10)
	round := scoringRound()

	answers := []domain.Answer{
		{ParticipantID: "A", QuestionIndex: 0, SubmittedValue: "Paris", IsCorrect: true, SubmittedAt: round.OpensAt},
		{ParticipantID: "B", QuestionIndex: 0, SubmittedValue: "Lyon", IsCorrect: false, SubmittedAt: round.OpensAt},
	}

	deltas := engine.ScoreRound(round, answers, []string{"A", "B"})

	if a := deltas["A"]; a.CorrectCount != 1 || a.WrongCount != 0 || a.XPDelta <= 0 {
		t.Fatalf("unexpected delta for A: %+v", a)
	}
	if b := deltas["B"]; b.WrongCount != 1 || b.CorrectCount != 0 || b.XPDelta != 0 {
		t.Fatalf("unexpected delta for B: %+v", b)
	}
}

func TestScoreRoundMissingAnswerCountsWrong(t *testing.T) {
	engine := NewScoreEngine(100, 10)
	deltas := engine.ScoreRound(scoringRound(), nil, []string{"A"})

	if a := deltas["A"]; a.WrongCount != 1 || a.XPDelta != 0 {
		t.Fatalf("expected missing answer to count wrong with zero xp, got %+v", a)
	}
}

func TestXPLinearDecay(t *testing.T) {
	engine := NewScoreEngine(100, 10)
	round := scoringRound()

	at := func(offset time.Duration) int {
		deltas := engine.ScoreRound(round, []domain.Answer{
			{ParticipantID: "A", IsCorrect: true, SubmittedAt: round.OpensAt.Add(offset)},
		}, nil)
		return deltas["A"].XPDelta
	}

	if got := at(0); got != 100 {
		t.Fatalf("expected full base at open, got %d", got)
	}
	if got := at(50 * time.Second); got != 55 {
		t.Fatalf("expected midpoint xp 55, got %d", got)
	}
	if got := at(100 * time.Second); got != 10 {
		t.Fatalf("expected floor at close, got %d", got)
	}
	// Submissions outside the window clamp to the bounds.
	if got := at(2 * time.Minute); got != 10 {
		t.Fatalf("expected clamp to floor after close, got %d", got)
	}
}

func TestAccumulateIsAdditive(t *testing.T) {
	totals := map[string]domain.ScoreEntry{
		"A": {ParticipantID: "A", CorrectCount: 2, XPDelta: 150},
	}

	Accumulate(totals, map[string]domain.ScoreEntry{
		"A": {ParticipantID: "A", CorrectCount: 1, XPDelta: 40},
		"B": {ParticipantID: "B", WrongCount: 1},
	})

	if a := totals["A"]; a.CorrectCount != 3 || a.XPDelta != 190 {
		t.Fatalf("unexpected totals for A: %+v", a)
	}
	if b := totals["B"]; b.WrongCount != 1 {
		t.Fatalf("unexpected totals for B: %+v", b)
	}
}
