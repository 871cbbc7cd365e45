package session

import (
	"time"

	"quiz-coordinator/internal/domain"
)

// ScoreEngine converts a closed round's answers into per-participant score
// deltas. Accumulation across rounds is strictly additive; nothing is ever
// recalculated retroactively.
type ScoreEngine struct {
	xpBase  int
	xpFloor int
}

func NewScoreEngine(xpBase, xpFloor int) *ScoreEngine {
	if xpBase <= 0 {
		xpBase = 100
	}
	if xpFloor < 0 || xpFloor > xpBase {
		xpFloor = xpBase / 10
	}
	return &ScoreEngine{xpBase: xpBase, xpFloor: xpFloor}
}

// ScoreRound produces deltas for one round. Correct answers earn +1 correct
// and xp decaying linearly from full value at OpensAt to the floor at
// ClosesAt. Wrong answers earn +1 wrong and no xp. Every id in expected with
// no recorded answer earns +1 wrong and no xp.
func (e *ScoreEngine) ScoreRound(round domain.QuestionRound, answers []domain.Answer, expected []string) map[string]domain.ScoreEntry {
	deltas := make(map[string]domain.ScoreEntry, len(answers)+len(expected))

	for _, answer := range answers {
		entry := domain.ScoreEntry{ParticipantID: answer.ParticipantID}
		if answer.IsCorrect {
			entry.CorrectCount = 1
			entry.XPDelta = e.xpFor(round, answer.SubmittedAt)
		} else {
			entry.WrongCount = 1
		}
		deltas[answer.ParticipantID] = entry
	}

	for _, id := range expected {
		if _, ok := deltas[id]; ok {
			continue
		}
		deltas[id] = domain.ScoreEntry{ParticipantID: id, WrongCount: 1}
	}

	return deltas
}

// xpFor rewards speed: full base at the round's open, linear decay to the
// floor at its close. Submissions outside the window clamp to the bounds.
func (e *ScoreEngine) xpFor(round domain.QuestionRound, submittedAt time.Time) int {
	window := round.ClosesAt.Sub(round.OpensAt)
	if window <= 0 {
		return e.xpBase
	}
	elapsed := submittedAt.Sub(round.OpensAt)
	if elapsed <= 0 {
		return e.xpBase
	}
	if elapsed >= window {
		return e.xpFloor
	}
	span := float64(e.xpBase - e.xpFloor)
	decayed := span * float64(elapsed) / float64(window)
	return e.xpBase - int(decayed)
}

// Accumulate folds a round's deltas into the running totals in place.
func Accumulate(totals map[string]domain.ScoreEntry, deltas map[string]domain.ScoreEntry) {
	for id, delta := range deltas {
		entry, ok := totals[id]
		if !ok {
			entry = domain.ScoreEntry{ParticipantID: id}
		}
		entry.CorrectCount += delta.CorrectCount
		entry.WrongCount += delta.WrongCount
		entry.XPDelta += delta.XPDelta
		totals[id] = entry
	}
}
