package session

import (
	"sort"
	"sync"
	"time"

	"quiz-coordinator/internal/domain"
)

type answerKey struct {
	participantID string
	questionIndex int
}

// AnswerLedger records at most one answer per (participant, question) pair.
// First write wins; later submissions for the same pair are rejected, never
// overwritten. Remote answers arriving over the channel pass through the same
// rule, which absorbs duplicate delivery.
type AnswerLedger struct {
	now func() time.Time

	mu      sync.Mutex
	answers map[answerKey]domain.Answer
}

func NewAnswerLedger() *AnswerLedger {
	return newAnswerLedgerWithClock(time.Now)
}

func newAnswerLedgerWithClock(now func() time.Time) *AnswerLedger {
	return &AnswerLedger{
		now:     now,
		answers: make(map[answerKey]domain.Answer),
	}
}

// Submit records a local answer for the given round. Correctness is an exact
// match against the round's answer.
func (l *AnswerLedger) Submit(participantID string, round domain.QuestionRound, value string) (domain.Answer, error) {
	answer := domain.Answer{
		ParticipantID:  participantID,
		QuestionIndex:  round.Index,
		SubmittedValue: value,
		IsCorrect:      value == round.CorrectAnswer,
		SubmittedAt:    l.now(),
	}
	return l.record(answer)
}

// Record stores an already-built answer (typically one received over the
// channel from another participant).
func (l *AnswerLedger) Record(answer domain.Answer) (domain.Answer, error) {
	return l.record(answer)
}

func (l *AnswerLedger) record(answer domain.Answer) (domain.Answer, error) {
	key := answerKey{participantID: answer.ParticipantID, questionIndex: answer.QuestionIndex}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.answers[key]; ok {
		return existing, domain.ErrDuplicateAnswer
	}
	l.answers[key] = answer
	return answer, nil
}

// CountFor reports how many answers are recorded for a question.
func (l *AnswerLedger) CountFor(questionIndex int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for key := range l.answers {
		if key.questionIndex == questionIndex {
			count++
		}
	}
	return count
}

// CloseRound returns all recorded answers for one question, ordered by
// participant id for determinism. Participants who never submitted are simply
// absent; the score engine treats them as wrong with zero contribution.
func (l *AnswerLedger) CloseRound(questionIndex int) []domain.Answer {
	l.mu.Lock()
	defer l.mu.Unlock()
	answers := make([]domain.Answer, 0)
	for key, answer := range l.answers {
		if key.questionIndex == questionIndex {
			answers = append(answers, answer)
		}
	}
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].ParticipantID < answers[j].ParticipantID
	})
	return answers
}
