package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-coordinator/internal/domain"
)

// ResultsSink receives the final ranked list. Implementations must be
// idempotent on SessionID so a replayed finish cannot double-persist.
type ResultsSink interface {
	PersistResults(ctx context.Context, results domain.SessionResults) error
}

// ResultsAggregator assembles the final leaderboard and emits it to the
// persistence sink exactly once per session.
type ResultsAggregator struct {
	sink ResultsSink

	mu        sync.Mutex
	persisted map[string]domain.SessionResults
}

func NewResultsAggregator(sink ResultsSink) *ResultsAggregator {
	return &ResultsAggregator{
		sink:      sink,
		persisted: make(map[string]domain.SessionResults),
	}
}

// Finalize ranks the accumulated scores and persists them. A second call for
// the same session (duplicate Finished broadcast) returns the cached results
// without touching the sink again.
func (a *ResultsAggregator) Finalize(ctx context.Context, sessionID string, scores map[string]domain.ScoreEntry, names map[string]string, finishedAt time.Time) (domain.SessionResults, error) {
	a.mu.Lock()
	if cached, ok := a.persisted[sessionID]; ok {
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	results := domain.SessionResults{
		SessionID:  sessionID,
		RankedList: Rank(scores, names),
		FinishedAt: finishedAt,
	}

	if a.sink != nil {
		if err := a.sink.PersistResults(ctx, results); err != nil {
			return domain.SessionResults{}, err
		}
	}

	a.mu.Lock()
	a.persisted[sessionID] = results
	a.mu.Unlock()
	return results, nil
}

// Rank orders score entries by correct count descending, then xp descending,
// then participant id ascending. The order is total, so every client computes
// the identical leaderboard.
func Rank(scores map[string]domain.ScoreEntry, names map[string]string) []domain.RankedEntry {
	entries := make([]domain.RankedEntry, 0, len(scores))
	for id, score := range scores {
		entries = append(entries, domain.RankedEntry{
			ParticipantID: id,
			DisplayName:   names[id],
			CorrectCount:  score.CorrectCount,
			WrongCount:    score.WrongCount,
			XPDelta:       score.XPDelta,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CorrectCount != entries[j].CorrectCount {
			return entries[i].CorrectCount > entries[j].CorrectCount
		}
		if entries[i].XPDelta != entries[j].XPDelta {
			return entries[i].XPDelta > entries[j].XPDelta
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
