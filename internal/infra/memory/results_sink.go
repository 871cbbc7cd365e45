package memory

import (
	"context"
	"sync"

	"quiz-coordinator/internal/domain"
)

// ResultsSink keeps finalized leaderboards in memory. Idempotent on session
// id: a replayed finish is a no-op.
type ResultsSink struct {
	mu       sync.Mutex
	results  map[string]domain.SessionResults
	persists int
}

func NewResultsSink() *ResultsSink {
	return &ResultsSink{results: make(map[string]domain.SessionResults)}
}

func (s *ResultsSink) PersistResults(_ context.Context, results domain.SessionResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[results.SessionID]; ok {
		return nil
	}
	s.results[results.SessionID] = results
	s.persists++
	return nil
}

// Results returns the stored leaderboard for a session, if any.
func (s *ResultsSink) Results(sessionID string) (domain.SessionResults, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results, ok := s.results[sessionID]
	return results, ok
}

// PersistCount reports how many distinct sessions have been persisted.
func (s *ResultsSink) PersistCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persists
}
