package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"quiz-coordinator/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultsSink persists final leaderboards. The session id is the primary
// key, so a replayed finish (or a second client persisting the same session)
// is a no-op rather than a duplicate row.
type ResultsSink struct {
	pool *pgxpool.Pool
}

func NewResultsSink(pool *pgxpool.Pool) *ResultsSink {
	return &ResultsSink{pool: pool}
}

func (s *ResultsSink) PersistResults(ctx context.Context, results domain.SessionResults) error {
	ranked, err := json.Marshal(results.RankedList)
	if err != nil {
		return fmt.Errorf("marshal ranked list: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_results (session_id, ranked_list, finished_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id) DO NOTHING`,
		results.SessionID, ranked, results.FinishedAt)
	if err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	return nil
}
