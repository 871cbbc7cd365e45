package postgres

import (
	"context"
	"fmt"

	"quiz-coordinator/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionSetSource resolves question-set content (usually the cached
// repository layered over QuestionSetLoader).
type QuestionSetSource interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// MetadataProvider resolves session rows created by the surrounding product
// and attaches their question sets.
type MetadataProvider struct {
	pool *pgxpool.Pool
	sets QuestionSetSource
}

func NewMetadataProvider(pool *pgxpool.Pool, sets QuestionSetSource) *MetadataProvider {
	return &MetadataProvider{pool: pool, sets: sets}
}

func (p *MetadataProvider) GetSessionMeta(ctx context.Context, sessionID string) (domain.SessionMetadata, error) {
	var hostID, deckID, setID string
	err := p.pool.QueryRow(ctx,
		`SELECT host_id, deck_id, question_set_id FROM sessions WHERE id=$1`, sessionID).
		Scan(&hostID, &deckID, &setID)
	if err == pgx.ErrNoRows {
		return domain.SessionMetadata{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionMetadata{}, fmt.Errorf("load session: %w", err)
	}

	set, err := p.sets.GetQuestionSet(ctx, setID)
	if err != nil {
		return domain.SessionMetadata{}, err
	}

	return domain.SessionMetadata{
		SessionID:      sessionID,
		HostID:         hostID,
		DeckID:         deckID,
		QuestionSet:    set,
		TotalQuestions: len(set.Rounds),
	}, nil
}
