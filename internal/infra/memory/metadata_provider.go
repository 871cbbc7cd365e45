package memory

import (
	"context"
	"sync"

	"quiz-coordinator/internal/domain"
)

// QuestionSetSource resolves a question set id to its content.
type QuestionSetSource interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// SessionRef is the registry row for one session: who hosts it and which
// deck/question set it plays.
type SessionRef struct {
	HostID        string
	DeckID        string
	QuestionSetID string
}

// MetadataProvider serves session metadata from an in-memory registry plus a
// question-set source. It stands in for the external session-creation
// collaborator.
type MetadataProvider struct {
	sets QuestionSetSource

	mu       sync.RWMutex
	sessions map[string]SessionRef
}

func NewMetadataProvider(sets QuestionSetSource) *MetadataProvider {
	return &MetadataProvider{
		sets:     sets,
		sessions: make(map[string]SessionRef),
	}
}

// Register adds or replaces a session row.
func (p *MetadataProvider) Register(sessionID string, ref SessionRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sessionID] = ref
}

func (p *MetadataProvider) GetSessionMeta(ctx context.Context, sessionID string) (domain.SessionMetadata, error) {
	p.mu.RLock()
	ref, ok := p.sessions[sessionID]
	p.mu.RUnlock()
	if !ok {
		return domain.SessionMetadata{}, domain.ErrSessionNotFound
	}

	set, err := p.sets.GetQuestionSet(ctx, ref.QuestionSetID)
	if err != nil {
		return domain.SessionMetadata{}, err
	}

	return domain.SessionMetadata{
		SessionID:      sessionID,
		HostID:         ref.HostID,
		DeckID:         ref.DeckID,
		QuestionSet:    set,
		TotalQuestions: len(set.Rounds),
	}, nil
}
