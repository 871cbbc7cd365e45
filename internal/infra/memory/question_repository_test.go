package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-coordinator/internal/domain"
)

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:     "set-1",
		DeckID: "deck-1",
		Rounds: []domain.QuestionRound{
			{Prompt: "What is 2 + 2?", CorrectAnswer: "4", Distractors: []string{"3", "5"}},
		},
	}
}

func TestQuestionSetRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuestionSetLoader: NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
			"set-1": sampleSet(),
		}),
	}
	repo := NewQuestionSetRepository(loader, time.Minute)

	if _, err := repo.GetQuestionSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuestionSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestStaticLoaderUnknownSet(t *testing.T) {
	loader := NewStaticQuestionSetLoader(nil)
	if _, err := loader.LoadQuestionSet(context.Background(), "missing"); !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

type countingLoader struct {
	QuestionSetLoader
	calls int
}

func (l *countingLoader) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	l.calls++
	return l.QuestionSetLoader.LoadQuestionSet(ctx, setID)
}

func TestMetadataProviderResolvesSession(t *testing.T) {
	repo := NewQuestionSetRepository(NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
		"set-1": sampleSet(),
	}), time.Minute)
	provider := NewMetadataProvider(repo)
	provider.Register("s1", SessionRef{HostID: "H", DeckID: "deck-1", QuestionSetID: "set-1"})

	meta, err := provider.GetSessionMeta(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.HostID != "H" || meta.TotalQuestions != 1 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	if _, err := provider.GetSessionMeta(context.Background(), "unknown"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}
