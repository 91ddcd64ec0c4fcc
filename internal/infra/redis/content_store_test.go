package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestContentStoreCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(samplePool()),
	}
	store := NewContentStore(client, loader, time.Minute)

	if _, err := store.CountTotal(context.Background(), domain.QuestionFilter{}); err != nil {
		t.Fatalf("count: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("questions::") {
		t.Fatalf("expected cache key to be set")
	}

	// Second call should hit the Redis hash, loader not incremented.
	if _, err := store.SampleUnseen(context.Background(), nil, domain.QuestionFilter{}); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestSampleUnseenExhaustion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewContentStore(newClient(mr), memory.NewStaticQuestionLoader(samplePool()), time.Minute)

	excluded := make(map[int64]struct{})
	for i := 0; i < len(samplePool()); i++ {
		question, err := store.SampleUnseen(context.Background(), excluded, domain.QuestionFilter{})
		if err != nil {
			t.Fatalf("sample %d: %v", i, err)
		}
		if _, seen := excluded[question.ID]; seen {
			t.Fatalf("question %d served twice", question.ID)
		}
		excluded[question.ID] = struct{}{}
	}

	if _, err := store.SampleUnseen(context.Background(), excluded, domain.QuestionFilter{}); !errors.Is(err, domain.ErrNoQuestionsRemaining) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
}

func TestFilterKeysAreIndependent(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewContentStore(newClient(mr), memory.NewStaticQuestionLoader(samplePool()), time.Minute)

	total, err := store.CountTotal(context.Background(), domain.QuestionFilter{})
	if err != nil {
		t.Fatalf("count all: %v", err)
	}
	science, err := store.CountTotal(context.Background(), domain.QuestionFilter{Category: "Science"})
	if err != nil {
		t.Fatalf("count science: %v", err)
	}
	if total != 3 || science != 1 {
		t.Fatalf("expected 3 total and 1 Science, got %d and %d", total, science)
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, filter)
}

func samplePool() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "Q1?", Choices: []string{"A", "B", "C", "D"}, CorrectIndex: 0, Category: "Geography", Difficulty: "easy"},
		{ID: 2, Text: "Q2?", Choices: []string{"A", "B", "C", "D"}, CorrectIndex: 1, Category: "Geography", Difficulty: "hard"},
		{ID: 3, Text: "Q3?", Choices: []string{"A", "B", "C", "D"}, CorrectIndex: 2, Category: "Science", Difficulty: "easy"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
