package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-game-service/internal/domain"
)

func TestContentStoreCaches(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticQuestionLoader(samplePool()),
	}
	store := NewContentStore(loader, time.Minute)

	if _, err := store.CountTotal(context.Background(), domain.QuestionFilter{}); err != nil {
		t.Fatalf("count: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := store.SampleUnseen(context.Background(), nil, domain.QuestionFilter{}); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestSampleUnseenExcludes(t *testing.T) {
	store := NewContentStore(NewStaticQuestionLoader(samplePool()), time.Minute)

	excluded := map[int64]struct{}{1: {}, 2: {}}
	question, err := store.SampleUnseen(context.Background(), excluded, domain.QuestionFilter{})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if question.ID != 3 {
		t.Fatalf("expected the only eligible question 3, got %d", question.ID)
	}

	excluded[3] = struct{}{}
	if _, err := store.SampleUnseen(context.Background(), excluded, domain.QuestionFilter{}); !errors.Is(err, domain.ErrNoQuestionsRemaining) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
}

func TestFilterNarrowsPool(t *testing.T) {
	store := NewContentStore(NewStaticQuestionLoader(samplePool()), time.Minute)
	filter := domain.QuestionFilter{Category: "Science"}

	count, err := store.CountTotal(context.Background(), filter)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 Science question, got %d", count)
	}

	question, err := store.SampleUnseen(context.Background(), nil, filter)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if question.Category != "Science" {
		t.Fatalf("expected Science question, got %+v", question)
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
