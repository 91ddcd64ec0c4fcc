package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trivia-game-service/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const loadMaxRetries = 3

// QuestionLoader reads question documents (JSONB) from the questions table.
// Transient failures are retried with capped exponential backoff before
// surfacing.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// LoadQuestions returns all question documents matching the filter.
func (l *QuestionLoader) LoadQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	var questions []domain.Question
	op := func() error {
		loaded, err := l.loadOnce(ctx, filter)
		if err != nil {
			return err
		}
		questions = loaded
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), loadMaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return questions, nil
}

func (l *QuestionLoader) loadOnce(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT data FROM questions
		 WHERE ($1 = '' OR data->>'category' = $1)
		   AND ($2 = '' OR data->>'difficulty' = $2)`,
		filter.Category, filter.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var question domain.Question
		if err := json.Unmarshal(raw, &question); err != nil {
			// A malformed document is not transient; don't retry it.
			return nil, backoff.Permanent(fmt.Errorf("unmarshal question: %w", err))
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}
