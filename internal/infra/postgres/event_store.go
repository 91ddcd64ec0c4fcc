package postgres

import (
	"context"
	"fmt"
	"time"

	"trivia-game-service/internal/domain"
	"github.com/uptrace/bun"
)

// EventStore appends answer events to the answer_events table. Rows are
// immutable once written; the store never updates or deletes them.
type EventStore struct {
	db *bun.DB
}

func NewEventStore(db *bun.DB) *EventStore {
	return &EventStore{db: db}
}

// RecordAnswer computes correctness from the question itself, never trusting
// a caller-provided flag, and appends the event in a single insert. Foreign
// keys on player_id and question_id enforce referential integrity; a
// violation surfaces as domain.ErrIntegrityViolation.
func (s *EventStore) RecordAnswer(ctx context.Context, playerID int64, question domain.Question, chosenIndex int, answeredAt time.Time) (domain.AnswerEvent, error) {
	event := domain.AnswerEvent{
		PlayerID:    playerID,
		QuestionID:  question.ID,
		ChosenIndex: chosenIndex,
		IsCorrect:   question.IsCorrect(chosenIndex),
		Category:    question.Category,
		Difficulty:  question.Difficulty,
		AnsweredAt:  answeredAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(&event).Returning("id").Exec(ctx); err != nil {
		if sqlState(err) == "23503" {
			return domain.AnswerEvent{}, domain.ErrIntegrityViolation
		}
		return domain.AnswerEvent{}, fmt.Errorf("insert answer event: %w", err)
	}
	return event, nil
}

// Events returns the player's events ordered by answered_at ascending, with
// id as the tie-breaker for events written in the same instant.
func (s *EventStore) Events(ctx context.Context, playerID int64, filter domain.QuestionFilter) ([]domain.AnswerEvent, error) {
	events := make([]domain.AnswerEvent, 0)
	q := s.db.NewSelect().Model(&events).Where("player_id = ?", playerID)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Difficulty != "" {
		q = q.Where("difficulty = ?", filter.Difficulty)
	}
	if err := q.Order("answered_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select answer events: %w", err)
	}
	return events, nil
}

// AnsweredQuestionIDs returns the distinct question ids the player has ever
// answered.
func (s *EventStore) AnsweredQuestionIDs(ctx context.Context, playerID int64) ([]int64, error) {
	ids := make([]int64, 0)
	err := s.db.NewSelect().
		Model((*domain.AnswerEvent)(nil)).
		ColumnExpr("DISTINCT question_id").
		Where("player_id = ?", playerID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select answered question ids: %w", err)
	}
	return ids, nil
}
