package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trivia-game-service/internal/domain"
)

// PlayerChecker reports whether a player id exists. The in-memory
// AccountStore satisfies it.
type PlayerChecker interface {
	Exists(playerID int64) bool
}

// EventStore is an in-memory append-only implementation of app.EventStore.
type EventStore struct {
	mu      sync.RWMutex
	nextID  int64
	events  []domain.AnswerEvent
	players PlayerChecker
}

// NewEventStore builds an event store. players may be nil, in which case
// referential integrity against players is not checked.
func NewEventStore(players PlayerChecker) *EventStore {
	return &EventStore{nextID: 1, players: players}
}

func (s *EventStore) RecordAnswer(_ context.Context, playerID int64, question domain.Question, chosenIndex int, answeredAt time.Time) (domain.AnswerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.players != nil && !s.players.Exists(playerID) {
		return domain.AnswerEvent{}, domain.ErrIntegrityViolation
	}

	event := domain.AnswerEvent{
		ID:          s.nextID,
		PlayerID:    playerID,
		QuestionID:  question.ID,
		ChosenIndex: chosenIndex,
		IsCorrect:   question.IsCorrect(chosenIndex),
		Category:    question.Category,
		Difficulty:  question.Difficulty,
		AnsweredAt:  answeredAt.UTC(),
	}
	s.nextID++
	s.events = append(s.events, event)
	return event, nil
}

func (s *EventStore) Events(_ context.Context, playerID int64, filter domain.QuestionFilter) ([]domain.AnswerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]domain.AnswerEvent, 0)
	for _, ev := range s.events {
		if ev.PlayerID != playerID {
			continue
		}
		if filter.Category != "" && filter.Category != ev.Category {
			continue
		}
		if filter.Difficulty != "" && filter.Difficulty != ev.Difficulty {
			continue
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].AnsweredAt.Equal(events[j].AnsweredAt) {
			return events[i].AnsweredAt.Before(events[j].AnsweredAt)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (s *EventStore) AnsweredQuestionIDs(_ context.Context, playerID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, ev := range s.events {
		if ev.PlayerID != playerID {
			continue
		}
		if _, ok := seen[ev.QuestionID]; ok {
			continue
		}
		seen[ev.QuestionID] = struct{}{}
		ids = append(ids, ev.QuestionID)
	}
	return ids, nil
}
