package app

import (
	"context"

	"trivia-game-service/internal/domain"
)

// Aggregator derives summary statistics from the answer event log plus
// current content-store counts. It keeps no state of its own: recomputing on
// an unchanged log yields identical results.
type Aggregator struct {
	events  EventStore
	content ContentStore
}

func NewAggregator(events EventStore, content ContentStore) *Aggregator {
	return &Aggregator{events: events, content: content}
}

// Statistics computes the full summary for one player, optionally narrowed by
// a filter.
func (a *Aggregator) Statistics(ctx context.Context, playerID int64, filter domain.QuestionFilter) (domain.Statistics, error) {
	events, err := a.events.Events(ctx, playerID, filter)
	if err != nil {
		return domain.Statistics{}, err
	}
	total, err := a.content.CountTotal(ctx, filter)
	if err != nil {
		return domain.Statistics{}, err
	}

	correct := 0
	distinct := make(map[int64]struct{}, len(events))
	for _, ev := range events {
		if ev.IsCorrect {
			correct++
		}
		distinct[ev.QuestionID] = struct{}{}
	}

	unanswered := total - len(distinct)
	if unanswered < 0 {
		// Content shrank since the events were written.
		unanswered = 0
	}

	return domain.Statistics{
		TotalAnswered:   len(events),
		CorrectCount:    correct,
		Accuracy:        Accuracy(correct, len(events)),
		PerCategory:     PerCategoryAccuracy(events),
		CurrentStreak:   CurrentStreak(events),
		UnansweredCount: unanswered,
	}, nil
}

// Accuracy is correct/total in [0,1]; 0 when nothing was answered.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// PerCategoryAccuracy groups events by category and computes accuracy over
// each group.
func PerCategoryAccuracy(events []domain.AnswerEvent) map[string]domain.CategoryStats {
	byCategory := make(map[string]domain.CategoryStats)
	for _, ev := range events {
		stats := byCategory[ev.Category]
		stats.Answered++
		if ev.IsCorrect {
			stats.Correct++
		}
		byCategory[ev.Category] = stats
	}
	for category, stats := range byCategory {
		stats.Accuracy = Accuracy(stats.Correct, stats.Answered)
		byCategory[category] = stats
	}
	return byCategory
}

// CurrentStreak is the length of the trailing run of correct answers in
// events ordered by answered_at ascending; 0 if the latest answer was wrong.
func CurrentStreak(events []domain.AnswerEvent) int {
	streak := 0
	for i := len(events) - 1; i >= 0; i-- {
		if !events[i].IsCorrect {
			break
		}
		streak++
	}
	return streak
}
