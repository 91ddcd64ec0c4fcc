package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// Player is a registered account. Username is immutable after registration;
// the password is stored only as a bcrypt hash.
type Player struct {
	bun.BaseModel `bun:"table:players"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Username     string    `bun:"username,notnull,unique" json:"username"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// Question is a trivia question document owned by the content store and
// read-only to the rest of the system. CorrectIndex is always a valid index
// into Choices.
type Question struct {
	ID           int64    `json:"id"`
	Text         string   `json:"text"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_choice_index"`
	Category     string   `json:"category"`
	Difficulty   string   `json:"difficulty"`
}

// IsCorrect reports whether the chosen index matches the correct choice.
func (q Question) IsCorrect(chosenIndex int) bool {
	return chosenIndex == q.CorrectIndex
}

// AnswerEvent is one immutable record of an answered question. The event log
// is append-only and is the single source of truth for all statistics.
type AnswerEvent struct {
	bun.BaseModel `bun:"table:answer_events"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	PlayerID    int64     `bun:"player_id,notnull" json:"playerId"`
	QuestionID  int64     `bun:"question_id,notnull" json:"questionId"`
	ChosenIndex int       `bun:"chosen_index,notnull" json:"chosenIndex"`
	IsCorrect   bool      `bun:"is_correct,notnull" json:"isCorrect"`
	Category    string    `bun:"category" json:"category"`
	Difficulty  string    `bun:"difficulty" json:"difficulty"`
	AnsweredAt  time.Time `bun:"answered_at,notnull" json:"answeredAt"`
}

// QuestionFilter narrows content-store operations to a category and/or
// difficulty. Empty fields match everything.
type QuestionFilter struct {
	Category   string
	Difficulty string
}

// Matches reports whether a question satisfies the filter.
func (f QuestionFilter) Matches(q Question) bool {
	if f.Category != "" && f.Category != q.Category {
		return false
	}
	if f.Difficulty != "" && f.Difficulty != q.Difficulty {
		return false
	}
	return true
}

// CategoryStats is the per-category slice of a player's statistics.
type CategoryStats struct {
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Statistics summarizes a player's event history. Derived on demand from the
// event log and current content counts; never persisted.
type Statistics struct {
	TotalAnswered   int                      `json:"totalAnswered"`
	CorrectCount    int                      `json:"correctCount"`
	Accuracy        float64                  `json:"accuracy"`
	PerCategory     map[string]CategoryStats `json:"perCategory"`
	CurrentStreak   int                      `json:"currentStreak"`
	UnansweredCount int                      `json:"unansweredCount"`
}

// AnswerResult is the outcome of a single submitted answer.
type AnswerResult struct {
	QuestionID   int64 `json:"questionId"`
	ChosenIndex  int   `json:"chosenIndex"`
	CorrectIndex int   `json:"correctIndex"`
	Correct      bool  `json:"correct"`
	Awarded      int   `json:"awarded"`
	Score        int   `json:"score"`
}

// SessionSummary is returned when a session ends.
type SessionSummary struct {
	PlayerID int64 `json:"playerId"`
	Answered int   `json:"answered"`
	Correct  int   `json:"correct"`
	Score    int   `json:"score"`
}
