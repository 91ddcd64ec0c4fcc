package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trivia-game-service/internal/domain"
)

// AccountStore abstracts player identity storage (Postgres, in-memory).
type AccountStore interface {
	Register(ctx context.Context, username, password string) (domain.Player, error)
	Authenticate(ctx context.Context, username, password string) (domain.Player, error)
}

// ContentStore provides read-only access to the question collection.
type ContentStore interface {
	// SampleUnseen returns one question chosen uniformly at random from the
	// pool matching the filter, excluding the given ids. Returns
	// domain.ErrNoQuestionsRemaining when the remaining pool is empty.
	SampleUnseen(ctx context.Context, excluded map[int64]struct{}, filter domain.QuestionFilter) (domain.Question, error)
	CountTotal(ctx context.Context, filter domain.QuestionFilter) (int, error)
}

// EventStore appends and reads the answer event log.
type EventStore interface {
	// RecordAnswer computes correctness at write time and appends the event
	// atomically. Fails with domain.ErrIntegrityViolation if the player or
	// question is unknown to the store.
	RecordAnswer(ctx context.Context, playerID int64, question domain.Question, chosenIndex int, answeredAt time.Time) (domain.AnswerEvent, error)
	// Events returns the player's events ordered by answered_at ascending.
	Events(ctx context.Context, playerID int64, filter domain.QuestionFilter) ([]domain.AnswerEvent, error)
	// AnsweredQuestionIDs returns the distinct question ids the player has
	// ever answered.
	AnsweredQuestionIDs(ctx context.Context, playerID int64) ([]int64, error)
}

// SessionConfig carries the gameplay knobs. Passed in at construction time;
// there is no module-level configuration.
type SessionConfig struct {
	// PointsPerCorrect is the score awarded per correct answer; 0 means 1.
	PointsPerCorrect int
	// QuestionsPerSession caps the number of turns; 0 means unlimited.
	QuestionsPerSession int
	// Filter restricts the session to a category and/or difficulty.
	Filter domain.QuestionFilter
	// SeedFromHistory seeds the exclusion set from the player's historical
	// answers, so previously answered questions are never re-served.
	SeedFromHistory bool
	// StoreTimeout bounds each store call; 0 disables the extra deadline.
	StoreTimeout time.Duration
}

func (c SessionConfig) pointsPerCorrect() int {
	if c.PointsPerCorrect <= 0 {
		return 1
	}
	return c.PointsPerCorrect
}

// State is the lifecycle of a session engine.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateInProgress
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateInProgress:
		return "in_progress"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// SessionEngine drives one player's session: authenticate, serve unseen
// questions, record answers, keep the running score. It is strictly
// sequential; callers use it from a single goroutine. Ended is terminal —
// build a new engine for a new session.
type SessionEngine struct {
	accounts AccountStore
	content  ContentStore
	events   EventStore
	stats    *Aggregator
	cfg      SessionConfig
	now      func() time.Time

	state    State
	player   domain.Player
	seen     map[int64]struct{}
	current  *domain.Question
	answered int
	correct  int
	score    int
}

func NewSessionEngine(accounts AccountStore, content ContentStore, events EventStore, cfg SessionConfig) *SessionEngine {
	return NewSessionEngineWithClock(accounts, content, events, cfg, time.Now)
}

// NewSessionEngineWithClock allows deterministic timestamps in tests.
func NewSessionEngineWithClock(accounts AccountStore, content ContentStore, events EventStore, cfg SessionConfig, now func() time.Time) *SessionEngine {
	return &SessionEngine{
		accounts: accounts,
		content:  content,
		events:   events,
		stats:    NewAggregator(events, content),
		cfg:      cfg,
		now:      now,
		state:    StateUnauthenticated,
	}
}

// State reports the engine's current lifecycle state.
func (e *SessionEngine) State() State { return e.state }

// Player returns the authenticated player; zero value before authentication.
func (e *SessionEngine) Player() domain.Player { return e.player }

// Register creates a new account and authenticates as it.
func (e *SessionEngine) Register(ctx context.Context, username, password string) (domain.Player, error) {
	if e.state != StateUnauthenticated {
		return domain.Player{}, domain.ErrSessionNotActive
	}
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	player, err := e.accounts.Register(ctx, username, password)
	if err != nil {
		return domain.Player{}, classifyStoreErr(err)
	}
	e.player = player
	e.state = StateAuthenticated
	return player, nil
}

// Authenticate checks credentials; on failure the engine stays unauthenticated.
func (e *SessionEngine) Authenticate(ctx context.Context, username, password string) (domain.Player, error) {
	if e.state != StateUnauthenticated {
		return domain.Player{}, domain.ErrSessionNotActive
	}
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	player, err := e.accounts.Authenticate(ctx, username, password)
	if err != nil {
		return domain.Player{}, classifyStoreErr(err)
	}
	e.player = player
	e.state = StateAuthenticated
	return player, nil
}

// StartSession initializes the turn loop with score 0 and a fresh exclusion
// set (seeded from history when configured).
func (e *SessionEngine) StartSession(ctx context.Context) error {
	if e.state != StateAuthenticated {
		return domain.ErrSessionNotActive
	}
	e.seen = make(map[int64]struct{})
	if e.cfg.SeedFromHistory {
		ctx, cancel := e.storeCtx(ctx)
		defer cancel()
		ids, err := e.events.AnsweredQuestionIDs(ctx, e.player.ID)
		if err != nil {
			return classifyStoreErr(err)
		}
		for _, id := range ids {
			e.seen[id] = struct{}{}
		}
	}
	e.current = nil
	e.answered = 0
	e.correct = 0
	e.score = 0
	e.state = StateInProgress
	return nil
}

// NextQuestion serves the next unseen question. Calling it again before the
// pending question is answered re-presents the same question. Exhaustion of
// the pool (or the configured session length) ends the session and returns
// domain.ErrNoQuestionsRemaining.
func (e *SessionEngine) NextQuestion(ctx context.Context) (domain.Question, error) {
	if e.state != StateInProgress {
		return domain.Question{}, domain.ErrSessionNotActive
	}
	if e.current != nil {
		return *e.current, nil
	}
	if e.cfg.QuestionsPerSession > 0 && e.answered >= e.cfg.QuestionsPerSession {
		e.state = StateEnded
		return domain.Question{}, domain.ErrNoQuestionsRemaining
	}

	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	question, err := e.content.SampleUnseen(ctx, e.seen, e.cfg.Filter)
	if err != nil {
		if errors.Is(err, domain.ErrNoQuestionsRemaining) {
			e.state = StateEnded
			return domain.Question{}, err
		}
		return domain.Question{}, classifyStoreErr(err)
	}

	e.seen[question.ID] = struct{}{}
	e.current = &question
	return question, nil
}

// SubmitAnswer validates the chosen index, records the event and updates the
// running score. An out-of-range index does not consume the turn and writes
// no event.
func (e *SessionEngine) SubmitAnswer(ctx context.Context, chosenIndex int) (domain.AnswerResult, error) {
	if e.state != StateInProgress {
		return domain.AnswerResult{}, domain.ErrSessionNotActive
	}
	if e.current == nil {
		return domain.AnswerResult{}, domain.ErrNoPendingQuestion
	}
	question := *e.current
	if chosenIndex < 0 || chosenIndex >= len(question.Choices) {
		return domain.AnswerResult{}, fmt.Errorf("%w: %d (question has %d choices)",
			domain.ErrInvalidAnswerIndex, chosenIndex, len(question.Choices))
	}

	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	event, err := e.events.RecordAnswer(ctx, e.player.ID, question, chosenIndex, e.now())
	if err != nil {
		err = classifyStoreErr(err)
		if errors.Is(err, domain.ErrIntegrityViolation) {
			// Stale state referencing a missing player/question is fatal to
			// the session.
			log.Printf("integrity violation recording answer for player %d question %d: %v",
				e.player.ID, question.ID, err)
			e.state = StateEnded
		}
		return domain.AnswerResult{}, err
	}

	e.current = nil
	e.answered++
	awarded := 0
	if event.IsCorrect {
		e.correct++
		awarded = e.cfg.pointsPerCorrect()
		e.score += awarded
	}
	return domain.AnswerResult{
		QuestionID:   question.ID,
		ChosenIndex:  chosenIndex,
		CorrectIndex: question.CorrectIndex,
		Correct:      event.IsCorrect,
		Awarded:      awarded,
		Score:        e.score,
	}, nil
}

// EndSession terminates the session and returns its summary. Valid from
// Authenticated (empty summary) or InProgress.
func (e *SessionEngine) EndSession() (domain.SessionSummary, error) {
	if e.state != StateInProgress && e.state != StateAuthenticated {
		return domain.SessionSummary{}, domain.ErrSessionNotActive
	}
	e.state = StateEnded
	return e.Summary(), nil
}

// Summary reports the current session counters. Useful after the engine ends
// the session itself on exhaustion.
func (e *SessionEngine) Summary() domain.SessionSummary {
	return domain.SessionSummary{
		PlayerID: e.player.ID,
		Answered: e.answered,
		Correct:  e.correct,
		Score:    e.score,
	}
}

// Statistics derives the authenticated player's statistics from the event
// log; usable mid-session and after the session has ended.
func (e *SessionEngine) Statistics(ctx context.Context) (domain.Statistics, error) {
	if e.state == StateUnauthenticated {
		return domain.Statistics{}, domain.ErrSessionNotActive
	}
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	stats, err := e.stats.Statistics(ctx, e.player.ID, e.cfg.Filter)
	if err != nil {
		return domain.Statistics{}, classifyStoreErr(err)
	}
	return stats, nil
}

func (e *SessionEngine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.StoreTimeout)
}

// classifyStoreErr passes known error kinds through unchanged and folds
// everything else (connectivity, timeouts, raw driver errors) into
// domain.ErrStoreUnavailable so callers never see store internals.
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrDuplicateUsername,
		domain.ErrInvalidCredentials,
		domain.ErrNoQuestionsRemaining,
		domain.ErrInvalidAnswerIndex,
		domain.ErrIntegrityViolation,
		domain.ErrStoreUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
