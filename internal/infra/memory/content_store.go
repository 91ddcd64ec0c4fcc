package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trivia-game-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question documents from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
}

// ContentStore caches question documents per filter with a TTL to avoid
// repeated loader hits, and samples from the cached pool.
type ContentStore struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[domain.QuestionFilter]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewContentStore(loader QuestionLoader, ttl time.Duration) *ContentStore {
	return &ContentStore{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.QuestionFilter]cachedPool),
	}
}

// SampleUnseen picks one question uniformly at random from the pool matching
// the filter, excluding the given ids.
func (s *ContentStore) SampleUnseen(ctx context.Context, excluded map[int64]struct{}, filter domain.QuestionFilter) (domain.Question, error) {
	questions, err := s.questions(ctx, filter)
	if err != nil {
		return domain.Question{}, err
	}

	eligible := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if _, seen := excluded[q.ID]; !seen {
			eligible = append(eligible, q)
		}
	}
	if len(eligible) == 0 {
		return domain.Question{}, domain.ErrNoQuestionsRemaining
	}
	return eligible[s.rnd.Intn(len(eligible))], nil
}

// CountTotal returns the number of questions matching the filter.
func (s *ContentStore) CountTotal(ctx context.Context, filter domain.QuestionFilter) (int, error) {
	questions, err := s.questions(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(questions), nil
}

func (s *ContentStore) questions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	now := s.clock()

	s.mu.RLock()
	if entry, ok := s.cache[filter]; ok && entry.expiresAt.After(now) {
		s.mu.RUnlock()
		return entry.questions, nil
	}
	s.mu.RUnlock()

	key := filter.Category + ":" + filter.Difficulty
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		if entry, ok := s.cache[filter]; ok && entry.expiresAt.After(now) {
			s.mu.RUnlock()
			return entry.questions, nil
		}
		s.mu.RUnlock()

		questions, err := s.loader.LoadQuestions(ctx, filter)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[filter] = cachedPool{
			questions: questions,
			expiresAt: now.Add(s.ttlWithJitter()),
		}
		s.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *ContentStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves questions from an in-memory slice (tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	matching := make([]domain.Question, 0, len(l.questions))
	for _, q := range l.questions {
		if filter.Matches(q) {
			matching = append(matching, q)
		}
	}
	return matching, nil
}
