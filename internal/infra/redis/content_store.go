package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"trivia-game-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question documents from the backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
}

// ContentStore is a read-only content adapter that caches question documents
// in Redis (one hash per filter, field per question id) and falls back to the
// loader on cache miss. Sampling is done in-process over the cached set.
type ContentStore struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContentStore(client *redis.Client, loader QuestionLoader, ttl time.Duration) *ContentStore {
	return &ContentStore{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SampleUnseen picks one question uniformly at random from the cached pool,
// excluding the given ids. Returns domain.ErrNoQuestionsRemaining when
// nothing eligible is left.
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
	key := s.key(filter)

	cached, err := s.client.HGetAll(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		return decodeQuestions(cached)
	}

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := s.client.HGetAll(ctx, key).Result()
		if err == nil && len(cached) > 0 {
			return decodeQuestions(cached)
		}

		questions, err := s.loader.LoadQuestions(ctx, filter)
		if err != nil {
			return nil, err
		}

		pipe := s.client.Pipeline()
		for _, q := range questions {
			doc, err := json.Marshal(q)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, key, strconv.FormatInt(q.ID, 10), doc)
		}
		if ttl := s.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *ContentStore) key(filter domain.QuestionFilter) string {
	return "questions:" + filter.Category + ":" + filter.Difficulty
}

func decodeQuestions(cached map[string]string) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(cached))
	for _, doc := range cached {
		var q domain.Question
		if err := json.Unmarshal([]byte(doc), &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (s *ContentStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
