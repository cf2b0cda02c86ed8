package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"sprint-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches questions from the question bank.
type QuestionLoader interface {
	FindQuestionIDs(ctx context.Context, filter domain.PoolFilter) ([]string, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error)
}

// QuestionCache caches single-question lookups with TTL to avoid repeated DB hits
// on the answer path. Pool queries always go to the loader.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestion),
	}
}

func (c *QuestionCache) FindQuestionIDs(ctx context.Context, filter domain.PoolFilter) ([]string, error) {
	return c.loader.FindQuestionIDs(ctx, filter)
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	if q, ok := c.lookup(id); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if q, ok := c.lookup(id); ok {
			return q, nil
		}
		q, err := c.loader.GetQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		c.store(q)
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// GetQuestions serves cached entries and loads the rest in one batch.
func (c *QuestionCache) GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(ids))
	var missing []string
	for _, id := range ids {
		if q, ok := c.lookup(id); ok {
			out[id] = q
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	loaded, err := c.loader.GetQuestions(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, q := range loaded {
		c.store(q)
		out[id] = q
	}
	return out, nil
}

func (c *QuestionCache) lookup(id string) (domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Question{}, false
	}
	return entry.question, true
}

func (c *QuestionCache) store(q domain.Question) {
	expiresAt := c.clock().Add(c.ttlWithJitter())
	c.mu.Lock()
	c.cache[q.ID] = cachedQuestion{question: q, expiresAt: expiresAt}
	c.mu.Unlock()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a simple loader backed by an in-memory slice (useful for tests/demos).
type StaticQuestionLoader struct {
	questions map[string]domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &StaticQuestionLoader{questions: byID}
}

func (l *StaticQuestionLoader) FindQuestionIDs(_ context.Context, filter domain.PoolFilter) ([]string, error) {
	topics := make(map[string]struct{}, len(filter.Topics))
	for _, t := range filter.Topics {
		topics[t] = struct{}{}
	}
	ids := make([]string, 0)
	for _, q := range l.questions {
		if !q.Live || q.Subject != filter.Subject {
			continue
		}
		if filter.Difficulty != "" && filter.Difficulty != domain.DifficultyMixed && q.Difficulty != filter.Difficulty {
			continue
		}
		if len(topics) > 0 {
			if _, ok := topics[q.Topic]; !ok {
				continue
			}
		}
		ids = append(ids, q.ID)
	}
	// map iteration order is random; keep the candidate list stable
	sort.Strings(ids)
	return ids, nil
}

func (l *StaticQuestionLoader) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	if q, ok := l.questions[id]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (l *StaticQuestionLoader) GetQuestions(_ context.Context, ids []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(ids))
	for _, id := range ids {
		if q, ok := l.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}
