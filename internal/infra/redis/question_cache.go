package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"sprint-service/internal/domain"
	"sprint-service/internal/infra/memory"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches question documents in Redis and falls back to a loader on cache miss.
// Each question is stored as JSON under question:{questionID}.
// Pool queries are not cached; the live pool changes as questions are published.
type QuestionCache struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) FindQuestionIDs(ctx context.Context, filter domain.PoolFilter) ([]string, error) {
	return c.loader.FindQuestionIDs(ctx, filter)
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	if q, ok := c.cached(ctx, id); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := c.cached(ctx, id); ok {
			return q, nil
		}
		q, err := c.loader.GetQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		c.fill(ctx, []domain.Question{q})
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// GetQuestions reads every id with one MGET and loads the misses in a single batch.
func (c *QuestionCache) GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		values = make([]interface{}, len(ids))
	}

	var missing []string
	for i, id := range ids {
		raw, ok := values[i].(string)
		if !ok {
			missing = append(missing, id)
			continue
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			missing = append(missing, id)
			continue
		}
		out[id] = q
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.loader.GetQuestions(ctx, missing)
	if err != nil {
		return nil, err
	}
	fresh := make([]domain.Question, 0, len(loaded))
	for id, q := range loaded {
		out[id] = q
		fresh = append(fresh, q)
	}
	c.fill(ctx, fresh)
	return out, nil
}

func (c *QuestionCache) cached(ctx context.Context, id string) (domain.Question, bool) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return domain.Question{}, false
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, false
	}
	return q, true
}

// fill is best effort; a failed write only costs a future loader call.
func (c *QuestionCache) fill(ctx context.Context, questions []domain.Question) {
	if len(questions) == 0 {
		return
	}
	pipe := c.client.Pipeline()
	for _, q := range questions {
		raw, err := json.Marshal(q)
		if err != nil {
			continue
		}
		pipe.Set(ctx, c.key(q.ID), raw, c.ttlWithJitter())
	}
	_, _ = pipe.Exec(ctx)
}

// Invalidate drops cached questions, e.g. after an editor unpublishes them.
func (c *QuestionCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (c *QuestionCache) key(id string) string {
	return "question:" + id
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
