package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"sprint-service/internal/domain"
)

// QuestionPool samples question ids for a new sprint.
type QuestionPool struct {
	questions QuestionRepository

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionPool(questions QuestionRepository) *QuestionPool {
	return newQuestionPoolWithSource(questions, rand.NewSource(time.Now().UnixNano()))
}

func newQuestionPoolWithSource(questions QuestionRepository, src rand.Source) *QuestionPool {
	return &QuestionPool{questions: questions, rnd: rand.New(src)}
}

// Select returns a uniform random sample without replacement of
// min(filter.Count, poolSize) live question ids. An empty pool yields an empty slice.
func (p *QuestionPool) Select(ctx context.Context, filter domain.PoolFilter) ([]string, error) {
	if filter.Count <= 0 {
		return []string{}, nil
	}
	ids, err := p.questions.FindQuestionIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return p.sample(ids, filter.Count), nil
}

// sample runs a partial Fisher-Yates shuffle over a copy of ids.
func (p *QuestionPool) sample(ids []string, n int) []string {
	pool := make([]string, len(ids))
	copy(pool, ids)
	if n > len(pool) {
		n = len(pool)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		j := i + p.rnd.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
