package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"sprint-service/internal/domain"
)

func TestQuestionCacheCachesAndExpires(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	cache := NewQuestionCache(loader, 10*time.Millisecond)

	now := time.Now()
	cache.clock = func() time.Time { return now }

	if _, err := cache.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	_, _ = cache.GetQuestion(context.Background(), "q1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}

	now = now.Add(time.Second)
	_, _ = cache.GetQuestion(context.Background(), "q1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}

	if _, err := cache.GetQuestion(context.Background(), "nope"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStaticQuestionLoaderFilters(t *testing.T) {
	loader := NewStaticQuestionLoader(sampleQuestions())
	ctx := context.Background()

	ids, _ := loader.FindQuestionIDs(ctx, domain.PoolFilter{Subject: "MATH", Difficulty: domain.DifficultyMixed})
	if len(ids) != 2 || ids[0] != "q1" || ids[1] != "q2" {
		t.Fatalf("expected live math questions, got %v", ids)
	}

	ids, _ = loader.FindQuestionIDs(ctx, domain.PoolFilter{Subject: "MATH", Difficulty: domain.DifficultyHard})
	if len(ids) != 1 || ids[0] != "q2" {
		t.Fatalf("expected hard question only, got %v", ids)
	}

	ids, _ = loader.FindQuestionIDs(ctx, domain.PoolFilter{Subject: "MATH", Topics: []string{"Geometry"}})
	if len(ids) != 0 {
		t.Fatalf("expected no geometry questions, got %v", ids)
	}

	found, _ := loader.GetQuestions(ctx, []string{"q1", "missing"})
	if len(found) != 1 {
		t.Fatalf("expected only existing question, got %d", len(found))
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	l.calls++
	return l.QuestionLoader.GetQuestion(ctx, id)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Subject: "MATH", Topic: "Algebra", Difficulty: domain.DifficultyEasy, Live: true,
			Options: []domain.Option{{ID: "A", Text: "3"}, {ID: "B", Text: "4"}}, CorrectOptionID: "B"},
		{ID: "q2", Subject: "MATH", Topic: "Algebra", Difficulty: domain.DifficultyHard, Live: true},
		{ID: "q3", Subject: "MATH", Topic: "Algebra", Difficulty: domain.DifficultyHard, Live: false},
		{ID: "q4", Subject: "PHYSICS", Topic: "Optics", Difficulty: domain.DifficultyEasy, Live: true},
	}
}
