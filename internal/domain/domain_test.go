package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestConfigNormalizeAndValidate(t *testing.T) {
	cfg := Config{
		Subject:       "  quant ",
		Topics:        []string{"Algebra", "", "ALL", "Algebra", " Geometry "},
		Difficulty:    "hard",
		QuestionCount: 10,
	}
	got := cfg.Normalize()
	if got.Subject != "QUANT" || got.Difficulty != DifficultyHard {
		t.Fatalf("unexpected normalization %+v", got)
	}
	if fmt.Sprint(got.Topics) != "[Algebra Geometry]" {
		t.Fatalf("unexpected topics %v", got.Topics)
	}
	if cfg.Topics[1] != "" {
		t.Fatalf("normalize mutated the input topics: %v", cfg.Topics)
	}
	if err := got.Validate(1, 50); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	got.TimeLimitMs = MaxTimeLimit.Milliseconds()
	if err := got.Validate(1, 50); err != nil {
		t.Fatalf("expected the maximum time limit to be accepted, got %v", err)
	}

	if d := (Config{Subject: "X", QuestionCount: 1}).Normalize().Difficulty; d != DifficultyMixed {
		t.Fatalf("expected MIXED default, got %s", d)
	}

	bad := []Config{
		{Difficulty: DifficultyEasy, QuestionCount: 1},
		{Subject: "QUANT", Difficulty: "IMPOSSIBLE", QuestionCount: 1},
		{Subject: "QUANT", Difficulty: DifficultyEasy, QuestionCount: 0},
		{Subject: "QUANT", Difficulty: DifficultyEasy, QuestionCount: 51},
		{Subject: "QUANT", Difficulty: DifficultyEasy, QuestionCount: 1, TimeLimitMs: -1},
		{Subject: "QUANT", Difficulty: DifficultyEasy, QuestionCount: 1, TimeLimitMs: MaxTimeLimit.Milliseconds() + 1},
		{Subject: "QUANT", Difficulty: DifficultyEasy, QuestionCount: 2, TimeLimitMs: 1e13},
	}
	for i, c := range bad {
		if err := c.Validate(1, 50); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: expected invalid config, got %v", i, err)
		}
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	deadline := time.Now()
	s := SprintSession{
		Config:         Config{Topics: []string{"Algebra"}},
		QuestionIDs:    []string{"q1", "q2"},
		InteractionIDs: []string{"i1"},
		Result:         &Result{TopicPerformance: []TopicPerformance{{Topic: "Algebra"}}},
		ExpiresAt:      &deadline,
	}
	c := s.Clone()
	c.Config.Topics[0] = "Geometry"
	c.QuestionIDs[0] = "changed"
	c.InteractionIDs[0] = "changed"
	c.Result.TopicPerformance[0].Topic = "changed"
	*c.ExpiresAt = deadline.Add(time.Hour)

	if s.Config.Topics[0] != "Algebra" || s.QuestionIDs[0] != "q1" || s.InteractionIDs[0] != "i1" {
		t.Fatalf("clone shares slices with the original: %+v", s)
	}
	if s.Result.TopicPerformance[0].Topic != "Algebra" || !s.ExpiresAt.Equal(deadline) {
		t.Fatalf("clone shares result or deadline with the original")
	}
	if (SprintSession{}).Clone().InteractionIDs == nil {
		t.Fatalf("expected empty, non-nil interaction ids")
	}
}

func TestOutcomeRequiresCompletion(t *testing.T) {
	s := SprintSession{State: StateInProgress, Result: &Result{}}
	if _, ok := s.Outcome(); ok {
		t.Fatalf("in-progress session must not expose a result")
	}
	s.State = StateCompleted
	if _, ok := s.Outcome(); !ok {
		t.Fatalf("expected completed result")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("%w: subject", ErrInvalidConfig), KindValidation},
		{ErrOptionNotFound, KindValidation},
		{ErrInvalidFilter, KindValidation},
		{ErrUnauthenticated, KindUnauthorized},
		{ErrForbidden, KindForbidden},
		{ErrNoQuestionsAvailable, KindNotFound},
		{fmt.Errorf("load: %w", ErrSessionNotFound), KindNotFound},
		{fmt.Errorf("%w: session is EXPIRED", ErrSessionNotActive), KindState},
		{ErrSessionCompleted, KindState},
		{errors.New("connection reset"), KindUpstream},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestTargetTimePerQuestion(t *testing.T) {
	want := map[Difficulty]time.Duration{
		DifficultyEasy:   40 * time.Second,
		DifficultyMedium: 30 * time.Second,
		DifficultyMixed:  30 * time.Second,
		DifficultyHard:   25 * time.Second,
	}
	for d, target := range want {
		if got := d.TargetTimePerQuestion(); got != target {
			t.Fatalf("%s: got %s want %s", d, got, target)
		}
	}
}
