package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxTimeLimit caps an explicit sprint time limit.
const MaxTimeLimit = 24 * time.Hour

// Normalize trims input and applies defaults without validating.
func (c Config) Normalize() Config {
	out := c.Clone()
	out.Subject = strings.ToUpper(strings.TrimSpace(out.Subject))
	out.Difficulty = Difficulty(strings.ToUpper(strings.TrimSpace(string(out.Difficulty))))
	if out.Difficulty == "" {
		out.Difficulty = DifficultyMixed
	}
	topics := out.Topics[:0]
	seen := make(map[string]struct{}, len(out.Topics))
	for _, t := range out.Topics {
		t = strings.TrimSpace(t)
		// "ALL" is how clients ask for no topic filter.
		if t == "" || strings.EqualFold(t, "ALL") {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}
	out.Topics = topics
	return out
}

// Validate checks a normalized config against the allowed question count range.
func (c Config) Validate(minQuestions, maxQuestions int) error {
	if c.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidConfig)
	}
	if !c.Difficulty.Valid() {
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidConfig, c.Difficulty)
	}
	if c.QuestionCount < minQuestions || c.QuestionCount > maxQuestions {
		return fmt.Errorf("%w: question count must be between %d and %d", ErrInvalidConfig, minQuestions, maxQuestions)
	}
	if c.TimeLimitMs < 0 {
		return fmt.Errorf("%w: time limit cannot be negative", ErrInvalidConfig)
	}
	if c.TimeLimitMs > MaxTimeLimit.Milliseconds() {
		return fmt.Errorf("%w: time limit cannot exceed %s", ErrInvalidConfig, MaxTimeLimit)
	}
	return nil
}

// Filter derives the pool filter for this config.
func (c Config) Filter() PoolFilter {
	return PoolFilter{
		Subject:    c.Subject,
		Difficulty: c.Difficulty,
		Topics:     c.Clone().Topics,
		Count:      c.QuestionCount,
	}
}
