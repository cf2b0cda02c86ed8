package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sprint-service/internal/domain"
)

// InteractionInput is one answer or skip submitted by a client.
type InteractionInput struct {
	QuestionID     string
	SelectedOption string
	Skip           bool
	TimeMs         int64
}

// InteractionResult is what the client learns after recording.
type InteractionResult struct {
	InteractionID string `json:"interactionId"`
	QuestionID    string `json:"questionId"`
	IsCorrect     bool   `json:"isCorrect"`
	Skipped       bool   `json:"skipped"`
	CurrentIndex  int    `json:"currentIndex"`
}

// RecordInteraction stores an answer or skip for one question of an IN_PROGRESS sprint.
// A second call for the same question replaces the first.
func (s *SprintService) RecordInteraction(ctx context.Context, owner, sessionID string, in InteractionInput) (InteractionResult, error) {
	in.QuestionID = strings.TrimSpace(in.QuestionID)
	in.SelectedOption = strings.TrimSpace(in.SelectedOption)
	if in.SelectedOption == domain.SkippedOption {
		in.Skip = true
	}
	if err := validateInteraction(in); err != nil {
		return InteractionResult{}, err
	}

	session, err := s.ownedSession(ctx, owner, sessionID)
	if err != nil {
		return InteractionResult{}, err
	}
	if session.State != domain.StateInProgress {
		s.log.Debug("interaction rejected", "session_id", sessionID, "state", session.State)
		return InteractionResult{}, notActive(session.State)
	}
	index := session.IndexOf(in.QuestionID)
	if index < 0 {
		return InteractionResult{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotInSession, in.QuestionID)
	}

	question, err := s.questions.GetQuestion(ctx, in.QuestionID)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			return InteractionResult{}, err
		}
		return InteractionResult{}, fmt.Errorf("load question: %w", err)
	}

	rec := domain.InteractionRecord{
		ID:         s.newID(),
		SessionID:  session.ID,
		QuestionID: question.ID,
		Owner:      owner,
		TimeMs:     in.TimeMs,
		Subject:    question.Subject,
		Topic:      topicOrUnknown(question.Topic),
		Difficulty: question.Difficulty,
		CreatedAt:  s.now(),
	}
	rec.UpdatedAt = rec.CreatedAt
	if in.Skip {
		rec.SelectedOption = domain.SkippedOption
	} else {
		if !question.HasOption(in.SelectedOption) {
			return InteractionResult{}, fmt.Errorf("%w: %s", domain.ErrOptionNotFound, in.SelectedOption)
		}
		rec.SelectedOption = in.SelectedOption
		rec.IsCorrect = in.SelectedOption == question.CorrectOptionID
	}

	stored, err := s.store.RecordInteraction(ctx, rec, index)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotActive) || errors.Is(err, domain.ErrSessionNotFound) {
			return InteractionResult{}, err
		}
		return InteractionResult{}, fmt.Errorf("record interaction: %w", err)
	}
	return InteractionResult{
		InteractionID: stored.ID,
		QuestionID:    stored.QuestionID,
		IsCorrect:     stored.IsCorrect,
		Skipped:       stored.Skipped(),
		CurrentIndex:  index,
	}, nil
}

func validateInteraction(in InteractionInput) error {
	if in.QuestionID == "" {
		return fmt.Errorf("%w: questionId is required", domain.ErrInvalidInteraction)
	}
	if !in.Skip && in.SelectedOption == "" {
		return fmt.Errorf("%w: selectedOption is required unless skipping", domain.ErrInvalidInteraction)
	}
	if in.TimeMs < 0 {
		return fmt.Errorf("%w: timeMs cannot be negative", domain.ErrInvalidInteraction)
	}
	return nil
}

func topicOrUnknown(topic string) string {
	if strings.TrimSpace(topic) == "" {
		return "Unknown"
	}
	return topic
}
