package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"sprint-service/internal/domain"
)

// CompleteSession freezes the sprint statistics. It succeeds once; later calls
// fail with ErrSessionCompleted and leave the frozen result untouched.
func (s *SprintService) CompleteSession(ctx context.Context, owner, sessionID string) (domain.SprintSession, error) {
	session, err := s.ownedSession(ctx, owner, sessionID)
	if err != nil {
		return domain.SprintSession{}, err
	}
	if session.State == domain.StateCompleted {
		return domain.SprintSession{}, domain.ErrSessionCompleted
	}
	if session.State != domain.StateInProgress {
		return domain.SprintSession{}, notActive(session.State)
	}

	completed, err := s.store.Finalize(ctx, sessionID, s.now(), Aggregate)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionCompleted), errors.Is(err, domain.ErrSessionNotActive):
			s.log.Debug("completion lost race", "session_id", sessionID, "error", err)
			return domain.SprintSession{}, err
		case errors.Is(err, domain.ErrSessionNotFound):
			return domain.SprintSession{}, err
		}
		return domain.SprintSession{}, fmt.Errorf("finalize session: %w", err)
	}

	result, _ := completed.Outcome()
	s.log.Info("sprint completed", "session_id", sessionID, "user_id", owner,
		"accuracy_pct", result.Stats.AccuracyPct, "interactions", result.Stats.Attempted+result.Stats.Skipped)
	s.publish(ctx, domain.EventSprintCompleted, completed)
	return completed, nil
}

// Aggregate computes the sprint statistics from its interaction records.
// Accuracy and average time are taken over all interactions, skips included.
func Aggregate(session domain.SprintSession, records []domain.InteractionRecord) domain.Result {
	questionCount := len(session.QuestionIDs)
	if questionCount == 0 {
		questionCount = session.Config.QuestionCount
	}

	var total tally
	byTopic := make(map[string]*tally)
	for _, rec := range records {
		total.add(rec)
		topic := topicOrUnknown(rec.Topic)
		t, ok := byTopic[topic]
		if !ok {
			t = &tally{}
			byTopic[topic] = t
		}
		t.add(rec)
	}

	stats := domain.Stats{
		TotalQuestions: questionCount,
		Attempted:      total.answered,
		Correct:        total.correct,
		Incorrect:      total.answered - total.correct,
		Skipped:        total.skipped,
		NotAttempted:   questionCount - total.interactions,
		AccuracyPct:    percent(total.correct, total.interactions),
		AvgTimeMs:      average(total.timeMs, total.interactions),
		TotalTimeMs:    total.timeMs,
	}
	if stats.NotAttempted < 0 {
		stats.NotAttempted = 0
	}

	topics := make([]domain.TopicPerformance, 0, len(byTopic))
	for topic, t := range byTopic {
		topics = append(topics, domain.TopicPerformance{
			Topic:       topic,
			Total:       t.interactions,
			Correct:     t.correct,
			Incorrect:   t.answered - t.correct,
			Skipped:     t.skipped,
			AccuracyPct: percent(t.correct, t.interactions),
			AvgTimeMs:   average(t.timeMs, t.interactions),
		})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Topic < topics[j].Topic })

	return domain.Result{Stats: stats, TopicPerformance: topics}
}

type tally struct {
	interactions int
	answered     int
	skipped      int
	correct      int
	timeMs       int64
}

func (t *tally) add(rec domain.InteractionRecord) {
	t.interactions++
	if rec.Skipped() {
		t.skipped++
	} else {
		t.answered++
		if rec.IsCorrect {
			t.correct++
		}
	}
	t.timeMs += rec.TimeMs
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func average(sum int64, n int) int64 {
	if n <= 0 {
		return 0
	}
	return int64(math.Round(float64(sum) / float64(n)))
}
