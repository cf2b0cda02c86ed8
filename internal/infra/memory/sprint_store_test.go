package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sprint-service/internal/domain"
)

func TestSprintStoreRecordInteractionUpserts(t *testing.T) {
	store := NewSprintStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	if err := store.CreateSession(ctx, newSession("s1", now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := store.RecordInteraction(ctx, record("r1", "s1", "q1", "A", now), 1)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	later := now.Add(time.Minute)
	second, err := store.RecordInteraction(ctx, record("r2", "s1", "q1", "B", later), 1)
	if err != nil {
		t.Fatalf("re-record: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected original id %s kept, got %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(now) || !second.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected timestamps: created=%v updated=%v", second.CreatedAt, second.UpdatedAt)
	}
	if second.SelectedOption != "B" {
		t.Fatalf("expected replaced answer, got %s", second.SelectedOption)
	}

	records, _ := store.ListInteractions(ctx, "s1")
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	session, _ := store.GetSession(ctx, "s1")
	if len(session.InteractionIDs) != 1 || session.InteractionIDs[0] != "r1" {
		t.Fatalf("unexpected interaction ids %v", session.InteractionIDs)
	}
	if session.CurrentIndex != 1 {
		t.Fatalf("expected current index 1, got %d", session.CurrentIndex)
	}
}

func TestSprintStoreFinalizeOnce(t *testing.T) {
	store := NewSprintStore()
	ctx := context.Background()
	now := time.Now()
	_ = store.CreateSession(ctx, newSession("s1", now))

	compute := func(domain.SprintSession, []domain.InteractionRecord) domain.Result {
		return domain.Result{Stats: domain.Stats{TotalQuestions: 2}}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, completed := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Finalize(ctx, "s1", now, compute)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrSessionCompleted):
				completed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || completed != 7 {
		t.Fatalf("expected exactly one finalize, got wins=%d completed=%d", wins, completed)
	}

	if _, err := store.RecordInteraction(ctx, record("r1", "s1", "q1", "A", now), 1); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected not active after completion, got %v", err)
	}
}

func TestSprintStoreTransitionAndExpire(t *testing.T) {
	store := NewSprintStore()
	ctx := context.Background()
	now := time.Now()
	_ = store.CreateSession(ctx, newSession("s1", now))
	_ = store.CreateSession(ctx, newSession("s2", now))

	if err := store.Transition(ctx, "s1", domain.StateInProgress, domain.StateAbandoned, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.Transition(ctx, "s1", domain.StateInProgress, domain.StateAbandoned, now); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected second transition rejected, got %v", err)
	}

	n, err := store.ExpireStale(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	session, _ := store.GetSession(ctx, "s2")
	if session.State != domain.StateExpired {
		t.Fatalf("expected s2 expired, got %s", session.State)
	}
	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newSession(id string, now time.Time) domain.SprintSession {
	expires := now.Add(time.Minute)
	return domain.SprintSession{
		ID:          id,
		Owner:       "user-1",
		Type:        domain.SessionTypeSprint,
		Config:      domain.Config{Subject: "MATH", Difficulty: domain.DifficultyMixed, QuestionCount: 2, TimeLimitMs: 60000},
		QuestionIDs: []string{"q1", "q2"},
		State:       domain.StateInProgress,
		StartedAt:   now,
		ExpiresAt:   &expires,
		UpdatedAt:   now,
	}
}

func record(id, sessionID, questionID, option string, at time.Time) domain.InteractionRecord {
	return domain.InteractionRecord{
		ID:             id,
		SessionID:      sessionID,
		QuestionID:     questionID,
		Owner:          "user-1",
		SelectedOption: option,
		IsCorrect:      option == "A",
		TimeMs:         1000,
		Subject:        "MATH",
		Topic:          "Algebra",
		Difficulty:     domain.DifficultyEasy,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}
