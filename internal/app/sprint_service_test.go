package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sprint-service/internal/app"
	"sprint-service/internal/domain"
	"sprint-service/internal/infra/memory"
)

func TestCreateSessionSamplesPool(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	session, err := env.service.CreateSession(ctx, "u1", "", domain.Config{
		Subject:       "QUANT",
		Difficulty:    domain.DifficultyEasy,
		QuestionCount: 5,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(session.QuestionIDs) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(session.QuestionIDs))
	}
	if session.State != domain.StateInProgress || session.Result != nil {
		t.Fatalf("expected fresh IN_PROGRESS session without stats, got %s %+v", session.State, session.Result)
	}
	if session.Type != domain.SessionTypeSprint {
		t.Fatalf("expected default SPRINT type, got %s", session.Type)
	}
	seen := map[string]bool{}
	for _, id := range session.QuestionIDs {
		if seen[id] {
			t.Fatalf("duplicate question %s", id)
		}
		seen[id] = true
		q, _ := env.loader.GetQuestion(ctx, id)
		if q.Difficulty != domain.DifficultyEasy || q.Subject != "QUANT" || !q.Live {
			t.Fatalf("question %s outside the filter: %+v", id, q)
		}
	}

	stored, err := env.store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if stored.Config.TimeLimitMs != 5*40000 {
		t.Fatalf("expected derived time limit 200000, got %d", stored.Config.TimeLimitMs)
	}
	if stored.ExpiresAt == nil || !stored.ExpiresAt.Equal(env.clock.Now().Add(200*time.Second)) {
		t.Fatalf("unexpected expiry %v", stored.ExpiresAt)
	}
}

func TestCreateSessionCapsCountToPool(t *testing.T) {
	env := newTestEnv()
	session, err := env.service.CreateSession(context.Background(), "u1", domain.SessionTypeQuickPractice, domain.Config{
		Subject:       "quant",
		Difficulty:    "hard",
		QuestionCount: 10,
		TimeLimitMs:   90000,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(session.QuestionIDs) != 2 || session.Config.QuestionCount != 2 {
		t.Fatalf("expected the 2 hard questions, got %v (count %d)", session.QuestionIDs, session.Config.QuestionCount)
	}
	if session.Config.TimeLimitMs != 90000 {
		t.Fatalf("explicit time limit overwritten: %d", session.Config.TimeLimitMs)
	}
	if session.Type != domain.SessionTypeQuickPractice {
		t.Fatalf("expected QUICK_PRACTICE, got %s", session.Type)
	}
}

func TestCreateSessionEmptyPoolPersistsNothing(t *testing.T) {
	env := newTestEnv()
	_, err := env.service.CreateSession(context.Background(), "u1", "", domain.Config{
		Subject:       "QUANT",
		Topics:        []string{"Calculus"},
		QuestionCount: 5,
	})
	if !errors.Is(err, domain.ErrNoQuestionsAvailable) {
		t.Fatalf("expected no questions available, got %v", err)
	}
	if env.store.created != 0 {
		t.Fatalf("expected nothing persisted, got %d sessions", env.store.created)
	}
	if len(env.events.Events()) != 0 {
		t.Fatalf("expected no events, got %v", env.events.Events())
	}
}

func TestCreateSessionRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		typ   domain.SessionType
		cfg   domain.Config
		want  error
	}{
		{name: "no owner", cfg: domain.Config{Subject: "QUANT", QuestionCount: 1}, want: domain.ErrUnauthenticated},
		{name: "no subject", owner: "u1", cfg: domain.Config{QuestionCount: 1}, want: domain.ErrInvalidConfig},
		{name: "zero count", owner: "u1", cfg: domain.Config{Subject: "QUANT"}, want: domain.ErrInvalidConfig},
		{name: "count above max", owner: "u1", cfg: domain.Config{Subject: "QUANT", QuestionCount: 51}, want: domain.ErrInvalidConfig},
		{name: "unknown difficulty", owner: "u1", cfg: domain.Config{Subject: "QUANT", Difficulty: "EXTREME", QuestionCount: 1}, want: domain.ErrInvalidConfig},
		{name: "negative limit", owner: "u1", cfg: domain.Config{Subject: "QUANT", QuestionCount: 1, TimeLimitMs: -1}, want: domain.ErrInvalidConfig},
		{name: "limit beyond a day", owner: "u1", cfg: domain.Config{Subject: "QUANT", QuestionCount: 2, TimeLimitMs: 1e13}, want: domain.ErrInvalidConfig},
		{name: "unknown type", owner: "u1", typ: "MARATHON", cfg: domain.Config{Subject: "QUANT", QuestionCount: 1}, want: domain.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			_, err := env.service.CreateSession(context.Background(), tt.owner, tt.typ, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if env.store.created != 0 {
				t.Fatalf("expected nothing persisted")
			}
		})
	}
}

func TestRecordInteractionReplacesPreviousAnswer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 5)
	first := session.QuestionIDs[0]

	res, err := env.service.RecordInteraction(ctx, "u1", session.ID, app.InteractionInput{
		QuestionID: first, SelectedOption: "A", TimeMs: 12000,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if !res.IsCorrect {
		t.Fatalf("expected correct answer")
	}

	env.clock.Advance(time.Second)
	res2, err := env.service.RecordInteraction(ctx, "u1", session.ID, app.InteractionInput{
		QuestionID: first, SelectedOption: "B", TimeMs: 20000,
	})
	if err != nil {
		t.Fatalf("re-record failed: %v", err)
	}
	if res2.InteractionID != res.InteractionID {
		t.Fatalf("expected the original record to be replaced, got new id %s", res2.InteractionID)
	}

	records, _ := env.store.ListInteractions(ctx, session.ID)
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
	rec := records[0]
	if rec.IsCorrect || rec.TimeMs != 20000 || rec.SelectedOption != "B" {
		t.Fatalf("expected second submission to win, got %+v", rec)
	}
	if rec.Topic == "" || rec.Subject != "QUANT" {
		t.Fatalf("expected denormalized question fields, got %+v", rec)
	}
}

func TestRecordInteractionValidation(t *testing.T) {
	env := newTestEnv()
	session := env.create(t, 3)
	q := session.QuestionIDs[0]

	tests := []struct {
		name  string
		owner string
		in    app.InteractionInput
		want  error
	}{
		{name: "missing question", owner: "u1", in: app.InteractionInput{SelectedOption: "A"}, want: domain.ErrInvalidInteraction},
		{name: "missing option", owner: "u1", in: app.InteractionInput{QuestionID: q}, want: domain.ErrInvalidInteraction},
		{name: "negative time", owner: "u1", in: app.InteractionInput{QuestionID: q, SelectedOption: "A", TimeMs: -5}, want: domain.ErrInvalidInteraction},
		{name: "foreign question", owner: "u1", in: app.InteractionInput{QuestionID: "quant-hard-1", SelectedOption: "A"}, want: domain.ErrQuestionNotInSession},
		{name: "unknown option", owner: "u1", in: app.InteractionInput{QuestionID: q, SelectedOption: "Z"}, want: domain.ErrOptionNotFound},
		{name: "other owner", owner: "u2", in: app.InteractionInput{QuestionID: q, SelectedOption: "A"}, want: domain.ErrForbidden},
		{name: "anonymous", in: app.InteractionInput{QuestionID: q, SelectedOption: "A"}, want: domain.ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.RecordInteraction(context.Background(), tt.owner, session.ID, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	records, _ := env.store.ListInteractions(context.Background(), session.ID)
	if len(records) != 0 {
		t.Fatalf("expected no records from rejected input, got %d", len(records))
	}

	if _, err := env.service.RecordInteraction(context.Background(), "u1", "missing", app.InteractionInput{QuestionID: q, Skip: true}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestCompleteSessionComputesStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 3)

	env.record(t, session.ID, session.QuestionIDs[0], "A", 12000)
	env.record(t, session.ID, session.QuestionIDs[1], domain.SkippedOption, 4000)

	completed, err := env.service.CompleteSession(ctx, "u1", session.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	result, ok := completed.Outcome()
	if !ok {
		t.Fatalf("expected frozen result")
	}
	want := domain.Stats{
		TotalQuestions: 3,
		Attempted:      1,
		Correct:        1,
		Incorrect:      0,
		Skipped:        1,
		NotAttempted:   1,
		AccuracyPct:    50,
		AvgTimeMs:      8000,
		TotalTimeMs:    16000,
	}
	if result.Stats != want {
		t.Fatalf("unexpected stats\nwant %+v\ngot  %+v", want, result.Stats)
	}
	assertConsistent(t, result)
	if completed.CompletedAt == nil || completed.State != domain.StateCompleted {
		t.Fatalf("expected COMPLETED with timestamp, got %s %v", completed.State, completed.CompletedAt)
	}

	events := env.events.Events()
	if len(events) != 2 || events[1].Type != domain.EventSprintCompleted || events[1].Stats == nil {
		t.Fatalf("expected created and completed events, got %+v", events)
	}
}

func TestCompleteSessionTwiceKeepsStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 4)
	env.record(t, session.ID, session.QuestionIDs[0], "A", 10000)
	env.record(t, session.ID, session.QuestionIDs[1], "C", 30000)

	first, err := env.service.CompleteSession(ctx, "u1", session.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	env.clock.Advance(time.Minute)
	if _, err := env.service.CompleteSession(ctx, "u1", session.ID); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}

	stored, _ := env.store.GetSession(ctx, session.ID)
	before, _ := first.Outcome()
	after, _ := stored.Outcome()
	if before.Stats != after.Stats || len(before.TopicPerformance) != len(after.TopicPerformance) {
		t.Fatalf("stats changed after second completion: %+v vs %+v", before, after)
	}
	if !stored.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("completedAt changed")
	}
}

func TestRecordAfterCompletionRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 3)
	env.record(t, session.ID, session.QuestionIDs[0], "A", 1000)
	if _, err := env.service.CompleteSession(ctx, "u1", session.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	_, err := env.service.RecordInteraction(ctx, "u1", session.ID, app.InteractionInput{
		QuestionID: session.QuestionIDs[1], SelectedOption: "A", TimeMs: 1000,
	})
	if !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected session not active, got %v", err)
	}
	records, _ := env.store.ListInteractions(ctx, session.ID)
	if len(records) != 1 {
		t.Fatalf("expected no new record, got %d", len(records))
	}
}

func TestReviewKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 5)

	// answer back to front
	for i := len(session.QuestionIDs) - 1; i >= 0; i-- {
		env.record(t, session.ID, session.QuestionIDs[i], "B", int64(1000*(i+1)))
	}
	if _, err := env.service.CompleteSession(ctx, "u1", session.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	review, err := env.service.GetReview(ctx, "u1", session.ID, "")
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if len(review.Items) != len(session.QuestionIDs) {
		t.Fatalf("expected %d items, got %d", len(session.QuestionIDs), len(review.Items))
	}
	for i, item := range review.Items {
		if item.QuestionID != session.QuestionIDs[i] || item.Order != i+1 {
			t.Fatalf("item %d out of order: %+v", i, item)
		}
		if item.Status != app.StatusIncorrect || item.CorrectOptionID != "A" {
			t.Fatalf("unexpected item %+v", item)
		}
	}
}

func TestConcurrentCompletionFiresOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 3)
	env.record(t, session.ID, session.QuestionIDs[0], "A", 1000)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.CompleteSession(ctx, "u1", session.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrSessionCompleted):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 || rejected != 9 {
		t.Fatalf("expected exactly one completion, got %d succeeded %d rejected", succeeded, rejected)
	}

	completedEvents := 0
	for _, e := range env.events.Events() {
		if e.Type == domain.EventSprintCompleted {
			completedEvents++
		}
	}
	if completedEvents != 1 {
		t.Fatalf("expected one completed event, got %d", completedEvents)
	}
}

func TestConcurrentRecordsForSameQuestion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 3)
	q := session.QuestionIDs[0]

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			option := []string{"A", "B", "C", "D"}[i%4]
			if _, err := env.service.RecordInteraction(ctx, "u1", session.ID, app.InteractionInput{
				QuestionID: q, SelectedOption: option, TimeMs: int64(i * 100),
			}); err != nil {
				t.Errorf("record: %v", err)
			}
		}(i)
	}
	wg.Wait()

	records, _ := env.store.ListInteractions(ctx, session.ID)
	if len(records) != 1 {
		t.Fatalf("expected a single record, got %d", len(records))
	}
	stored, _ := env.store.GetSession(ctx, session.ID)
	if len(stored.InteractionIDs) != 1 || stored.InteractionIDs[0] != records[0].ID {
		t.Fatalf("interaction ids out of sync: %v", stored.InteractionIDs)
	}
}

func TestAbandonAndRetry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 4)
	env.record(t, session.ID, session.QuestionIDs[0], "A", 1000)

	abandoned, err := env.service.AbandonSession(ctx, "u1", session.ID)
	if err != nil {
		t.Fatalf("abandon failed: %v", err)
	}
	if abandoned.State != domain.StateAbandoned {
		t.Fatalf("expected ABANDONED, got %s", abandoned.State)
	}
	if _, err := env.service.AbandonSession(ctx, "u1", session.ID); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected second abandon rejected, got %v", err)
	}
	if _, err := env.service.CompleteSession(ctx, "u1", session.ID); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected completion of abandoned session rejected, got %v", err)
	}

	retry, err := env.service.RetrySession(ctx, "u1", session.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retry.ID == session.ID || retry.RetryOf != session.ID {
		t.Fatalf("expected new session linked to original, got %+v", retry)
	}
	if fmt.Sprint(retry.QuestionIDs) != fmt.Sprint(session.QuestionIDs) {
		t.Fatalf("expected same question order, got %v vs %v", retry.QuestionIDs, session.QuestionIDs)
	}
	if retry.State != domain.StateInProgress || len(retry.InteractionIDs) != 0 {
		t.Fatalf("expected fresh session, got %+v", retry)
	}
	if _, err := env.service.RetrySession(ctx, "u2", session.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden retry, got %v", err)
	}
}

func TestExpireStaleMarksOverdueSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	overdue := env.create(t, 1) // 40s limit
	env.clock.Advance(10 * time.Minute)
	fresh := env.create(t, 1)

	n, err := env.service.ExpireStale(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	got, _ := env.store.GetSession(ctx, overdue.ID)
	if got.State != domain.StateExpired {
		t.Fatalf("expected EXPIRED, got %s", got.State)
	}
	got, _ = env.store.GetSession(ctx, fresh.ID)
	if got.State != domain.StateInProgress {
		t.Fatalf("expected fresh session untouched, got %s", got.State)
	}

	_, err = env.service.RecordInteraction(ctx, "u1", overdue.ID, app.InteractionInput{QuestionID: overdue.QuestionIDs[0], Skip: true})
	if !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected expired session to reject answers, got %v", err)
	}
}

func TestSummaryAndResumeView(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 4)
	env.record(t, session.ID, session.QuestionIDs[0], "A", 10000)
	env.record(t, session.ID, session.QuestionIDs[1], "A", 10000)

	view, err := env.service.GetSession(ctx, "u1", session.ID)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	if len(view.Questions) != 4 || len(view.Interactions) != 2 || view.Session.CurrentIndex != 1 {
		t.Fatalf("unexpected resume view %+v", view)
	}
	if view.Questions[0].Text == "" || len(view.Questions[0].Options) == 0 {
		t.Fatalf("expected question content, got %+v", view.Questions[0])
	}

	provisional, err := env.service.GetSummary(ctx, "u1", session.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if provisional.Final || provisional.Stats.Correct != 2 {
		t.Fatalf("expected provisional stats, got %+v", provisional)
	}
	if stored, _ := env.store.GetSession(ctx, session.ID); stored.Result != nil {
		t.Fatalf("provisional summary must not persist stats")
	}

	if _, err := env.service.CompleteSession(ctx, "u1", session.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	summary, err := env.service.GetSummary(ctx, "u1", session.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !summary.Final || summary.TimeAnalysis.TargetTimeMs != 40000 || summary.TimeAnalysis.Recommendation != app.PaceSlowDown {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.TimeAnalysis.SpeedMultiplier != 4 {
		t.Fatalf("expected speed multiplier 4, got %v", summary.TimeAnalysis.SpeedMultiplier)
	}
}

func TestReviewFilterAndInsights(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	session := env.create(t, 4)
	env.record(t, session.ID, session.QuestionIDs[0], "A", 15000)
	env.record(t, session.ID, session.QuestionIDs[1], "B", 50000)
	env.record(t, session.ID, session.QuestionIDs[2], domain.SkippedOption, 2000)

	review, err := env.service.GetReview(ctx, "u1", session.ID, "incorrect")
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if len(review.Items) != 1 || review.Items[0].QuestionID != session.QuestionIDs[1] {
		t.Fatalf("expected only the wrong answer, got %+v", review.Items)
	}
	if review.Result != nil {
		t.Fatalf("expected no frozen result before completion")
	}

	nm := review.Insights.NegativeMarking
	if nm.ActualMarks != 1.5 || nm.MaxMarks != 8 || nm.SkipCount != 1 || nm.OptimizedMarks != 2 || nm.SavedTimeMs != 50000 {
		t.Fatalf("unexpected negative marking %+v", nm)
	}
	dist := review.Insights.TimeDistribution
	if dist.Under20s.Count != 3 || dist.Under20s.Correct != 1 || dist.From40To60.Count != 1 || dist.From20To40.Count != 0 {
		t.Fatalf("unexpected time distribution %+v", dist)
	}
	if review.Insights.Fatigue != nil {
		t.Fatalf("fatigue needs at least six questions")
	}

	notAttempted, _ := env.service.GetReview(ctx, "u1", session.ID, "NOT_ATTEMPTED")
	if len(notAttempted.Items) != 1 || notAttempted.Items[0].WasAttempted {
		t.Fatalf("expected one unattempted item, got %+v", notAttempted.Items)
	}

	if _, err := env.service.GetReview(ctx, "u1", session.ID, "MAYBE"); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected invalid filter, got %v", err)
	}
}

func assertConsistent(t *testing.T, result domain.Result) {
	t.Helper()
	s := result.Stats
	if s.Correct+s.Incorrect != s.Attempted {
		t.Fatalf("correct+incorrect != attempted: %+v", s)
	}
	if s.Attempted+s.Skipped+s.NotAttempted != s.TotalQuestions {
		t.Fatalf("attempted+skipped+notAttempted != total: %+v", s)
	}
	sum := 0
	for _, tp := range result.TopicPerformance {
		sum += tp.Total
	}
	if sum != s.Attempted+s.Skipped {
		t.Fatalf("topic totals %d != interactions %d", sum, s.Attempted+s.Skipped)
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingStore records how many sessions were persisted.
type countingStore struct {
	*memory.SprintStore
	mu      sync.Mutex
	created int
}

func (s *countingStore) CreateSession(ctx context.Context, session domain.SprintSession) error {
	s.mu.Lock()
	s.created++
	s.mu.Unlock()
	return s.SprintStore.CreateSession(ctx, session)
}

type testEnv struct {
	service *app.SprintService
	store   *countingStore
	loader  *memory.StaticQuestionLoader
	events  *memory.EventRecorder
	clock   *testClock
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:  &countingStore{SprintStore: memory.NewSprintStore()},
		loader: memory.NewStaticQuestionLoader(sampleQuestions()),
		events: memory.NewEventRecorder(),
		clock:  &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	env.service = app.NewSprintService(env.store, env.loader,
		app.WithPublisher(env.events),
		app.WithClock(env.clock.Now),
	)
	return env
}

// create starts an EASY QUANT sprint of n questions for u1.
func (e *testEnv) create(t *testing.T, n int) domain.SprintSession {
	t.Helper()
	session, err := e.service.CreateSession(context.Background(), "u1", domain.SessionTypeSprint, domain.Config{
		Subject:       "QUANT",
		Difficulty:    domain.DifficultyEasy,
		QuestionCount: n,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return session
}

func (e *testEnv) record(t *testing.T, sessionID, questionID, option string, timeMs int64) {
	t.Helper()
	if _, err := e.service.RecordInteraction(context.Background(), "u1", sessionID, app.InteractionInput{
		QuestionID:     questionID,
		SelectedOption: option,
		TimeMs:         timeMs,
	}); err != nil {
		t.Fatalf("record %s failed: %v", questionID, err)
	}
}

// sampleQuestions has six live EASY QUANT questions (correct option A), two HARD ones and a draft.
func sampleQuestions() []domain.Question {
	options := []domain.Option{{ID: "A", Text: "one"}, {ID: "B", Text: "two"}, {ID: "C", Text: "three"}, {ID: "D", Text: "four"}}
	var questions []domain.Question
	for i := 1; i <= 6; i++ {
		topic := "Arithmetic"
		if i%2 == 0 {
			topic = "Percentages"
		}
		if i == 6 {
			topic = ""
		}
		questions = append(questions, domain.Question{
			ID:              fmt.Sprintf("quant-easy-%d", i),
			Subject:         "QUANT",
			Topic:           topic,
			Difficulty:      domain.DifficultyEasy,
			Text:            fmt.Sprintf("Easy question %d", i),
			Options:         options,
			CorrectOptionID: "A",
			Solution:        "Pick A.",
			Live:            true,
		})
	}
	for i := 1; i <= 2; i++ {
		questions = append(questions, domain.Question{
			ID: fmt.Sprintf("quant-hard-%d", i), Subject: "QUANT", Topic: "Algebra",
			Difficulty: domain.DifficultyHard, Options: options, CorrectOptionID: "B", Live: true,
		})
	}
	questions = append(questions, domain.Question{
		ID: "quant-draft", Subject: "QUANT", Topic: "Algebra",
		Difficulty: domain.DifficultyEasy, Options: options, CorrectOptionID: "A", Live: false,
	})
	return questions
}
