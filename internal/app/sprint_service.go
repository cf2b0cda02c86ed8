package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sprint-service/internal/domain"
	"sprint-service/internal/logger"

	"github.com/google/uuid"
)

const (
	DefaultMinQuestions = 1
	DefaultMaxQuestions = 50
)

// SprintService contains the sprint use cases.
type SprintService struct {
	store     SprintStore
	questions QuestionRepository
	pool      *QuestionPool
	events    Publisher
	log       *logger.Logger
	now       func() time.Time
	newID     func() string

	minQuestions int
	maxQuestions int
}

// Option customises a SprintService.
type Option func(*SprintService)

func WithPublisher(p Publisher) Option {
	return func(s *SprintService) {
		if p != nil {
			s.events = p
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *SprintService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SprintService) { s.now = now }
}

func WithQuestionLimits(lo, hi int) Option {
	return func(s *SprintService) {
		if lo > 0 {
			s.minQuestions = lo
		}
		if hi >= s.minQuestions {
			s.maxQuestions = hi
		}
	}
}

// WithPool replaces the default pool, e.g. with a seeded one in tests.
func WithPool(p *QuestionPool) Option {
	return func(s *SprintService) { s.pool = p }
}

func NewSprintService(store SprintStore, questions QuestionRepository, opts ...Option) *SprintService {
	s := &SprintService{
		store:        store,
		questions:    questions,
		pool:         NewQuestionPool(questions),
		events:       nopPublisher{},
		log:          logger.Nop(),
		now:          time.Now,
		newID:        uuid.NewString,
		minQuestions: DefaultMinQuestions,
		maxQuestions: DefaultMaxQuestions,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "sprint")
	return s
}

// CreateSession samples the pool and persists a new IN_PROGRESS sprint.
// Nothing is persisted when the pool is empty.
func (s *SprintService) CreateSession(ctx context.Context, owner string, typ domain.SessionType, cfg domain.Config) (domain.SprintSession, error) {
	if owner == "" {
		return domain.SprintSession{}, domain.ErrUnauthenticated
	}
	if typ == "" {
		typ = domain.SessionTypeSprint
	}
	if typ != domain.SessionTypeSprint && typ != domain.SessionTypeQuickPractice {
		return domain.SprintSession{}, fmt.Errorf("%w: unknown session type %q", domain.ErrInvalidConfig, typ)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(s.minQuestions, s.maxQuestions); err != nil {
		return domain.SprintSession{}, err
	}

	ids, err := s.pool.Select(ctx, cfg.Filter())
	if err != nil {
		return domain.SprintSession{}, fmt.Errorf("select questions: %w", err)
	}
	if len(ids) == 0 {
		s.log.Debug("empty question pool", "subject", cfg.Subject, "difficulty", cfg.Difficulty, "topics", cfg.Topics)
		return domain.SprintSession{}, domain.ErrNoQuestionsAvailable
	}

	// The pool may hold fewer questions than requested.
	cfg.QuestionCount = len(ids)
	if cfg.TimeLimitMs == 0 {
		cfg.TimeLimitMs = int64(len(ids)) * cfg.Difficulty.TargetTimePerQuestion().Milliseconds()
	}

	session := s.newSession(owner, typ, cfg, ids)
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.SprintSession{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("sprint created", "session_id", session.ID, "user_id", owner, "questions", len(ids))
	s.publish(ctx, domain.EventSprintCreated, session)
	return session, nil
}

// RetrySession starts a fresh sprint with the original's config and question order.
func (s *SprintService) RetrySession(ctx context.Context, owner, sessionID string) (domain.SprintSession, error) {
	original, err := s.ownedSession(ctx, owner, sessionID)
	if err != nil {
		return domain.SprintSession{}, err
	}
	if len(original.QuestionIDs) == 0 {
		return domain.SprintSession{}, domain.ErrNoQuestionsAvailable
	}

	seed := original.Clone()
	session := s.newSession(owner, original.Type, seed.Config, seed.QuestionIDs)
	session.RetryOf = original.ID
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.SprintSession{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("sprint retried", "session_id", session.ID, "retry_of", original.ID, "user_id", owner)
	s.publish(ctx, domain.EventSprintCreated, session)
	return session, nil
}

// AbandonSession is the owner giving up on an IN_PROGRESS sprint.
func (s *SprintService) AbandonSession(ctx context.Context, owner, sessionID string) (domain.SprintSession, error) {
	session, err := s.ownedSession(ctx, owner, sessionID)
	if err != nil {
		return domain.SprintSession{}, err
	}
	if session.State.Terminal() {
		return domain.SprintSession{}, notActive(session.State)
	}
	if err := s.store.Transition(ctx, sessionID, domain.StateInProgress, domain.StateAbandoned, s.now()); err != nil {
		return domain.SprintSession{}, err
	}
	session, err = s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SprintSession{}, err
	}
	s.log.Info("sprint abandoned", "session_id", sessionID, "user_id", owner)
	s.publish(ctx, domain.EventSprintAbandoned, session)
	return session, nil
}

// ExpireStale marks sprints whose deadline passed more than grace ago as EXPIRED.
func (s *SprintService) ExpireStale(ctx context.Context, grace time.Duration) (int, error) {
	n, err := s.store.ExpireStale(ctx, s.now().Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("expire stale sessions: %w", err)
	}
	if n > 0 {
		s.log.Info("sprints expired", "count", n)
	}
	return n, nil
}

func (s *SprintService) newSession(owner string, typ domain.SessionType, cfg domain.Config, ids []string) domain.SprintSession {
	now := s.now()
	session := domain.SprintSession{
		ID:             s.newID(),
		Owner:          owner,
		Type:           typ,
		Config:         cfg.Clone(),
		QuestionIDs:    append([]string(nil), ids...),
		InteractionIDs: []string{},
		CurrentIndex:   0,
		State:          domain.StateInProgress,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	if cfg.TimeLimitMs > 0 {
		deadline := now.Add(time.Duration(cfg.TimeLimitMs) * time.Millisecond)
		session.ExpiresAt = &deadline
	}
	return session
}

// ownedSession loads a session and checks it belongs to owner.
func (s *SprintService) ownedSession(ctx context.Context, owner, sessionID string) (domain.SprintSession, error) {
	if owner == "" {
		return domain.SprintSession{}, domain.ErrUnauthenticated
	}
	if sessionID == "" {
		return domain.SprintSession{}, domain.ErrSessionNotFound
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.SprintSession{}, err
		}
		return domain.SprintSession{}, fmt.Errorf("load session: %w", err)
	}
	if session.Owner != owner {
		s.log.Debug("session owner mismatch", "session_id", sessionID, "user_id", owner)
		return domain.SprintSession{}, domain.ErrForbidden
	}
	return session, nil
}

func (s *SprintService) publish(ctx context.Context, typ string, session domain.SprintSession) {
	event := domain.Event{
		Type:       typ,
		SessionID:  session.ID,
		Owner:      session.Owner,
		Subject:    session.Config.Subject,
		State:      session.State,
		OccurredAt: s.now(),
	}
	if result, ok := session.Outcome(); ok {
		stats := result.Stats
		event.Stats = &stats
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Error("publish event failed", "type", typ, "session_id", session.ID, "error", err)
	}
}

func notActive(state domain.State) error {
	return fmt.Errorf("%w: session is %s", domain.ErrSessionNotActive, state)
}
