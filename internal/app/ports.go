package app

import (
	"context"
	"time"

	"sprint-service/internal/domain"
)

// QuestionRepository reads the question bank (directly or through a cache).
type QuestionRepository interface {
	// FindQuestionIDs returns the ids of live questions matching filter. Count is ignored.
	FindQuestionIDs(ctx context.Context, filter domain.PoolFilter) ([]string, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	// GetQuestions omits ids that do not exist.
	GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error)
}

// ComputeFunc derives the frozen result from a session and all of its records.
type ComputeFunc func(session domain.SprintSession, records []domain.InteractionRecord) domain.Result

// SprintStore persists sessions and interaction records.
//
// Implementations must make RecordInteraction and Finalize atomic with respect to
// the session state: a record is only accepted while the session is IN_PROGRESS,
// and Finalize freezes a result at most once.
type SprintStore interface {
	CreateSession(ctx context.Context, session domain.SprintSession) error
	GetSession(ctx context.Context, id string) (domain.SprintSession, error)
	ListInteractions(ctx context.Context, sessionID string) ([]domain.InteractionRecord, error)
	// RecordInteraction upserts rec by (SessionID, QuestionID) and moves the
	// session pointer to index. The stored record is returned; on replace it keeps
	// the original ID and CreatedAt.
	RecordInteraction(ctx context.Context, rec domain.InteractionRecord, index int) (domain.InteractionRecord, error)
	// Finalize computes and freezes the result and moves the session to COMPLETED.
	Finalize(ctx context.Context, id string, now time.Time, compute ComputeFunc) (domain.SprintSession, error)
	// Transition moves id from one state to another, failing with
	// ErrSessionNotActive when the session is no longer in from.
	Transition(ctx context.Context, id string, from, to domain.State, now time.Time) error
	// ExpireStale marks IN_PROGRESS sessions whose deadline is before cutoff as EXPIRED.
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Publisher emits sprint lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }
