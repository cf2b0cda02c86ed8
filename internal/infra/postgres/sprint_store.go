package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"sprint-service/internal/app"
	"sprint-service/internal/domain"

	"github.com/uptrace/bun"
)

type sprintSessionModel struct {
	bun.BaseModel `bun:"table:sprint_sessions"`

	ID             string         `bun:"id,pk"`
	Owner          string         `bun:"owner_id"`
	Type           string         `bun:"type"`
	Config         domain.Config  `bun:"config,type:jsonb"`
	QuestionIDs    []string       `bun:"question_ids,type:jsonb"`
	InteractionIDs []string       `bun:"interaction_ids,type:jsonb"`
	CurrentIndex   int            `bun:"current_index"`
	State          string         `bun:"state"`
	Result         *domain.Result `bun:"result,type:jsonb"`
	RetryOf        string         `bun:"retry_of,nullzero"`
	StartedAt      time.Time      `bun:"started_at"`
	ExpiresAt      *time.Time     `bun:"expires_at"`
	CompletedAt    *time.Time     `bun:"completed_at"`
	UpdatedAt      time.Time      `bun:"updated_at"`
}

type interactionModel struct {
	bun.BaseModel `bun:"table:sprint_interactions"`

	ID             string    `bun:"id,pk"`
	SessionID      string    `bun:"session_id"`
	QuestionID     string    `bun:"question_id"`
	Owner          string    `bun:"owner_id"`
	SelectedOption string    `bun:"selected_option"`
	IsCorrect      bool      `bun:"is_correct"`
	TimeMs         int64     `bun:"time_ms"`
	Subject        string    `bun:"subject"`
	Topic          string    `bun:"topic"`
	Difficulty     string    `bun:"difficulty"`
	CreatedAt      time.Time `bun:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at"`
}

// SprintStore persists sprints with bun. Interactions are upserted on the
// (session_id, question_id) unique key and completion runs in a single
// transaction holding the session row lock.
type SprintStore struct {
	db *bun.DB
}

func NewSprintStore(db *bun.DB) *SprintStore {
	return &SprintStore{db: db}
}

func (s *SprintStore) CreateSession(ctx context.Context, session domain.SprintSession) error {
	model := toSessionModel(session.Clone())
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SprintStore) GetSession(ctx context.Context, id string) (domain.SprintSession, error) {
	model := new(sprintSessionModel)
	if err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.SprintSession{}, notFound(err)
	}
	return model.toDomain(), nil
}

func (s *SprintStore) ListInteractions(ctx context.Context, sessionID string) ([]domain.InteractionRecord, error) {
	return listInteractions(ctx, s.db, sessionID)
}

func (s *SprintStore) RecordInteraction(ctx context.Context, rec domain.InteractionRecord, index int) (domain.InteractionRecord, error) {
	model := toInteractionModel(rec)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session, err := lockSession(ctx, tx, rec.SessionID)
		if err != nil {
			return err
		}
		if domain.State(session.State) != domain.StateInProgress {
			return domain.ErrSessionNotActive
		}

		err = tx.NewInsert().
			Model(model).
			On("CONFLICT (session_id, question_id) DO UPDATE").
			Set("selected_option = EXCLUDED.selected_option").
			Set("is_correct = EXCLUDED.is_correct").
			Set("time_ms = EXCLUDED.time_ms").
			Set("subject = EXCLUDED.subject").
			Set("topic = EXCLUDED.topic").
			Set("difficulty = EXCLUDED.difficulty").
			Set("updated_at = EXCLUDED.updated_at").
			Returning("*").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("upsert interaction: %w", err)
		}

		if !slices.Contains(session.InteractionIDs, model.ID) {
			session.InteractionIDs = append(session.InteractionIDs, model.ID)
		}
		session.CurrentIndex = index
		session.UpdatedAt = rec.UpdatedAt
		_, err = tx.NewUpdate().
			Model(session).
			Column("interaction_ids", "current_index", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return domain.InteractionRecord{}, err
	}
	return model.toDomain(), nil
}

func (s *SprintStore) Finalize(ctx context.Context, id string, now time.Time, compute app.ComputeFunc) (domain.SprintSession, error) {
	var out domain.SprintSession
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session, err := lockSession(ctx, tx, id)
		if err != nil {
			return err
		}
		switch domain.State(session.State) {
		case domain.StateInProgress:
		case domain.StateCompleted:
			return domain.ErrSessionCompleted
		default:
			return domain.ErrSessionNotActive
		}

		records, err := listInteractions(ctx, tx, id)
		if err != nil {
			return err
		}
		result := compute(session.toDomain(), records)

		completedAt := now
		session.Result = &result
		session.State = string(domain.StateCompleted)
		session.CompletedAt = &completedAt
		session.UpdatedAt = now
		res, err := tx.NewUpdate().
			Model(session).
			Column("result", "state", "completed_at", "updated_at").
			WherePK().
			Where("state = ?", string(domain.StateInProgress)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrSessionCompleted
		}
		out = session.toDomain()
		return nil
	})
	if err != nil {
		return domain.SprintSession{}, err
	}
	return out, nil
}

func (s *SprintStore) Transition(ctx context.Context, id string, from, to domain.State, now time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*sprintSessionModel)(nil)).
		Set("state = ?", string(to)).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", string(from)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("transition session: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	exists, err := s.db.NewSelect().Model((*sprintSessionModel)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrSessionNotFound
	}
	return domain.ErrSessionNotActive
}

func (s *SprintStore) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.NewUpdate().
		Model((*sprintSessionModel)(nil)).
		Set("state = ?", string(domain.StateExpired)).
		Set("updated_at = ?", cutoff).
		Where("state = ?", string(domain.StateInProgress)).
		Where("expires_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func lockSession(ctx context.Context, tx bun.Tx, id string) (*sprintSessionModel, error) {
	session := new(sprintSessionModel)
	err := tx.NewSelect().Model(session).Where("id = ?", id).For("UPDATE").Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return session, nil
}

func listInteractions(ctx context.Context, db bun.IDB, sessionID string) ([]domain.InteractionRecord, error) {
	var models []interactionModel
	err := db.NewSelect().
		Model(&models).
		Where("session_id = ?", sessionID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	out := make([]domain.InteractionRecord, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	return err
}

func toSessionModel(s domain.SprintSession) *sprintSessionModel {
	return &sprintSessionModel{
		ID:             s.ID,
		Owner:          s.Owner,
		Type:           string(s.Type),
		Config:         s.Config,
		QuestionIDs:    s.QuestionIDs,
		InteractionIDs: s.InteractionIDs,
		CurrentIndex:   s.CurrentIndex,
		State:          string(s.State),
		Result:         s.Result,
		RetryOf:        s.RetryOf,
		StartedAt:      s.StartedAt,
		ExpiresAt:      s.ExpiresAt,
		CompletedAt:    s.CompletedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (m *sprintSessionModel) toDomain() domain.SprintSession {
	s := domain.SprintSession{
		ID:             m.ID,
		Owner:          m.Owner,
		Type:           domain.SessionType(m.Type),
		Config:         m.Config,
		QuestionIDs:    m.QuestionIDs,
		InteractionIDs: m.InteractionIDs,
		CurrentIndex:   m.CurrentIndex,
		State:          domain.State(m.State),
		Result:         m.Result,
		RetryOf:        m.RetryOf,
		StartedAt:      m.StartedAt,
		ExpiresAt:      m.ExpiresAt,
		CompletedAt:    m.CompletedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	return s.Clone()
}

func toInteractionModel(r domain.InteractionRecord) *interactionModel {
	return &interactionModel{
		ID:             r.ID,
		SessionID:      r.SessionID,
		QuestionID:     r.QuestionID,
		Owner:          r.Owner,
		SelectedOption: r.SelectedOption,
		IsCorrect:      r.IsCorrect,
		TimeMs:         r.TimeMs,
		Subject:        r.Subject,
		Topic:          r.Topic,
		Difficulty:     string(r.Difficulty),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (m interactionModel) toDomain() domain.InteractionRecord {
	return domain.InteractionRecord{
		ID:             m.ID,
		SessionID:      m.SessionID,
		QuestionID:     m.QuestionID,
		Owner:          m.Owner,
		SelectedOption: m.SelectedOption,
		IsCorrect:      m.IsCorrect,
		TimeMs:         m.TimeMs,
		Subject:        m.Subject,
		Topic:          m.Topic,
		Difficulty:     domain.Difficulty(m.Difficulty),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
