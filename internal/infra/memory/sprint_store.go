package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sprint-service/internal/app"
	"sprint-service/internal/domain"
)

// SprintStore is an in-memory implementation of app.SprintStore. A single mutex
// makes every operation atomic, which is what the SQL and document stores
// achieve with transactions and conditional updates.
type SprintStore struct {
	mu           sync.RWMutex
	sessions     map[string]*domain.SprintSession
	interactions map[string][]*domain.InteractionRecord
}

func NewSprintStore() *SprintStore {
	return &SprintStore{
		sessions:     make(map[string]*domain.SprintSession),
		interactions: make(map[string][]*domain.InteractionRecord),
	}
}

func (s *SprintStore) CreateSession(_ context.Context, session domain.SprintSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	stored := session.Clone()
	s.sessions[session.ID] = &stored
	return nil
}

func (s *SprintStore) GetSession(_ context.Context, id string) (domain.SprintSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.SprintSession{}, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *SprintStore) ListInteractions(_ context.Context, sessionID string) ([]domain.InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.interactions[sessionID]
	out := make([]domain.InteractionRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}
	return out, nil
}

func (s *SprintStore) RecordInteraction(_ context.Context, rec domain.InteractionRecord, index int) (domain.InteractionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[rec.SessionID]
	if !ok {
		return domain.InteractionRecord{}, domain.ErrSessionNotFound
	}
	if session.State != domain.StateInProgress {
		return domain.InteractionRecord{}, domain.ErrSessionNotActive
	}

	var stored *domain.InteractionRecord
	for _, existing := range s.interactions[rec.SessionID] {
		if existing.QuestionID == rec.QuestionID {
			stored = existing
			break
		}
	}
	if stored != nil {
		stored.SelectedOption = rec.SelectedOption
		stored.IsCorrect = rec.IsCorrect
		stored.TimeMs = rec.TimeMs
		stored.Subject = rec.Subject
		stored.Topic = rec.Topic
		stored.Difficulty = rec.Difficulty
		stored.UpdatedAt = rec.UpdatedAt
	} else {
		created := rec
		stored = &created
		s.interactions[rec.SessionID] = append(s.interactions[rec.SessionID], stored)
		session.InteractionIDs = append(session.InteractionIDs, stored.ID)
	}
	session.CurrentIndex = index
	session.UpdatedAt = rec.UpdatedAt
	return *stored, nil
}

func (s *SprintStore) Finalize(_ context.Context, id string, now time.Time, compute app.ComputeFunc) (domain.SprintSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.SprintSession{}, domain.ErrSessionNotFound
	}
	switch session.State {
	case domain.StateInProgress:
	case domain.StateCompleted:
		return domain.SprintSession{}, domain.ErrSessionCompleted
	default:
		return domain.SprintSession{}, domain.ErrSessionNotActive
	}

	records := make([]domain.InteractionRecord, 0, len(s.interactions[id]))
	for _, rec := range s.interactions[id] {
		records = append(records, *rec)
	}
	result := compute(session.Clone(), records)

	completedAt := now
	session.Result = &result
	session.State = domain.StateCompleted
	session.CompletedAt = &completedAt
	session.UpdatedAt = now
	return session.Clone(), nil
}

func (s *SprintStore) Transition(_ context.Context, id string, from, to domain.State, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.State != from {
		return domain.ErrSessionNotActive
	}
	session.State = to
	session.UpdatedAt = now
	return nil
}

func (s *SprintStore) ExpireStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, session := range s.sessions {
		if session.State != domain.StateInProgress || session.ExpiresAt == nil {
			continue
		}
		if session.ExpiresAt.Before(cutoff) {
			session.State = domain.StateExpired
			session.UpdatedAt = cutoff
			n++
		}
	}
	return n, nil
}
