package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sprint-service/internal/app"
	"sprint-service/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	finalizeAttempts = 50
	finalizeBackoff  = 20 * time.Millisecond
)

// sessionDoc mirrors domain.SprintSession. Pending counts interaction writes in
// flight and Revision bumps on every committed write; completion only commits
// against a quiet, unchanged document.
type sessionDoc struct {
	ID             string         `bson:"_id"`
	Owner          string         `bson:"owner_id"`
	Type           string         `bson:"type"`
	Config         domain.Config  `bson:"config"`
	QuestionIDs    []string       `bson:"question_ids"`
	InteractionIDs []string       `bson:"interaction_ids"`
	CurrentIndex   int            `bson:"current_index"`
	State          string         `bson:"state"`
	Result         *domain.Result `bson:"result,omitempty"`
	RetryOf        string         `bson:"retry_of,omitempty"`
	StartedAt      time.Time      `bson:"started_at"`
	ExpiresAt      *time.Time     `bson:"expires_at,omitempty"`
	CompletedAt    *time.Time     `bson:"completed_at,omitempty"`
	UpdatedAt      time.Time      `bson:"updated_at"`
	Revision       int64          `bson:"revision"`
	Pending        int            `bson:"pending"`
}

// SprintStore keeps sprints in MongoDB without multi-document transactions.
type SprintStore struct {
	sessions     *mongo.Collection
	interactions *mongo.Collection
}

func NewSprintStore(db *mongo.Database) *SprintStore {
	return &SprintStore{
		sessions:     db.Collection("sprint_sessions"),
		interactions: db.Collection("sprint_interactions"),
	}
}

// EnsureIndexes creates the unique interaction key and the lookup indexes.
func (s *SprintStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.interactions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "question_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create interaction index: %w", err)
	}
	_, err = s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "state", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "expires_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create session indexes: %w", err)
	}
	return nil
}

func (s *SprintStore) CreateSession(ctx context.Context, session domain.SprintSession) error {
	if _, err := s.sessions.InsertOne(ctx, toSessionDoc(session.Clone())); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SprintStore) GetSession(ctx context.Context, id string) (domain.SprintSession, error) {
	doc, err := s.loadSession(ctx, id)
	if err != nil {
		return domain.SprintSession{}, err
	}
	return doc.toDomain(), nil
}

func (s *SprintStore) ListInteractions(ctx context.Context, sessionID string) ([]domain.InteractionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.interactions.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer cur.Close(ctx)
	records := make([]domain.InteractionRecord, 0)
	for cur.Next(ctx) {
		var rec domain.InteractionRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, cur.Err()
}

func (s *SprintStore) RecordInteraction(ctx context.Context, rec domain.InteractionRecord, index int) (domain.InteractionRecord, error) {
	// Take a write lease; this is the only point where the state is checked.
	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": rec.SessionID, "state": string(domain.StateInProgress)},
		bson.M{"$inc": bson.M{"pending": 1}},
	)
	if err != nil {
		return domain.InteractionRecord{}, fmt.Errorf("lease session: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.InteractionRecord{}, s.stateError(ctx, rec.SessionID)
	}

	stored, upsertErr := s.upsertInteraction(ctx, rec)

	update := bson.M{"$inc": bson.M{"pending": -1}}
	if upsertErr == nil {
		update = bson.M{
			"$inc":      bson.M{"pending": -1, "revision": 1},
			"$addToSet": bson.M{"interaction_ids": stored.ID},
			"$set":      bson.M{"current_index": index, "updated_at": rec.UpdatedAt},
		}
	}
	// release with a fresh context so a cancelled request never leaks the lease
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.sessions.UpdateOne(releaseCtx, bson.M{"_id": rec.SessionID}, update); err != nil {
		return domain.InteractionRecord{}, fmt.Errorf("release session: %w", err)
	}
	if upsertErr != nil {
		return domain.InteractionRecord{}, upsertErr
	}
	return stored, nil
}

func (s *SprintStore) upsertInteraction(ctx context.Context, rec domain.InteractionRecord) (domain.InteractionRecord, error) {
	filter := bson.M{"session_id": rec.SessionID, "question_id": rec.QuestionID}
	update := bson.M{
		"$set": bson.M{
			"owner_id":        rec.Owner,
			"selected_option": rec.SelectedOption,
			"is_correct":      rec.IsCorrect,
			"time_ms":         rec.TimeMs,
			"subject":         rec.Subject,
			"topic":           rec.Topic,
			"difficulty":      rec.Difficulty,
			"updated_at":      rec.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        rec.ID,
			"created_at": rec.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored domain.InteractionRecord
	err := s.interactions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		// two concurrent upserts raced on insert; the loser now matches the winner's document
		err = s.interactions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	}
	if err != nil {
		return domain.InteractionRecord{}, fmt.Errorf("upsert interaction: %w", err)
	}
	return stored, nil
}

func (s *SprintStore) Finalize(ctx context.Context, id string, now time.Time, compute app.ComputeFunc) (domain.SprintSession, error) {
	for attempt := 0; attempt < finalizeAttempts; attempt++ {
		doc, err := s.loadSession(ctx, id)
		if err != nil {
			return domain.SprintSession{}, err
		}
		if err := finalizable(domain.State(doc.State)); err != nil {
			return domain.SprintSession{}, err
		}

		if doc.Pending == 0 {
			records, err := s.ListInteractions(ctx, id)
			if err != nil {
				return domain.SprintSession{}, err
			}
			result := compute(doc.toDomain(), records)

			res, err := s.sessions.UpdateOne(ctx,
				bson.M{
					"_id":      id,
					"state":    string(domain.StateInProgress),
					"revision": doc.Revision,
					"pending":  0,
				},
				bson.M{
					"$set": bson.M{
						"result":       result,
						"state":        string(domain.StateCompleted),
						"completed_at": now,
						"updated_at":   now,
					},
					"$inc": bson.M{"revision": 1},
				},
			)
			if err != nil {
				return domain.SprintSession{}, fmt.Errorf("complete session: %w", err)
			}
			if res.MatchedCount == 1 {
				completedAt := now
				doc.Result = &result
				doc.State = string(domain.StateCompleted)
				doc.CompletedAt = &completedAt
				doc.UpdatedAt = now
				return doc.toDomain(), nil
			}
		}

		select {
		case <-ctx.Done():
			return domain.SprintSession{}, ctx.Err()
		case <-time.After(finalizeBackoff):
		}
	}
	return domain.SprintSession{}, fmt.Errorf("complete session %s: writes still in flight", id)
}

func (s *SprintStore) Transition(ctx context.Context, id string, from, to domain.State, now time.Time) error {
	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": id, "state": string(from)},
		bson.M{
			"$set": bson.M{"state": string(to), "updated_at": now},
			"$inc": bson.M{"revision": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("transition session: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.loadSession(ctx, id); err != nil {
			return err
		}
		return domain.ErrSessionNotActive
	}
	return nil
}

func (s *SprintStore) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.sessions.UpdateMany(ctx,
		bson.M{
			"state":      string(domain.StateInProgress),
			"expires_at": bson.M{"$lt": cutoff},
		},
		bson.M{
			"$set": bson.M{"state": string(domain.StateExpired), "updated_at": cutoff},
			"$inc": bson.M{"revision": 1},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (s *SprintStore) loadSession(ctx context.Context, id string) (sessionDoc, error) {
	var doc sessionDoc
	err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sessionDoc{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return sessionDoc{}, fmt.Errorf("load session: %w", err)
	}
	return doc, nil
}

func (s *SprintStore) stateError(ctx context.Context, id string) error {
	if _, err := s.loadSession(ctx, id); err != nil {
		return err
	}
	return domain.ErrSessionNotActive
}

func finalizable(state domain.State) error {
	switch state {
	case domain.StateInProgress:
		return nil
	case domain.StateCompleted:
		return domain.ErrSessionCompleted
	default:
		return domain.ErrSessionNotActive
	}
}

func toSessionDoc(s domain.SprintSession) sessionDoc {
	return sessionDoc{
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

func (d sessionDoc) toDomain() domain.SprintSession {
	s := domain.SprintSession{
		ID:             d.ID,
		Owner:          d.Owner,
		Type:           domain.SessionType(d.Type),
		Config:         d.Config,
		QuestionIDs:    d.QuestionIDs,
		InteractionIDs: d.InteractionIDs,
		CurrentIndex:   d.CurrentIndex,
		State:          domain.State(d.State),
		Result:         d.Result,
		RetryOf:        d.RetryOf,
		StartedAt:      d.StartedAt,
		ExpiresAt:      d.ExpiresAt,
		CompletedAt:    d.CompletedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	return s.Clone()
}
