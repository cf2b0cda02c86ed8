package mongo

import (
	"context"
	"errors"
	"fmt"

	"sprint-service/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type questionDoc struct {
	ID              string          `bson:"_id"`
	Subject         string          `bson:"subject"`
	Topic           string          `bson:"topic"`
	Difficulty      string          `bson:"difficulty"`
	Text            string          `bson:"text"`
	Options         []domain.Option `bson:"options"`
	CorrectOptionID string          `bson:"correct_option_id"`
	Solution        string          `bson:"solution,omitempty"`
	Live            bool            `bson:"is_live"`
}

// QuestionLoader reads the question bank from the questions collection.
type QuestionLoader struct {
	col *mongo.Collection
}

func NewQuestionLoader(db *mongo.Database) *QuestionLoader {
	return &QuestionLoader{col: db.Collection("questions")}
}

func (l *QuestionLoader) FindQuestionIDs(ctx context.Context, filter domain.PoolFilter) ([]string, error) {
	query := bson.M{"is_live": true, "subject": filter.Subject}
	if filter.Difficulty != "" && filter.Difficulty != domain.DifficultyMixed {
		query["difficulty"] = string(filter.Difficulty)
	}
	if len(filter.Topics) > 0 {
		query["topic"] = bson.M{"$in": filter.Topics}
	}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := l.col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("query question pool: %w", err)
	}
	defer cur.Close(ctx)
	ids := make([]string, 0)
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

func (l *QuestionLoader) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var doc questionDoc
	err := l.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return doc.toDomain(), nil
}

func (l *QuestionLoader) GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := l.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc questionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out[doc.ID] = doc.toDomain()
	}
	return out, cur.Err()
}

// SaveQuestion upserts a question; used by seeding and tests.
func (l *QuestionLoader) SaveQuestion(ctx context.Context, q domain.Question) error {
	doc := questionDoc{
		ID:              q.ID,
		Subject:         q.Subject,
		Topic:           q.Topic,
		Difficulty:      string(q.Difficulty),
		Text:            q.Text,
		Options:         q.Options,
		CorrectOptionID: q.CorrectOptionID,
		Solution:        q.Solution,
		Live:            q.Live,
	}
	_, err := l.col.ReplaceOne(ctx, bson.M{"_id": q.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (d questionDoc) toDomain() domain.Question {
	return domain.Question{
		ID:              d.ID,
		Subject:         d.Subject,
		Topic:           d.Topic,
		Difficulty:      domain.Difficulty(d.Difficulty),
		Text:            d.Text,
		Options:         d.Options,
		CorrectOptionID: d.CorrectOptionID,
		Solution:        d.Solution,
		Live:            d.Live,
	}
}
