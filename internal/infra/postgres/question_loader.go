package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sprint-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads the question bank from Postgres. Filterable columns are
// stored flat; text, options and solution live in the data JSONB column.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

type questionContent struct {
	Text     string          `json:"text"`
	Options  []domain.Option `json:"options"`
	Solution string          `json:"solution"`
}

const selectQuestion = `SELECT id, subject, topic, difficulty, correct_option_id, is_live, data FROM questions`

func (l *QuestionLoader) FindQuestionIDs(ctx context.Context, filter domain.PoolFilter) ([]string, error) {
	difficulty := string(filter.Difficulty)
	if filter.Difficulty == domain.DifficultyMixed {
		difficulty = ""
	}
	topics := filter.Topics
	if topics == nil {
		topics = []string{}
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id FROM questions
		WHERE is_live
		  AND subject = $1
		  AND ($2 = '' OR difficulty = $2)
		  AND (cardinality($3::text[]) = 0 OR topic = ANY($3::text[]))
		ORDER BY id`, filter.Subject, difficulty, topics)
	if err != nil {
		return nil, fmt.Errorf("query question pool: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (l *QuestionLoader) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	q, err := scanQuestion(l.pool.QueryRow(ctx, selectQuestion+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (l *QuestionLoader) GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := l.pool.Query(ctx, selectQuestion+` WHERE id = ANY($1::text[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q          domain.Question
		difficulty string
		raw        []byte
	)
	if err := row.Scan(&q.ID, &q.Subject, &q.Topic, &difficulty, &q.CorrectOptionID, &q.Live, &raw); err != nil {
		return domain.Question{}, err
	}
	q.Difficulty = domain.Difficulty(difficulty)
	if len(raw) > 0 {
		var content questionContent
		if err := json.Unmarshal(raw, &content); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal question %s: %w", q.ID, err)
		}
		q.Text = content.Text
		q.Options = content.Options
		q.Solution = content.Solution
	}
	return q, nil
}
