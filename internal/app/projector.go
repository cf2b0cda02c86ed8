package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"sprint-service/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Pace is the pacing recommendation shown on the summary.
type Pace string

const (
	PaceSlowDown Pace = "SLOW_DOWN"
	PaceSpeedUp  Pace = "SPEED_UP"
	PaceGood     Pace = "GOOD_PACE"
)

// TimeAnalysis compares the average time per question with the difficulty target.
type TimeAnalysis struct {
	AvgTimeMs       int64   `json:"avgTimeMs"`
	TargetTimeMs    int64   `json:"targetTimeMs"`
	SpeedMultiplier float64 `json:"speedMultiplier"`
	Recommendation  Pace    `json:"recommendation"`
}

// Summary is the report view of a sprint. Final is false when the stats were
// computed on the fly for a session that has not been completed.
type Summary struct {
	SessionID        string                    `json:"sessionId"`
	State            domain.State              `json:"state"`
	Config           domain.Config             `json:"config"`
	Stats            domain.Stats              `json:"stats"`
	TopicPerformance []domain.TopicPerformance `json:"topicPerformance"`
	TimeAnalysis     TimeAnalysis              `json:"timeAnalysis"`
	Final            bool                      `json:"final"`
	StartedAt        time.Time                 `json:"startedAt"`
	CompletedAt      *time.Time                `json:"completedAt,omitempty"`
}

// ReviewStatus is the outcome of one question in the review.
type ReviewStatus string

const (
	StatusCorrect      ReviewStatus = "CORRECT"
	StatusIncorrect    ReviewStatus = "INCORRECT"
	StatusSkipped      ReviewStatus = "SKIPPED"
	StatusNotAttempted ReviewStatus = "NOT_ATTEMPTED"
)

// ReviewItem joins one question of the sprint with what the user did on it.
type ReviewItem struct {
	Order           int               `json:"order"`
	QuestionID      string            `json:"questionId"`
	Text            string            `json:"text"`
	Options         []domain.Option   `json:"options"`
	CorrectOptionID string            `json:"correctOptionId"`
	Solution        string            `json:"solution,omitempty"`
	Subject         string            `json:"subject"`
	Topic           string            `json:"topic"`
	Difficulty      domain.Difficulty `json:"difficulty"`
	UserAnswer      string            `json:"userAnswer,omitempty"`
	IsCorrect       bool              `json:"isCorrect"`
	TimeTakenMs     int64             `json:"timeTakenMs"`
	WasAttempted    bool              `json:"wasAttempted"`
	Status          ReviewStatus      `json:"status"`
}

// Review is the question-by-question view of a sprint.
type Review struct {
	SessionID string         `json:"sessionId"`
	State     domain.State   `json:"state"`
	Config    domain.Config  `json:"config"`
	Result    *domain.Result `json:"result"`
	Insights  Insights       `json:"insights"`
	Items     []ReviewItem   `json:"items"`
}

// Insights are derived from the full review list, regardless of any filter.
type Insights struct {
	NegativeMarking  NegativeMarking  `json:"negativeMarking"`
	TimeDistribution TimeDistribution `json:"timeDistribution"`
	Fatigue          *Fatigue         `json:"fatigue,omitempty"`
}

// NegativeMarking scores the sprint at +2/-0.5 and shows the effect of skipping
// the slowest half of the wrong answers.
type NegativeMarking struct {
	ActualMarks    float64 `json:"actualMarks"`
	MaxMarks       float64 `json:"maxMarks"`
	OptimizedMarks float64 `json:"optimizedMarks"`
	OptimizedMax   float64 `json:"optimizedMax"`
	SkipCount      int     `json:"skipCount"`
	SavedTimeMs    int64   `json:"savedTimeMs"`
}

type TimeBucket struct {
	Count   int `json:"count"`
	Correct int `json:"correct"`
}

type TimeDistribution struct {
	Under20s   TimeBucket `json:"under20s"`
	From20To40 TimeBucket `json:"from20to40s"`
	From40To60 TimeBucket `json:"from40to60s"`
	Over60s    TimeBucket `json:"over60s"`
}

type Fatigue struct {
	Detected           bool    `json:"detected"`
	FirstHalfAccuracy  float64 `json:"firstHalfAccuracy"`
	SecondHalfAccuracy float64 `json:"secondHalfAccuracy"`
	Drop               float64 `json:"drop"`
}

const (
	marksCorrect       = 2.0
	marksIncorrect     = 0.5
	fatigueMinItems    = 6
	fatigueDropTrigger = 0.15
)

// QuestionView is question content without the answer, for an IN_PROGRESS client.
type QuestionView struct {
	ID         string            `json:"id"`
	Order      int               `json:"order"`
	Text       string            `json:"text"`
	Options    []domain.Option   `json:"options"`
	Subject    string            `json:"subject"`
	Topic      string            `json:"topic"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

// SessionView lets a client resume a sprint where it left off.
type SessionView struct {
	Session      domain.SprintSession       `json:"session"`
	Questions    []QuestionView             `json:"questions"`
	Interactions []domain.InteractionRecord `json:"interactions"`
}

// GetSession returns the resume view of a sprint.
func (s *SprintService) GetSession(ctx context.Context, owner, sessionID string) (SessionView, error) {
	session, err := s.ownedSession(ctx, owner, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	records, questions, err := s.loadDetails(ctx, session)
	if err != nil {
		return SessionView{}, err
	}

	views := make([]QuestionView, 0, len(session.QuestionIDs))
	for i, id := range session.QuestionIDs {
		q, ok := questions[id]
		if !ok {
			views = append(views, QuestionView{ID: id, Order: i + 1})
			continue
		}
		views = append(views, QuestionView{
			ID:         id,
			Order:      i + 1,
			Text:       q.Text,
			Options:    q.Options,
			Subject:    q.Subject,
			Topic:      q.Topic,
			Difficulty: q.Difficulty,
		})
	}
	return SessionView{Session: session, Questions: views, Interactions: records}, nil
}

// GetSummary returns the report for a sprint at any state.
func (s *SprintService) GetSummary(ctx context.Context, owner, sessionID string) (Summary, error) {
	session, err := s.ownedSession(ctx, owner, sessionID)
	if err != nil {
		return Summary{}, err
	}

	result, final := session.Outcome()
	if !final {
		records, err := s.store.ListInteractions(ctx, session.ID)
		if err != nil {
			return Summary{}, fmt.Errorf("list interactions: %w", err)
		}
		result = Aggregate(session, records)
	}

	return Summary{
		SessionID:        session.ID,
		State:            session.State,
		Config:           session.Config,
		Stats:            result.Stats,
		TopicPerformance: result.TopicPerformance,
		TimeAnalysis:     analyzeTime(session.Config.Difficulty, result.Stats.AvgTimeMs),
		Final:            final,
		StartedAt:        session.StartedAt,
		CompletedAt:      session.CompletedAt,
	}, nil
}

// GetReview returns one item per question in presentation order. filter is
// empty or "ALL" for everything, otherwise a ReviewStatus.
func (s *SprintService) GetReview(ctx context.Context, owner, sessionID, filter string) (Review, error) {
	status, err := parseReviewFilter(filter)
	if err != nil {
		return Review{}, err
	}
	session, err := s.ownedSession(ctx, owner, sessionID)
	if err != nil {
		return Review{}, err
	}
	records, questions, err := s.loadDetails(ctx, session)
	if err != nil {
		return Review{}, err
	}

	items := buildReviewItems(session, records, questions)
	review := Review{
		SessionID: session.ID,
		State:     session.State,
		Config:    session.Config,
		Insights:  buildInsights(items),
		Items:     filterItems(items, status),
	}
	if result, ok := session.Outcome(); ok {
		review.Result = &result
	}
	return review, nil
}

func (s *SprintService) loadDetails(ctx context.Context, session domain.SprintSession) ([]domain.InteractionRecord, map[string]domain.Question, error) {
	var (
		records   []domain.InteractionRecord
		questions map[string]domain.Question
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.store.ListInteractions(gctx, session.ID)
		if err != nil {
			return fmt.Errorf("list interactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		questions, err = s.questions.GetQuestions(gctx, session.QuestionIDs)
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if records == nil {
		records = []domain.InteractionRecord{}
	}
	return records, questions, nil
}

func buildReviewItems(session domain.SprintSession, records []domain.InteractionRecord, questions map[string]domain.Question) []ReviewItem {
	byQuestion := make(map[string]domain.InteractionRecord, len(records))
	for _, rec := range records {
		byQuestion[rec.QuestionID] = rec
	}

	items := make([]ReviewItem, 0, len(session.QuestionIDs))
	for i, id := range session.QuestionIDs {
		item := ReviewItem{Order: i + 1, QuestionID: id, Status: StatusNotAttempted}
		if q, ok := questions[id]; ok {
			item.Text = q.Text
			item.Options = q.Options
			item.CorrectOptionID = q.CorrectOptionID
			item.Solution = q.Solution
			item.Subject = q.Subject
			item.Topic = q.Topic
			item.Difficulty = q.Difficulty
		}
		if rec, ok := byQuestion[id]; ok {
			item.WasAttempted = true
			item.UserAnswer = rec.SelectedOption
			item.IsCorrect = rec.IsCorrect
			item.TimeTakenMs = rec.TimeMs
			switch {
			case rec.Skipped():
				item.Status = StatusSkipped
			case rec.IsCorrect:
				item.Status = StatusCorrect
			default:
				item.Status = StatusIncorrect
			}
			// Topic as it was when answered.
			if item.Topic == "" {
				item.Topic = rec.Topic
			}
		}
		items = append(items, item)
	}
	return items
}

func parseReviewFilter(filter string) (ReviewStatus, error) {
	f := ReviewStatus(strings.ToUpper(strings.TrimSpace(filter)))
	switch f {
	case "", "ALL":
		return "", nil
	case StatusCorrect, StatusIncorrect, StatusSkipped, StatusNotAttempted:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown review status %q", domain.ErrInvalidFilter, filter)
}

func filterItems(items []ReviewItem, status ReviewStatus) []ReviewItem {
	if status == "" {
		return items
	}
	out := make([]ReviewItem, 0, len(items))
	for _, item := range items {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out
}

func analyzeTime(difficulty domain.Difficulty, avgMs int64) TimeAnalysis {
	target := difficulty.TargetTimePerQuestion().Milliseconds()
	ta := TimeAnalysis{AvgTimeMs: avgMs, TargetTimeMs: target, Recommendation: PaceGood}
	if avgMs > 0 {
		ta.SpeedMultiplier = math.Round(float64(target)/float64(avgMs)*100) / 100
	}
	switch {
	case float64(avgMs) < float64(target)*0.7:
		ta.Recommendation = PaceSlowDown
	case float64(avgMs) > float64(target)*1.3:
		ta.Recommendation = PaceSpeedUp
	}
	return ta
}

func buildInsights(items []ReviewItem) Insights {
	var correct int
	var wrong []ReviewItem
	var dist TimeDistribution
	for _, item := range items {
		switch item.Status {
		case StatusCorrect:
			correct++
		case StatusIncorrect:
			wrong = append(wrong, item)
		}

		// untouched questions count as 0ms
		bucket := &dist.Over60s
		switch {
		case item.TimeTakenMs < 20000:
			bucket = &dist.Under20s
		case item.TimeTakenMs < 40000:
			bucket = &dist.From20To40
		case item.TimeTakenMs < 60000:
			bucket = &dist.From40To60
		}
		bucket.Count++
		if item.Status == StatusCorrect {
			bucket.Correct++
		}
	}

	sort.SliceStable(wrong, func(i, j int) bool { return wrong[i].TimeTakenMs > wrong[j].TimeTakenMs })
	skip := (len(wrong) + 1) / 2
	var saved int64
	for _, item := range wrong[:skip] {
		saved += item.TimeTakenMs
	}
	total := len(items)
	nm := NegativeMarking{
		ActualMarks:    float64(correct)*marksCorrect - float64(len(wrong))*marksIncorrect,
		MaxMarks:       float64(total) * marksCorrect,
		OptimizedMarks: float64(correct)*marksCorrect - float64(len(wrong)-skip)*marksIncorrect,
		OptimizedMax:   float64(total-skip) * marksCorrect,
		SkipCount:      skip,
		SavedTimeMs:    saved,
	}

	return Insights{NegativeMarking: nm, TimeDistribution: dist, Fatigue: detectFatigue(items)}
}

// detectFatigue compares accuracy across the two halves of the sprint.
func detectFatigue(items []ReviewItem) *Fatigue {
	if len(items) < fatigueMinItems {
		return nil
	}
	mid := len(items) / 2
	first := accuracy(items[:mid])
	second := accuracy(items[mid:])
	drop := first - second
	return &Fatigue{
		Detected:           drop >= fatigueDropTrigger,
		FirstHalfAccuracy:  first,
		SecondHalfAccuracy: second,
		Drop:               drop,
	}
}

func accuracy(items []ReviewItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var correct int
	for _, item := range items {
		if item.Status == StatusCorrect {
			correct++
		}
	}
	return float64(correct) / float64(len(items))
}
