package domain

import (
	"slices"
	"time"
)

// Difficulty selects the question pool and drives the pacing target.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyMixed  Difficulty = "MIXED"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyMixed:
		return true
	}
	return false
}

// TargetTimePerQuestion is the pacing target used for time limits and the summary recommendation.
func (d Difficulty) TargetTimePerQuestion() time.Duration {
	switch d {
	case DifficultyEasy:
		return 40 * time.Second
	case DifficultyHard:
		return 25 * time.Second
	default:
		return 30 * time.Second
	}
}

// SessionType distinguishes timed sprints from untimed practice runs.
type SessionType string

const (
	SessionTypeSprint        SessionType = "SPRINT"
	SessionTypeQuickPractice SessionType = "QUICK_PRACTICE"
)

// State is the lifecycle position of a sprint. Transitions only move forward.
type State string

const (
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED"
	StateAbandoned  State = "ABANDONED"
	StateExpired    State = "EXPIRED"
)

// Terminal reports whether no further interaction is accepted in s.
func (s State) Terminal() bool {
	return s != StateInProgress
}

// SkippedOption is the selectedOption sentinel for an explicit skip.
const SkippedOption = "SKIPPED"

// Config is the immutable sprint configuration, validated once at creation.
type Config struct {
	Subject       string     `json:"subject" bson:"subject"`
	Topics        []string   `json:"topics" bson:"topics"`
	Difficulty    Difficulty `json:"difficulty" bson:"difficulty"`
	QuestionCount int        `json:"questionCount" bson:"question_count"`
	TimeLimitMs   int64      `json:"timeLimitMs" bson:"time_limit_ms"`
}

// Clone returns a deep copy so a reused config never aliases the original topics slice.
func (c Config) Clone() Config {
	out := c
	out.Topics = slices.Clone(c.Topics)
	if out.Topics == nil {
		out.Topics = []string{}
	}
	return out
}

// PoolFilter narrows the live question pool a sprint samples from.
type PoolFilter struct {
	Subject    string
	Difficulty Difficulty
	Topics     []string
	Count      int
}

// Stats is the frozen aggregate for a completed sprint.
type Stats struct {
	TotalQuestions int   `json:"totalQuestions" bson:"total_questions"`
	Attempted      int   `json:"attempted" bson:"attempted"`
	Correct        int   `json:"correct" bson:"correct"`
	Incorrect      int   `json:"incorrect" bson:"incorrect"`
	Skipped        int   `json:"skipped" bson:"skipped"`
	NotAttempted   int   `json:"notAttempted" bson:"not_attempted"`
	AccuracyPct    int   `json:"accuracyPct" bson:"accuracy_pct"`
	AvgTimeMs      int64 `json:"avgTimeMs" bson:"avg_time_ms"`
	TotalTimeMs    int64 `json:"totalTimeMs" bson:"total_time_ms"`
}

// TopicPerformance is the per-topic slice of Stats.
type TopicPerformance struct {
	Topic       string `json:"topic" bson:"topic"`
	Total       int    `json:"total" bson:"total"`
	Correct     int    `json:"correct" bson:"correct"`
	Incorrect   int    `json:"incorrect" bson:"incorrect"`
	Skipped     int    `json:"skipped" bson:"skipped"`
	AccuracyPct int    `json:"accuracyPct" bson:"accuracy_pct"`
	AvgTimeMs   int64  `json:"avgTimeMs" bson:"avg_time_ms"`
}

// Result groups stats and topic performance so they are always written together.
type Result struct {
	Stats            Stats              `json:"stats" bson:"stats"`
	TopicPerformance []TopicPerformance `json:"topicPerformance" bson:"topic_performance"`
}

// SprintSession is one timed attempt. Result is nil until the session is completed.
type SprintSession struct {
	ID             string      `json:"id"`
	Owner          string      `json:"owner"`
	Type           SessionType `json:"type"`
	Config         Config      `json:"config"`
	QuestionIDs    []string    `json:"questionIds"`
	InteractionIDs []string    `json:"interactionIds"`
	CurrentIndex   int         `json:"currentIndex"`
	State          State       `json:"state"`
	Result         *Result     `json:"result"`
	RetryOf        string      `json:"retryOf,omitempty"`
	StartedAt      time.Time   `json:"startedAt"`
	ExpiresAt      *time.Time  `json:"expiresAt,omitempty"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Outcome returns the frozen result; ok is false unless the session completed.
func (s SprintSession) Outcome() (Result, bool) {
	if s.State != StateCompleted || s.Result == nil {
		return Result{}, false
	}
	return *s.Result, true
}

// IndexOf returns the position of questionID in the presentation order, or -1.
func (s SprintSession) IndexOf(questionID string) int {
	return slices.Index(s.QuestionIDs, questionID)
}

// Clone deep-copies the session so stores never hand out shared slices.
func (s SprintSession) Clone() SprintSession {
	out := s
	out.Config = s.Config.Clone()
	out.QuestionIDs = slices.Clone(s.QuestionIDs)
	out.InteractionIDs = slices.Clone(s.InteractionIDs)
	if out.InteractionIDs == nil {
		out.InteractionIDs = []string{}
	}
	if s.Result != nil {
		r := Result{Stats: s.Result.Stats, TopicPerformance: slices.Clone(s.Result.TopicPerformance)}
		out.Result = &r
	}
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		out.ExpiresAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// InteractionRecord is one answer or skip. Subject, Topic and Difficulty are copied
// from the question when the record is written.
type InteractionRecord struct {
	ID             string     `json:"id" bson:"_id"`
	SessionID      string     `json:"sessionId" bson:"session_id"`
	QuestionID     string     `json:"questionId" bson:"question_id"`
	Owner          string     `json:"owner" bson:"owner_id"`
	SelectedOption string     `json:"selectedOption" bson:"selected_option"`
	IsCorrect      bool       `json:"isCorrect" bson:"is_correct"`
	TimeMs         int64      `json:"timeMs" bson:"time_ms"`
	Subject        string     `json:"subject" bson:"subject"`
	Topic          string     `json:"topic" bson:"topic"`
	Difficulty     Difficulty `json:"difficulty" bson:"difficulty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updated_at"`
}

// Skipped reports whether the record is an explicit skip.
func (r InteractionRecord) Skipped() bool {
	return r.SelectedOption == SkippedOption
}

// Option is a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is the slice of question-bank data the sprint engine needs.
type Question struct {
	ID              string     `json:"id"`
	Subject         string     `json:"subject"`
	Topic           string     `json:"topic"`
	Difficulty      Difficulty `json:"difficulty"`
	Text            string     `json:"text"`
	Options         []Option   `json:"options"`
	CorrectOptionID string     `json:"correctOptionId"`
	Solution        string     `json:"solution,omitempty"`
	Live            bool       `json:"live"`
}

// HasOption reports whether optionID is a valid choice. Questions without an
// option list accept any id.
func (q Question) HasOption(optionID string) bool {
	if len(q.Options) == 0 {
		return true
	}
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// Event is published after a sprint state change is committed.
type Event struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"sessionId"`
	Owner      string    `json:"owner"`
	Subject    string    `json:"subject"`
	State      State     `json:"state"`
	Stats      *Stats    `json:"stats,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

const (
	EventSprintCreated   = "sprint.created"
	EventSprintCompleted = "sprint.completed"
	EventSprintAbandoned = "sprint.abandoned"
)
