package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// UserStats is the persisted per-user aggregate. The zero value is the
// default for a user who has never studied.
type UserStats struct {
	QuestionsAnswered int `json:"questionsAnswered"`
	AverageScore      int `json:"averageScore"`
	// ScoreWeight is the running sum of accuracy*count over every recorded
	// result. AverageScore is always round(ScoreWeight / QuestionsAnswered).
	ScoreWeight          float64  `json:"scoreWeight"`
	ExamAttempts         int      `json:"examAttempts"`
	StudyTimeMinutes     int      `json:"studyTimeMinutes"`
	StreakDays           int      `json:"streakDays"`
	LastStudyDate        string   `json:"lastStudyDate,omitempty"` // YYYY-MM-DD, local calendar
	UnlockedAchievements []string `json:"unlockedAchievements"`

	// QuestionsAnsweredTotal is the lifetime trial counter. It lives in its
	// own column and is only changed through StatsRepo.IncrementLifetime.
	QuestionsAnsweredTotal int `json:"-"`
}

// HasAchievement reports whether id is in the unlocked set.
func (s UserStats) HasAchievement(id string) bool {
	for _, a := range s.UnlockedAchievements {
		if a == id {
			return true
		}
	}
	return false
}

// StatsRepo persists UserStats per user.
type StatsRepo interface {
	// Get returns the stored stats, or nil if the user has none yet.
	Get(ctx context.Context, userID string) (*UserStats, error)

	// Save upserts the stats. The lifetime counter is left untouched.
	Save(ctx context.Context, userID string, stats UserStats) error

	// Lifetime returns the lifetime answered-question counter.
	Lifetime(ctx context.Context, userID string) (int, error)

	// IncrementLifetime atomically adds one to the lifetime counter and
	// returns the new total.
	IncrementLifetime(ctx context.Context, userID string) (int, error)
}

// WrongAnswer records an incorrect selection.
type WrongAnswer struct {
	QuestionID    string `json:"questionId"`
	SelectedIndex int    `json:"selectedIndex"`
}

// PracticeSession is the resumable in-progress practice record.
type PracticeSession struct {
	TopicID      string        `json:"topicId"`
	QuestionIDs  []string      `json:"questionIds"`
	CurrentIndex int           `json:"currentIndex"`
	Score        int           `json:"score"`
	WrongAnswers []WrongAnswer `json:"wrongAnswers"`
	StartTime    time.Time     `json:"startTime"`
}

// PracticeSessionRepo keeps at most one practice session per user.
type PracticeSessionRepo interface {
	// Save overwrites any existing record for the user.
	Save(ctx context.Context, userID string, sess PracticeSession) error

	// Load returns the stored record, or nil if none exists.
	Load(ctx context.Context, userID string) (*PracticeSession, error)

	// Clear removes the user's record. Clearing a missing record is not an error.
	Clear(ctx context.Context, userID string) error
}

// ResultEventData captures a finalized quiz attempt.
type ResultEventData struct {
	UserID       string
	SessionID    string
	TopicID      string
	Mode         string
	Answered     int
	Correct      int
	Total        int
	Accuracy     float64
	DurationSecs int
}

// ResultRecord is a stored quiz result.
type ResultRecord struct {
	ResultEventData
	Sequence  int64
	Timestamp time.Time
}

// TopicSummary aggregates a user's history for one topic.
type TopicSummary struct {
	TopicID  string
	Attempts int
	Answered int
	Correct  int
}

// Accuracy returns the percentage of answered questions that were correct.
func (t TopicSummary) Accuracy() float64 {
	if t.Answered == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Answered) * 100
}

// ResultRepo is the append-only log of quiz results.
type ResultRepo interface {
	AppendResult(ctx context.Context, data ResultEventData) error
	QueryResults(ctx context.Context, userID string, opts QueryOpts) ([]ResultRecord, error)
	TopicSummaries(ctx context.Context, userID string) ([]TopicSummary, error)
	DeleteResults(ctx context.Context, userID string) error
}

// TopicRecord is a stored topic.
type TopicRecord struct {
	ID    string
	Name  string
	Class string
}

// QuestionRecord is a stored question.
type QuestionRecord struct {
	ID           string
	TopicID      string
	Text         string
	Options      []string
	CorrectIndex int
	Explanation  string
}

// BankRecord is a full question bank ready for import.
type BankRecord struct {
	Version   string
	Topics    []TopicRecord
	Questions []QuestionRecord
}

// QuestionRepo stores the imported question bank.
type QuestionRepo interface {
	// ReplaceBank swaps the stored bank for bank in one transaction.
	ReplaceBank(ctx context.Context, bank BankRecord) error

	// BankVersion returns the installed bank version, or "" when empty.
	BankVersion(ctx context.Context) (string, error)

	Topics(ctx context.Context) ([]TopicRecord, error)

	// Questions returns a topic's questions in bank order; an empty topicID
	// returns every question.
	Questions(ctx context.Context, topicID string) ([]QuestionRecord, error)
}

// EntitlementRepo stores the billing collaborator's verdict per user.
type EntitlementRepo interface {
	Entitled(ctx context.Context, userID string) (bool, error)
	SetEntitled(ctx context.Context, userID string, entitled bool, source string) error
}

// ExplanationRepo caches generated answer explanations.
type ExplanationRepo interface {
	// Get returns the cached text, or "" when absent.
	Get(ctx context.Context, questionID string, selected int) (string, error)
	Save(ctx context.Context, questionID string, selected int, text, model string) error
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	LLMRequestEventData
	ID        int64
	Sequence  int64
	Timestamp time.Time
}

// LLMUsageStats aggregates LLM calls for one purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates LLM calls for one model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to audit events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM request events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}
