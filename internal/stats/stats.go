// Package stats maintains each user's aggregate study statistics: the
// weighted average score, answered and exam counts, study time, the daily
// streak and the unlocked achievement set.
package stats

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cdlprep/cdlprep/internal/achievement"
	"github.com/cdlprep/cdlprep/internal/logging"
	"github.com/cdlprep/cdlprep/internal/store"
)

const dateLayout = "2006-01-02"

// Result is one finalized quiz attempt as reported by the quiz engine.
type Result struct {
	// AccuracyPct is correct/answered*100 over the attempted questions.
	AccuracyPct   float64
	QuestionCount int // questions actually answered
	IsExam        bool
	TopicID       string

	Correct   int
	Total     int           // questions in the set, answered or not
	Elapsed   time.Duration // zero when the caller did not track time
	SessionID string
	Mode      string
}

// Service is the only writer of UserStats.
type Service struct {
	repo    store.StatsRepo
	results store.ResultRepo
	log     logrus.FieldLogger

	// now is the clock used for streak dates. Local time decides the
	// calendar day.
	now func() time.Time

	mu sync.Mutex
}

// NewService creates a Service. results may be nil, in which case no
// per-topic history is kept.
func NewService(repo store.StatsRepo, results store.ResultRepo, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{repo: repo, results: results, log: log, now: time.Now}
}

// Load returns the user's stats, or zero defaults for a new user.
func (s *Service) Load(ctx context.Context, userID string) (store.UserStats, error) {
	st, err := s.repo.Get(ctx, userID)
	if err != nil {
		return store.UserStats{}, fmt.Errorf("load stats: %w", err)
	}
	if st == nil {
		return store.UserStats{}, nil
	}
	backfillScoreWeight(st)
	return *st, nil
}

// Update applies fn to the user's stats and persists the result. When fn
// increases study time the streak is recomputed against today's date.
func (s *Service) Update(ctx context.Context, userID string, fn func(*store.UserStats)) (store.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(ctx, userID, fn)
}

func (s *Service) update(ctx context.Context, userID string, fn func(*store.UserStats)) (store.UserStats, error) {
	st, err := s.Load(ctx, userID)
	if err != nil {
		return store.UserStats{}, err
	}

	before := st.StudyTimeMinutes
	fn(&st)
	if st.StudyTimeMinutes > before {
		applyStreak(&st, s.now())
	}

	if err := s.repo.Save(ctx, userID, st); err != nil {
		return store.UserStats{}, fmt.Errorf("save stats: %w", err)
	}
	return st, nil
}

// RecordResult folds a finished attempt into the user's stats and returns
// the achievements it unlocked.
func (s *Service) RecordResult(ctx context.Context, userID string, r Result) ([]achievement.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unlocked []achievement.Achievement
	_, err := s.update(ctx, userID, func(st *store.UserStats) {
		if r.QuestionCount > 0 {
			st.ScoreWeight += r.AccuracyPct * float64(r.QuestionCount)
			st.QuestionsAnswered += r.QuestionCount
			st.AverageScore = int(math.Round(st.ScoreWeight / float64(st.QuestionsAnswered)))
		}
		if r.IsExam {
			st.ExamAttempts++
		}
		st.StudyTimeMinutes += studyMinutes(r)

		unlocked = achievement.Newly(*st, st.UnlockedAchievements)
		st.UnlockedAchievements = append(st.UnlockedAchievements, achievement.IDs(unlocked)...)
	})
	if err != nil {
		return nil, err
	}

	if s.results != nil {
		ev := store.ResultEventData{
			UserID:       userID,
			SessionID:    r.SessionID,
			TopicID:      r.TopicID,
			Mode:         r.Mode,
			Answered:     r.QuestionCount,
			Correct:      r.Correct,
			Total:        r.Total,
			Accuracy:     r.AccuracyPct,
			DurationSecs: int(r.Elapsed.Seconds()),
		}
		if err := s.results.AppendResult(ctx, ev); err != nil {
			logging.FromContext(ctx, s.log).WithError(err).WithFields(logrus.Fields{
				"user_id":  userID,
				"topic_id": r.TopicID,
			}).Warn("failed to append quiz result history")
		}
	}

	return unlocked, nil
}

// ResetOptions scopes Reset.
type ResetOptions struct {
	// IncludeHistory also deletes the per-topic result log.
	IncludeHistory bool
}

// Reset puts the user's stats back to defaults and clears the unlocked set.
// The lifetime trial counter is kept: it meters free-tier usage rather than
// study progress, and resetting it would hand out a fresh set of free
// questions.
func (s *Service) Reset(ctx context.Context, userID string, opts ResetOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Save(ctx, userID, store.UserStats{}); err != nil {
		return fmt.Errorf("reset stats: %w", err)
	}
	if opts.IncludeHistory && s.results != nil {
		if err := s.results.DeleteResults(ctx, userID); err != nil {
			return fmt.Errorf("reset history: %w", err)
		}
	}
	return nil
}

// TopicBreakdown returns per-topic totals from the result history.
func (s *Service) TopicBreakdown(ctx context.Context, userID string) ([]store.TopicSummary, error) {
	if s.results == nil {
		return nil, nil
	}
	sums, err := s.results.TopicSummaries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("topic breakdown: %w", err)
	}
	return sums, nil
}

// History returns the user's most recent results, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]store.ResultRecord, error) {
	if s.results == nil {
		return nil, nil
	}
	recs, err := s.results.QueryResults(ctx, userID, store.QueryOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("result history: %w", err)
	}
	return recs, nil
}

// AchievementStatus pairs a catalog entry with the user's state for it.
type AchievementStatus struct {
	achievement.Achievement
	Unlocked bool
	Progress achievement.Progress
}

// AchievementProgress returns the whole catalog annotated for stats. An
// unlocked achievement stays unlocked even if its condition no longer holds.
func AchievementProgress(st store.UserStats) []AchievementStatus {
	cat := achievement.Catalog()
	out := make([]AchievementStatus, len(cat))
	for i, a := range cat {
		out[i] = AchievementStatus{
			Achievement: a,
			Unlocked:    st.HasAchievement(a.ID),
			Progress:    a.Progress(st),
		}
	}
	return out
}

// studyMinutes estimates the study time of one attempt: measured minutes
// when elapsed time is known, otherwise a minute per question.
func studyMinutes(r Result) int {
	if r.Elapsed > 0 {
		return max(1, int(math.Round(r.Elapsed.Minutes())))
	}
	return r.QuestionCount
}

// applyStreak extends, keeps or restarts the streak for a study session on
// now's calendar day.
func applyStreak(st *store.UserStats, now time.Time) {
	today := now.Format(dateLayout)
	if st.LastStudyDate == today {
		return
	}
	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	if st.LastStudyDate == yesterday {
		st.StreakDays++
	} else {
		st.StreakDays = 1
	}
	st.LastStudyDate = today
}

// backfillScoreWeight seeds ScoreWeight for records written before it was
// tracked, so the next average continues from the stored one.
func backfillScoreWeight(st *store.UserStats) {
	if st.ScoreWeight == 0 && st.QuestionsAnswered > 0 && st.AverageScore > 0 {
		st.ScoreWeight = float64(st.AverageScore * st.QuestionsAnswered)
	}
}
