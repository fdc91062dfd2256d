package stats

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdlprep/cdlprep/internal/achievement"
	"github.com/cdlprep/cdlprep/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	st, err := store.Open("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st.StatsRepo(), st.ResultRepo(), nil), st
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLoad_Defaults(t *testing.T) {
	svc, _ := newTestService(t)
	got, err := svc.Load(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, store.UserStats{}, got)
}

func TestRecordResult_WeightedAverage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	results := []struct {
		acc   float64
		count int
	}{
		{100, 10}, {50, 30}, {66.6667, 3}, {0, 1}, {87.5, 8}, {33.3333, 6},
	}

	var sum float64
	var n int
	for _, r := range results {
		_, err := svc.RecordResult(ctx, "u", Result{AccuracyPct: r.acc, QuestionCount: r.count})
		require.NoError(t, err)
		sum += r.acc * float64(r.count)
		n += r.count

		got, err := svc.Load(ctx, "u")
		require.NoError(t, err)
		assert.Equal(t, int(math.Round(sum/float64(n))), got.AverageScore,
			"after %d questions", n)
		assert.Equal(t, n, got.QuestionsAnswered)
	}
}

func TestRecordResult_NotNaiveMean(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordResult(ctx, "u", Result{AccuracyPct: 100, QuestionCount: 1})
	require.NoError(t, err)
	_, err = svc.RecordResult(ctx, "u", Result{AccuracyPct: 50, QuestionCount: 9})
	require.NoError(t, err)

	got, _ := svc.Load(ctx, "u")
	// (100*1 + 50*9) / 10 = 55, a plain mean of the two would give 75.
	assert.Equal(t, 55, got.AverageScore)
}

func TestRecordResult_ExamsAndStudyTime(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordResult(ctx, "u", Result{AccuracyPct: 80, QuestionCount: 5, IsExam: true, Elapsed: 90 * time.Second})
	require.NoError(t, err)
	_, err = svc.RecordResult(ctx, "u", Result{AccuracyPct: 80, QuestionCount: 4})
	require.NoError(t, err)
	_, err = svc.RecordResult(ctx, "u", Result{AccuracyPct: 80, QuestionCount: 2, Elapsed: 10 * time.Second})
	require.NoError(t, err)

	got, _ := svc.Load(ctx, "u")
	assert.Equal(t, 1, got.ExamAttempts)
	// 2 (90s rounds to 2) + 4 (one per question) + 1 (minimum).
	assert.Equal(t, 7, got.StudyTimeMinutes)
}

func TestStreak(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 10, 0, 0, 0, time.Local) }

	tests := []struct {
		name       string
		last       string
		streak     int
		now        time.Time
		wantStreak int
	}{
		{"first study", "", 0, day(10), 1},
		{"same day", "2026-03-10", 4, day(10), 4},
		{"yesterday", "2026-03-09", 4, day(10), 5},
		{"gap", "2026-03-07", 4, day(10), 1},
		{"month boundary", "2026-02-28", 2, day(1), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.UserStats{LastStudyDate: tt.last, StreakDays: tt.streak}
			applyStreak(&st, tt.now)
			assert.Equal(t, tt.wantStreak, st.StreakDays)
			assert.Equal(t, tt.now.Format(dateLayout), st.LastStudyDate)
		})
	}
}

func TestUpdate_StreakOnlyWhenStudyTimeGrows(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.now = fixedClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local))

	got, err := svc.Update(ctx, "u", func(s *store.UserStats) { s.ExamAttempts++ })
	require.NoError(t, err)
	assert.Zero(t, got.StreakDays)

	got, err = svc.Update(ctx, "u", func(s *store.UserStats) { s.StudyTimeMinutes += 3 })
	require.NoError(t, err)
	assert.Equal(t, 1, got.StreakDays)

	// A second session on the same day does not double count.
	got, err = svc.Update(ctx, "u", func(s *store.UserStats) { s.StudyTimeMinutes += 3 })
	require.NoError(t, err)
	assert.Equal(t, 1, got.StreakDays)

	svc.now = fixedClock(time.Date(2026, 3, 11, 21, 0, 0, 0, time.Local))
	got, err = svc.Update(ctx, "u", func(s *store.UserStats) { s.StudyTimeMinutes++ })
	require.NoError(t, err)
	assert.Equal(t, 2, got.StreakDays)
}

func TestRecordResult_UnlocksOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	got, err := svc.RecordResult(ctx, "u", Result{AccuracyPct: 100, QuestionCount: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"first_question"}, achievement.IDs(got))

	got, err = svc.RecordResult(ctx, "u", Result{AccuracyPct: 100, QuestionCount: 1})
	require.NoError(t, err)
	assert.Empty(t, got)

	st, _ := svc.Load(ctx, "u")
	assert.Equal(t, []string{"first_question"}, st.UnlockedAchievements)
}

func TestAchievementsNeverRelock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordResult(ctx, "u", Result{AccuracyPct: 100, QuestionCount: 20})
	require.NoError(t, err)
	st, _ := svc.Load(ctx, "u")
	require.True(t, st.HasAchievement("accuracy_80"))

	// Drag the average well below 80.
	_, err = svc.RecordResult(ctx, "u", Result{AccuracyPct: 0, QuestionCount: 30})
	require.NoError(t, err)
	st, _ = svc.Load(ctx, "u")
	assert.Less(t, st.AverageScore, 80)
	assert.True(t, st.HasAchievement("accuracy_80"))

	for _, a := range AchievementProgress(st) {
		if a.ID == "accuracy_80" {
			assert.True(t, a.Unlocked)
			assert.False(t, a.Progress.Complete())
		}
	}

	// Reset clears the set explicitly.
	require.NoError(t, svc.Reset(ctx, "u", ResetOptions{}))
	st, _ = svc.Load(ctx, "u")
	assert.Empty(t, st.UnlockedAchievements)
}

func TestReset(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	for range 3 {
		_, err := st.StatsRepo().IncrementLifetime(ctx, "u")
		require.NoError(t, err)
	}
	_, err := svc.RecordResult(ctx, "u", Result{AccuracyPct: 90, QuestionCount: 3, TopicID: "hazmat"})
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx, "u", ResetOptions{}))

	got, _ := svc.Load(ctx, "u")
	assert.Zero(t, got.QuestionsAnswered)
	assert.Zero(t, got.AverageScore)
	assert.Equal(t, 3, got.QuestionsAnsweredTotal, "lifetime counter survives reset")

	sums, err := svc.TopicBreakdown(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, sums, 1, "history kept without IncludeHistory")

	require.NoError(t, svc.Reset(ctx, "u", ResetOptions{IncludeHistory: true}))
	sums, _ = svc.TopicBreakdown(ctx, "u")
	assert.Empty(t, sums)
}

type failingResults struct{ store.ResultRepo }

func (failingResults) AppendResult(context.Context, store.ResultEventData) error {
	return errors.New("disk full")
}

func TestRecordResult_HistoryFailureIsSwallowed(t *testing.T) {
	_, st := newTestService(t)
	svc := NewService(st.StatsRepo(), failingResults{}, nil)

	_, err := svc.RecordResult(context.Background(), "u", Result{AccuracyPct: 50, QuestionCount: 2})
	require.NoError(t, err)

	got, _ := svc.Load(context.Background(), "u")
	assert.Equal(t, 2, got.QuestionsAnswered)
}

func TestBackfillScoreWeight(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	// A record written before ScoreWeight existed.
	require.NoError(t, st.StatsRepo().Save(ctx, "u", store.UserStats{QuestionsAnswered: 10, AverageScore: 70}))

	_, err := svc.RecordResult(ctx, "u", Result{AccuracyPct: 100, QuestionCount: 10})
	require.NoError(t, err)

	got, _ := svc.Load(ctx, "u")
	assert.Equal(t, 85, got.AverageScore)
}
