package store

import (
	"context"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestStats_GetMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.StatsRepo().Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil stats, got %+v", got)
	}
}

func TestStats_SaveAndGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.StatsRepo()
	ctx := context.Background()

	in := UserStats{
		QuestionsAnswered:    12,
		AverageScore:         75,
		ScoreWeight:          900,
		ExamAttempts:         1,
		StudyTimeMinutes:     14,
		StreakDays:           2,
		LastStudyDate:        "2026-03-01",
		UnlockedAchievements: []string{"first_question"},
	}
	if err := repo.Save(ctx, "u1", in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QuestionsAnswered != 12 || got.AverageScore != 75 || got.ScoreWeight != 900 {
		t.Errorf("counters = %+v", got)
	}
	if got.LastStudyDate != "2026-03-01" || got.StreakDays != 2 {
		t.Errorf("streak = %d/%q", got.StreakDays, got.LastStudyDate)
	}
	if !got.HasAchievement("first_question") {
		t.Error("expected first_question unlocked")
	}
}

func TestStats_SaveLeavesLifetimeAlone(t *testing.T) {
	s := openTestStore(t)
	repo := s.StatsRepo()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.IncrementLifetime(ctx, "u1"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := repo.Save(ctx, "u1", UserStats{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	n, err := repo.Lifetime(ctx, "u1")
	if err != nil {
		t.Fatalf("lifetime: %v", err)
	}
	if n != 3 {
		t.Errorf("lifetime = %d, want 3", n)
	}

	got, _ := repo.Get(ctx, "u1")
	if got.QuestionsAnsweredTotal != 3 {
		t.Errorf("QuestionsAnsweredTotal = %d, want 3", got.QuestionsAnsweredTotal)
	}
}

func TestStats_IncrementLifetime(t *testing.T) {
	s := openTestStore(t)
	repo := s.StatsRepo()
	ctx := context.Background()

	if n, _ := repo.Lifetime(ctx, "fresh"); n != 0 {
		t.Fatalf("initial lifetime = %d", n)
	}
	for want := 1; want <= 5; want++ {
		got, err := repo.IncrementLifetime(ctx, "fresh")
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("increment #%d returned %d", want, got)
		}
	}
}

func TestPracticeSession_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	repo := s.PracticeSessionRepo()
	ctx := context.Background()

	got, err := repo.Load(ctx, "u1")
	if err != nil || got != nil {
		t.Fatalf("load empty = %v, %v", got, err)
	}

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sess := PracticeSession{
		TopicID:      "air_brakes",
		QuestionIDs:  []string{"ab-1", "ab-2", "ab-3"},
		CurrentIndex: 1,
		Score:        1,
		WrongAnswers: []WrongAnswer{{QuestionID: "ab-2", SelectedIndex: 3}},
		StartTime:    start,
	}
	if err := repo.Save(ctx, "u1", sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err = repo.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TopicID != "air_brakes" || got.CurrentIndex != 1 || len(got.QuestionIDs) != 3 {
		t.Errorf("loaded = %+v", got)
	}
	if len(got.WrongAnswers) != 1 || got.WrongAnswers[0].SelectedIndex != 3 {
		t.Errorf("wrong answers = %+v", got.WrongAnswers)
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("start = %v, want %v", got.StartTime, start)
	}

	// A save for another topic replaces the record.
	sess.TopicID = "hazmat"
	if err := repo.Save(ctx, "u1", sess); err != nil {
		t.Fatalf("save replace: %v", err)
	}
	got, _ = repo.Load(ctx, "u1")
	if got.TopicID != "hazmat" {
		t.Errorf("topic = %q, want hazmat", got.TopicID)
	}

	if err := repo.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := repo.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
	got, _ = repo.Load(ctx, "u1")
	if got != nil {
		t.Errorf("expected nil after clear, got %+v", got)
	}
}

func TestResults_AppendQueryAndSummaries(t *testing.T) {
	s := openTestStore(t)
	repo := s.ResultRepo()
	ctx := context.Background()

	results := []ResultEventData{
		{UserID: "u1", SessionID: "s1", TopicID: "air_brakes", Mode: "practice", Answered: 10, Correct: 8, Total: 10, Accuracy: 80},
		{UserID: "u1", SessionID: "s2", TopicID: "air_brakes", Mode: "exam", Answered: 10, Correct: 6, Total: 50, Accuracy: 60},
		{UserID: "u1", SessionID: "s3", TopicID: "hazmat", Mode: "practice", Answered: 4, Correct: 4, Total: 4, Accuracy: 100},
		{UserID: "u2", SessionID: "s4", TopicID: "hazmat", Mode: "practice", Answered: 1, Correct: 0, Total: 1},
	}
	for _, r := range results {
		if err := repo.AppendResult(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := repo.QueryResults(ctx, "u1", QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d results, want 3", len(recs))
	}
	// Newest first.
	if recs[0].SessionID != "s3" || recs[2].SessionID != "s1" {
		t.Errorf("order = %s,%s,%s", recs[0].SessionID, recs[1].SessionID, recs[2].SessionID)
	}
	if recs[0].Sequence <= recs[1].Sequence {
		t.Errorf("sequence not descending: %d, %d", recs[0].Sequence, recs[1].Sequence)
	}

	limited, _ := repo.QueryResults(ctx, "u1", QueryOpts{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d", len(limited))
	}
	after, _ := repo.QueryResults(ctx, "u1", QueryOpts{After: recs[1].Sequence})
	if len(after) != 1 || after[0].SessionID != "s3" {
		t.Errorf("after filter = %+v", after)
	}

	sums, err := repo.TopicSummaries(ctx, "u1")
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d summaries, want 2", len(sums))
	}
	ab := sums[0]
	if ab.TopicID != "air_brakes" || ab.Attempts != 2 || ab.Answered != 20 || ab.Correct != 14 {
		t.Errorf("air_brakes summary = %+v", ab)
	}
	if ab.Accuracy() != 70 {
		t.Errorf("accuracy = %v, want 70", ab.Accuracy())
	}

	if err := repo.DeleteResults(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	recs, _ = repo.QueryResults(ctx, "u1", QueryOpts{})
	if len(recs) != 0 {
		t.Errorf("expected no results after delete, got %d", len(recs))
	}
	other, _ := repo.QueryResults(ctx, "u2", QueryOpts{})
	if len(other) != 1 {
		t.Errorf("other user's results touched: %d", len(other))
	}
}

func TestQuestions_ReplaceBank(t *testing.T) {
	s := openTestStore(t)
	repo := s.QuestionRepo()
	ctx := context.Background()

	v, err := repo.BankVersion(ctx)
	if err != nil || v != "" {
		t.Fatalf("empty bank version = %q, %v", v, err)
	}

	bank := BankRecord{
		Version: "v1.0.0",
		Topics: []TopicRecord{
			{ID: "general", Name: "General Knowledge", Class: "main"},
			{ID: "hazmat", Name: "Hazardous Materials", Class: "endorsement"},
		},
		Questions: []QuestionRecord{
			{ID: "g-1", TopicID: "general", Text: "Q1", Options: []string{"a", "b", "c"}, CorrectIndex: 2},
			{ID: "g-2", TopicID: "general", Text: "Q2", Options: []string{"a", "b"}, CorrectIndex: 0, Explanation: "because"},
			{ID: "h-1", TopicID: "hazmat", Text: "Q3", Options: []string{"x", "y"}, CorrectIndex: 1},
		},
	}
	if err := repo.ReplaceBank(ctx, bank); err != nil {
		t.Fatalf("replace: %v", err)
	}

	v, _ = repo.BankVersion(ctx)
	if v != "v1.0.0" {
		t.Errorf("version = %q", v)
	}

	topics, err := repo.Topics(ctx)
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if len(topics) != 2 || topics[0].ID != "general" || topics[1].Class != "endorsement" {
		t.Errorf("topics = %+v", topics)
	}

	qs, err := repo.Questions(ctx, "general")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != 2 || qs[0].ID != "g-1" || qs[1].Explanation != "because" {
		t.Errorf("general questions = %+v", qs)
	}
	if len(qs[0].Options) != 3 || qs[0].CorrectIndex != 2 {
		t.Errorf("options = %v / %d", qs[0].Options, qs[0].CorrectIndex)
	}

	all, _ := repo.Questions(ctx, "")
	if len(all) != 3 {
		t.Errorf("pooled = %d, want 3", len(all))
	}

	// A second import replaces everything.
	bank.Version = "v1.1.0"
	bank.Topics = bank.Topics[:1]
	bank.Questions = bank.Questions[:1]
	if err := repo.ReplaceBank(ctx, bank); err != nil {
		t.Fatalf("replace again: %v", err)
	}
	all, _ = repo.Questions(ctx, "")
	if len(all) != 1 {
		t.Errorf("after replace = %d questions, want 1", len(all))
	}
	v, _ = repo.BankVersion(ctx)
	if v != "v1.1.0" {
		t.Errorf("version = %q", v)
	}
}

func TestEntitlements(t *testing.T) {
	s := openTestStore(t)
	repo := s.EntitlementRepo()
	ctx := context.Background()

	ok, err := repo.Entitled(ctx, "u1")
	if err != nil || ok {
		t.Fatalf("missing entitlement = %v, %v", ok, err)
	}
	if err := repo.SetEntitled(ctx, "u1", true, "cli"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if ok, _ := repo.Entitled(ctx, "u1"); !ok {
		t.Error("expected entitled after grant")
	}
	if err := repo.SetEntitled(ctx, "u1", false, "cli"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := repo.Entitled(ctx, "u1"); ok {
		t.Error("expected not entitled after revoke")
	}
}

func TestExplanations(t *testing.T) {
	s := openTestStore(t)
	repo := s.ExplanationRepo()
	ctx := context.Background()

	text, err := repo.Get(ctx, "q1", 2)
	if err != nil || text != "" {
		t.Fatalf("missing = %q, %v", text, err)
	}
	if err := repo.Save(ctx, "q1", 2, "first", "mock"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, "q1", 2, "second", "mock"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	text, _ = repo.Get(ctx, "q1", 2)
	if text != "second" {
		t.Errorf("text = %q, want second", text)
	}
	if other, _ := repo.Get(ctx, "q1", 1); other != "" {
		t.Errorf("different selection should miss, got %q", other)
	}
}

func TestSequenceSharedAcrossEventTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EventRepo().AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "mock", Model: "mock-model", Purpose: "explain", Success: true,
	}); err != nil {
		t.Fatalf("append llm request: %v", err)
	}
	if err := s.ResultRepo().AppendResult(ctx, ResultEventData{UserID: "u1", TopicID: "t", Mode: "practice"}); err != nil {
		t.Fatalf("append result: %v", err)
	}

	recs, _ := s.ResultRepo().QueryResults(ctx, "u1", QueryOpts{})
	if len(recs) != 1 || recs[0].Sequence != 2 {
		t.Errorf("result sequence = %+v, want 2", recs)
	}
}

func TestLLMEventQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.EventRepo()

	events := []LLMRequestEventData{
		{Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Purpose: "explain", InputTokens: 100, OutputTokens: 40, LatencyMs: 200, Success: true},
		{Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Purpose: "explain", InputTokens: 50, OutputTokens: 10, LatencyMs: 400, Success: false, ErrorMessage: "rate limited"},
		{Provider: "openai", Model: "gpt-4o-mini", Purpose: "validate", InputTokens: 30, OutputTokens: 5, LatencyMs: 100, Success: true},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 2 || recs[0].Model != "gpt-4o-mini" {
		t.Fatalf("expected newest two events, got %+v", recs)
	}
	if recs[1].Success || recs[1].ErrorMessage != "rate limited" {
		t.Errorf("failed event not round-tripped: %+v", recs[1])
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage by purpose: %v", err)
	}
	if len(byPurpose) != 2 {
		t.Fatalf("expected 2 purposes, got %+v", byPurpose)
	}
	explain := byPurpose[0]
	if explain.Purpose != "explain" || explain.Calls != 2 || explain.InputTokens != 150 || explain.AvgLatencyMs != 300 {
		t.Errorf("unexpected explain usage: %+v", explain)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 || byModel[0].Model != "claude-haiku-4-5-20251001" || byModel[0].OutputTokens != 50 {
		t.Errorf("unexpected model usage: %+v", byModel)
	}
}
