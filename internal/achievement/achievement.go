// Package achievement holds the static achievement catalog and evaluates
// which achievements a user's stats qualify for.
package achievement

import "github.com/cdlprep/cdlprep/internal/store"

// Progress is how far a user is toward an achievement.
type Progress struct {
	Current int
	Target  int
}

// Percent returns progress as 0-100, clamped.
func (p Progress) Percent() int {
	if p.Target <= 0 {
		return 100
	}
	pct := p.Current * 100 / p.Target
	return min(max(pct, 0), 100)
}

// Complete reports whether Current has reached Target.
func (p Progress) Complete() bool {
	return p.Current >= p.Target
}

// Achievement is a catalog entry. Only unlocked ids are persisted.
type Achievement struct {
	ID          string
	Title       string
	Description string
	Icon        string
	Condition   func(store.UserStats) bool
	Progress    func(store.UserStats) Progress
}

// counter builds an achievement unlocked when field reaches target.
func counter(id, title, desc, icon string, target int, field func(store.UserStats) int) Achievement {
	return Achievement{
		ID:          id,
		Title:       title,
		Description: desc,
		Icon:        icon,
		Condition:   func(s store.UserStats) bool { return field(s) >= target },
		Progress: func(s store.UserStats) Progress {
			return Progress{Current: min(field(s), target), Target: target}
		},
	}
}

// accuracy builds an achievement that needs minAnswered questions before the
// average counts. Until then progress tracks the answered count.
func accuracy(id, title, desc, icon string, minAvg, minAnswered int) Achievement {
	return Achievement{
		ID:          id,
		Title:       title,
		Description: desc,
		Icon:        icon,
		Condition: func(s store.UserStats) bool {
			return s.QuestionsAnswered >= minAnswered && s.AverageScore >= minAvg
		},
		Progress: func(s store.UserStats) Progress {
			if s.QuestionsAnswered < minAnswered {
				return Progress{Current: s.QuestionsAnswered, Target: minAnswered}
			}
			return Progress{Current: min(s.AverageScore, minAvg), Target: minAvg}
		},
	}
}

func answered(s store.UserStats) int { return s.QuestionsAnswered }
func exams(s store.UserStats) int    { return s.ExamAttempts }
func streak(s store.UserStats) int   { return s.StreakDays }
func studied(s store.UserStats) int  { return s.StudyTimeMinutes }

var catalog = []Achievement{
	counter("first_question", "First Mile", "Answer your first question", "🚦", 1, answered),
	counter("questions_50", "Warmed Up", "Answer 50 questions", "🛣️", 50, answered),
	counter("questions_100", "Century Run", "Answer 100 questions", "💯", 100, answered),
	counter("questions_500", "Long Haul", "Answer 500 questions", "🚚", 500, answered),
	counter("questions_1000", "Million Miler", "Answer 1,000 questions", "🏆", 1000, answered),
	counter("first_exam", "Test Drive", "Finish your first practice exam", "📝", 1, exams),
	counter("exams_10", "Road Tested", "Finish 10 practice exams", "🎓", 10, exams),
	accuracy("accuracy_80", "Sharp Eyes", "Hold an 80% average over at least 20 questions", "🎯", 80, 20),
	accuracy("accuracy_90", "Precision Driver", "Hold a 90% average over at least 50 questions", "⭐", 90, 50),
	counter("streak_3", "Three in a Row", "Study three days in a row", "🔥", 3, streak),
	counter("streak_7", "Full Week", "Study seven days in a row", "📅", 7, streak),
	counter("streak_30", "Monthly Regular", "Study thirty days in a row", "🗓️", 30, streak),
	counter("study_60", "Hour Logged", "Study for 60 minutes in total", "⏱️", 60, studied),
	counter("study_600", "Ten Hours Behind the Wheel", "Study for 10 hours in total", "⌛", 600, studied),
}

// Catalog returns every achievement in display order.
func Catalog() []Achievement {
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the achievement with the given id.
func Lookup(id string) (Achievement, bool) {
	for _, a := range catalog {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// Qualifying returns every achievement whose condition holds for stats, in
// catalog order. It does not look at the unlocked set.
func Qualifying(stats store.UserStats) []Achievement {
	var out []Achievement
	for _, a := range catalog {
		if a.Condition(stats) {
			out = append(out, a)
		}
	}
	return out
}

// Newly returns the qualifying achievements whose ids are not in unlocked.
func Newly(stats store.UserStats, unlocked []string) []Achievement {
	have := make(map[string]bool, len(unlocked))
	for _, id := range unlocked {
		have[id] = true
	}
	var out []Achievement
	for _, a := range Qualifying(stats) {
		if !have[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

// IDs returns the ids of as in order.
func IDs(as []Achievement) []string {
	ids := make([]string, len(as))
	for i, a := range as {
		ids[i] = a.ID
	}
	return ids
}
