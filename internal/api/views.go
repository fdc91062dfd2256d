package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cdlprep/cdlprep/internal/achievement"
	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/stats"
	"github.com/cdlprep/cdlprep/internal/store"
	"github.com/cdlprep/cdlprep/internal/trial"
)

type topicView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Class     string `json:"class"`
	Questions int    `json:"questions"`
}

type questionView struct {
	ID      string   `json:"id"`
	TopicID string   `json:"topicId"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type feedbackView struct {
	Selected     int    `json:"selected"`
	CorrectIndex int    `json:"correctIndex"`
	Correct      bool   `json:"correct"`
	Explanation  string `json:"explanation,omitempty"`
}

type achievementView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Unlocked    bool   `json:"unlocked"`
	Current     int    `json:"current"`
	Target      int    `json:"target"`
	Percent     int    `json:"percent"`
}

type resultView struct {
	SessionID     string              `json:"sessionId"`
	TopicID       string              `json:"topicId"`
	Mode          quiz.Mode           `json:"mode"`
	Total         int                 `json:"total"`
	Answered      int                 `json:"answered"`
	Correct       int                 `json:"correct"`
	WrongAnswers  []store.WrongAnswer `json:"wrongAnswers"`
	AccuracyPct   float64             `json:"accuracyPct"`
	CompletionPct float64             `json:"completionPct"`
	Passed        bool                `json:"passed"`
	TimedOut      bool                `json:"timedOut"`
	ElapsedSecs   int                 `json:"elapsedSecs"`
	Unlocked      []achievementView   `json:"unlocked"`
}

type sessionView struct {
	ID                string        `json:"id"`
	TopicID           string        `json:"topicId"`
	Mode              quiz.Mode     `json:"mode"`
	Position          int           `json:"position"`
	Total             int           `json:"total"`
	Score             int           `json:"score"`
	Answered          int           `json:"answered"`
	Current           *questionView `json:"current,omitempty"`
	Selected          *int          `json:"selected,omitempty"`
	Feedback          *feedbackView `json:"feedback,omitempty"`
	TimeRemainingSecs int           `json:"timeRemainingSecs,omitempty"`
	Resumed           bool          `json:"resumed"`
	Finished          bool          `json:"finished"`
	TrialExhausted    bool          `json:"trialExhausted,omitempty"`
	Result            *resultView   `json:"result,omitempty"`
}

type trialView struct {
	Entitled  bool `json:"entitled"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
	CanAccess bool `json:"canAccess"`
}

type statsView struct {
	store.UserStats
	Topics []topicStatsView `json:"topics"`
	Trial  *trialView       `json:"trial,omitempty"`
}

type topicStatsView struct {
	TopicID  string  `json:"topicId"`
	Attempts int     `json:"attempts"`
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

func newQuestionView(q question.Question) *questionView {
	return &questionView{ID: q.ID, TopicID: q.TopicID, Text: q.Text, Options: q.Options}
}

func newSessionView(sess *quiz.Session) sessionView {
	st := sess.State()
	v := sessionView{
		ID:                st.ID,
		TopicID:           st.TopicID,
		Mode:              st.Mode,
		Position:          st.Position,
		Total:             st.Total,
		Score:             st.Score,
		Answered:          st.Answered,
		TimeRemainingSecs: int(st.TimeRemaining.Seconds()),
		Resumed:           st.Resumed,
		Finished:          st.Finished,
	}
	if st.Current != nil {
		v.Current = newQuestionView(*st.Current)
	}
	if st.Selected >= 0 {
		sel := st.Selected
		v.Selected = &sel
	}
	if fb, ok := sess.Reveal(); ok {
		v.Feedback = &feedbackView{
			Selected:     fb.Selected,
			CorrectIndex: fb.CorrectIndex,
			Correct:      fb.Correct,
			Explanation:  fb.Explanation,
		}
	}
	if st.Result != nil {
		v.Result = newResultView(st.Result)
	}
	return v
}

func newResultView(r *quiz.Result) *resultView {
	v := &resultView{
		SessionID:     r.SessionID,
		TopicID:       r.TopicID,
		Mode:          r.Mode,
		Total:         r.Total,
		Answered:      r.Answered,
		Correct:       r.Correct,
		WrongAnswers:  r.WrongAnswers,
		AccuracyPct:   r.AccuracyPct,
		CompletionPct: r.CompletionPct,
		Passed:        r.Passed,
		TimedOut:      r.TimedOut,
		ElapsedSecs:   int(r.Elapsed.Seconds()),
		Unlocked:      []achievementView{},
	}
	if v.WrongAnswers == nil {
		v.WrongAnswers = []store.WrongAnswer{}
	}
	for _, a := range r.Unlocked {
		v.Unlocked = append(v.Unlocked, achievementView{
			ID: a.ID, Title: a.Title, Description: a.Description, Icon: a.Icon, Unlocked: true,
		})
	}
	return v
}

func newAchievementViews(list []stats.AchievementStatus) []achievementView {
	out := make([]achievementView, len(list))
	for i, a := range list {
		p := a.Progress
		if a.Unlocked {
			p = achievement.Progress{Current: max(p.Current, p.Target), Target: p.Target}
		}
		out[i] = achievementView{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Icon:        a.Icon,
			Unlocked:    a.Unlocked,
			Current:     p.Current,
			Target:      p.Target,
			Percent:     p.Percent(),
		}
	}
	return out
}

func newTrialView(st trial.Status) *trialView {
	return &trialView{
		Entitled:  st.Entitled,
		Used:      st.Used,
		Remaining: st.Remaining,
		Limit:     st.Limit,
		CanAccess: st.CanAccess(),
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

// writeEngineError maps quiz and trial errors to responses. It reports
// false for errors it does not know, leaving the response unwritten.
func writeEngineError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, trial.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "trial_exhausted", err)
	case errors.Is(err, quiz.ErrNoQuestions):
		writeError(w, http.StatusNotFound, "no_questions", err)
	case errors.Is(err, quiz.ErrNoSelection):
		writeError(w, http.StatusBadRequest, "no_selection", err)
	case errors.Is(err, quiz.ErrFinished):
		writeError(w, http.StatusConflict, "finished", err)
	case errors.Is(err, quiz.ErrSkipNotAllowed):
		writeError(w, http.StatusConflict, "skip_not_allowed", err)
	default:
		return false
	}
	return true
}
