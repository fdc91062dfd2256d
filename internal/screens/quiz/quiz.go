// Package quiz is the screen that runs one practice or exam session.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	qz "github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/router"
	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/screens/results"
	"github.com/cdlprep/cdlprep/internal/trial"
	"github.com/cdlprep/cdlprep/internal/ui/components"
	"github.com/cdlprep/cdlprep/internal/ui/layout"
	"github.com/cdlprep/cdlprep/internal/ui/theme"
)

var (
	keySkip    = key.NewBinding(key.WithKeys("s"))
	keyConfirm = key.NewBinding(key.WithKeys("y"))
	keyCancel  = key.NewBinding(key.WithKeys("n", "esc"))
	keyExplain = key.NewBinding(key.WithKeys("e"))
)

type startedMsg struct {
	sess *qz.Session
	err  error
}

// tickMsg drives the exam countdown of the session it names.
type tickMsg struct{ sessionID string }

type explainMsg struct {
	questionID string
	text       string
	err        error
}

// QuizScreen shows the current question, takes answers and hands the
// finished result to the results screen.
type QuizScreen struct {
	deps  screen.Deps
	input qz.StartInput

	sess        *qz.Session
	cursor      int
	feedback    *qz.Feedback
	explanation string
	explaining  bool
	confirmQuit bool
	notice      string
	err         error
}

var (
	_ screen.Screen          = (*QuizScreen)(nil)
	_ screen.KeyHintProvider = (*QuizScreen)(nil)
	_ screen.EscapeHandler   = (*QuizScreen)(nil)
	_ screen.Closer          = (*QuizScreen)(nil)
)

// New creates a quiz screen that starts a session for in when initialised.
func New(deps screen.Deps, in qz.StartInput) *QuizScreen {
	return &QuizScreen{deps: deps, input: in}
}

func (s *QuizScreen) Init() tea.Cmd {
	eng, in := s.deps.Engine, s.input
	return func() tea.Msg {
		if eng == nil {
			return startedMsg{err: errors.New("quiz engine is not configured")}
		}
		sess, err := eng.Start(context.Background(), in)
		return startedMsg{sess: sess, err: err}
	}
}

func (s *QuizScreen) Title() string {
	if s.input.Mode == qz.Exam {
		return "Mock Exam"
	}
	return "Practice"
}

func (s *QuizScreen) KeyHints() []layout.KeyHint {
	if s.confirmQuit {
		return []layout.KeyHint{{Key: "y", Description: "Quit"}, {Key: "n", Description: "Keep going"}}
	}
	if s.sess == nil {
		return []layout.KeyHint{{Key: "Esc", Description: "Back"}}
	}
	hints := []layout.KeyHint{
		{Key: "1-4", Description: "Answer"},
		{Key: "Enter", Description: "Submit"},
	}
	if s.input.Mode == qz.Practice {
		hints = append(hints, layout.KeyHint{Key: "s", Description: "Skip"})
		if s.feedback != nil {
			hints = append(hints, layout.KeyHint{Key: "e", Description: "Explain"})
		}
	}
	return append(hints, layout.KeyHint{Key: "Esc", Description: "Quit"})
}

// HandlesEscape keeps esc for the quit prompt while a session is running.
func (s *QuizScreen) HandlesEscape() bool {
	return s.sess != nil && !s.sess.Finished()
}

// Close leaves the session when the screen is dropped. A practice run is
// only closed so it can be resumed; an exam is quit and scored.
func (s *QuizScreen) Close() {
	if s.sess == nil || s.sess.Finished() {
		return
	}
	if s.sess.Mode() == qz.Exam {
		s.sess.Quit(context.Background())
		return
	}
	s.sess.Close()
}

func tick(id string) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{sessionID: id} })
}

func (s *QuizScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		if msg.err != nil {
			s.err = msg.err
			return s, nil
		}
		s.sess = msg.sess
		if s.sess.Mode() == qz.Exam {
			return s, tick(s.sess.ID())
		}
		return s, nil

	case tickMsg:
		if s.sess == nil || msg.sessionID != s.sess.ID() || s.sess.Finished() {
			return s, nil
		}
		if s.sess.Tick(context.Background()) {
			return s, s.finish(s.sess.Result(), false)
		}
		return s, tick(msg.sessionID)

	case explainMsg:
		s.explaining = false
		q, ok := s.sess.Current()
		if !ok || q.ID != msg.questionID {
			return s, nil
		}
		if msg.err != nil {
			s.notice = "No explanation available right now."
			return s, nil
		}
		s.explanation = msg.text
		return s, nil

	case tea.KeyPressMsg:
		return s, s.handleKey(msg)
	}
	return s, nil
}

func (s *QuizScreen) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	if s.sess == nil {
		if s.err != nil && (key.Matches(msg, components.KeyEnter) || key.Matches(msg, components.KeyBack)) {
			return func() tea.Msg { return router.PopScreenMsg{} }
		}
		return nil
	}
	if s.sess.Finished() {
		return nil
	}

	if s.confirmQuit {
		switch {
		case key.Matches(msg, keyConfirm):
			return s.quit()
		case key.Matches(msg, keyCancel):
			s.confirmQuit = false
		}
		return nil
	}

	s.notice = ""
	q, _ := s.sess.Current()

	switch {
	case key.Matches(msg, components.KeyBack):
		s.confirmQuit = true
	case key.Matches(msg, components.KeyUp):
		if s.feedback == nil && s.cursor > 0 {
			s.cursor--
		}
	case key.Matches(msg, components.KeyDown):
		if s.feedback == nil && s.cursor < len(q.Options)-1 {
			s.cursor++
		}
	case key.Matches(msg, components.KeyEnter):
		if s.input.Mode == qz.Practice && s.feedback == nil {
			s.choose(s.cursor)
			return nil
		}
		if s.input.Mode == qz.Exam {
			if _, ok := s.sess.Selected(); !ok {
				s.sess.Select(s.cursor)
			}
		}
		return s.advance()
	case key.Matches(msg, keySkip):
		if s.input.Mode != qz.Practice || s.feedback != nil {
			return nil
		}
		if err := s.sess.Skip(context.Background()); err != nil {
			s.notice = "This is the last question. It cannot be skipped."
			return nil
		}
		s.cursor = 0
	case key.Matches(msg, keyExplain):
		return s.explain(q.ID)
	default:
		if i, ok := optionIndex(msg.String()); ok && i < len(q.Options) {
			s.cursor = i
			s.choose(i)
		}
	}
	return nil
}

// optionIndex maps 1-4 and a-d to an option index.
func optionIndex(k string) (int, bool) {
	if len(k) != 1 {
		return 0, false
	}
	switch c := k[0]; {
	case c >= '1' && c <= '9':
		return int(c - '1'), true
	case c >= 'a' && c <= 'd':
		return int(c - 'a'), true
	}
	return 0, false
}

// choose selects option i. Practice reveals the answer at once; an exam
// only records the choice until enter.
func (s *QuizScreen) choose(i int) {
	if !s.sess.Select(i) {
		return
	}
	if s.input.Mode != qz.Practice {
		return
	}
	if fb, ok := s.sess.Reveal(); ok {
		s.feedback = &fb
		s.explanation = fb.Explanation
	}
}

func (s *QuizScreen) explain(questionID string) tea.Cmd {
	if s.feedback == nil || s.explanation != "" || s.explaining || s.deps.Explain == nil {
		return nil
	}
	q, ok := s.sess.Current()
	if !ok {
		return nil
	}
	s.explaining = true
	svc, selected := s.deps.Explain, s.feedback.Selected
	return func() tea.Msg {
		ex, err := svc.Explain(context.Background(), q, selected)
		return explainMsg{questionID: questionID, text: ex.Text, err: err}
	}
}

func (s *QuizScreen) advance() tea.Cmd {
	res, err := s.sess.Advance(context.Background())
	switch {
	case errors.Is(err, qz.ErrNoSelection):
		s.notice = "Pick an answer first."
		return nil
	case errors.Is(err, trial.ErrAccessDenied):
		return s.finish(res.Result, true)
	case err != nil:
		s.notice = err.Error()
		return nil
	}
	s.feedback = nil
	s.explanation = ""
	s.cursor = 0
	if res.Finished {
		return s.finish(res.Result, false)
	}
	return nil
}

func (s *QuizScreen) quit() tea.Cmd {
	s.confirmQuit = false
	res, err := s.sess.Quit(context.Background())
	if err != nil || res == nil {
		return func() tea.Msg { return router.PopScreenMsg{} }
	}
	return s.finish(res, false)
}

func (s *QuizScreen) finish(res *qz.Result, exhausted bool) tea.Cmd {
	if res == nil {
		return func() tea.Msg { return router.PopScreenMsg{} }
	}
	next := results.New(s.deps, res, exhausted)
	return tea.Batch(
		func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} },
		func() tea.Msg { return screen.StatsChangedMsg{} },
	)
}

func (s *QuizScreen) View(width, height int) string {
	cw := components.ContentWidth(width)

	if s.err != nil {
		text := "Could not start: " + s.err.Error()
		switch {
		case errors.Is(s.err, trial.ErrAccessDenied):
			text = "You have used all free questions. Upgrade to keep studying."
		case errors.Is(s.err, qz.ErrNoQuestions):
			text = "There are no questions for this topic yet."
		}
		return layout.Center(theme.Warning.Render(text)+"\n\n"+theme.Hint.Render("Press Enter to go back"), width, height)
	}
	if s.sess == nil {
		return layout.Center(theme.Hint.Render("Preparing questions..."), width, height)
	}

	st := s.sess.State()
	if st.Current == nil {
		return layout.Center(theme.Hint.Render("Session finished."), width, height)
	}
	q := *st.Current

	var b strings.Builder
	status := fmt.Sprintf("Question %d of %d", st.Position+1, st.Total)
	if st.Mode == qz.Exam {
		status += "   Time left " + layout.FormatClock(int(st.TimeRemaining.Seconds()))
	} else {
		status += fmt.Sprintf("   Score %d", st.Score)
	}
	if st.Resumed {
		status += "   (resumed)"
	}
	b.WriteString(theme.Subtitle.Render(status))
	b.WriteString("\n")
	pct := 0
	if st.Total > 0 {
		pct = st.Position * 100 / st.Total
	}
	b.WriteString(components.NewProgressBar("", pct, false, cw).View())
	b.WriteString("\n\n")

	b.WriteString(theme.Body.Width(cw).Render(q.Text))
	b.WriteString("\n\n")

	choices := components.Choices{
		Options:  q.Options,
		Cursor:   s.cursor,
		Selected: st.Selected,
	}
	if s.feedback != nil {
		choices.Revealed = true
		choices.CorrectIndex = s.feedback.CorrectIndex
	}
	b.WriteString(components.Card(choices.View(cw-6), cw, true))
	b.WriteString("\n")

	if s.feedback != nil {
		if s.feedback.Correct {
			b.WriteString(theme.Correct.Render("Correct!"))
		} else {
			b.WriteString(theme.Incorrect.Render("Not quite. The answer is " + components.Label(s.feedback.CorrectIndex) + "."))
		}
		b.WriteString("\n")
		switch {
		case s.explanation != "":
			b.WriteString(theme.Body.Width(cw).Render(s.explanation))
			b.WriteString("\n")
		case s.explaining:
			b.WriteString(theme.Hint.Render("Fetching explanation..."))
			b.WriteString("\n")
		}
		b.WriteString(theme.Hint.Render("Press Enter to continue"))
		b.WriteString("\n")
	}

	if s.notice != "" {
		b.WriteString(theme.Warning.Render(s.notice))
		b.WriteString("\n")
	}
	if s.confirmQuit {
		prompt := "Quit now? Answered questions will be scored. (y/n)"
		if st.Mode == qz.Practice {
			prompt = "Quit now? Answered questions will be scored and progress cleared. (y/n)"
		}
		b.WriteString(theme.Warning.Render(prompt))
	}

	return layout.Center(b.String(), width, height)
}
