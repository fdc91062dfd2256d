// Package results shows a finished attempt and reviews the missed questions.
package results

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/cdlprep/cdlprep/internal/question"
	qz "github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/router"
	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/ui/components"
	"github.com/cdlprep/cdlprep/internal/ui/layout"
	"github.com/cdlprep/cdlprep/internal/ui/theme"
)

var keyExplain = key.NewBinding(key.WithKeys("e"))

// missed is one wrong answer resolved against the bank.
type missed struct {
	q        question.Question
	selected int
}

type reviewMsg struct{ items []missed }

type explainMsg struct {
	index int
	text  string
	err   error
}

// ResultsScreen summarises a finished session.
type ResultsScreen struct {
	deps      screen.Deps
	result    *qz.Result
	exhausted bool

	review       []missed
	cursor       int
	explanations map[int]string
	pending      map[int]bool
}

var (
	_ screen.Screen          = (*ResultsScreen)(nil)
	_ screen.KeyHintProvider = (*ResultsScreen)(nil)
)

// New creates a results screen. exhausted marks a run cut short by the
// free question limit.
func New(deps screen.Deps, res *qz.Result, exhausted bool) *ResultsScreen {
	return &ResultsScreen{
		deps:         deps,
		result:       res,
		exhausted:    exhausted,
		explanations: make(map[int]string),
		pending:      make(map[int]bool),
	}
}

func (s *ResultsScreen) Init() tea.Cmd {
	src, wrong := s.deps.Source, s.result.WrongAnswers
	return func() tea.Msg {
		if src == nil || len(wrong) == 0 {
			return reviewMsg{}
		}
		ctx := context.Background()
		items := make([]missed, 0, len(wrong))
		for _, w := range wrong {
			q, ok, err := question.FindQuestion(ctx, src, w.QuestionID)
			if err != nil || !ok {
				continue
			}
			items = append(items, missed{q: q, selected: w.SelectedIndex})
		}
		return reviewMsg{items: items}
	}
}

func (s *ResultsScreen) Title() string { return "Results" }

func (s *ResultsScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{{Key: "Enter", Description: "Home"}}
	if len(s.review) > 0 {
		hints = append(hints,
			layout.KeyHint{Key: "↑↓", Description: "Review"},
			layout.KeyHint{Key: "e", Description: "Explain"},
		)
	}
	return hints
}

func (s *ResultsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case reviewMsg:
		s.review = msg.items
	case explainMsg:
		delete(s.pending, msg.index)
		if msg.err != nil {
			s.explanations[msg.index] = "No explanation available right now."
		} else {
			s.explanations[msg.index] = msg.text
		}
	case tea.KeyPressMsg:
		switch {
		case key.Matches(msg, components.KeyEnter):
			return s, func() tea.Msg { return router.PopToRootMsg{} }
		case key.Matches(msg, components.KeyUp):
			if s.cursor > 0 {
				s.cursor--
			}
		case key.Matches(msg, components.KeyDown):
			if s.cursor < len(s.review)-1 {
				s.cursor++
			}
		case key.Matches(msg, keyExplain):
			return s, s.explain(s.cursor)
		}
	}
	return s, nil
}

func (s *ResultsScreen) explain(i int) tea.Cmd {
	if i >= len(s.review) || s.deps.Explain == nil || s.pending[i] {
		return nil
	}
	if _, done := s.explanations[i]; done {
		return nil
	}
	s.pending[i] = true
	svc, item := s.deps.Explain, s.review[i]
	return func() tea.Msg {
		ex, err := svc.Explain(context.Background(), item.q, item.selected)
		return explainMsg{index: i, text: ex.Text, err: err}
	}
}

func (s *ResultsScreen) headline() string {
	r := s.result
	switch {
	case s.exhausted:
		return theme.Warning.Render("Free question limit reached")
	case r.Mode == qz.Exam && r.Passed:
		return theme.Correct.Render("PASSED")
	case r.Mode == qz.Exam:
		return theme.Incorrect.Render("NOT PASSED")
	}
	return theme.Title.Render("Practice complete")
}

func (s *ResultsScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	r := s.result
	var b strings.Builder

	b.WriteString(s.headline())
	b.WriteString("\n\n")

	summary := fmt.Sprintf(
		"Correct %d of %d answered (%d in the set)\nAccuracy %.0f%%   Completion %.0f%%",
		r.Correct, r.Answered, r.Total, r.AccuracyPct, r.CompletionPct,
	)
	if r.Elapsed > 0 {
		summary += "   Time " + layout.FormatClock(int(r.Elapsed.Seconds()))
	}
	if r.TimedOut {
		summary += "\n" + theme.Warning.Render("Time ran out before the exam was finished.")
	}
	if s.exhausted {
		summary += "\n" + theme.Warning.Render("You have used all free questions. Upgrade to keep studying.")
	}
	b.WriteString(components.Card(theme.Body.Render(summary), cw, false))
	b.WriteString("\n")

	if len(r.Unlocked) > 0 {
		b.WriteString("\n")
		b.WriteString(theme.Subtitle.Render("Achievements unlocked"))
		b.WriteString("\n")
		for _, a := range r.Unlocked {
			b.WriteString(theme.Correct.Render(fmt.Sprintf("  %s %s", a.Icon, a.Title)))
			b.WriteString(theme.Hint.Render("  " + a.Description))
			b.WriteString("\n")
		}
	}

	if len(s.review) > 0 {
		b.WriteString("\n")
		b.WriteString(theme.Subtitle.Render(fmt.Sprintf("Review (%d missed)", len(s.review))))
		b.WriteString("\n")
		for i, m := range s.review {
			prefix := "  "
			style := theme.Unselected
			if i == s.cursor {
				prefix = "▸ "
				style = theme.Selected
			}
			b.WriteString(style.Width(cw).Render(prefix + m.q.Text))
			b.WriteString("\n")
			if i != s.cursor {
				continue
			}
			if m.selected >= 0 && m.selected < len(m.q.Options) {
				b.WriteString(theme.Incorrect.Render("    You chose " + components.Label(m.selected) + ") " + m.q.Options[m.selected]))
				b.WriteString("\n")
			}
			b.WriteString(theme.Correct.Render("    Answer " + components.Label(m.q.CorrectIndex) + ") " + m.q.Options[m.q.CorrectIndex]))
			b.WriteString("\n")
			switch {
			case s.explanations[i] != "":
				b.WriteString(theme.Body.Width(cw - 4).Render("    " + s.explanations[i]))
				b.WriteString("\n")
			case s.pending[i]:
				b.WriteString(theme.Hint.Render("    Fetching explanation..."))
				b.WriteString("\n")
			}
		}
	}

	if r.RecordErr != nil {
		b.WriteString("\n")
		b.WriteString(theme.Warning.Render("Your progress could not be saved this time."))
	}

	return layout.Center(b.String(), width, height)
}
