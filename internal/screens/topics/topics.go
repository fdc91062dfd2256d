// Package topics is the topic picker shown before a practice run or exam.
package topics

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/router"
	"github.com/cdlprep/cdlprep/internal/screen"
	quizscreen "github.com/cdlprep/cdlprep/internal/screens/quiz"
	"github.com/cdlprep/cdlprep/internal/ui/components"
	"github.com/cdlprep/cdlprep/internal/ui/layout"
	"github.com/cdlprep/cdlprep/internal/ui/theme"
)

type row struct {
	topic question.Topic
	count int
}

type loadedMsg struct {
	rows []row
	err  error
}

// TopicsScreen lists the bank's topics with a type-to-filter input.
type TopicsScreen struct {
	deps   screen.Deps
	mode   quiz.Mode
	filter components.Filter
	rows   []row
	cursor int
	loaded bool
	err    error
}

var (
	_ screen.Screen          = (*TopicsScreen)(nil)
	_ screen.KeyHintProvider = (*TopicsScreen)(nil)
)

// New creates a topic picker that starts sessions in mode.
func New(deps screen.Deps, mode quiz.Mode) *TopicsScreen {
	return &TopicsScreen{
		deps:   deps,
		mode:   mode,
		filter: components.NewFilter("type to filter topics"),
	}
}

func (s *TopicsScreen) Init() tea.Cmd {
	return tea.Batch(s.filter.Init(), s.load())
}

func (s *TopicsScreen) Title() string {
	if s.mode == quiz.Exam {
		return "Mock Exam"
	}
	return "Practice"
}

func (s *TopicsScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Start"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *TopicsScreen) load() tea.Cmd {
	src := s.deps.Source
	return func() tea.Msg {
		if src == nil {
			return loadedMsg{err: fmt.Errorf("no question bank loaded")}
		}
		ctx := context.Background()
		topics, err := src.Topics(ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		rows := make([]row, 0, len(topics))
		for _, t := range topics {
			qs, err := src.Questions(ctx, t.ID)
			if err != nil {
				return loadedMsg{err: err}
			}
			rows = append(rows, row{topic: t, count: len(qs)})
		}
		return loadedMsg{rows: rows}
	}
}

// visible returns the rows matching the filter.
func (s *TopicsScreen) visible() []row {
	var out []row
	for _, r := range s.rows {
		if s.filter.Matches(r.topic.Name, r.topic.ID, string(r.topic.Class)) {
			out = append(out, r)
		}
	}
	return out
}

func (s *TopicsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.loaded = true
		s.rows, s.err = msg.rows, msg.err
		return s, nil

	case tea.KeyPressMsg:
		rows := s.visible()
		switch {
		case key.Matches(msg, components.FilterUp):
			if s.cursor > 0 {
				s.cursor--
			}
			return s, nil
		case key.Matches(msg, components.FilterDown):
			if s.cursor < len(rows)-1 {
				s.cursor++
			}
			return s, nil
		case key.Matches(msg, components.KeyEnter):
			if s.cursor >= len(rows) {
				return s, nil
			}
			return s, s.start(rows[s.cursor].topic)
		}

		var cmd tea.Cmd
		s.filter, cmd = s.filter.Update(msg)
		if n := len(s.visible()); s.cursor >= n {
			s.cursor = max(n-1, 0)
		}
		return s, cmd
	}

	var cmd tea.Cmd
	s.filter, cmd = s.filter.Update(msg)
	return s, cmd
}

func (s *TopicsScreen) start(t question.Topic) tea.Cmd {
	in := quiz.StartInput{
		UserID:  s.deps.UserID,
		TopicID: t.ID,
		Mode:    s.mode,
		Resume:  s.mode == quiz.Practice,
	}
	next := quizscreen.New(s.deps, in)
	return func() tea.Msg { return router.PushScreenMsg{Screen: next} }
}

func (s *TopicsScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	var b strings.Builder

	heading := "Choose a topic to practice"
	if s.mode == quiz.Exam {
		heading = "Choose a topic for the mock exam"
	}
	b.WriteString(theme.Title.Render(heading))
	b.WriteString("\n\n")
	b.WriteString(s.filter.View())
	b.WriteString("\n\n")

	switch {
	case s.err != nil:
		b.WriteString(theme.Warning.Render("Could not load topics: " + s.err.Error()))
	case !s.loaded:
		b.WriteString(theme.Hint.Render("Loading topics..."))
	default:
		rows := s.visible()
		if len(rows) == 0 {
			b.WriteString(theme.Hint.Render("No topics match."))
		}
		var lines strings.Builder
		for i, r := range rows {
			line := fmt.Sprintf("%-34s %-12s %3d questions", r.topic.Name, r.topic.Class, r.count)
			if i == s.cursor {
				lines.WriteString(theme.Selected.Render("▸ " + line))
			} else {
				lines.WriteString(theme.Unselected.Render("  " + line))
			}
			lines.WriteString("\n")
		}
		if len(rows) > 0 {
			b.WriteString(components.Card(lines.String(), cw, true))
		}
	}

	return layout.Center(b.String(), width, height)
}
