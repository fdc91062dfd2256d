package home

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/router"
	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/screens/achievements"
	"github.com/cdlprep/cdlprep/internal/screens/history"
	quizscreen "github.com/cdlprep/cdlprep/internal/screens/quiz"
	"github.com/cdlprep/cdlprep/internal/screens/topics"
	"github.com/cdlprep/cdlprep/internal/store"
	"github.com/cdlprep/cdlprep/internal/trial"
	"github.com/cdlprep/cdlprep/internal/ui/components"
	"github.com/cdlprep/cdlprep/internal/ui/layout"
	"github.com/cdlprep/cdlprep/internal/ui/theme"
)

// loadedMsg carries the data shown on the home screen.
type loadedMsg struct {
	stats  store.UserStats
	status *trial.Status
}

// HomeScreen is the main menu.
type HomeScreen struct {
	deps   screen.Deps
	menu   components.Menu
	stats  store.UserStats
	status *trial.Status
}

var (
	_ screen.Screen          = (*HomeScreen)(nil)
	_ screen.KeyHintProvider = (*HomeScreen)(nil)
	_ router.Reactivator     = (*HomeScreen)(nil)
)

// New creates the home screen.
func New(deps screen.Deps) *HomeScreen {
	h := &HomeScreen{deps: deps}
	h.menu = components.NewMenu(h.items())
	return h
}

func (h *HomeScreen) Init() tea.Cmd       { return h.load() }
func (h *HomeScreen) Reactivate() tea.Cmd { return h.load() }
func (h *HomeScreen) Title() string       { return "Home" }

func (h *HomeScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (h *HomeScreen) load() tea.Cmd {
	deps := h.deps
	return func() tea.Msg {
		ctx := context.Background()
		var msg loadedMsg
		if deps.Stats != nil {
			st, err := deps.Stats.Load(ctx, deps.UserID)
			if err != nil && deps.Log != nil {
				deps.Log.WithError(err).Warn("load stats for home screen")
			}
			msg.stats = st
		}
		if deps.Gate != nil {
			st := deps.Gate.Check(ctx, deps.UserID)
			msg.status = &st
		}
		return msg
	}
}

func (h *HomeScreen) locked() bool {
	return h.status != nil && !h.status.CanAccess()
}

func (h *HomeScreen) items() []components.MenuItem {
	deps := h.deps
	push := func(build func() screen.Screen) func() tea.Cmd {
		return func() tea.Cmd {
			next := build()
			return func() tea.Msg { return router.PushScreenMsg{Screen: next} }
		}
	}
	locked := h.locked()
	detail := ""
	if locked {
		detail = "free limit reached"
	}

	cfg := quiz.DefaultConfig()
	if deps.Engine != nil {
		cfg = deps.Engine.Config()
	}

	return []components.MenuItem{
		{
			Label:    "PRACTICE BY TOPIC",
			Detail:   detail,
			Disabled: locked,
			Action:   push(func() screen.Screen { return topics.New(deps, quiz.Practice) }),
		},
		{
			Label:    "MOCK EXAM",
			Detail:   fmt.Sprintf("%d min, %.0f%% to pass", int(cfg.ExamDuration.Minutes()), cfg.PassThreshold),
			Disabled: locked,
			Action:   push(func() screen.Screen { return topics.New(deps, quiz.Exam) }),
		},
		{
			Label:    "QUICK MIX",
			Detail:   fmt.Sprintf("%d questions from every topic", cfg.MixedSize),
			Disabled: locked,
			Action: push(func() screen.Screen {
				return quizscreen.New(deps, quiz.StartInput{
					UserID: deps.UserID,
					Mode:   quiz.Practice,
					Resume: true,
				})
			}),
		},
		{Label: "ACHIEVEMENTS", Action: push(func() screen.Screen { return achievements.New(deps) })},
		{Label: "HISTORY", Action: push(func() screen.Screen { return history.New(deps) })},
		{Label: "QUIT", Action: func() tea.Cmd { return tea.Quit }},
	}
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		h.stats = msg.stats
		h.status = msg.status
		sel := h.menu.Selected
		h.menu = components.NewMenu(h.items())
		if sel < len(h.menu.Items) && !h.menu.Items[sel].Disabled {
			h.menu.Selected = sel
		}
		return h, nil
	case tea.KeyPressMsg:
		var cmd tea.Cmd
		h.menu, cmd = h.menu.Update(msg)
		return h, cmd
	}
	return h, nil
}

func (h *HomeScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	var b strings.Builder

	b.WriteString(theme.Title.Width(cw).Render(banner))
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Width(cw).Render("Commercial driver's license knowledge test prep"))
	b.WriteString("\n\n")

	st := h.stats
	summary := fmt.Sprintf(
		"Answered %d   Average %d%%   Exams %d\nStreak %d day(s)   Study time %d min",
		st.QuestionsAnswered, st.AverageScore, st.ExamAttempts, st.StreakDays, st.StudyTimeMinutes,
	)
	if h.status != nil && !h.status.Entitled {
		line := fmt.Sprintf("\nFree questions left: %d of %d", h.status.Remaining, h.status.Limit)
		if h.locked() {
			line = "\n" + theme.Warning.Render("Free question limit reached. Upgrade to keep studying.")
		}
		summary += line
	}
	b.WriteString(components.Card(theme.Body.Render(summary), cw, false))
	b.WriteString("\n\n")
	b.WriteString(h.menu.View())

	return layout.Center(b.String(), width, height)
}
