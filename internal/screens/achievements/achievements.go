// Package achievements lists the achievement catalog with the user's progress.
package achievements

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/stats"
	"github.com/cdlprep/cdlprep/internal/store"
	"github.com/cdlprep/cdlprep/internal/ui/components"
	"github.com/cdlprep/cdlprep/internal/ui/layout"
	"github.com/cdlprep/cdlprep/internal/ui/theme"
)

type loadedMsg struct {
	items []stats.AchievementStatus
	err   error
}

// AchievementsScreen shows every achievement, locked or not.
type AchievementsScreen struct {
	deps  screen.Deps
	items []stats.AchievementStatus
	err   error
}

var _ screen.Screen = (*AchievementsScreen)(nil)

func New(deps screen.Deps) *AchievementsScreen {
	return &AchievementsScreen{deps: deps, items: stats.AchievementProgress(store.UserStats{})}
}

func (s *AchievementsScreen) Init() tea.Cmd {
	deps := s.deps
	return func() tea.Msg {
		if deps.Stats == nil {
			return nil
		}
		st, err := deps.Stats.Load(context.Background(), deps.UserID)
		if err != nil {
			return loadedMsg{err: err}
		}
		return loadedMsg{items: stats.AchievementProgress(st)}
	}
}

func (s *AchievementsScreen) Title() string { return "Achievements" }

func (s *AchievementsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if msg, ok := msg.(loadedMsg); ok {
		s.err = msg.err
		if msg.err == nil {
			s.items = msg.items
		}
	}
	return s, nil
}

func (s *AchievementsScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	var b strings.Builder

	unlocked := 0
	for _, a := range s.items {
		if a.Unlocked {
			unlocked++
		}
	}
	b.WriteString(theme.Title.Render(fmt.Sprintf("Achievements  %d/%d", unlocked, len(s.items))))
	b.WriteString("\n\n")
	if s.err != nil {
		b.WriteString(theme.Warning.Render("Could not load progress: " + s.err.Error()))
		b.WriteString("\n\n")
	}

	for _, a := range s.items {
		title := fmt.Sprintf("%s %s", a.Icon, a.Title)
		if a.Unlocked {
			b.WriteString(theme.Correct.Render(title + "  ✓"))
		} else {
			b.WriteString(theme.Unselected.Render(title))
		}
		b.WriteString(theme.Hint.Render("  " + a.Description))
		b.WriteString("\n")
		pct := a.Progress.Percent()
		if a.Unlocked {
			pct = 100
		}
		label := fmt.Sprintf("%d/%d", min(a.Progress.Current, a.Progress.Target), a.Progress.Target)
		b.WriteString(components.NewProgressBar(label, pct, true, cw).View())
		b.WriteString("\n\n")
	}

	return layout.Center(b.String(), width, height)
}
