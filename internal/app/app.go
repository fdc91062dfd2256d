// Package app wires the screen router into the root Bubble Tea model.
package app

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/cdlprep/cdlprep/internal/router"
	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/screens/home"
	"github.com/cdlprep/cdlprep/internal/ui/layout"
)

// headerMsg carries refreshed header figures.
type headerMsg struct{ info layout.HeaderInfo }

// AppModel is the root Bubble Tea model.
type AppModel struct {
	deps   screen.Deps
	router *router.Router
	header layout.HeaderInfo
	width  int
	height int
}

// newAppModel creates a new AppModel with the home screen.
func newAppModel(deps screen.Deps) AppModel {
	return AppModel{
		deps:   deps,
		router: router.New(home.New(deps)),
		header: layout.HeaderInfo{Remaining: -1},
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.router.Active().Init(), m.loadHeader())
}

func (m AppModel) loadHeader() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		ctx := context.Background()
		info := layout.HeaderInfo{Remaining: -1}
		if deps.Stats != nil {
			st, err := deps.Stats.Load(ctx, deps.UserID)
			if err == nil {
				info.Streak = st.StreakDays
				info.AverageScore = st.AverageScore
			} else if deps.Log != nil {
				deps.Log.WithError(err).Warn("load stats for header")
			}
		}
		if deps.Gate != nil {
			if st := deps.Gate.Check(ctx, deps.UserID); !st.Entitled && !st.Unknown {
				info.Remaining = st.Remaining
			}
		}
		return headerMsg{info: info}
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case headerMsg:
		m.header = msg.info
		return m, nil

	case screen.StatsChangedMsg:
		return m, m.loadHeader()

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			m.router.CloseAll()
			return m, tea.Quit
		case "esc":
			if h, ok := m.router.Active().(screen.EscapeHandler); ok && h.HandlesEscape() {
				break
			}
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	header := layout.RenderHeader(title, m.header, m.width)
	footer := layout.RenderFooter(m.footerHints(), m.width)

	contentHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	content := m.router.View(m.width, contentHeight)

	v.SetContent(layout.RenderFrame(header, content, footer, m.width, m.height))
	return v
}

func (m AppModel) footerHints() []layout.KeyHint {
	if p, ok := m.router.Active().(screen.KeyHintProvider); ok {
		return p.KeyHints()
	}
	if m.router.Depth() > 1 {
		return []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
}

// Run starts the Bubble Tea program.
func Run(deps screen.Deps) error {
	p := tea.NewProgram(newAppModel(deps))
	_, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
