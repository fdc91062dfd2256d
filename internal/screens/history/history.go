package history

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"charm.land/lipgloss/v2"

	"github.com/cdlprep/cdlprep/internal/router"
	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/store"
	"github.com/cdlprep/cdlprep/internal/ui/layout"
	"github.com/cdlprep/cdlprep/internal/ui/theme"
)

const historyLimit = 50

type historyLoadedMsg struct {
	Results []store.ResultRecord
	Topics  map[string]store.TopicSummary
	Err     error
}

// HistoryScreen displays past attempts and per-topic totals.
type HistoryScreen struct {
	deps     screen.Deps
	results  []store.ResultRecord
	topics   map[string]store.TopicSummary
	selected int
	expanded map[int]bool
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(deps screen.Deps) *HistoryScreen {
	return &HistoryScreen{
		deps:     deps,
		expanded: make(map[int]bool),
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	deps := s.deps
	return func() tea.Msg {
		if deps.Stats == nil {
			return historyLoadedMsg{}
		}
		ctx := context.Background()

		recs, err := deps.Stats.History(ctx, deps.UserID, historyLimit)
		if err != nil {
			return historyLoadedMsg{Err: err}
		}

		topics := make(map[string]store.TopicSummary)
		sums, err := deps.Stats.TopicBreakdown(ctx, deps.UserID)
		if err != nil {
			return historyLoadedMsg{Results: recs, Topics: topics}
		}
		for _, t := range sums {
			topics[t.TopicID] = t
		}
		return historyLoadedMsg{Results: recs, Topics: topics}
	}
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.results = msg.Results
			s.topics = msg.Topics
		}
		s.loaded = true
		return s, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < len(s.results)-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			s.expanded[s.selected] = !s.expanded[s.selected]
			return s, nil
		}
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading history...")
	}
	if len(s.results) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No attempts yet. Start practicing!")
	}

	var b strings.Builder
	b.WriteString("\n")

	for i, rec := range s.results {
		dateStr := rec.Timestamp.Local().Format("Jan 02, 2006")
		topic := rec.TopicID
		if topic == "" {
			topic = "mixed"
		}

		prefix := "  "
		if i == s.selected {
			prefix = "> "
		}

		line := fmt.Sprintf("%s%s  %-8s %-18s %d/%d correct  %.0f%%",
			prefix, dateStr, rec.Mode, topic, rec.Correct, rec.Answered, rec.Accuracy)

		style := lipgloss.NewStyle().Foreground(theme.Text)
		if i == s.selected {
			style = style.Foreground(theme.Primary).Bold(true)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			style.Render(line)))
		b.WriteString("\n")

		if s.expanded[i] {
			for _, detail := range s.details(rec) {
				b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
					lipgloss.NewStyle().Foreground(theme.TextDim).Italic(true).Render(detail)))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

func (s *HistoryScreen) details(rec store.ResultRecord) []string {
	lines := []string{
		fmt.Sprintf("    %d of %d questions answered in %s",
			rec.Answered, rec.Total, layout.FormatClock(rec.DurationSecs)),
	}
	if t, ok := s.topics[rec.TopicID]; ok && t.Attempts > 0 {
		lines = append(lines, fmt.Sprintf("    %d attempts on this topic, %.0f%% overall",
			t.Attempts, t.Accuracy()))
	}
	return lines
}
