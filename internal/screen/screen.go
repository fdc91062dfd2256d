// Package screen defines the contract between the router and the screens
// it stacks, and the services the screens share.
package screen

import (
	tea "charm.land/bubbletea/v2"
	"github.com/sirupsen/logrus"

	"github.com/cdlprep/cdlprep/internal/explain"
	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/stats"
	"github.com/cdlprep/cdlprep/internal/trial"
	"github.com/cdlprep/cdlprep/internal/ui/layout"
)

// Screen defines the interface for all application screens.
type Screen interface {
	// Init returns an initial command when the screen is first created.
	Init() tea.Cmd

	// Update handles messages and returns updated screen + command.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the screen content (excluding header/footer).
	View(width, height int) string

	// Title returns the screen name for the header.
	Title() string
}

// KeyHintProvider is an optional interface that screens can implement
// to provide custom footer key hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// EscapeHandler is implemented by screens that handle esc themselves
// instead of letting the app pop them.
type EscapeHandler interface {
	HandlesEscape() bool
}

// Closer is implemented by screens holding resources that must be released
// when the screen leaves the stack or the program exits.
type Closer interface {
	Close()
}

// StatsChangedMsg asks the app to refresh the header after a result is
// recorded.
type StatsChangedMsg struct{}

// Deps are the services handed to every screen. Gate and Explain may be nil.
type Deps struct {
	Engine  *quiz.Engine
	Stats   *stats.Service
	Source  question.Source
	Gate    *trial.Gate
	Explain *explain.Service
	UserID  string
	Log     logrus.FieldLogger
}
