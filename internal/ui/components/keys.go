package components

import "charm.land/bubbles/v2/key"

// Shared navigation bindings.
var (
	KeyUp    = key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up"))
	KeyDown  = key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down"))
	KeyEnter = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select"))
	KeyBack  = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back"))

	// List navigation while a filter input has focus, where j/k are text.
	FilterUp   = key.NewBinding(key.WithKeys("up", "ctrl+p"))
	FilterDown = key.NewBinding(key.WithKeys("down", "ctrl+n"))
)
