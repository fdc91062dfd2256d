package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// Filter is a focused single-line text input used to narrow a list.
type Filter struct {
	input textinput.Model
}

// NewFilter creates a focused filter input.
func NewFilter(placeholder string) Filter {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "/ "
	ti.CharLimit = 40
	ti.Focus()
	return Filter{input: ti}
}

// Init starts the cursor blinking.
func (f Filter) Init() tea.Cmd {
	return textinput.Blink
}

func (f Filter) Update(msg tea.Msg) (Filter, tea.Cmd) {
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

func (f Filter) View() string {
	return f.input.View()
}

// Value returns the raw filter text.
func (f Filter) Value() string {
	return f.input.Value()
}

// Matches reports whether any of fields contains the filter text,
// ignoring case. An empty filter matches everything.
func (f Filter) Matches(fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(f.input.Value()))
	if q == "" {
		return true
	}
	for _, s := range fields {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}
