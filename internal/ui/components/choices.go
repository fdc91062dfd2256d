package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/cdlprep/cdlprep/internal/ui/theme"
)

// Choices renders the answer options of one question. The quiz screen owns
// the cursor and the session owns the selection; Choices only draws them.
type Choices struct {
	Options []string
	Cursor  int
	// Selected is the chosen option or -1.
	Selected int
	// Revealed shows the correct answer in green and a wrong pick in red.
	Revealed     bool
	CorrectIndex int
}

// Label returns "A", "B", ... for option i.
func Label(i int) string {
	return string(rune('A' + i))
}

// View renders one option per line.
func (c Choices) View(width int) string {
	var b strings.Builder
	for i, opt := range c.Options {
		prefix := "  "
		if i == c.Cursor && !c.Revealed {
			prefix = "▸ "
		}
		mark := " "
		if i == c.Selected {
			mark = "●"
		}
		line := lipgloss.NewStyle().Width(max(width, 20)).
			Render(fmt.Sprintf("%s%s %s)  %s", prefix, mark, Label(i), opt))

		var style lipgloss.Style
		switch {
		case c.Revealed && i == c.CorrectIndex:
			style = theme.Correct
		case c.Revealed && i == c.Selected:
			style = theme.Incorrect
		case c.Revealed:
			style = theme.Disabled
		case i == c.Cursor:
			style = theme.Selected
		default:
			style = theme.Unselected
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
