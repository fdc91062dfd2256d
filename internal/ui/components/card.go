package components

import "github.com/cdlprep/cdlprep/internal/ui/theme"

// ContentWidth returns the width used for centered cards.
func ContentWidth(frameWidth int) int {
	return min(max(frameWidth-6, 30), 76)
}

// Card wraps content in a rounded border of the given outer width.
func Card(content string, width int, focused bool) string {
	style := theme.Card
	if focused {
		style = theme.FocusCard
	}
	return style.Width(width).Render(content)
}
