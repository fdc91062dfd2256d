package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
)

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func TestMenu_SkipsDisabled(t *testing.T) {
	var ran string
	items := []MenuItem{
		{Label: "locked", Disabled: true},
		{Label: "one", Action: func() tea.Cmd { ran = "one"; return nil }},
		{Label: "also locked", Disabled: true},
		{Label: "two", Action: func() tea.Cmd { ran = "two"; return nil }},
	}
	m := NewMenu(items)
	if m.Selected != 1 {
		t.Fatalf("expected cursor on first enabled item, got %d", m.Selected)
	}

	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if m.Selected != 3 {
		t.Fatalf("expected cursor to skip disabled item, got %d", m.Selected)
	}
	m, _ = m.Update(keyPress('k'))
	if m.Selected != 1 {
		t.Fatalf("expected k to move up, got %d", m.Selected)
	}
	m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if ran != "one" {
		t.Fatalf("expected action 'one', got %q", ran)
	}
}

func TestChoices_View(t *testing.T) {
	c := Choices{Options: []string{"Stop", "Go"}, Cursor: 1, Selected: -1}
	out := c.View(40)
	if !strings.Contains(out, "A)  Stop") || !strings.Contains(out, "B)  Go") {
		t.Fatalf("expected labelled options, got %q", out)
	}
	if Label(3) != "D" {
		t.Fatalf("expected D, got %s", Label(3))
	}
}

func TestFilter_Matches(t *testing.T) {
	f := NewFilter("filter")
	if !f.Matches("anything") {
		t.Fatal("empty filter should match")
	}
	for _, r := range "BRAKE" {
		f, _ = f.Update(keyPress(r))
	}
	if f.Value() != "BRAKE" {
		t.Fatalf("expected typed value, got %q", f.Value())
	}
	if !f.Matches("air_brakes", "Air Brakes") {
		t.Fatal("expected case-insensitive match")
	}
	if f.Matches("Hazmat") {
		t.Fatal("unexpected match")
	}
}

func TestProgressBar_Clamps(t *testing.T) {
	p := NewProgressBar("", 150, true, 20)
	if !strings.Contains(p.View(), "100%") {
		t.Fatalf("expected clamped percent, got %q", p.View())
	}
}

func TestContentWidth(t *testing.T) {
	tests := []struct{ frame, want int }{
		{10, 30},
		{60, 54},
		{200, 76},
	}
	for _, tt := range tests {
		if got := ContentWidth(tt.frame); got != tt.want {
			t.Errorf("ContentWidth(%d) = %d, want %d", tt.frame, got, tt.want)
		}
	}
}

func TestCard_RendersContent(t *testing.T) {
	for _, focused := range []bool{false, true} {
		out := Card("air brakes", 40, focused)
		if !strings.Contains(out, "air brakes") {
			t.Fatalf("focused=%v: content missing from %q", focused, out)
		}
	}
}
