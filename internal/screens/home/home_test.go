package home

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/cdlprep/cdlprep/internal/router"
	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/trial"
)

func TestHome_LockedDisablesStudyItems(t *testing.T) {
	h := New(screen.Deps{UserID: "u"})
	h.Update(loadedMsg{status: &trial.Status{Limit: 50, Used: 50}})

	for _, item := range h.menu.Items[:3] {
		if !item.Disabled {
			t.Errorf("expected %q to be disabled", item.Label)
		}
	}
	if h.menu.Items[h.menu.Selected].Label != "ACHIEVEMENTS" {
		t.Fatalf("expected cursor on first enabled item, got %q", h.menu.Items[h.menu.Selected].Label)
	}
}

func TestHome_EnterPushesTopics(t *testing.T) {
	h := New(screen.Deps{UserID: "u"})
	_, cmd := h.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg, ok := cmd().(router.PushScreenMsg)
	if !ok {
		t.Fatalf("expected PushScreenMsg, got %T", cmd())
	}
	if msg.Screen.Title() != "Practice" {
		t.Fatalf("expected practice topic picker, got %q", msg.Screen.Title())
	}
}

func TestHome_ViewShowsRemaining(t *testing.T) {
	h := New(screen.Deps{UserID: "u"})
	h.Update(loadedMsg{status: &trial.Status{Limit: 50, Used: 8, Remaining: 42}})
	if v := h.View(100, 40); !strings.Contains(v, "42 of 50") {
		t.Fatalf("expected remaining count in view")
	}
}
