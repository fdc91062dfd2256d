package topics

import (
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/router"
	"github.com/cdlprep/cdlprep/internal/screen"
	quizscreen "github.com/cdlprep/cdlprep/internal/screens/quiz"
)

func loaded(t *testing.T, mode quiz.Mode) *TopicsScreen {
	t.Helper()
	bank, err := question.DefaultBank()
	if err != nil {
		t.Fatalf("default bank: %v", err)
	}
	s := New(screen.Deps{Source: question.NewBankSource(bank), UserID: "u"}, mode)
	s.Update(s.load()())
	if s.err != nil {
		t.Fatalf("load: %v", s.err)
	}
	return s
}

func TestTopics_LoadsAllTopics(t *testing.T) {
	s := loaded(t, quiz.Practice)
	if len(s.rows) != 6 {
		t.Fatalf("expected 6 topics, got %d", len(s.rows))
	}
	for _, r := range s.rows {
		if r.count == 0 {
			t.Errorf("topic %s has no questions", r.topic.ID)
		}
	}
}

func TestTopics_Filter(t *testing.T) {
	s := loaded(t, quiz.Practice)
	for _, r := range "haz" {
		s.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
	rows := s.visible()
	if len(rows) != 1 || rows[0].topic.ID != "hazmat" {
		t.Fatalf("expected only hazmat, got %+v", rows)
	}
}

func TestTopics_NavigateAndStart(t *testing.T) {
	s := loaded(t, quiz.Practice)
	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if s.cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", s.cursor)
	}
	s.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	s.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	if s.cursor != 0 {
		t.Fatalf("expected cursor clamped at 0, got %d", s.cursor)
	}

	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected push")
	}
	msg, ok := cmd().(router.PushScreenMsg)
	if !ok {
		t.Fatalf("expected PushScreenMsg, got %T", cmd())
	}
	if _, ok := msg.Screen.(*quizscreen.QuizScreen); !ok {
		t.Fatalf("expected quiz screen, got %T", msg.Screen)
	}
}

func TestTopics_Title(t *testing.T) {
	if got := New(screen.Deps{}, quiz.Exam).Title(); got != "Mock Exam" {
		t.Fatalf("got %q", got)
	}
}
