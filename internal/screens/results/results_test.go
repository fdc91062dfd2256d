package results

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/cdlprep/cdlprep/internal/explain"
	"github.com/cdlprep/cdlprep/internal/question"
	qz "github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/router"
	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/store"
)

func testDeps(t *testing.T) screen.Deps {
	t.Helper()
	bank, err := question.DefaultBank()
	if err != nil {
		t.Fatalf("default bank: %v", err)
	}
	return screen.Deps{
		Source:  question.NewBankSource(bank),
		Explain: explain.NewService(nil, nil, nil),
		UserID:  "u",
	}
}

func examResult(passed bool) *qz.Result {
	return &qz.Result{
		Mode:          qz.Exam,
		Total:         3,
		Answered:      3,
		Correct:       2,
		AccuracyPct:   66.7,
		CompletionPct: 66.7,
		Passed:        passed,
		WrongAnswers: []store.WrongAnswer{
			{QuestionID: "gk-002", SelectedIndex: 0},
			{QuestionID: "missing", SelectedIndex: 1},
		},
	}
}

func TestResults_Headline(t *testing.T) {
	deps := testDeps(t)
	if v := New(deps, examResult(true), false).View(100, 40); !strings.Contains(v, "PASSED") || strings.Contains(v, "NOT PASSED") {
		t.Fatal("expected PASSED headline")
	}
	if v := New(deps, examResult(false), false).View(100, 40); !strings.Contains(v, "NOT PASSED") {
		t.Fatal("expected NOT PASSED headline")
	}
	if v := New(deps, examResult(true), true).View(100, 40); !strings.Contains(v, "Free question limit reached") {
		t.Fatal("expected trial notice")
	}
}

func TestResults_ReviewSkipsUnknownQuestions(t *testing.T) {
	s := New(testDeps(t), examResult(false), false)
	s.Update(s.Init()())

	if len(s.review) != 1 || s.review[0].q.ID != "gk-002" {
		t.Fatalf("expected one resolved question, got %+v", s.review)
	}
	if v := s.View(100, 40); !strings.Contains(v, "You chose A)") {
		t.Fatal("expected the wrong pick in the review")
	}
}

func TestResults_ExplainUsesBankText(t *testing.T) {
	s := New(testDeps(t), examResult(false), false)
	s.Update(s.Init()())

	_, cmd := s.Update(tea.KeyPressMsg{Code: 'e', Text: "e"})
	if cmd == nil {
		t.Fatal("expected explain command")
	}
	s.Update(cmd())
	if !strings.Contains(s.explanations[0], "12 to 15 seconds") {
		t.Fatalf("expected bank explanation, got %q", s.explanations[0])
	}

	// Already explained.
	if _, cmd := s.Update(tea.KeyPressMsg{Code: 'e', Text: "e"}); cmd != nil {
		t.Fatal("expected no second request")
	}
}

func TestResults_EnterGoesHome(t *testing.T) {
	s := New(testDeps(t), examResult(true), false)
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected command")
	}
	if _, ok := cmd().(router.PopToRootMsg); !ok {
		t.Fatalf("expected PopToRootMsg, got %T", cmd())
	}
}
