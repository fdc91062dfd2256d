// Package explain produces study explanations for quiz answers, generating
// them with an LLM when a question ships without one.
package explain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cdlprep/cdlprep/internal/llm"
	"github.com/cdlprep/cdlprep/internal/logging"
	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/store"
)

// ErrUnavailable is returned when a question has no explanation and no LLM
// provider is configured.
var ErrUnavailable = errors.New("explanation unavailable")

// Source tells where an explanation came from.
type Source string

const (
	SourceBank      Source = "bank"
	SourceCache     Source = "cache"
	SourceGenerated Source = "generated"
)

// Explanation is the text shown after answering.
type Explanation struct {
	Text   string
	Source Source
}

var explanationSchema = &llm.Schema{
	Name:        "answer-explanation",
	Description: "A short explanation of the correct answer to a CDL exam question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"explanation": map[string]any{
				"type":        "string",
				"description": "Two to four sentences explaining why the correct option is right, addressing the selected option if it was wrong.",
			},
		},
		"required":             []any{"explanation"},
		"additionalProperties": false,
	},
}

const systemPrompt = `You are a commercial driver's license instructor. Explain answers to CDL knowledge test questions in plain language, citing the rule or safety reason behind the correct answer. Do not invent regulations.`

// Service resolves explanations from the bank, the cache or the provider.
type Service struct {
	provider llm.Provider
	cache    store.ExplanationRepo
	log      logrus.FieldLogger
}

// NewService creates a Service. provider and cache may be nil.
func NewService(provider llm.Provider, cache store.ExplanationRepo, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{provider: provider, cache: cache, log: log}
}

// Explain returns the explanation for q given the option the user chose.
// Pass -1 for selected when explaining without an answer.
func (s *Service) Explain(ctx context.Context, q question.Question, selected int) (Explanation, error) {
	if q.Explanation != "" {
		return Explanation{Text: q.Explanation, Source: SourceBank}, nil
	}

	log := logging.FromContext(ctx, s.log).WithField("question_id", q.ID)

	if s.cache != nil {
		text, err := s.cache.Get(ctx, q.ID, selected)
		if err != nil {
			log.WithError(err).Warn("explanation cache read failed")
		} else if text != "" {
			return Explanation{Text: text, Source: SourceCache}, nil
		}
	}

	if s.provider == nil {
		return Explanation{}, ErrUnavailable
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "explain"), llm.Request{
		System:    systemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: buildPrompt(q, selected)}},
		Schema:    explanationSchema,
		MaxTokens: 400,
	})
	if err != nil {
		return Explanation{}, fmt.Errorf("generate explanation: %w", err)
	}

	var out struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return Explanation{}, fmt.Errorf("decode explanation: %w", err)
	}
	text := strings.TrimSpace(out.Explanation)
	if text == "" {
		return Explanation{}, fmt.Errorf("generate explanation: empty response")
	}

	if s.cache != nil {
		if err := s.cache.Save(ctx, q.ID, selected, text, resp.Model); err != nil {
			log.WithError(err).Warn("explanation cache write failed")
		}
	}
	return Explanation{Text: text, Source: SourceGenerated}, nil
}

func buildPrompt(q question.Question, selected int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nOptions:\n", q.Text)
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "%c. %s\n", 'A'+i, opt)
	}
	fmt.Fprintf(&b, "\nCorrect answer: %c. %s\n", 'A'+q.CorrectIndex, q.Options[q.CorrectIndex])
	if selected >= 0 && selected < len(q.Options) && selected != q.CorrectIndex {
		fmt.Fprintf(&b, "The student chose: %c. %s\n", 'A'+selected, q.Options[selected])
	}
	return b.String()
}
