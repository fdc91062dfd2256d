package question

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"
)

// ErrInvalidBank is wrapped by every ParseBank failure.
var ErrInvalidBank = errors.New("invalid question bank")

//go:embed data/schema.json
var bankSchemaJSON []byte

//go:embed data/default_bank.json
var defaultBankJSON []byte

var compileBankSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(bankSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse bank schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema://question-bank.json", doc); err != nil {
		return nil, fmt.Errorf("add bank schema: %w", err)
	}
	return c.Compile("schema://question-bank.json")
})

// Bank is a versioned set of topics and their questions.
type Bank struct {
	Version string
	Topics  []Topic
	// Questions keyed by topic id, each in bank order.
	questions map[string][]Question
}

type bankFile struct {
	Version string      `json:"version"`
	Topics  []topicFile `json:"topics"`
}

type topicFile struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Class     string         `json:"class"`
	Questions []questionFile `json:"questions"`
}

type questionFile struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}

// ParseBank decodes and validates a bank document. The document must match
// the bank schema, every question must pass Validate, and question ids must
// be unique across the bank.
func ParseBank(data []byte) (*Bank, error) {
	schema, err := compileBankSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}

	var f bankFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}

	b := &Bank{
		Version:   f.Version,
		questions: make(map[string][]Question, len(f.Topics)),
	}
	seenTopics := make(map[string]bool)
	seenQuestions := make(map[string]string)

	for _, tf := range f.Topics {
		if seenTopics[tf.ID] {
			return nil, fmt.Errorf("%w: duplicate topic %q", ErrInvalidBank, tf.ID)
		}
		seenTopics[tf.ID] = true

		t := Topic{ID: tf.ID, Name: tf.Name, Class: TopicClass(tf.Class)}
		b.Topics = append(b.Topics, t)

		qs := make([]Question, 0, len(tf.Questions))
		for _, qf := range tf.Questions {
			q := Question{
				ID:           qf.ID,
				TopicID:      tf.ID,
				Text:         qf.Text,
				Options:      qf.Options,
				CorrectIndex: qf.CorrectIndex,
				Explanation:  qf.Explanation,
			}
			if err := q.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidBank, err)
			}
			if other, ok := seenQuestions[q.ID]; ok {
				return nil, fmt.Errorf("%w: question %q appears in %s and %s", ErrInvalidBank, q.ID, other, tf.ID)
			}
			seenQuestions[q.ID] = tf.ID
			qs = append(qs, q)
		}
		b.questions[tf.ID] = qs
	}

	return b, nil
}

// LoadBankFile reads and parses a bank from disk.
func LoadBankFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bank: %w", err)
	}
	return ParseBank(data)
}

var defaultBank = sync.OnceValues(func() (*Bank, error) {
	return ParseBank(defaultBankJSON)
})

// DefaultBank returns the bank compiled into the binary.
func DefaultBank() (*Bank, error) {
	return defaultBank()
}

// TopicQuestions returns the questions of one topic, in bank order.
func (b *Bank) TopicQuestions(topicID string) []Question {
	return b.questions[topicID]
}

// QuestionCount returns the total number of questions in the bank.
func (b *Bank) QuestionCount() int {
	n := 0
	for _, qs := range b.questions {
		n += len(qs)
	}
	return n
}

// NewerThan reports whether b's version is strictly greater than version.
// An invalid or empty version is treated as older than any valid one.
func (b *Bank) NewerThan(version string) bool {
	if !semver.IsValid(version) {
		return semver.IsValid(b.Version)
	}
	return semver.Compare(b.Version, version) > 0
}

// BankSource serves questions from an in-memory Bank.
type BankSource struct {
	bank *Bank
}

// NewBankSource wraps b as a Source.
func NewBankSource(b *Bank) *BankSource {
	return &BankSource{bank: b}
}

func (s *BankSource) Topics(_ context.Context) ([]Topic, error) {
	out := make([]Topic, len(s.bank.Topics))
	copy(out, s.bank.Topics)
	return out, nil
}

func (s *BankSource) Questions(_ context.Context, topicID string) ([]Question, error) {
	if topicID != "" {
		qs := s.bank.TopicQuestions(topicID)
		out := make([]Question, len(qs))
		copy(out, qs)
		return out, nil
	}
	var out []Question
	for _, t := range s.bank.Topics {
		out = append(out, s.bank.TopicQuestions(t.ID)...)
	}
	return out, nil
}
