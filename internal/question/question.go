// Package question defines quiz questions and topics, and the sources that
// supply them to a quiz session.
package question

import (
	"context"
	"fmt"
)

// TopicClass separates the core CDL knowledge areas from the endorsements.
// Exams for endorsement topics draw fewer questions.
type TopicClass string

const (
	ClassMain        TopicClass = "main"
	ClassEndorsement TopicClass = "endorsement"
)

// Valid reports whether c is a known class.
func (c TopicClass) Valid() bool {
	return c == ClassMain || c == ClassEndorsement
}

// Topic is a named category of questions.
type Topic struct {
	ID    string
	Name  string
	Class TopicClass
}

// Question is a single multiple-choice item. Questions are immutable once
// loaded.
type Question struct {
	ID           string
	TopicID      string
	Text         string
	Options      []string
	CorrectIndex int
	Explanation  string
}

// ValidationError reports a malformed question.
type ValidationError struct {
	QuestionID string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("invalid question: %s", e.Reason)
	}
	return fmt.Sprintf("invalid question %s: %s", e.QuestionID, e.Reason)
}

// Validate checks the structural invariants of q.
func (q Question) Validate() error {
	switch {
	case q.ID == "":
		return &ValidationError{Reason: "missing id"}
	case q.Text == "":
		return &ValidationError{QuestionID: q.ID, Reason: "missing text"}
	case len(q.Options) < 2:
		return &ValidationError{QuestionID: q.ID, Reason: fmt.Sprintf("need at least 2 options, have %d", len(q.Options))}
	case q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options):
		return &ValidationError{QuestionID: q.ID, Reason: fmt.Sprintf("correct index %d out of range [0,%d)", q.CorrectIndex, len(q.Options))}
	}
	return nil
}

// IsCorrect reports whether option i is the right answer.
func (q Question) IsCorrect(i int) bool {
	return i == q.CorrectIndex
}

// Source supplies topics and their questions. Questions with an empty
// topicID returns every topic's questions pooled in topic order.
type Source interface {
	Topics(ctx context.Context) ([]Topic, error)
	Questions(ctx context.Context, topicID string) ([]Question, error)
}

// FindTopic returns the topic with the given id from src.
func FindTopic(ctx context.Context, src Source, id string) (Topic, bool, error) {
	topics, err := src.Topics(ctx)
	if err != nil {
		return Topic{}, false, err
	}
	for _, t := range topics {
		if t.ID == id {
			return t, true, nil
		}
	}
	return Topic{}, false, nil
}

// FindQuestion looks up a question by id across all topics.
func FindQuestion(ctx context.Context, src Source, id string) (Question, bool, error) {
	qs, err := src.Questions(ctx, "")
	if err != nil {
		return Question{}, false, err
	}
	for _, q := range qs {
		if q.ID == id {
			return q, true, nil
		}
	}
	return Question{}, false, nil
}
