package question

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cdlprep/cdlprep/internal/logging"
	"github.com/cdlprep/cdlprep/internal/store"
)

// StoreSource serves the bank imported into the SQLite store.
type StoreSource struct {
	repo store.QuestionRepo
}

// NewStoreSource returns a Source over repo.
func NewStoreSource(repo store.QuestionRepo) *StoreSource {
	return &StoreSource{repo: repo}
}

func (s *StoreSource) Topics(ctx context.Context) ([]Topic, error) {
	recs, err := s.repo.Topics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	topics := make([]Topic, len(recs))
	for i, r := range recs {
		topics[i] = Topic{ID: r.ID, Name: r.Name, Class: TopicClass(r.Class)}
	}
	return topics, nil
}

func (s *StoreSource) Questions(ctx context.Context, topicID string) ([]Question, error) {
	recs, err := s.repo.Questions(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	qs := make([]Question, 0, len(recs))
	for _, r := range recs {
		q := Question{
			ID:           r.ID,
			TopicID:      r.TopicID,
			Text:         r.Text,
			Options:      r.Options,
			CorrectIndex: r.CorrectIndex,
			Explanation:  r.Explanation,
		}
		// Rows written by an older import could predate validation.
		if q.Validate() != nil {
			continue
		}
		qs = append(qs, q)
	}
	return qs, nil
}

// FallbackSource reads from Primary and serves Fallback whenever Primary
// fails or has nothing for the request.
type FallbackSource struct {
	Primary  Source
	Fallback Source
	Log      logrus.FieldLogger
}

func (s *FallbackSource) log(ctx context.Context) logrus.FieldLogger {
	return logging.FromContext(ctx, s.Log)
}

func (s *FallbackSource) Topics(ctx context.Context) ([]Topic, error) {
	topics, err := s.Primary.Topics(ctx)
	if err == nil && len(topics) > 0 {
		return topics, nil
	}
	if err != nil {
		s.log(ctx).WithError(err).Warn("primary question source failed; using fallback topics")
	}
	return s.Fallback.Topics(ctx)
}

func (s *FallbackSource) Questions(ctx context.Context, topicID string) ([]Question, error) {
	qs, err := s.Primary.Questions(ctx, topicID)
	if err == nil && len(qs) > 0 {
		return qs, nil
	}
	if err != nil {
		s.log(ctx).WithError(err).WithField("topic_id", topicID).
			Warn("primary question source failed; using fallback questions")
	}
	return s.Fallback.Questions(ctx, topicID)
}

// ErrOlderBank is returned by Import when the store already holds a newer
// bank and force is not set.
var ErrOlderBank = errors.New("installed question bank is newer")

// ImportResult summarises a completed import.
type ImportResult struct {
	Version         string
	PreviousVersion string
	Topics          int
	Questions       int
}

// Import writes bank into repo, replacing whatever was there. Unless force
// is set it refuses to replace a bank with a newer version.
func Import(ctx context.Context, repo store.QuestionRepo, bank *Bank, force bool) (*ImportResult, error) {
	installed, err := repo.BankVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read installed bank version: %w", err)
	}
	if !force && installed != "" && !bank.NewerThan(installed) && bank.Version != installed {
		return nil, fmt.Errorf("%w: installed %s, importing %s", ErrOlderBank, installed, bank.Version)
	}

	rec := store.BankRecord{Version: bank.Version}
	for _, t := range bank.Topics {
		rec.Topics = append(rec.Topics, store.TopicRecord{ID: t.ID, Name: t.Name, Class: string(t.Class)})
		for _, q := range bank.TopicQuestions(t.ID) {
			rec.Questions = append(rec.Questions, store.QuestionRecord{
				ID:           q.ID,
				TopicID:      q.TopicID,
				Text:         q.Text,
				Options:      q.Options,
				CorrectIndex: q.CorrectIndex,
				Explanation:  q.Explanation,
			})
		}
	}

	if err := repo.ReplaceBank(ctx, rec); err != nil {
		return nil, fmt.Errorf("import bank: %w", err)
	}
	return &ImportResult{
		Version:         bank.Version,
		PreviousVersion: installed,
		Topics:          len(rec.Topics),
		Questions:       len(rec.Questions),
	}, nil
}
