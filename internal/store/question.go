package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// questionRepo implements QuestionRepo over the topics, questions and
// bank_meta tables.
type questionRepo struct {
	db  *sql.DB
	drv *entsql.Driver
}

func (r *questionRepo) ReplaceBank(ctx context.Context, bank BankRecord) (err error) {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin bank import: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	exec := func(query string, args []any) error {
		return tx.Exec(ctx, query, args, nil)
	}

	// Questions go first; the cascade would handle it but the explicit delete
	// keeps the import correct when foreign keys are off.
	for _, table := range []string{"questions", "topics", "bank_meta"} {
		query, args := builder().Delete(table).Query()
		if err = exec(query, args); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, t := range bank.Topics {
		query, args := builder().Insert("topics").
			Columns("id", "name", "class", "position").
			Values(t.ID, t.Name, t.Class, i).
			Query()
		if err = exec(query, args); err != nil {
			return fmt.Errorf("insert topic %s: %w", t.ID, err)
		}
	}

	for i, q := range bank.Questions {
		opts, mErr := json.Marshal(q.Options)
		if mErr != nil {
			err = fmt.Errorf("encode options for %s: %w", q.ID, mErr)
			return err
		}
		query, args := builder().Insert("questions").
			Columns("id", "topic_id", "text", "options", "correct_index", "explanation", "position").
			Values(q.ID, q.TopicID, q.Text, string(opts), q.CorrectIndex, q.Explanation, i).
			Query()
		if err = exec(query, args); err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}

	query, args := builder().Insert("bank_meta").
		Columns("id", "version", "imported_at").
		Values(1, bank.Version, unixMilli(time.Now())).
		Query()
	if err = exec(query, args); err != nil {
		return fmt.Errorf("save bank version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bank import: %w", err)
	}
	return nil
}

func (r *questionRepo) BankVersion(ctx context.Context) (string, error) {
	t := builder().Table("bank_meta")
	query, args := builder().Select(t.C("version")).
		From(t).
		Where(entsql.EQ(t.C("id"), 1)).
		Query()

	var version string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query bank version: %w", err)
	}
	return version, nil
}

func (r *questionRepo) Topics(ctx context.Context) ([]TopicRecord, error) {
	t := builder().Table("topics")
	query, args := builder().Select(t.C("id"), t.C("name"), t.C("class")).
		From(t).
		OrderBy(t.C("position")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []TopicRecord
	for rows.Next() {
		var tr TopicRecord
		if err := rows.Scan(&tr.ID, &tr.Name, &tr.Class); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return topics, nil
}

func (r *questionRepo) Questions(ctx context.Context, topicID string) ([]QuestionRecord, error) {
	t := builder().Table("questions")
	sel := builder().Select(
		t.C("id"), t.C("topic_id"), t.C("text"), t.C("options"), t.C("correct_index"), t.C("explanation"),
	).
		From(t).
		OrderBy(t.C("position"))
	if topicID != "" {
		sel.Where(entsql.EQ(t.C("topic_id"), topicID))
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []QuestionRecord
	for rows.Next() {
		var (
			q    QuestionRecord
			opts string
		)
		if err := rows.Scan(&q.ID, &q.TopicID, &q.Text, &opts, &q.CorrectIndex, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}
