package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type explanationRepo struct {
	db *sql.DB
}

func (r *explanationRepo) Get(ctx context.Context, questionID string, selected int) (string, error) {
	t := builder().Table("explanations")
	query, args := builder().Select(t.C("text")).
		From(t).
		Where(entsql.And(
			entsql.EQ(t.C("question_id"), questionID),
			entsql.EQ(t.C("selected_index"), selected),
		)).
		Query()

	var text string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query explanation: %w", err)
	}
	return text, nil
}

func (r *explanationRepo) Save(ctx context.Context, questionID string, selected int, text, model string) error {
	query, args := builder().Insert("explanations").
		Columns("question_id", "selected_index", "text", "model", "created_at").
		Values(questionID, selected, text, model, unixMilli(time.Now())).
		OnConflict(entsql.ConflictColumns("question_id", "selected_index"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save explanation: %w", err)
	}
	return nil
}
