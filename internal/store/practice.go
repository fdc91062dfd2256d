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

// practiceRepo implements PracticeSessionRepo. The table is keyed by user,
// so a save for a new topic replaces the previous record.
type practiceRepo struct {
	db *sql.DB
}

func (r *practiceRepo) Save(ctx context.Context, userID string, sess PracticeSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal practice session: %w", err)
	}

	query, args := builder().Insert("practice_sessions").
		Columns("user_id", "topic_id", "data", "updated_at").
		Values(userID, sess.TopicID, string(b), unixMilli(time.Now())).
		OnConflict(entsql.ConflictColumns("user_id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save practice session: %w", err)
	}
	return nil
}

func (r *practiceRepo) Load(ctx context.Context, userID string) (*PracticeSession, error) {
	t := builder().Table("practice_sessions")
	query, args := builder().Select(t.C("data")).
		From(t).
		Where(entsql.EQ(t.C("user_id"), userID)).
		Query()

	var raw string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query practice session: %w", err)
	}

	var sess PracticeSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal practice session: %w", err)
	}
	return &sess, nil
}

func (r *practiceRepo) Clear(ctx context.Context, userID string) error {
	query, args := builder().Delete("practice_sessions").
		Where(entsql.EQ("user_id", userID)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear practice session: %w", err)
	}
	return nil
}
