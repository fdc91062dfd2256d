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

// statsRepo implements StatsRepo on the user_stats table. The JSON blob
// holds everything except the lifetime counter, which has its own column so
// it can be incremented without a read-modify-write of the blob.
type statsRepo struct {
	db *sql.DB
}

func (r *statsRepo) Get(ctx context.Context, userID string) (*UserStats, error) {
	t := builder().Table("user_stats")
	query, args := builder().Select(t.C("data"), t.C("lifetime_answered")).
		From(t).
		Where(entsql.EQ(t.C("user_id"), userID)).
		Query()

	var (
		raw      string
		lifetime int
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&raw, &lifetime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user stats: %w", err)
	}

	var stats UserStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, fmt.Errorf("unmarshal user stats: %w", err)
	}
	stats.QuestionsAnsweredTotal = lifetime
	return &stats, nil
}

func (r *statsRepo) Save(ctx context.Context, userID string, stats UserStats) error {
	if stats.UnlockedAchievements == nil {
		stats.UnlockedAchievements = []string{}
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal user stats: %w", err)
	}

	query, args := builder().Insert("user_stats").
		Columns("user_id", "data", "lifetime_answered", "updated_at").
		Values(userID, string(b), stats.QuestionsAnsweredTotal, unixMilli(time.Now())).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("data")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save user stats: %w", err)
	}
	return nil
}

func (r *statsRepo) Lifetime(ctx context.Context, userID string) (int, error) {
	t := builder().Table("user_stats")
	query, args := builder().Select(t.C("lifetime_answered")).
		From(t).
		Where(entsql.EQ(t.C("user_id"), userID)).
		Query()

	var n int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query lifetime counter: %w", err)
	}
	return n, nil
}

func (r *statsRepo) IncrementLifetime(ctx context.Context, userID string) (int, error) {
	seed, seedArgs := builder().Insert("user_stats").
		Columns("user_id", "data", "lifetime_answered", "updated_at").
		Values(userID, "{}", 0, unixMilli(time.Now())).
		OnConflict(entsql.ConflictColumns("user_id"), entsql.DoNothing()).
		Query()
	if _, err := r.db.ExecContext(ctx, seed, seedArgs...); err != nil {
		return 0, fmt.Errorf("seed user stats: %w", err)
	}

	var n int
	err := r.db.QueryRowContext(ctx,
		`UPDATE user_stats SET lifetime_answered = lifetime_answered + 1 WHERE user_id = ? RETURNING lifetime_answered`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment lifetime counter: %w", err)
	}
	return n, nil
}
