package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// entitlementRepo implements EntitlementRepo. Rows are written by whatever
// stands in for the billing provider; a missing row means not entitled.
type entitlementRepo struct {
	db *sql.DB
}

func (r *entitlementRepo) Entitled(ctx context.Context, userID string) (bool, error) {
	t := builder().Table("entitlements")
	query, args := builder().Select(t.C("entitled")).
		From(t).
		Where(entsql.EQ(t.C("user_id"), userID)).
		Query()

	var entitled bool
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&entitled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query entitlement: %w", err)
	}
	return entitled, nil
}

func (r *entitlementRepo) SetEntitled(ctx context.Context, userID string, entitled bool, source string) error {
	query, args := builder().Insert("entitlements").
		Columns("user_id", "entitled", "source", "updated_at").
		Values(userID, entitled, source, unixMilli(time.Now())).
		OnConflict(entsql.ConflictColumns("user_id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}
	return nil
}
