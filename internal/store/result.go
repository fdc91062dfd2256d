package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// resultRepo implements ResultRepo on the quiz_results event table.
type resultRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *resultRepo) AppendResult(ctx context.Context, data ResultEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert("quiz_results").
		Columns("sequence", "timestamp", "user_id", "session_id", "topic_id", "mode",
			"answered", "correct", "total", "accuracy", "duration_secs").
		Values(seqNum, unixMilli(time.Now()), data.UserID, data.SessionID, data.TopicID, data.Mode,
			data.Answered, data.Correct, data.Total, data.Accuracy, data.DurationSecs).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save quiz result: %w", err)
	}
	return nil
}

func (r *resultRepo) QueryResults(ctx context.Context, userID string, opts QueryOpts) ([]ResultRecord, error) {
	t := builder().Table("quiz_results")
	sel := builder().Select(
		t.C("sequence"), t.C("timestamp"), t.C("session_id"), t.C("topic_id"), t.C("mode"),
		t.C("answered"), t.C("correct"), t.C("total"), t.C("accuracy"), t.C("duration_secs"),
	).
		From(t).
		Where(entsql.EQ(t.C("user_id"), userID)).
		OrderBy(entsql.Desc(t.C("sequence")))

	if opts.After > 0 {
		sel.Where(entsql.GT(t.C("sequence"), opts.After))
	}
	if opts.Before > 0 {
		sel.Where(entsql.LT(t.C("sequence"), opts.Before))
	}
	if !opts.From.IsZero() {
		sel.Where(entsql.GTE(t.C("timestamp"), unixMilli(opts.From)))
	}
	if !opts.To.IsZero() {
		sel.Where(entsql.LTE(t.C("timestamp"), unixMilli(opts.To)))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quiz results: %w", err)
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		rec := ResultRecord{ResultEventData: ResultEventData{UserID: userID}}
		var ts int64
		if err := rows.Scan(&rec.Sequence, &ts, &rec.SessionID, &rec.TopicID, &rec.Mode,
			&rec.Answered, &rec.Correct, &rec.Total, &rec.Accuracy, &rec.DurationSecs); err != nil {
			return nil, fmt.Errorf("scan quiz result: %w", err)
		}
		rec.Timestamp = fromUnixMilli(ts)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quiz results: %w", err)
	}
	return records, nil
}

func (r *resultRepo) TopicSummaries(ctx context.Context, userID string) ([]TopicSummary, error) {
	t := builder().Table("quiz_results")
	query, args := builder().Select(
		t.C("topic_id"),
		entsql.Count("*"),
		entsql.Sum(t.C("answered")),
		entsql.Sum(t.C("correct")),
	).
		From(t).
		Where(entsql.EQ(t.C("user_id"), userID)).
		GroupBy(t.C("topic_id")).
		OrderBy(t.C("topic_id")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query topic summaries: %w", err)
	}
	defer rows.Close()

	var out []TopicSummary
	for rows.Next() {
		var s TopicSummary
		if err := rows.Scan(&s.TopicID, &s.Attempts, &s.Answered, &s.Correct); err != nil {
			return nil, fmt.Errorf("scan topic summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic summaries: %w", err)
	}
	return out, nil
}

func (r *resultRepo) DeleteResults(ctx context.Context, userID string) error {
	query, args := builder().Delete("quiz_results").
		Where(entsql.EQ("user_id", userID)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete quiz results: %w", err)
	}
	return nil
}
