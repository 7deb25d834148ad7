package postgres

import (
	"context"
	"fmt"

	"github.com/rbaliyan/moodlog/store"
)

// JournalStats returns aggregate statistics for a user's journal in a single query.
func (s *Store) JournalStats(ctx context.Context, ownerID string) (*store.JournalStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM %s WHERE owner_id = $1) AS total_records,
			COUNT(*) AS day_count,
			COALESCE(SUM(distressed), 0) AS distressed,
			COALESCE(SUM(anxious), 0) AS anxious,
			COALESCE(SUM(neutral), 0) AS neutral,
			COALESCE(SUM(happy), 0) AS happy
		FROM %s
		WHERE owner_id = $1
	`, s.opts.table, s.opts.bucketTable)

	var row struct {
		TotalRecords int64 `db:"total_records"`
		DayCount     int64 `db:"day_count"`
		Distressed   int64 `db:"distressed"`
		Anxious      int64 `db:"anxious"`
		Neutral      int64 `db:"neutral"`
		Happy        int64 `db:"happy"`
	}
	if err := s.db.GetContext(ctx, &row, query, ownerID); err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}

	return &store.JournalStats{
		TotalRecords: row.TotalRecords,
		DayCount:     row.DayCount,
		StateTotals:  store.Counts{row.Distressed, row.Anxious, row.Neutral, row.Happy},
	}, nil
}
