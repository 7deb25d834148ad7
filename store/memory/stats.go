package memory

import (
	"context"

	"github.com/rbaliyan/moodlog/store"
)

// JournalStats returns aggregate statistics for a user's journal.
// Record and bucket totals are read under the same lock.
func (s *Store) JournalStats(ctx context.Context, ownerID string) (*store.JournalStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	j, ok := s.lookup(ownerID)
	if !ok {
		return &store.JournalStats{}, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := store.StatsFromBuckets(j.agg.Buckets())
	stats.TotalRecords = int64(len(j.records))
	return stats, nil
}
