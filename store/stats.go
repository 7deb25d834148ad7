package store

import "context"

// JournalStats holds aggregate statistics for a user's journal.
type JournalStats struct {
	// TotalRecords is the number of stored records.
	TotalRecords int64
	// DayCount is the number of daily buckets, including buckets whose
	// counts have dropped back to zero.
	DayCount int64
	// StateTotals sums bucket counts per state across all days.
	StateTotals Counts
}

// AveragePerDay returns the mean number of records per counted day.
func (s *JournalStats) AveragePerDay() float64 {
	if s.DayCount == 0 {
		return 0
	}
	return float64(s.TotalRecords) / float64(s.DayCount)
}

// Clone returns a copy of the stats.
func (s *JournalStats) Clone() *JournalStats {
	c := *s
	return &c
}

// StatsStore provides aggregate journal statistics.
type StatsStore interface {
	// JournalStats returns aggregate statistics for a user's journal.
	// Implementations should compute this in a single query where possible.
	JournalStats(ctx context.Context, ownerID string) (*JournalStats, error)
}

// StatsFromBuckets derives JournalStats from a bucket set.
// Since bucket counts always sum to the record count, no record scan is needed.
func StatsFromBuckets(buckets []DailyBucket) *JournalStats {
	stats := &JournalStats{DayCount: int64(len(buckets))}
	for _, b := range buckets {
		for i, n := range b.Counts {
			stats.StateTotals[i] += n
		}
		stats.TotalRecords += b.Counts.Total()
	}
	return stats
}
