package moodlog

import (
	"context"
	"sync"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/moodlog/store"
)

// StatsReader provides aggregate journal statistics.
type StatsReader interface {
	// Stats returns totals for the user's journal. With an event transport
	// configured, results are cached and updated from events between
	// periodic refreshes; otherwise every call reads the store.
	Stats(ctx context.Context) (*store.JournalStats, error)
}

type statsEntry struct {
	mu        sync.Mutex
	stats     *store.JournalStats
	updatedAt time.Time
}

// getOrRefreshStats returns cached stats within the TTL, else reads the store.
func (s *service) getOrRefreshStats(ctx context.Context, ownerID string) (*store.JournalStats, error) {
	if !s.opts.hasEventTransport() {
		return s.store.JournalStats(ctx, ownerID)
	}

	now := time.Now()
	if val, ok := s.statsCache.Load(ownerID); ok {
		entry := val.(*statsEntry)
		entry.mu.Lock()
		if entry.stats != nil && now.Sub(entry.updatedAt) < s.opts.statsRefreshInterval {
			clone := entry.stats.Clone()
			entry.mu.Unlock()
			return clone, nil
		}
		entry.mu.Unlock()
	}

	stats, err := s.store.JournalStats(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.statsCache.Store(ownerID, &statsEntry{stats: stats, updatedAt: now})
	return stats.Clone(), nil
}

// updateCachedStats applies fn to a cached entry. No-op if none is cached.
func (s *service) updateCachedStats(ownerID string, fn func(stats *store.JournalStats)) {
	val, ok := s.statsCache.Load(ownerID)
	if !ok {
		return
	}
	entry := val.(*statsEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.stats != nil {
		fn(entry.stats)
	}
}

// invalidateStats drops the cached entry so the next read hits the store.
func (s *service) invalidateStats(ownerID string) {
	s.statsCache.Delete(ownerID)
}

// onRecordAdded counts the new record, and its day when the record
// opened a bucket.
func (s *service) onRecordAdded(_ context.Context, _ event.Event[RecordAddedEvent], data RecordAddedEvent) error {
	slot := data.State.Slot()
	if slot < 0 {
		return nil
	}
	s.updateCachedStats(data.UserID, func(stats *store.JournalStats) {
		stats.TotalRecords++
		stats.StateTotals[slot]++
		if data.NewDay {
			stats.DayCount++
		}
	})
	return nil
}

// onRecordDeleted uncounts the record. Zeroed buckets remain, so DayCount
// is unchanged.
func (s *service) onRecordDeleted(_ context.Context, _ event.Event[RecordDeletedEvent], data RecordDeletedEvent) error {
	slot := data.State.Slot()
	if slot < 0 {
		return nil
	}
	s.updateCachedStats(data.UserID, func(stats *store.JournalStats) {
		if stats.TotalRecords > 0 {
			stats.TotalRecords--
		}
		if stats.StateTotals[slot] > 0 {
			stats.StateTotals[slot]--
		}
	})
	return nil
}

func (s *service) onRecordsCleared(_ context.Context, _ event.Event[RecordsClearedEvent], data RecordsClearedEvent) error {
	s.invalidateStats(data.UserID)
	return nil
}

// Stats returns aggregate statistics for this user's journal.
func (j *userJournal) Stats(ctx context.Context) (*store.JournalStats, error) {
	if err := j.checkAccess(); err != nil {
		return nil, err
	}
	return j.service.getOrRefreshStats(ctx, j.userID)
}
