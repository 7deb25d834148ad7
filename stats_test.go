package moodlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rbaliyan/event/v3/transport/channel"
	"github.com/rbaliyan/moodlog/store"
	"github.com/rbaliyan/moodlog/store/memory"
)

// setupStatsServiceWithEvents creates a service with channel transport and
// a long TTL, so cached stats only move through event handlers.
func setupStatsServiceWithEvents(t *testing.T) Service {
	t.Helper()
	return setupTestService(t,
		WithStatsRefreshInterval(1*time.Hour),
		WithEventTransport(channel.New()),
	)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	t.Run("empty journal returns zero stats", func(t *testing.T) {
		st, err := svc.Client("alice").Stats(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.TotalRecords != 0 || st.DayCount != 0 || !st.StateTotals.IsZero() {
			t.Errorf("expected zero stats, got %+v", st)
		}
		if st.AveragePerDay() != 0 {
			t.Errorf("expected zero average, got %v", st.AveragePerDay())
		}
	})

	t.Run("stats reflect records and days", func(t *testing.T) {
		j := svc.Client("bob")
		mustAdd(t, j, testNow, Happy, "")
		mustAdd(t, j, testNow, Anxious, "")
		rec := mustAdd(t, j, testNow.AddDate(0, 0, -1), Anxious, "")

		st, err := j.Stats(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.TotalRecords != 3 || st.DayCount != 2 {
			t.Errorf("expected 3 records over 2 days, got %+v", st)
		}
		if st.StateTotals.Get(Anxious) != 2 || st.StateTotals.Get(Happy) != 1 {
			t.Errorf("unexpected state totals %v", st.StateTotals)
		}

		if _, err := j.Delete(ctx, rec.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		st, _ = j.Stats(ctx)
		if st.TotalRecords != 2 || st.DayCount != 2 {
			t.Errorf("zeroed day should still count, got %+v", st)
		}
	})
}

func TestStatsCacheTTL(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t,
		WithStatsRefreshInterval(1*time.Millisecond),
		WithEventTransport(channel.New()),
	)
	j := svc.Client("alice")

	if _, err := j.Stats(ctx); err != nil {
		t.Fatalf("stats: %v", err)
	}

	// Write behind the service's back; only a refresh can see it.
	s := svc.(*service)
	if _, err := s.store.AddRecord(ctx, store.RecordData{
		OwnerID:   "alice",
		Timestamp: testNow,
		State:     store.Happy,
		Day:       store.DayOf(testNow, time.UTC),
	}); err != nil {
		t.Fatalf("add record: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	st, err := j.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRecords != 1 {
		t.Errorf("expected refreshed total=1, got %d", st.TotalRecords)
	}
}

func TestStatsEventUpdates(t *testing.T) {
	ctx := context.Background()
	svc := setupStatsServiceWithEvents(t)
	j := svc.Client("alice")

	// Seed the cache
	_, _ = j.Stats(ctx)

	var rec Record
	t.Run("add increments cached stats", func(t *testing.T) {
		rec = mustAdd(t, j, testNow, Distressed, "")

		// Channel transport delivers asynchronously via goroutines
		time.Sleep(50 * time.Millisecond)

		st, _ := j.Stats(ctx)
		if st.TotalRecords != 1 || st.StateTotals.Get(Distressed) != 1 {
			t.Errorf("expected one distressed record, got %+v", st)
		}
		if st.DayCount != 1 {
			t.Errorf("expected day count 1, got %d", st.DayCount)
		}
	})

	t.Run("delete decrements cached stats", func(t *testing.T) {
		if _, err := j.Delete(ctx, rec.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}

		time.Sleep(50 * time.Millisecond)

		st, _ := j.Stats(ctx)
		if st.TotalRecords != 0 || st.StateTotals.Get(Distressed) != 0 {
			t.Errorf("expected zero records, got %+v", st)
		}
	})

	t.Run("remove all invalidates", func(t *testing.T) {
		mustAdd(t, j, testNow, Happy, "")
		mustAdd(t, j, testNow.AddDate(0, 0, -2), Happy, "")
		if _, err := j.RemoveAll(ctx); err != nil {
			t.Fatalf("remove all: %v", err)
		}

		time.Sleep(50 * time.Millisecond)

		st, _ := j.Stats(ctx)
		if st.TotalRecords != 0 || st.DayCount != 0 {
			t.Errorf("expected empty stats after clear, got %+v", st)
		}
	})
}

func TestStatsEventNewDay(t *testing.T) {
	ctx := context.Background()
	svc := setupStatsServiceWithEvents(t)
	j := svc.Client("alice")

	mustAdd(t, j, testNow, Happy, "")
	// Seed the cache after the first day exists.
	if st, _ := j.Stats(ctx); st.DayCount != 1 {
		t.Fatalf("expected one day, got %+v", st)
	}

	mustAdd(t, j, testNow.AddDate(0, 0, -1), Anxious, "")
	time.Sleep(200 * time.Millisecond)

	st, err := j.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRecords != 2 || st.DayCount != 2 {
		t.Errorf("expected 2 records over 2 days, got %+v", st)
	}
	if st.AveragePerDay() != 1 {
		t.Errorf("expected average 1, got %v", st.AveragePerDay())
	}

	// Same day again: the day is not counted twice.
	mustAdd(t, j, testNow.AddDate(0, 0, -1), Neutral, "")
	time.Sleep(200 * time.Millisecond)
	st, _ = j.Stats(ctx)
	if st.TotalRecords != 3 || st.DayCount != 2 {
		t.Errorf("expected 3 records over 2 days, got %+v", st)
	}
}

func TestStatsConcurrency(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t,
		WithStatsRefreshInterval(1*time.Millisecond),
		WithEventTransport(channel.New()),
	)
	j := svc.Client("user1")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := j.Stats(ctx); err != nil {
					t.Errorf("Stats() error: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}

func TestStatsNotConnected(t *testing.T) {
	svc, _ := NewService(WithStore(memory.New()))
	_, err := svc.Client("user1").Stats(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestStatsClone(t *testing.T) {
	st := &store.JournalStats{TotalRecords: 10, DayCount: 2, StateTotals: store.Counts{1, 2, 3, 4}}
	clone := st.Clone()

	st.TotalRecords = 100
	st.StateTotals[0] = 99

	if clone.TotalRecords != 10 || clone.StateTotals[0] != 1 {
		t.Errorf("clone should be unaffected, got %+v", clone)
	}
	if clone.AveragePerDay() != 5 {
		t.Errorf("expected average 5, got %v", clone.AveragePerDay())
	}
}
