package moodlog

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rbaliyan/moodlog/stats"
	"github.com/rbaliyan/moodlog/store"
	"github.com/rbaliyan/moodlog/store/memory"
)

// testNow is the fixed service clock used across tests.
var testNow = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func setupTestService(t *testing.T, opts ...Option) Service {
	t.Helper()

	base := []Option{
		WithStore(memory.New()),
		WithLocation(time.UTC),
		WithClock(func() time.Time { return testNow }),
	}
	svc, err := NewService(append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	ctx := context.Background()
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func mustAdd(t *testing.T, j Journal, ts time.Time, state MentalState, note string) Record {
	t.Helper()
	rec, err := j.Add(context.Background(), ts, state, note)
	if err != nil {
		t.Fatalf("add %s: %v", state, err)
	}
	return rec
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewService(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		_, err := NewService()
		if !errors.Is(err, ErrStoreRequired) {
			t.Errorf("expected ErrStoreRequired, got %v", err)
		}
	})

	t.Run("creates service with store", func(t *testing.T) {
		svc, err := NewService(WithStore(memory.New()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc == nil {
			t.Fatal("expected non-nil service")
		}
	})
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(WithStore(memory.New()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if svc.IsConnected() {
		t.Error("new service should not be connected")
	}
	if _, err := svc.Client("alice").List(ctx, ListOptions{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected before connect, got %v", err)
	}

	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := svc.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}
	if svc.Events() == nil {
		t.Error("expected events after connect")
	}

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := svc.Close(ctx); err != nil {
		t.Errorf("second close should not error, got %v", err)
	}
	if _, err := svc.Client("alice").Add(ctx, time.Now(), Happy, ""); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after close, got %v", err)
	}
}

func TestInvalidUserID(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	for _, id := range []string{"", "a:b", "a b", "a/b", "a*", "tab\t"} {
		j := svc.Client(id)
		if j.UserID() != id {
			t.Errorf("UserID() = %q, want %q", j.UserID(), id)
		}
		if _, err := j.Add(ctx, testNow, Happy, ""); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("Add for %q: expected ErrInvalidUserID, got %v", id, err)
		}
		if _, err := j.Buckets(ctx); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("Buckets for %q: expected ErrInvalidUserID, got %v", id, err)
		}
	}
}

func TestAddAndIndex(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	j := svc.Client("alice")

	morning := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	distressed := mustAdd(t, j, morning, Distressed, "")
	mustAdd(t, j, morning.Add(time.Hour), Anxious, "")

	if distressed.ID == "" {
		t.Fatal("expected generated id")
	}
	if !distressed.Day.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected day %v", distressed.Day)
	}

	buckets, err := j.Buckets(ctx)
	if err != nil {
		t.Fatalf("buckets: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	if buckets[0].Counts != (store.Counts{1, 1, 0, 0}) {
		t.Errorf("unexpected counts %v", buckets[0].Counts)
	}
	if got := stats.Index(buckets[0]); !approx(got, 0.7) {
		t.Errorf("expected index 0.7, got %v", got)
	}

	t.Run("delete uncounts", func(t *testing.T) {
		ok, err := j.Delete(ctx, distressed.ID)
		if err != nil || !ok {
			t.Fatalf("delete: %v %v", ok, err)
		}
		buckets, _ := j.Buckets(ctx)
		if buckets[0].Counts != (store.Counts{0, 1, 0, 0}) {
			t.Errorf("expected {0,1,0,0}, got %v", buckets[0].Counts)
		}
		if got := stats.Index(buckets[0]); !approx(got, 0.3) {
			t.Errorf("expected index 0.3, got %v", got)
		}
		if _, err := j.Get(ctx, distressed.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("delete unknown reports false", func(t *testing.T) {
		ok, err := j.Delete(ctx, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected false for unknown record")
		}
		if _, err := j.Delete(ctx, ""); !errors.Is(err, ErrInvalidID) {
			t.Errorf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("users are isolated", func(t *testing.T) {
		bob := svc.Client("bob")
		rec := mustAdd(t, bob, morning, Happy, "")
		if _, err := j.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("alice should not see bob's record, got %v", err)
		}
		if ok, _ := j.Delete(ctx, rec.ID); ok {
			t.Error("alice should not delete bob's record")
		}
	})
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t, WithMaxNoteLength(10))
	j := svc.Client("alice")

	tests := []struct {
		name  string
		ts    time.Time
		state MentalState
		note  string
		want  error
	}{
		{"unknown state", testNow, MentalState(9), "", ErrInvalidState},
		{"zero timestamp", time.Time{}, Happy, "", ErrInvalidTimestamp},
		{"future timestamp", testNow.AddDate(0, 0, 1), Happy, "", ErrInvalidTimestamp},
		{"long note", testNow, Happy, "0123456789a", ErrNoteTooLong},
		{"control char", testNow, Happy, "a\x00b", ErrInvalidNote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := j.Add(ctx, tt.ts, tt.state, tt.note)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}

	if n, _ := svc.Client("alice").Stats(ctx); n.TotalRecords != 0 {
		t.Errorf("rejected records should not be stored, got %d", n.TotalRecords)
	}

	// Within the skew tolerance.
	if _, err := j.Add(ctx, testNow.Add(time.Minute), Happy, "fine"); err != nil {
		t.Errorf("small clock skew should be accepted: %v", err)
	}
	// Later the same local day.
	if _, err := j.Add(ctx, testNow.Add(8*time.Hour+59*time.Minute), Happy, ""); err != nil {
		t.Errorf("later today should be accepted: %v", err)
	}
}

func TestListOrder(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	j := svc.Client("alice")

	ts := time.Date(2024, 5, 9, 20, 0, 0, 0, time.UTC)
	happy := mustAdd(t, j, ts, Happy, "walked the dog")
	distressed := mustAdd(t, j, ts, Distressed, "")
	newest := mustAdd(t, j, ts.Add(time.Hour), Neutral, "")
	oldest := mustAdd(t, j, ts.AddDate(0, 0, -2), Anxious, "counted tiles")

	list, err := j.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{newest.ID, distressed.ID, happy.ID, oldest.ID}
	if len(list) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: got %s (%s), want %s", i, list[i].ID, list[i].State, id)
		}
	}

	noted, err := j.WithNotes(ctx)
	if err != nil {
		t.Fatalf("with notes: %v", err)
	}
	if len(noted) != 2 || noted[0].ID != happy.ID || noted[1].ID != oldest.ID {
		t.Errorf("unexpected noted records %+v", noted)
	}

	if _, err := j.List(ctx, ListOptions{Limit: -1}); err == nil {
		t.Error("expected error for negative limit")
	}
}

func TestSections(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	j := svc.Client("alice")

	today := mustAdd(t, j, testNow.Add(-time.Hour), Happy, "")
	yesterday := mustAdd(t, j, testNow.AddDate(0, 0, -1), Anxious, "")
	weekAgo := mustAdd(t, j, testNow.AddDate(0, 0, -7), Neutral, "")
	older := mustAdd(t, j, testNow.AddDate(0, 0, -8), Distressed, "")

	sec, err := j.Sections(ctx)
	if err != nil {
		t.Fatalf("sections: %v", err)
	}
	if sec.Len() != 4 {
		t.Fatalf("expected 4 records, got %d", sec.Len())
	}
	if len(sec.Today) != 1 || sec.Today[0].ID != today.ID {
		t.Errorf("unexpected today %+v", sec.Today)
	}
	if len(sec.PastWeek) != 2 || sec.PastWeek[0].ID != yesterday.ID || sec.PastWeek[1].ID != weekAgo.ID {
		t.Errorf("unexpected past week %+v", sec.PastWeek)
	}
	if len(sec.Earlier) != 1 || sec.Earlier[0].ID != older.ID {
		t.Errorf("unexpected earlier %+v", sec.Earlier)
	}
}

func TestRemoveAll(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	j := svc.Client("alice")

	mustAdd(t, j, testNow, Happy, "")
	mustAdd(t, j, testNow.AddDate(0, 0, -1), Anxious, "")

	n, err := j.RemoveAll(ctx)
	if err != nil {
		t.Fatalf("remove all: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	buckets, _ := j.Buckets(ctx)
	if len(buckets) != 0 {
		t.Errorf("expected no buckets, got %d", len(buckets))
	}
	st, _ := j.Stats(ctx)
	if st.TotalRecords != 0 || st.DayCount != 0 {
		t.Errorf("expected empty stats, got %+v", st)
	}
}

func TestRemoveAllZeroesWindow(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	j := svc.Client("alice")

	mustAdd(t, j, testNow, Distressed, "")
	mustAdd(t, j, testNow.AddDate(0, 0, -3), Anxious, "")
	mustAdd(t, j, testNow.AddDate(0, 0, -20), Happy, "")
	if _, err := j.RemoveAll(ctx); err != nil {
		t.Fatalf("remove all: %v", err)
	}

	window, err := j.Window(ctx)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(window) != DefaultWindowSize {
		t.Fatalf("expected %d days, got %d", DefaultWindowSize, len(window))
	}
	for _, b := range window {
		if !b.Counts.IsZero() {
			t.Errorf("expected zero counts on %v, got %v", b.Day, b.Counts)
		}
	}

	older, err := j.WindowAt(ctx, testNow.AddDate(0, 0, -15), 10)
	if err != nil {
		t.Fatalf("window at: %v", err)
	}
	if len(older) != 10 {
		t.Fatalf("expected 10 days, got %d", len(older))
	}
	for _, b := range older {
		if !b.Counts.IsZero() {
			t.Errorf("expected zero counts on %v, got %v", b.Day, b.Counts)
		}
	}
}

func TestDeleteThenAddRestoresCounts(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	j := svc.Client("alice")

	ts := testNow.Add(-2 * time.Hour)
	mustAdd(t, j, ts, Neutral, "")
	rec := mustAdd(t, j, ts, Anxious, "checking locks")

	before, _ := j.Buckets(ctx)
	statsBefore, _ := j.Stats(ctx)

	if ok, err := j.Delete(ctx, rec.ID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	again := mustAdd(t, j, ts, Anxious, "checking locks")
	if again.ID == rec.ID {
		t.Errorf("deleted id %s was reused", rec.ID)
	}

	after, _ := j.Buckets(ctx)
	if len(after) != len(before) {
		t.Fatalf("expected %d buckets, got %d", len(before), len(after))
	}
	for i := range before {
		if !after[i].Day.Equal(before[i].Day) || after[i].Counts != before[i].Counts {
			t.Errorf("bucket %d: expected %+v, got %+v", i, before[i], after[i])
		}
	}
	statsAfter, _ := j.Stats(ctx)
	if *statsAfter != *statsBefore {
		t.Errorf("expected stats %+v, got %+v", statsBefore, statsAfter)
	}

	if _, err := j.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old id should stay gone, got %v", err)
	}
}

func TestDayUsesServiceLocation(t *testing.T) {
	ctx := context.Background()
	tokyo := time.FixedZone("JST", 9*60*60)
	svc, err := NewService(WithStore(memory.New()), WithLocation(tokyo),
		WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer svc.Close(ctx)

	// 20:00 UTC on May 9 is 05:00 on May 10 in Tokyo.
	rec := mustAdd(t, svc.Client("alice"), time.Date(2024, 5, 9, 20, 0, 0, 0, time.UTC), Happy, "")
	want := time.Date(2024, 5, 10, 0, 0, 0, 0, tokyo)
	if !rec.Day.Equal(want) {
		t.Errorf("expected day %v, got %v", want, rec.Day)
	}
}

type recordingHook struct {
	name    string
	reject  error
	added   []string
	deleted []string
	inits   int
	closes  int
}

func (h *recordingHook) Name() string                { return h.name }
func (h *recordingHook) Init(context.Context) error  { h.inits++; return nil }
func (h *recordingHook) Close(context.Context) error { h.closes++; return nil }

func (h *recordingHook) BeforeAdd(_ context.Context, _ string, _ store.RecordData) error {
	return h.reject
}

func (h *recordingHook) AfterAdd(_ context.Context, _ string, rec store.Record) error {
	h.added = append(h.added, rec.ID)
	return nil
}

func (h *recordingHook) AfterDelete(_ context.Context, _ string, rec store.Record) error {
	h.deleted = append(h.deleted, rec.ID)
	return nil
}

func TestRecordHooks(t *testing.T) {
	ctx := context.Background()

	t.Run("hooks observe mutations", func(t *testing.T) {
		hook := &recordingHook{name: "audit"}
		svc := setupTestService(t, WithPlugin(hook))
		j := svc.Client("alice")

		rec := mustAdd(t, j, testNow, Happy, "")
		if _, err := j.Delete(ctx, rec.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if hook.inits != 1 {
			t.Errorf("expected Init once, got %d", hook.inits)
		}
		if len(hook.added) != 1 || hook.added[0] != rec.ID {
			t.Errorf("AfterAdd not called: %v", hook.added)
		}
		if len(hook.deleted) != 1 || hook.deleted[0] != rec.ID {
			t.Errorf("AfterDelete not called: %v", hook.deleted)
		}
		_ = svc.Close(ctx)
		if hook.closes != 1 {
			t.Errorf("expected Close once, got %d", hook.closes)
		}
	})

	t.Run("before add rejects", func(t *testing.T) {
		hook := &recordingHook{name: "gate", reject: errors.New("quota exceeded")}
		svc := setupTestService(t, WithPlugin(hook))
		j := svc.Client("alice")

		_, err := j.Add(ctx, testNow, Happy, "")
		var pe *PluginError
		if !errors.As(err, &pe) || pe.Plugin != "gate" {
			t.Fatalf("expected PluginError from gate, got %v", err)
		}
		buckets, _ := j.Buckets(ctx)
		if len(buckets) != 0 {
			t.Errorf("rejected record should leave no bucket, got %d", len(buckets))
		}
	})
}
