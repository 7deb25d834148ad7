package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/moodlog/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestBuildListFilter(t *testing.T) {
	t.Run("owner only", func(t *testing.T) {
		f := buildListFilter("alice", store.ListOptions{})
		if len(f) != 1 || f[0].Key != "owner_id" || f[0].Value != "alice" {
			t.Errorf("unexpected filter %v", f)
		}
	})

	t.Run("note and range", func(t *testing.T) {
		since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		f := buildListFilter("alice", store.ListOptions{
			WithNote: true,
			Since:    since,
			Until:    since.AddDate(0, 0, 7),
		})
		if len(f) != 3 {
			t.Fatalf("expected 3 clauses, got %d: %v", len(f), f)
		}
		if f[1].Key != "note" || f[2].Key != "day" {
			t.Errorf("unexpected keys %v", f)
		}
		day, ok := f[2].Value.(bson.D)
		if !ok || len(day) != 2 || day[0].Key != "$gte" || day[1].Key != "$lt" {
			t.Errorf("unexpected day clause %v", f[2].Value)
		}
	})
}

func TestOptions(t *testing.T) {
	o := newOptions()
	if !o.transactions {
		t.Error("transactions should be enabled by default")
	}
	o = newOptions(WithDatabase("db"), WithCollection("r"), WithBucketCollection("b"), WithTransactions(false))
	if o.database != "db" || o.collection != "r" || o.bucketCollection != "b" || o.transactions {
		t.Errorf("options not applied: %+v", o)
	}
}

func TestNotConnected(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	if _, err := s.CountRecords(ctx, "alice"); !store.IsNotConnected(err) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := s.Connect(ctx); err == nil {
		t.Error("expected error connecting without client")
	}
}

// setupMongo connects to MOODLOG_TEST_MONGO_URI, skipping when unset.
// Transactions are disabled so a standalone server works.
func setupMongo(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MOODLOG_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("MOODLOG_TEST_MONGO_URI not set")
	}
	client, err := mongo.Connect(mongoopts.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	ctx := context.Background()
	dbName := "moodlog_test_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	s := New(client, WithDatabase(dbName), WithTransactions(false))
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("store connect: %v", err)
	}
	return s
}

func TestMongoJournal(t *testing.T) {
	s := setupMongo(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	day := store.DayOf(ts, time.UTC)

	first, err := s.AddRecord(ctx, store.RecordData{OwnerID: "alice", Timestamp: ts, State: store.Distressed, Note: "hands", Day: day})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	for range 2 {
		if _, err := s.AddRecord(ctx, store.RecordData{OwnerID: "alice", Timestamp: ts, State: store.Anxious, Day: day}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	list, err := s.ListRecords(ctx, "alice", store.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != first.ID {
		t.Errorf("distressed record should sort first among equal timestamps: %+v", list)
	}

	if _, err := s.DeleteRecord(ctx, "alice", first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	buckets, err := s.Buckets(ctx, "alice")
	if err != nil {
		t.Fatalf("buckets: %v", err)
	}
	if len(buckets) != 1 || buckets[0].Counts != (store.Counts{0, 2, 0, 0}) {
		t.Errorf("unexpected buckets %+v", buckets)
	}

	stats, err := s.JournalStats(ctx, "alice")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRecords != 2 || stats.DayCount != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
