// Package moodlog records mood entries of people living with OCD and
// derives daily statistics from them.
//
// Every entry carries one of four mental states (Distressed, Anxious,
// Neutral, Happy) and an optional note. Entries are counted into one
// bucket per local calendar day. Buckets feed the OCD index, a weighted
// distress score per day, and a least-squares trend over a window of
// consecutive days.
//
// # Basic Usage
//
//	// Create in-memory store for testing
//	store := memory.New()
//
//	svc, err := moodlog.NewService(
//	    moodlog.WithStore(store),
//	    moodlog.WithLocation(time.Local),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	j := svc.Client("user123")
//	rec, err := j.Add(ctx, time.Now(), moodlog.Anxious, "checked the stove twice")
//
//	trend, err := j.Trend(ctx)
//	if trend.OK {
//	    fmt.Println(trend.Trend, trend.Line.Slope)
//	}
//
// # Journal Operations
//
//   - Add/Delete/RemoveAll: mutate records and their day buckets
//   - Get/List/WithNotes/Sections: read records, newest and most severe first
//   - Buckets/Window/WindowAt/Trend: daily buckets and the index trend
//   - Stats: record and day totals
//   - Profile/SaveProfile: username, avatar and symptoms
//   - NoteSentiment: scores notes with a configured sentiment scorer
//   - Export/Import/Backup/Restore: whole-journal snapshots
//
// # Storage Backends
//
// The store package provides implementations for:
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - PostgreSQL (store/postgres) - accepts *sqlx.DB or *sql.DB
//   - In-memory (store/memory) - for testing
//
// Snapshots are archived through snapshot.FileStore implementations in
// snapshot/file, snapshot/s3 and snapshot/gcs.
//
// # Events
//
// Mutations publish typed events through github.com/rbaliyan/event/v3.
// Pass WithRedisClient or WithEventTransport to deliver them:
//
//	svc, err := moodlog.NewService(
//	    moodlog.WithStore(store),
//	    moodlog.WithRedisClient(redisClient),
//	)
//
//	events := svc.Events()
//	events.RecordAdded.Subscribe(ctx, handler)
//
// Available events:
//   - RecordAdded - when a record is stored
//   - RecordDeleted - when a record is deleted
//   - RecordsCleared - when a journal is cleared or replaced by an import
//
// With a transport configured, Stats is served from a cache kept current
// by these events.
package moodlog
