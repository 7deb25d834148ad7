// Package store provides interfaces and types for journal storage.
// Implementations are in store/memory, store/postgres and store/mongo.
//
// # Records and Buckets
//
// A store holds two aggregates per owner: the records themselves and one
// DailyBucket per calendar day that has ever had a record. The two are kept
// consistent only by the store's own mutations:
//
//   - AddRecord inserts the record and increments its day bucket,
//     creating the bucket if it does not exist.
//   - DeleteRecord removes the record and decrements its day bucket.
//     Buckets are never removed when their counts reach zero.
//   - RemoveAll clears both records and buckets.
//
// Each mutation must be atomic: either the record and the bucket change
// together or neither changes. Implementations use the database's own
// atomicity (a single mutex in memory, a transaction in PostgreSQL, a session
// transaction in MongoDB) rather than external locks.
//
// A decrement that finds no bucket, or that would take a count below zero,
// means records and buckets have diverged. Stores report it as a
// *ConsistencyError and make no change.
//
// Example:
//
//	rec, err := s.AddRecord(ctx, store.RecordData{
//	    OwnerID:   "user1",
//	    Timestamp: now,
//	    State:     store.Anxious,
//	    Day:       store.DayOf(now, time.Local),
//	})
//	...
//	if _, err := s.DeleteRecord(ctx, "user1", rec.ID); store.IsNotFound(err) {
//	    // already gone
//	}
package store

import (
	"context"
	"time"
)

// Store is the storage interface for the journal.
//
// All operations must be safe for concurrent use.
type Store interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	RecordStore
	BucketStore
	StatsStore
	Importer
}

// RecordStoreReader provides read operations for records.
type RecordStoreReader interface {
	// GetRecord retrieves a record by ID.
	// Returns ErrNotFound if the record doesn't exist for the owner.
	GetRecord(ctx context.Context, ownerID, id string) (Record, error)

	// ListRecords returns the owner's records in listing order
	// (newest first, then most severe first).
	ListRecords(ctx context.Context, ownerID string, opts ListOptions) ([]Record, error)

	// CountRecords returns the number of records stored for the owner.
	CountRecords(ctx context.Context, ownerID string) (int64, error)
}

// RecordStoreMutator provides mutations for records.
// Every mutation updates the day buckets in the same atomic unit.
type RecordStoreMutator interface {
	// AddRecord stores a new record with a freshly generated ID and
	// increments the bucket for data.Day.
	AddRecord(ctx context.Context, data RecordData) (Record, error)

	// DeleteRecord removes a record and decrements its bucket.
	// Returns the deleted record, or ErrNotFound if it doesn't exist.
	DeleteRecord(ctx context.Context, ownerID, id string) (Record, error)

	// RemoveAll deletes every record and bucket for the owner.
	// Returns the number of records deleted.
	RemoveAll(ctx context.Context, ownerID string) (int64, error)
}

// RecordStore combines record reads and mutations.
type RecordStore interface {
	RecordStoreReader
	RecordStoreMutator
}

// BucketStore provides read access to daily buckets.
// Buckets are mutated only through RecordStoreMutator.
type BucketStore interface {
	// Buckets returns every bucket for the owner in ascending day order.
	Buckets(ctx context.Context, ownerID string) ([]DailyBucket, error)

	// BucketsBetween returns buckets with from <= Day < to in ascending order.
	BucketsBetween(ctx context.Context, ownerID string, from, to time.Time) ([]DailyBucket, error)
}

// Importer replaces an owner's journal wholesale.
// Used to restore snapshots, where record IDs and zeroed buckets must survive.
type Importer interface {
	// ImportJournal atomically replaces all records and buckets for ownerID.
	// Callers are responsible for validating that the buckets match the records.
	ImportJournal(ctx context.Context, ownerID string, records []Record, buckets []DailyBucket) error
}
