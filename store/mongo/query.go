package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbaliyan/moodlog/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// GetRecord retrieves a record by ID.
func (s *Store) GetRecord(ctx context.Context, ownerID, id string) (store.Record, error) {
	if err := s.checkConnected(); err != nil {
		return store.Record{}, err
	}
	if id == "" {
		return store.Record{}, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	filter := bson.D{
		bson.E{Key: "_id", Value: id},
		bson.E{Key: "owner_id", Value: ownerID},
	}
	var doc recordDoc
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("get record: %w", err)
	}
	return doc.record(), nil
}

// buildListFilter renders the query filter for opts.
func buildListFilter(ownerID string, opts store.ListOptions) bson.D {
	filter := bson.D{bson.E{Key: "owner_id", Value: ownerID}}
	if opts.WithNote {
		filter = append(filter, bson.E{Key: "note", Value: bson.D{bson.E{Key: "$ne", Value: ""}}})
	}
	day := bson.D{}
	if !opts.Since.IsZero() {
		day = append(day, bson.E{Key: "$gte", Value: opts.Since})
	}
	if !opts.Until.IsZero() {
		day = append(day, bson.E{Key: "$lt", Value: opts.Until})
	}
	if len(day) > 0 {
		filter = append(filter, bson.E{Key: "day", Value: day})
	}
	return filter
}

// listSort is the listing order: newest first, then most severe
// (lowest state value) first, then ID descending.
var listSort = bson.D{
	bson.E{Key: "recorded_at", Value: -1},
	bson.E{Key: "state", Value: 1},
	bson.E{Key: "_id", Value: -1},
}

// ListRecords returns the owner's records in listing order.
func (s *Store) ListRecords(ctx context.Context, ownerID string, opts store.ListOptions) ([]store.Record, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	findOpts := mongoopts.Find().SetSort(listSort)
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.collection.Find(ctx, buildListFilter(ownerID, opts), findOpts)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []recordDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	out := make([]store.Record, len(docs))
	for i, d := range docs {
		out[i] = d.record()
	}
	return out, nil
}

// CountRecords returns the number of records stored for the owner.
func (s *Store) CountRecords(ctx context.Context, ownerID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	n, err := s.collection.CountDocuments(ctx, bson.D{bson.E{Key: "owner_id", Value: ownerID}})
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Buckets returns every bucket for the owner in ascending day order.
func (s *Store) Buckets(ctx context.Context, ownerID string) ([]store.DailyBucket, error) {
	return s.findBuckets(ctx, bson.D{bson.E{Key: "owner_id", Value: ownerID}})
}

// BucketsBetween returns buckets with from <= day < to in ascending order.
func (s *Store) BucketsBetween(ctx context.Context, ownerID string, from, to time.Time) ([]store.DailyBucket, error) {
	return s.findBuckets(ctx, bson.D{
		bson.E{Key: "owner_id", Value: ownerID},
		bson.E{Key: "day", Value: bson.D{
			bson.E{Key: "$gte", Value: from},
			bson.E{Key: "$lt", Value: to},
		}},
	})
}

func (s *Store) findBuckets(ctx context.Context, filter bson.D) ([]store.DailyBucket, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	opts := mongoopts.Find().SetSort(bson.D{bson.E{Key: "day", Value: 1}})
	cursor, err := s.buckets.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bucketDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode buckets: %w", err)
	}

	out := make([]store.DailyBucket, len(docs))
	for i, d := range docs {
		out[i] = d.bucket()
	}
	return out, nil
}
