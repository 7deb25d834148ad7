package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/moodlog/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// AddRecord inserts a record and increments its day bucket.
func (s *Store) AddRecord(ctx context.Context, data store.RecordData) (store.Record, error) {
	if err := s.checkConnected(); err != nil {
		return store.Record{}, err
	}
	if data.OwnerID == "" {
		return store.Record{}, store.ErrInvalidID
	}
	slot := data.State.Slot()
	if slot < 0 {
		return store.Record{}, store.ErrInvalidState
	}
	if data.Day.IsZero() {
		data.Day = store.DayOf(data.Timestamp, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	rec := store.Record{
		ID:        uuid.New().String(),
		OwnerID:   data.OwnerID,
		Timestamp: data.Timestamp.Truncate(time.Millisecond), // BSON datetime resolution
		State:     data.State,
		Note:      data.Note,
		Day:       data.Day,
	}

	err := s.runTx(ctx, func(ctx context.Context) error {
		if _, err := s.collection.InsertOne(ctx, newRecordDoc(rec)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return store.ErrDuplicateEntry
			}
			return fmt.Errorf("insert record: %w", err)
		}
		if err := s.increment(ctx, rec); err != nil {
			if !s.opts.transactions {
				s.undoInsert(ctx, rec)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return store.Record{}, err
	}
	return rec, nil
}

func (s *Store) increment(ctx context.Context, rec store.Record) error {
	filter := bson.D{
		bson.E{Key: "owner_id", Value: rec.OwnerID},
		bson.E{Key: "day", Value: rec.Day},
	}
	update := bson.D{bson.E{Key: "$inc", Value: bson.D{
		bson.E{Key: countFields[rec.State.Slot()], Value: int64(1)},
	}}}
	opts := mongoopts.UpdateOne().SetUpsert(true)
	if _, err := s.buckets.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("increment bucket: %w", err)
	}
	return nil
}

func (s *Store) undoInsert(ctx context.Context, rec store.Record) {
	if _, err := s.collection.DeleteOne(ctx, bson.D{bson.E{Key: "_id", Value: rec.ID}}); err != nil {
		s.logger.Error("failed to undo record insert", "record_id", rec.ID, "error", err)
	}
}

// DeleteRecord removes a record and decrements its day bucket.
// The decrement only matches a positive count; anything else aborts.
func (s *Store) DeleteRecord(ctx context.Context, ownerID, id string) (store.Record, error) {
	if err := s.checkConnected(); err != nil {
		return store.Record{}, err
	}
	if id == "" {
		return store.Record{}, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rec store.Record
	err := s.runTx(ctx, func(ctx context.Context) error {
		filter := bson.D{
			bson.E{Key: "_id", Value: id},
			bson.E{Key: "owner_id", Value: ownerID},
		}
		var doc recordDoc
		if err := s.collection.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return store.ErrNotFound
			}
			return fmt.Errorf("delete record: %w", err)
		}
		rec = doc.record()

		if err := s.decrement(ctx, rec); err != nil {
			if !s.opts.transactions {
				s.undoDelete(ctx, doc)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return store.Record{}, err
	}
	return rec, nil
}

func (s *Store) decrement(ctx context.Context, rec store.Record) error {
	slot := rec.State.Slot()
	if slot < 0 {
		return store.ErrInvalidState
	}
	field := countFields[slot]

	filter := bson.D{
		bson.E{Key: "owner_id", Value: rec.OwnerID},
		bson.E{Key: "day", Value: rec.Day},
		bson.E{Key: field, Value: bson.D{bson.E{Key: "$gt", Value: 0}}},
	}
	update := bson.D{bson.E{Key: "$inc", Value: bson.D{bson.E{Key: field, Value: int64(-1)}}}}
	res, err := s.buckets.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("decrement bucket: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	ce := &store.ConsistencyError{OwnerID: rec.OwnerID, Day: rec.Day, State: rec.State, Op: "negative count"}
	n, err := s.buckets.CountDocuments(ctx, bson.D{
		bson.E{Key: "owner_id", Value: rec.OwnerID},
		bson.E{Key: "day", Value: rec.Day},
	})
	if err == nil && n == 0 {
		ce.Op = "missing bucket"
	}
	s.logger.Error("bucket inconsistency", "owner_id", rec.OwnerID, "record_id", rec.ID, "op", ce.Op)
	return ce
}

func (s *Store) undoDelete(ctx context.Context, doc recordDoc) {
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		s.logger.Error("failed to undo record delete", "record_id", doc.ID, "error", err)
	}
}

// RemoveAll deletes every record and bucket for the owner.
func (s *Store) RemoveAll(ctx context.Context, ownerID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var n int64
	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.clearOwner(ctx, ownerID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) clearOwner(ctx context.Context, ownerID string) (int64, error) {
	filter := bson.D{bson.E{Key: "owner_id", Value: ownerID}}
	res, err := s.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	if _, err := s.buckets.DeleteMany(ctx, filter); err != nil {
		return 0, fmt.Errorf("delete buckets: %w", err)
	}
	return res.DeletedCount, nil
}

// ImportJournal replaces the owner's records and buckets.
func (s *Store) ImportJournal(ctx context.Context, ownerID string, records []store.Record, buckets []store.DailyBucket) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if ownerID == "" {
		return store.ErrInvalidID
	}

	recordDocs := make([]recordDoc, len(records))
	for i, r := range records {
		if r.ID == "" {
			return store.ErrInvalidID
		}
		r.OwnerID = ownerID
		recordDocs[i] = newRecordDoc(r)
	}
	bucketDocs := make([]bucketDoc, len(buckets))
	for i, b := range buckets {
		bucketDocs[i] = newBucketDoc(ownerID, b)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	err := s.runTx(ctx, func(ctx context.Context) error {
		if _, err := s.clearOwner(ctx, ownerID); err != nil {
			return err
		}
		if len(recordDocs) > 0 {
			if _, err := s.collection.InsertMany(ctx, recordDocs); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return fmt.Errorf("%w: %v", store.ErrDuplicateEntry, err)
				}
				return fmt.Errorf("insert records: %w", err)
			}
		}
		if len(bucketDocs) > 0 {
			if _, err := s.buckets.InsertMany(ctx, bucketDocs); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return fmt.Errorf("%w: %v", store.ErrDuplicateEntry, err)
				}
				return fmt.Errorf("insert buckets: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("imported journal", "owner_id", ownerID, "records", len(records), "buckets", len(buckets))
	return nil
}
