package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rbaliyan/moodlog/store"
)

// AddRecord stores a new record and increments its day bucket.
func (s *Store) AddRecord(ctx context.Context, data store.RecordData) (store.Record, error) {
	if err := s.checkConnected(); err != nil {
		return store.Record{}, err
	}
	if data.OwnerID == "" {
		return store.Record{}, store.ErrInvalidID
	}
	if !data.State.Valid() {
		return store.Record{}, store.ErrInvalidState
	}
	if data.Day.IsZero() {
		data.Day = store.DayOf(data.Timestamp, nil)
	}

	rec := store.Record{
		ID:        uuid.New().String(),
		OwnerID:   data.OwnerID,
		Timestamp: data.Timestamp,
		State:     data.State,
		Note:      data.Note,
		Day:       data.Day,
	}

	j := s.journal(data.OwnerID)
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.agg.Apply(rec.Day, rec.State, 1); err != nil {
		return store.Record{}, withOwner(err, rec.OwnerID)
	}
	j.records[rec.ID] = rec
	return rec, nil
}

// DeleteRecord removes a record and decrements its day bucket.
// A bucket inconsistency leaves both the record and the bucket in place.
func (s *Store) DeleteRecord(ctx context.Context, ownerID, id string) (store.Record, error) {
	if err := s.checkConnected(); err != nil {
		return store.Record{}, err
	}
	if id == "" {
		return store.Record{}, store.ErrInvalidID
	}

	j, ok := s.lookup(ownerID)
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	rec, ok := j.records[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	if err := j.agg.Apply(rec.Day, rec.State, -1); err != nil {
		return store.Record{}, withOwner(err, ownerID)
	}
	delete(j.records, id)
	return rec, nil
}

// RemoveAll deletes every record and bucket for the owner.
func (s *Store) RemoveAll(ctx context.Context, ownerID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	j, ok := s.lookup(ownerID)
	if !ok {
		return 0, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	n := int64(len(j.records))
	clear(j.records)
	j.agg.RemoveAll()
	return n, nil
}

// ImportJournal replaces the owner's records and buckets.
func (s *Store) ImportJournal(ctx context.Context, ownerID string, records []store.Record, buckets []store.DailyBucket) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if ownerID == "" {
		return store.ErrInvalidID
	}

	next := make(map[string]store.Record, len(records))
	for _, r := range records {
		if r.ID == "" {
			return store.ErrInvalidID
		}
		if _, dup := next[r.ID]; dup {
			return fmt.Errorf("%w: %s", store.ErrDuplicateEntry, r.ID)
		}
		r.OwnerID = ownerID
		next[r.ID] = r
	}

	j := s.journal(ownerID)
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = next
	j.agg.Load(buckets)
	return nil
}

// withOwner fills in the owner of a consistency error raised by the aggregator.
func withOwner(err error, ownerID string) error {
	var ce *store.ConsistencyError
	if errors.As(err, &ce) {
		ce.OwnerID = ownerID
	}
	return err
}
