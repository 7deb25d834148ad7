package memory

import (
	"context"
	"time"

	"github.com/rbaliyan/moodlog/store"
)

// GetRecord retrieves a record by ID.
func (s *Store) GetRecord(ctx context.Context, ownerID, id string) (store.Record, error) {
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
	return rec, nil
}

// ListRecords returns the owner's records in listing order.
func (s *Store) ListRecords(ctx context.Context, ownerID string, opts store.ListOptions) ([]store.Record, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	j, ok := s.lookup(ownerID)
	if !ok {
		return []store.Record{}, nil
	}

	j.mu.Lock()
	out := make([]store.Record, 0, len(j.records))
	for _, r := range j.records {
		if opts.Matches(r) {
			out = append(out, r)
		}
	}
	j.mu.Unlock()

	store.SortRecords(out)
	return store.Page(out, opts.Offset, opts.Limit), nil
}

// CountRecords returns the number of records stored for the owner.
func (s *Store) CountRecords(ctx context.Context, ownerID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	j, ok := s.lookup(ownerID)
	if !ok {
		return 0, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return int64(len(j.records)), nil
}

// Buckets returns every bucket for the owner in ascending day order.
func (s *Store) Buckets(ctx context.Context, ownerID string) ([]store.DailyBucket, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	j, ok := s.lookup(ownerID)
	if !ok {
		return []store.DailyBucket{}, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.agg.Buckets(), nil
}

// BucketsBetween returns buckets with from <= Day < to in ascending order.
func (s *Store) BucketsBetween(ctx context.Context, ownerID string, from, to time.Time) ([]store.DailyBucket, error) {
	all, err := s.Buckets(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, b := range all {
		if b.Day.Before(from) || !b.Day.Before(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
