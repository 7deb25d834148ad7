package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/moodlog/store"
)

// checkRecordID rejects an empty id. Ids this store never issues
// cannot match a row, so they read as missing.
func checkRecordID(id string) error {
	if id == "" {
		return store.ErrInvalidID
	}
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrNotFound
	}
	return nil
}

// GetRecord retrieves a record by ID.
func (s *Store) GetRecord(ctx context.Context, ownerID, id string) (store.Record, error) {
	if err := s.checkConnected(); err != nil {
		return store.Record{}, err
	}
	if err := checkRecordID(id); err != nil {
		return store.Record{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND owner_id = $2`, recordColumns, s.opts.table)
	var row recordRow
	if err := s.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("get record: %w", err)
	}
	return row.record(), nil
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

	query, args := buildListQuery(s.opts.table, ownerID, opts)
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return toRecords(rows), nil
}

// buildListQuery renders the listing query for opts.
// State ascending puts the most severe state first (Distressed = 1).
func buildListQuery(table, ownerID string, opts store.ListOptions) (string, []any) {
	conds := []string{"owner_id = $1"}
	args := []any{ownerID}

	if opts.WithNote {
		conds = append(conds, "note <> ''")
	}
	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		conds = append(conds, fmt.Sprintf("day >= $%d", len(args)))
	}
	if !opts.Until.IsZero() {
		args = append(args, opts.Until)
		conds = append(conds, fmt.Sprintf("day < $%d", len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s ORDER BY recorded_at DESC, state ASC, id DESC",
		recordColumns, table, strings.Join(conds, " AND "))
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

// CountRecords returns the number of records stored for the owner.
func (s *Store) CountRecords(ctx context.Context, ownerID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE owner_id = $1`, s.opts.table)
	if err := s.db.GetContext(ctx, &n, query, ownerID); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Buckets returns every bucket for the owner in ascending day order.
func (s *Store) Buckets(ctx context.Context, ownerID string) ([]store.DailyBucket, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1 ORDER BY day ASC`, bucketColumns, s.opts.bucketTable)
	var rows []bucketRow
	if err := s.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return toBuckets(rows), nil
}

// BucketsBetween returns buckets with from <= day < to in ascending order.
func (s *Store) BucketsBetween(ctx context.Context, ownerID string, from, to time.Time) ([]store.DailyBucket, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND day >= $2 AND day < $3
		ORDER BY day ASC
	`, bucketColumns, s.opts.bucketTable)
	var rows []bucketRow
	if err := s.db.SelectContext(ctx, &rows, query, ownerID, from, to); err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return toBuckets(rows), nil
}
