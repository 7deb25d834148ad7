package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rbaliyan/moodlog/store"
)

// AddRecord inserts a record and increments its day bucket in one transaction.
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
		Timestamp: data.Timestamp.Truncate(time.Microsecond), // TIMESTAMPTZ resolution
		State:     data.State,
		Note:      data.Note,
		Day:       data.Day,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return store.Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.opts.table, recordColumns)
	if _, err := tx.ExecContext(ctx, insert,
		rec.ID, rec.OwnerID, rec.Timestamp, int16(rec.State), rec.Note, rec.Day,
	); err != nil {
		return store.Record{}, fmt.Errorf("insert record: %w", err)
	}

	col := countColumns[slot]
	upsert := fmt.Sprintf(`
		INSERT INTO %[1]s (owner_id, day, %[2]s)
		VALUES ($1, $2, 1)
		ON CONFLICT (owner_id, day) DO UPDATE SET %[2]s = %[1]s.%[2]s + 1
	`, s.opts.bucketTable, col)
	if _, err := tx.ExecContext(ctx, upsert, rec.OwnerID, rec.Day); err != nil {
		return store.Record{}, fmt.Errorf("increment bucket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return store.Record{}, fmt.Errorf("%w: %v", store.ErrTransactionFailed, err)
	}
	return rec, nil
}

// DeleteRecord removes a record and decrements its day bucket in one transaction.
// The decrement only matches a positive count; anything else rolls back.
func (s *Store) DeleteRecord(ctx context.Context, ownerID, id string) (store.Record, error) {
	if err := s.checkConnected(); err != nil {
		return store.Record{}, err
	}
	if err := checkRecordID(id); err != nil {
		return store.Record{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return store.Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del := fmt.Sprintf(`
		DELETE FROM %s WHERE id = $1 AND owner_id = $2
		RETURNING %s
	`, s.opts.table, recordColumns)
	var row recordRow
	if err := tx.GetContext(ctx, &row, del, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("delete record: %w", err)
	}
	rec := row.record()

	if err := s.decrement(ctx, tx, rec); err != nil {
		return store.Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return store.Record{}, fmt.Errorf("%w: %v", store.ErrTransactionFailed, err)
	}
	return rec, nil
}

func (s *Store) decrement(ctx context.Context, tx *sqlx.Tx, rec store.Record) error {
	slot := rec.State.Slot()
	if slot < 0 {
		return store.ErrInvalidState
	}
	col := countColumns[slot]

	update := fmt.Sprintf(`
		UPDATE %[1]s SET %[2]s = %[2]s - 1
		WHERE owner_id = $1 AND day = $2 AND %[2]s > 0
	`, s.opts.bucketTable, col)
	res, err := tx.ExecContext(ctx, update, rec.OwnerID, rec.Day)
	if err != nil {
		return fmt.Errorf("decrement bucket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement bucket: %w", err)
	}
	if n == 1 {
		return nil
	}

	ce := &store.ConsistencyError{OwnerID: rec.OwnerID, Day: rec.Day, State: rec.State, Op: "negative count"}
	var exists bool
	check := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE owner_id = $1 AND day = $2)`, s.opts.bucketTable)
	if err := tx.GetContext(ctx, &exists, check, rec.OwnerID, rec.Day); err == nil && !exists {
		ce.Op = "missing bucket"
	}
	s.logger.Error("bucket inconsistency", "owner_id", rec.OwnerID, "record_id", rec.ID, "op", ce.Op)
	return ce
}

// RemoveAll deletes every record and bucket for the owner in one transaction.
func (s *Store) RemoveAll(ctx context.Context, ownerID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	n, err := clearOwner(ctx, tx, s.opts, ownerID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrTransactionFailed, err)
	}
	return n, nil
}

func clearOwner(ctx context.Context, tx *sqlx.Tx, o *options, ownerID string) (int64, error) {
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1`, o.table), ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1`, o.bucketTable), ownerID); err != nil {
		return 0, fmt.Errorf("delete buckets: %w", err)
	}
	return n, nil
}

// ImportJournal replaces the owner's journal in one transaction,
// streaming rows with COPY.
func (s *Store) ImportJournal(ctx context.Context, ownerID string, records []store.Record, buckets []store.DailyBucket) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if ownerID == "" {
		return store.ErrInvalidID
	}
	for _, r := range records {
		if _, err := uuid.Parse(r.ID); err != nil {
			return fmt.Errorf("%w: %q", store.ErrInvalidID, r.ID)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := clearOwner(ctx, tx, s.opts, ownerID); err != nil {
		return err
	}

	recStmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.opts.table,
		"id", "owner_id", "recorded_at", "state", "note", "day"))
	if err != nil {
		return fmt.Errorf("prepare record copy: %w", err)
	}
	for _, r := range records {
		if _, err := recStmt.ExecContext(ctx, r.ID, ownerID, r.Timestamp, int16(r.State), r.Note, r.Day); err != nil {
			_ = recStmt.Close()
			return fmt.Errorf("copy record: %w", err)
		}
	}
	if _, err := recStmt.ExecContext(ctx); err != nil {
		_ = recStmt.Close()
		return fmt.Errorf("flush records: %w", mapPQError(err))
	}
	if err := recStmt.Close(); err != nil {
		return fmt.Errorf("close record copy: %w", err)
	}

	bucketStmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.opts.bucketTable,
		"owner_id", "day", "distressed", "anxious", "neutral", "happy"))
	if err != nil {
		return fmt.Errorf("prepare bucket copy: %w", err)
	}
	for _, b := range buckets {
		c := b.Counts
		if _, err := bucketStmt.ExecContext(ctx, ownerID, b.Day, c[0], c[1], c[2], c[3]); err != nil {
			_ = bucketStmt.Close()
			return fmt.Errorf("copy bucket: %w", err)
		}
	}
	if _, err := bucketStmt.ExecContext(ctx); err != nil {
		_ = bucketStmt.Close()
		return fmt.Errorf("flush buckets: %w", mapPQError(err))
	}
	if err := bucketStmt.Close(); err != nil {
		return fmt.Errorf("close bucket copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrTransactionFailed, err)
	}
	s.logger.Info("imported journal", "owner_id", ownerID, "records", len(records), "buckets", len(buckets))
	return nil
}

// mapPQError translates constraint violations into store errors.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "unique_violation":
		return fmt.Errorf("%w: %s", store.ErrDuplicateEntry, pqErr.Message)
	case "check_violation":
		return fmt.Errorf("%w: %s", store.ErrConsistency, pqErr.Message)
	}
	return err
}
