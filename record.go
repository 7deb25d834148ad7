package moodlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbaliyan/moodlog/store"
	"go.opentelemetry.io/otel/attribute"
)

// Add validates and stores a record. The record's day is fixed here, in
// the service's location, and never recomputed.
func (j *userJournal) Add(ctx context.Context, timestamp time.Time, state store.MentalState, note string) (store.Record, error) {
	s := j.service
	ctx, endSpan := s.otel.startSpan(ctx, "moodlog.add",
		attribute.String("user_id", j.userID),
		attribute.String("state", state.String()),
	)
	start := time.Now()
	var rec store.Record
	var addErr error
	defer func() {
		endSpan(addErr)
		s.otel.recordAdd(ctx, time.Since(start), state.String(), addErr)
	}()

	addErr = j.write(ctx, func() error {
		if err := ValidateRecord(timestamp, state, note, s.opts.now(), s.opts.limits()); err != nil {
			return err
		}

		data := store.RecordData{
			OwnerID:   j.userID,
			Timestamp: timestamp,
			State:     state,
			Note:      note,
			Day:       store.DayOf(timestamp, s.opts.location),
		}
		if err := s.plugins.beforeAdd(ctx, j.userID, data); err != nil {
			return err
		}

		// Under the user lock, so no other add can open this day first.
		existing, err := s.store.BucketsBetween(ctx, j.userID, data.Day, data.Day.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("add record: %w", err)
		}
		rec, err = s.store.AddRecord(ctx, data)
		if err != nil {
			return fmt.Errorf("add record: %w", err)
		}
		s.logger.Debug("record added", "user_id", j.userID, "record_id", rec.ID,
			"state", rec.State, "day", rec.Day.Format(time.DateOnly))

		hookErr := s.plugins.afterAdd(ctx, j.userID, rec)
		pubErr := publish(ctx, s, s.events.RecordAdded, "RecordAdded", rec.ID, RecordAddedEvent{
			RecordID:  rec.ID,
			UserID:    j.userID,
			State:     rec.State,
			Day:       rec.Day,
			Timestamp: rec.Timestamp,
			HasNote:   rec.HasNote(),
			NewDay:    len(existing) == 0,
		})
		return errors.Join(hookErr, pubErr)
	})
	return rec, addErr
}

// Delete removes a record. It reports false, without error, when the
// record does not exist. A consistency violation is always returned.
func (j *userJournal) Delete(ctx context.Context, recordID string) (bool, error) {
	s := j.service
	ctx, endSpan := s.otel.startSpan(ctx, "moodlog.delete",
		attribute.String("user_id", j.userID),
		attribute.String("record_id", recordID),
	)
	start := time.Now()
	var deleted bool
	var delErr error
	defer func() {
		endSpan(delErr)
		s.otel.recordDelete(ctx, time.Since(start), false, delErr)
	}()

	delErr = j.write(ctx, func() error {
		if recordID == "" {
			return ErrInvalidID
		}
		rec, err := s.store.DeleteRecord(ctx, j.userID, recordID)
		if store.IsNotFound(err) {
			return nil
		}
		if err != nil {
			if ce, ok := IsConsistencyError(err); ok {
				s.logger.Error("record and bucket diverged", "user_id", j.userID,
					"record_id", recordID, "day", ce.Day.Format(time.DateOnly), "op", ce.Op)
			}
			return fmt.Errorf("delete record: %w", err)
		}
		deleted = true
		s.logger.Debug("record deleted", "user_id", j.userID, "record_id", rec.ID)

		hookErr := s.plugins.afterDelete(ctx, j.userID, rec)
		pubErr := publish(ctx, s, s.events.RecordDeleted, "RecordDeleted", rec.ID, RecordDeletedEvent{
			RecordID:  rec.ID,
			UserID:    j.userID,
			State:     rec.State,
			Day:       rec.Day,
			DeletedAt: time.Now().UTC(),
		})
		return errors.Join(hookErr, pubErr)
	})
	return deleted, delErr
}

// RemoveAll deletes every record and bucket of the user.
func (j *userJournal) RemoveAll(ctx context.Context) (int64, error) {
	s := j.service
	ctx, endSpan := s.otel.startSpan(ctx, "moodlog.remove_all",
		attribute.String("user_id", j.userID),
	)
	start := time.Now()
	var n int64
	var rmErr error
	defer func() {
		endSpan(rmErr)
		s.otel.recordDelete(ctx, time.Since(start), true, rmErr)
	}()

	rmErr = j.write(ctx, func() error {
		var err error
		n, err = s.store.RemoveAll(ctx, j.userID)
		if err != nil {
			return fmt.Errorf("remove all: %w", err)
		}
		s.invalidateStats(j.userID)
		s.logger.Info("journal cleared", "user_id", j.userID, "records", n)

		return publish(ctx, s, s.events.RecordsCleared, "RecordsCleared", "", RecordsClearedEvent{
			UserID:    j.userID,
			Count:     n,
			ClearedAt: time.Now().UTC(),
		})
	})
	return n, rmErr
}

// Get returns a record by id.
func (j *userJournal) Get(ctx context.Context, recordID string) (store.Record, error) {
	if err := j.checkAccess(); err != nil {
		return store.Record{}, err
	}
	if recordID == "" {
		return store.Record{}, ErrInvalidID
	}
	rec, err := j.service.store.GetRecord(ctx, j.userID, recordID)
	if store.IsNotFound(err) {
		return store.Record{}, ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// List returns records in listing order.
func (j *userJournal) List(ctx context.Context, opts store.ListOptions) ([]store.Record, error) {
	if err := j.checkAccess(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := j.service
	ctx, endSpan := s.otel.startSpan(ctx, "moodlog.list",
		attribute.String("user_id", j.userID),
		attribute.Bool("with_note", opts.WithNote),
	)
	start := time.Now()
	records, err := s.store.ListRecords(ctx, j.userID, opts)
	if err != nil {
		err = fmt.Errorf("list records: %w", err)
	}
	endSpan(err)
	s.otel.recordRead(ctx, time.Since(start), "list", err)
	return records, err
}

// WithNotes lists records that carry a note.
func (j *userJournal) WithNotes(ctx context.Context) ([]store.Record, error) {
	return j.List(ctx, store.ListOptions{WithNote: true})
}
