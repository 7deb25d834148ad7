package moodlog

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/moodlog/snapshot"
	"github.com/rbaliyan/moodlog/store"
)

// Sentinel errors for the moodlog package.
// Where a store-level error exists, the moodlog error wraps it, so
// errors.Is(err, moodlog.ErrNotFound) also matches store.ErrNotFound.
var (
	// ErrNotFound is returned when a record cannot be found.
	ErrNotFound = fmt.Errorf("moodlog: %w", store.ErrNotFound)

	// ErrConsistency is returned when records and daily buckets diverge.
	// Use errors.As with *store.ConsistencyError for details.
	ErrConsistency = fmt.Errorf("moodlog: %w", store.ErrConsistency)

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("moodlog: store is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = fmt.Errorf("moodlog: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = fmt.Errorf("moodlog: %w", store.ErrAlreadyConnected)

	// ErrInvalidID is returned for an empty record id.
	ErrInvalidID = fmt.Errorf("moodlog: %w", store.ErrInvalidID)

	// ErrInvalidUserID is returned when a user ID is empty or contains
	// unsafe characters.
	ErrInvalidUserID = errors.New("moodlog: invalid user id")

	// ErrInvalidState is returned for an unknown mental state.
	ErrInvalidState = fmt.Errorf("moodlog: %w", store.ErrInvalidState)

	// ErrInvalidRecord is the parent of all record validation failures.
	ErrInvalidRecord = errors.New("moodlog: invalid record")

	// ErrInvalidNote is returned when a note is not valid UTF-8 or holds
	// control characters.
	ErrInvalidNote = errors.New("moodlog: invalid note")

	// ErrNoteTooLong is returned when a note exceeds the configured length.
	ErrNoteTooLong = errors.New("moodlog: note too long")

	// ErrInvalidTimestamp is returned for a zero or future timestamp.
	ErrInvalidTimestamp = errors.New("moodlog: invalid timestamp")

	// ErrInvalidWindow is returned for a window size outside 1..MaxWindowSize.
	ErrInvalidWindow = errors.New("moodlog: invalid window size")

	// ErrSentimentNotConfigured is returned by NoteSentiment without WithSentimentScorer.
	ErrSentimentNotConfigured = errors.New("moodlog: sentiment scorer not configured")

	// ErrArchiveNotConfigured is returned by Backup and Restore without WithSnapshotArchive.
	ErrArchiveNotConfigured = errors.New("moodlog: snapshot archive not configured")
)

// IsRetryableError reports whether an operation failing with err may
// succeed if repeated. Validation failures, missing records and
// consistency violations are permanent; connection and transaction
// failures, and unknown errors, are treated as transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	permanent := []error{
		store.ErrNotFound,
		store.ErrInvalidID,
		store.ErrInvalidState,
		store.ErrInvalidDelta,
		store.ErrDuplicateEntry,
		store.ErrConsistency,
		ErrInvalidUserID,
		ErrInvalidRecord,
		ErrInvalidWindow,
		ErrStoreRequired,
		ErrSentimentNotConfigured,
		ErrArchiveNotConfigured,
		snapshot.ErrInvalidSnapshot,
		snapshot.ErrUnsupportedVersion,
		snapshot.ErrDecrypt,
		snapshot.ErrInvalidKey,
	}
	for _, p := range permanent {
		if errors.Is(err, p) {
			return false
		}
	}
	var pe *PluginError
	if errors.As(err, &pe) {
		return false
	}
	return true
}

// ValidationError describes a rejected field.
type ValidationError struct {
	Field   string // "state", "note", "timestamp"
	Message string
	Err     error // ErrInvalidState, ErrInvalidNote, ErrNoteTooLong or ErrInvalidTimestamp
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("moodlog: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap exposes both the specific sentinel and ErrInvalidRecord.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidRecord}
	}
	return []error{e.Err, ErrInvalidRecord}
}

// EventPublishError is returned when an event failed to publish after the
// mutation succeeded. The record was added or deleted regardless.
type EventPublishError struct {
	Event    string // e.g. "RecordAdded"
	RecordID string // empty for RecordsCleared
	Err      error
}

func (e *EventPublishError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("moodlog: event %s publish failed: %v", e.Event, e.Err)
	}
	return fmt.Sprintf("moodlog: event %s publish failed for record %s: %v", e.Event, e.RecordID, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError extracts an *EventPublishError from err.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}

// IsConsistencyError extracts the *store.ConsistencyError from err.
func IsConsistencyError(err error) (*store.ConsistencyError, bool) {
	var ce *store.ConsistencyError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
