package store

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a record cannot be found.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidID is returned when an invalid ID is provided.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrDuplicateEntry is returned when a record ID already exists.
	ErrDuplicateEntry = errors.New("store: duplicate entry")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("store: already connected")

	// ErrInvalidState is returned for an unknown mental state.
	ErrInvalidState = errors.New("store: invalid mental state")

	// ErrInvalidDelta is returned when a bucket update is not +1 or -1.
	ErrInvalidDelta = errors.New("store: invalid bucket delta")

	// ErrConsistency is returned when records and daily buckets diverge,
	// e.g. a decrement of a day that was never counted.
	ErrConsistency = errors.New("store: consistency violation")

	// ErrTransactionFailed is returned when a database transaction fails.
	// No changes were made.
	ErrTransactionFailed = errors.New("store: transaction failed")
)

// ConsistencyError describes a bucket update that would corrupt the
// aggregate: a decrement with no bucket, or a count dropping below zero.
type ConsistencyError struct {
	OwnerID string
	Day     time.Time
	State   MentalState
	Op      string // "missing bucket" or "negative count"
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("store: consistency violation: %s for %s on %s (owner %q)",
		e.Op, e.State, e.Day.Format(time.DateOnly), e.OwnerID)
}

func (e *ConsistencyError) Unwrap() error {
	return ErrConsistency
}

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidID(err error) bool {
	return errors.Is(err, ErrInvalidID)
}

func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDuplicateEntry)
}

func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

func IsConsistency(err error) bool {
	return errors.Is(err, ErrConsistency)
}
