// Package snapshot exports a journal to a portable JSON document and
// restores it again. Snapshots carry both records and daily buckets,
// including zeroed buckets, so a restored journal reports the same
// statistics as the original.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rbaliyan/moodlog/store"
)

// Version is the current snapshot format version.
const Version = 1

// ContentType is the MIME type of an encoded snapshot.
const ContentType = "application/json"

// Sentinel errors.
var (
	ErrInvalidSnapshot    = errors.New("snapshot: invalid snapshot")
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")
)

// Snapshot is a complete copy of one owner's journal.
type Snapshot struct {
	Version    int         `json:"version"`
	OwnerID    string      `json:"ownerId"`
	ExportedAt time.Time   `json:"exportedAt"`
	Records    []RecordDoc `json:"records"`
	Buckets    []BucketDoc `json:"buckets"`
}

// RecordDoc is the serialized form of a record.
type RecordDoc struct {
	ID          string            `json:"id"`
	Date        time.Time         `json:"date"`
	MentalState store.MentalState `json:"mentalState"`
	Note        string            `json:"note,omitempty"`
	Day         time.Time         `json:"day"`
}

// BucketDoc is the serialized form of a daily bucket.
type BucketDoc struct {
	Date   time.Time    `json:"date"`
	Counts store.Counts `json:"counts"`
}

// Source is the read side a snapshot is exported from.
type Source interface {
	ListRecords(ctx context.Context, ownerID string, opts store.ListOptions) ([]store.Record, error)
	Buckets(ctx context.Context, ownerID string) ([]store.DailyBucket, error)
}

// Export reads every record and bucket of ownerID. Days are expressed as
// midnight in loc, since some stores hand them back as UTC instants.
func Export(ctx context.Context, src Source, ownerID string, loc *time.Location, now time.Time) (*Snapshot, error) {
	records, err := src.ListRecords(ctx, ownerID, store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("snapshot: list records: %w", err)
	}
	buckets, err := src.Buckets(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list buckets: %w", err)
	}

	snap := &Snapshot{
		Version:    Version,
		OwnerID:    ownerID,
		ExportedAt: now.UTC(),
		Records:    make([]RecordDoc, len(records)),
		Buckets:    make([]BucketDoc, len(buckets)),
	}
	for i, r := range records {
		snap.Records[i] = RecordDoc{
			ID: r.ID, Date: r.Timestamp, MentalState: r.State, Note: r.Note,
			Day: store.DayOf(r.Day, loc),
		}
	}
	for i, b := range buckets {
		snap.Buckets[i] = BucketDoc{Date: store.DayOf(b.Day, loc), Counts: b.Counts}
	}
	return snap, nil
}

// Validate checks the snapshot is self-consistent: ids are unique, states
// are valid, days fall on midnight, each record lies on its day and has
// a bucket for it, and every bucket's counts equal the tally of the
// records on that day.
func (s *Snapshot) Validate() error {
	if s.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	if s.OwnerID == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidSnapshot)
	}

	tally := make(map[int64]store.Counts, len(s.Buckets))
	for _, b := range s.Buckets {
		if !isMidnight(b.Date) {
			return fmt.Errorf("%w: bucket %s is not at midnight", ErrInvalidSnapshot, b.Date.Format(time.RFC3339))
		}
		key := b.Date.Unix()
		if _, dup := tally[key]; dup {
			return fmt.Errorf("%w: duplicate bucket for %s", ErrInvalidSnapshot, b.Date.Format(time.DateOnly))
		}
		tally[key] = store.Counts{}
	}

	seen := make(map[string]struct{}, len(s.Records))
	for _, r := range s.Records {
		if r.ID == "" {
			return fmt.Errorf("%w: record without id", ErrInvalidSnapshot)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate record %s", ErrInvalidSnapshot, r.ID)
		}
		seen[r.ID] = struct{}{}
		if !r.MentalState.Valid() {
			return fmt.Errorf("%w: record %s: %w", ErrInvalidSnapshot, r.ID, store.ErrInvalidState)
		}
		if !onDay(r.Date, r.Day) {
			return fmt.Errorf("%w: record %s dated %s is not on day %s", ErrInvalidSnapshot,
				r.ID, r.Date.Format(time.RFC3339), r.Day.Format(time.RFC3339))
		}
		c, ok := tally[r.Day.Unix()]
		if !ok {
			return fmt.Errorf("%w: record %s has no bucket", ErrInvalidSnapshot, r.ID)
		}
		c[r.MentalState.Slot()]++
		tally[r.Day.Unix()] = c
	}

	for _, b := range s.Buckets {
		if got := tally[b.Date.Unix()]; got != b.Counts {
			return fmt.Errorf("%w: bucket %s counts %v, records tally %v",
				ErrInvalidSnapshot, b.Date.Format(time.DateOnly), b.Counts, got)
		}
	}
	return nil
}

func isMidnight(day time.Time) bool {
	return day.Equal(store.DayOf(day, day.Location()))
}

// onDay reports whether t falls on the calendar day starting at day.
// Decoded days carry a fixed offset rather than a zone, so a day that
// spans a DST change may run to 25 hours.
func onDay(t, day time.Time) bool {
	if !isMidnight(day) {
		return false
	}
	if store.DayOf(t, day.Location()).Equal(day) {
		return true
	}
	return !t.Before(day) && t.Sub(day) < 25*time.Hour
}

// StoreRecords converts the records for an importer.
func (s *Snapshot) StoreRecords() []store.Record {
	out := make([]store.Record, len(s.Records))
	for i, r := range s.Records {
		out[i] = store.Record{
			ID:        r.ID,
			OwnerID:   s.OwnerID,
			Timestamp: r.Date,
			State:     r.MentalState,
			Note:      r.Note,
			Day:       r.Day,
		}
	}
	return out
}

// StoreBuckets converts the buckets for an importer.
func (s *Snapshot) StoreBuckets() []store.DailyBucket {
	out := make([]store.DailyBucket, len(s.Buckets))
	for i, b := range s.Buckets {
		out[i] = store.DailyBucket{Day: b.Date, Counts: b.Counts}
	}
	return out
}

// Import validates snap and writes it into ownerID's journal, replacing
// its contents. An empty ownerID restores into snap.OwnerID.
func Import(ctx context.Context, imp store.Importer, ownerID string, snap *Snapshot) error {
	if snap == nil {
		return ErrInvalidSnapshot
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	if ownerID == "" {
		ownerID = snap.OwnerID
	}
	if err := imp.ImportJournal(ctx, ownerID, snap.StoreRecords(), snap.StoreBuckets()); err != nil {
		return fmt.Errorf("snapshot: import: %w", err)
	}
	return nil
}

// Encode writes snap as indented JSON.
func Encode(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Decode reads a snapshot and validates it.
func Decode(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
