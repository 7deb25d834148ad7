package store

import (
	"sort"
	"time"
)

// Record is a single logged mood event.
// Records are immutable once created; the only mutation is deletion.
type Record struct {
	ID        string
	OwnerID   string
	Timestamp time.Time
	State     MentalState
	Note      string
	// Day is the local-midnight key the record was counted into.
	Day time.Time
}

// HasNote reports whether the record carries a non-empty note.
func (r Record) HasNote() bool {
	return r.Note != ""
}

// RecordData contains the data needed to create a record.
// Day must already be truncated with DayOf.
type RecordData struct {
	OwnerID   string
	Timestamp time.Time
	State     MentalState
	Note      string
	Day       time.Time
}

// DailyBucket is the per-day aggregate of record counts.
type DailyBucket struct {
	Day    time.Time
	Counts Counts
}

// Total returns the number of records counted into the bucket.
func (b DailyBucket) Total() int64 {
	return b.Counts.Total()
}

// DayOf truncates t to midnight of its calendar day in loc.
// A nil loc means time.Local.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayOf(a, loc).Equal(DayOf(b, loc))
}

// DayKey identifies a calendar day independent of location offsets.
type DayKey struct {
	Year  int
	Month time.Month
	Day   int
}

// KeyOf returns the calendar day of t in loc.
func KeyOf(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return DayKey{Year: y, Month: m, Day: d}
}

// String formats the key as YYYY-MM-DD.
func (k DayKey) String() string {
	return time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}

// Less orders records newest first, then most severe first.
// Remaining ties are broken by ID so listings are deterministic.
func Less(a, b Record) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	if a.State.Severity() != b.State.Severity() {
		return a.State.Severity() > b.State.Severity()
	}
	return a.ID > b.ID
}

// SortRecords sorts records in listing order (see Less).
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return Less(records[i], records[j])
	})
}

// SortBuckets sorts buckets by ascending day.
func SortBuckets(buckets []DailyBucket) {
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Day.Before(buckets[j].Day)
	})
}
