// Package stats implements the journal's statistics engine: the daily
// aggregator, the weighted OCD index, the gap-filled recent window and the
// least-squares trend estimator.
//
// Everything here is in-memory and synchronous. Aggregator is not safe for
// concurrent use; owners serialize access to it (see store/memory).
package stats

import (
	"time"

	"github.com/rbaliyan/moodlog/store"
)

// Aggregator maintains one DailyBucket per calendar day, updated
// incrementally as records are added and deleted.
type Aggregator struct {
	loc     *time.Location
	buckets map[store.DayKey]*store.DailyBucket
}

// NewAggregator creates an empty aggregator.
// Days are truncated in loc; a nil loc keeps each day's own location,
// which is correct when callers already pass store.DayOf values.
func NewAggregator(loc *time.Location) *Aggregator {
	return &Aggregator{
		loc:     loc,
		buckets: make(map[store.DayKey]*store.DailyBucket),
	}
}

func (a *Aggregator) locFor(day time.Time) *time.Location {
	if a.loc != nil {
		return a.loc
	}
	return day.Location()
}

// Apply adds delta (+1 or -1) to the count of state on day.
//
// A +1 on a day with no bucket creates the bucket. A -1 on a day with no
// bucket, or one that would make a count negative, returns a
// *store.ConsistencyError and leaves the aggregate untouched.
func (a *Aggregator) Apply(day time.Time, state store.MentalState, delta int) error {
	slot := state.Slot()
	if slot < 0 {
		return store.ErrInvalidState
	}
	if delta != 1 && delta != -1 {
		return store.ErrInvalidDelta
	}

	loc := a.locFor(day)
	key := store.KeyOf(day, loc)
	b, ok := a.buckets[key]
	if !ok {
		if delta < 0 {
			return &store.ConsistencyError{Day: store.DayOf(day, loc), State: state, Op: "missing bucket"}
		}
		b = &store.DailyBucket{Day: store.DayOf(day, loc)}
		a.buckets[key] = b
	}

	if b.Counts[slot]+int64(delta) < 0 {
		return &store.ConsistencyError{Day: b.Day, State: state, Op: "negative count"}
	}
	b.Counts[slot] += int64(delta)
	return nil
}

// Bucket returns the bucket for day, if one exists.
func (a *Aggregator) Bucket(day time.Time) (store.DailyBucket, bool) {
	b, ok := a.buckets[store.KeyOf(day, a.locFor(day))]
	if !ok {
		return store.DailyBucket{}, false
	}
	return *b, true
}

// Buckets returns a copy of every bucket in ascending day order.
func (a *Aggregator) Buckets() []store.DailyBucket {
	out := make([]store.DailyBucket, 0, len(a.buckets))
	for _, b := range a.buckets {
		out = append(out, *b)
	}
	store.SortBuckets(out)
	return out
}

// Len returns the number of buckets, including zeroed ones.
func (a *Aggregator) Len() int {
	return len(a.buckets)
}

// RemoveAll clears every bucket.
func (a *Aggregator) RemoveAll() {
	clear(a.buckets)
}

// Load replaces the aggregate with the given buckets.
// Later buckets for the same day overwrite earlier ones.
func (a *Aggregator) Load(buckets []store.DailyBucket) {
	a.RemoveAll()
	for _, b := range buckets {
		loc := a.locFor(b.Day)
		a.buckets[store.KeyOf(b.Day, loc)] = &store.DailyBucket{
			Day:    store.DayOf(b.Day, loc),
			Counts: b.Counts,
		}
	}
}
