package stats

import (
	"time"

	"github.com/rbaliyan/moodlog/store"
)

// DefaultWindowSize is the number of days in the recent window.
const DefaultWindowSize = 14

// Window returns exactly size consecutive daily buckets ending on the day of
// anchor, in ascending order. Days without a bucket get a synthesized
// all-zero bucket; the input slice is never modified.
// A size of zero or less yields an empty window.
func Window(buckets []store.DailyBucket, size int, anchor time.Time, loc *time.Location) []store.DailyBucket {
	if size <= 0 {
		return []store.DailyBucket{}
	}
	if loc == nil {
		loc = time.Local
	}

	byDay := make(map[store.DayKey]store.DailyBucket, len(buckets))
	for _, b := range buckets {
		byDay[store.KeyOf(b.Day, loc)] = b
	}

	last := store.DayOf(anchor, loc)
	out := make([]store.DailyBucket, size)
	for i := range size {
		day := store.DayOf(last.AddDate(0, 0, i-size+1), loc)
		if b, ok := byDay[store.KeyOf(day, loc)]; ok {
			out[i] = store.DailyBucket{Day: day, Counts: b.Counts}
			continue
		}
		out[i] = store.DailyBucket{Day: day}
	}
	return out
}
