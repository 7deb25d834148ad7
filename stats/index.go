package stats

import "github.com/rbaliyan/moodlog/store"

// Index returns the weighted OCD index of a bucket:
// the sum over states of weight(state) * count(state).
func Index(b store.DailyBucket) float64 {
	var index float64
	for _, s := range store.States {
		index += s.Weight() * float64(b.Counts.Get(s))
	}
	return index
}

// Indices returns Index for each bucket in order.
func Indices(buckets []store.DailyBucket) []float64 {
	out := make([]float64, len(buckets))
	for i, b := range buckets {
		out[i] = Index(b)
	}
	return out
}

// StateSeries returns the count of one state for each bucket in order.
func StateSeries(buckets []store.DailyBucket, state store.MentalState) []int64 {
	out := make([]int64, len(buckets))
	for i, b := range buckets {
		out[i] = b.Counts.Get(state)
	}
	return out
}
