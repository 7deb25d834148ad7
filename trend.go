package moodlog

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/moodlog/stats"
	"github.com/rbaliyan/moodlog/store"
	"go.opentelemetry.io/otel/attribute"
)

// Buckets returns every stored bucket, zeroed ones included.
func (j *userJournal) Buckets(ctx context.Context) ([]store.DailyBucket, error) {
	if err := j.checkAccess(); err != nil {
		return nil, err
	}
	buckets, err := j.service.store.Buckets(ctx, j.userID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return buckets, nil
}

// Window returns the configured window ending today.
func (j *userJournal) Window(ctx context.Context) ([]store.DailyBucket, error) {
	return j.WindowAt(ctx, j.service.opts.now(), j.service.opts.windowSize)
}

// WindowAt returns size consecutive days ending on anchor's day, oldest
// first. Only buckets inside the window are read from the store.
func (j *userJournal) WindowAt(ctx context.Context, anchor time.Time, size int) ([]store.DailyBucket, error) {
	if err := j.checkAccess(); err != nil {
		return nil, err
	}
	if size <= 0 || size > MaxWindowSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, size)
	}

	s := j.service
	ctx, endSpan := s.otel.startSpan(ctx, "moodlog.window",
		attribute.String("user_id", j.userID),
		attribute.Int("size", size),
	)
	start := time.Now()
	window, err := j.window(ctx, anchor, size)
	endSpan(err)
	s.otel.recordRead(ctx, time.Since(start), "window", err)
	return window, err
}

func (j *userJournal) window(ctx context.Context, anchor time.Time, size int) ([]store.DailyBucket, error) {
	loc := j.service.opts.location
	last := store.DayOf(anchor, loc)
	from := last.AddDate(0, 0, -(size - 1))
	to := last.AddDate(0, 0, 1)

	buckets, err := j.service.store.BucketsBetween(ctx, j.userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return stats.Window(buckets, size, anchor, loc), nil
}

// Trend fits the OCD index across the configured window ending today.
func (j *userJournal) Trend(ctx context.Context) (*stats.TrendResult, error) {
	if err := j.checkAccess(); err != nil {
		return nil, err
	}

	s := j.service
	ctx, endSpan := s.otel.startSpan(ctx, "moodlog.trend",
		attribute.String("user_id", j.userID),
	)
	start := time.Now()
	var trendErr error
	defer func() {
		endSpan(trendErr)
		s.otel.recordRead(ctx, time.Since(start), "trend", trendErr)
	}()

	window, err := j.window(ctx, s.opts.now(), s.opts.windowSize)
	if err != nil {
		trendErr = err
		return nil, err
	}
	result := stats.TrendOf(window)
	if result.OK {
		s.otel.recordTrend(ctx, result.Line.Slope, result.Trend.String())
	}
	return &result, nil
}
