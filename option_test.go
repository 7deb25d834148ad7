package moodlog

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/rbaliyan/moodlog/profile"
	"github.com/rbaliyan/moodlog/sentiment"
)

func TestNewOptions(t *testing.T) {
	opts := newOptions()

	if opts.windowSize != DefaultWindowSize {
		t.Errorf("expected windowSize %v, got %v", DefaultWindowSize, opts.windowSize)
	}
	if opts.maxNoteLength != DefaultMaxNoteLength {
		t.Errorf("expected maxNoteLength %v, got %v", DefaultMaxNoteLength, opts.maxNoteLength)
	}
	if opts.maxFutureSkew != DefaultMaxFutureSkew {
		t.Errorf("expected maxFutureSkew %v, got %v", DefaultMaxFutureSkew, opts.maxFutureSkew)
	}
	if opts.maxConcurrentWrites != DefaultMaxConcurrentWrites {
		t.Errorf("expected maxConcurrentWrites %v, got %v", DefaultMaxConcurrentWrites, opts.maxConcurrentWrites)
	}
	if opts.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("expected shutdownTimeout %v, got %v", DefaultShutdownTimeout, opts.shutdownTimeout)
	}
	if opts.statsRefreshInterval != DefaultStatsRefreshInterval {
		t.Errorf("expected statsRefreshInterval %v, got %v", DefaultStatsRefreshInterval, opts.statsRefreshInterval)
	}
	if opts.location != time.Local {
		t.Errorf("expected time.Local, got %v", opts.location)
	}
	if opts.profiles == nil {
		t.Error("expected default profile store")
	}
	if opts.hasEventTransport() {
		t.Error("no transport should be configured by default")
	}
}

func TestWithLogger(t *testing.T) {
	custom := slog.Default()
	if opts := newOptions(WithLogger(custom)); opts.logger != custom {
		t.Error("expected custom logger to be set")
	}
	if opts := newOptions(WithLogger(nil)); opts.logger == nil {
		t.Error("nil logger should be ignored")
	}
}

func TestWithWindowSize(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{7, 7},
		{MaxWindowSize, MaxWindowSize},
		{0, DefaultWindowSize},
		{-3, DefaultWindowSize},
		{MaxWindowSize + 1, DefaultWindowSize},
	}
	for _, tt := range tests {
		if got := newOptions(WithWindowSize(tt.in)).windowSize; got != tt.want {
			t.Errorf("WithWindowSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWithLocationAndClock(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	fixed := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	opts := newOptions(WithLocation(tokyo), WithClock(func() time.Time { return fixed }))

	now := opts.now()
	if now.Location() != tokyo {
		t.Errorf("expected now in JST, got %v", now.Location())
	}
	if !now.Equal(fixed) {
		t.Errorf("expected %v, got %v", fixed, now)
	}

	opts = newOptions(WithLocation(nil), WithClock(nil))
	if opts.location != time.Local || opts.clock == nil {
		t.Error("nil location and clock should be ignored")
	}
}

func TestRecordLimitOptions(t *testing.T) {
	opts := newOptions(WithMaxNoteLength(100), WithMaxFutureSkew(0))
	limits := opts.limits()
	if limits.MaxNoteLength != 100 || limits.MaxFutureSkew != 0 {
		t.Errorf("unexpected limits %+v", limits)
	}

	opts = newOptions(WithMaxNoteLength(-1), WithMaxFutureSkew(-time.Second))
	if opts.limits() != DefaultLimits() {
		t.Errorf("invalid limits should be ignored, got %+v", opts.limits())
	}
}

func TestWithMaxConcurrentWrites(t *testing.T) {
	if got := newOptions(WithMaxConcurrentWrites(3)).maxConcurrentWrites; got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := newOptions(WithMaxConcurrentWrites(0)).maxConcurrentWrites; got != DefaultMaxConcurrentWrites {
		t.Errorf("expected default, got %d", got)
	}
}

func TestWithShutdownTimeout(t *testing.T) {
	if got := newOptions(WithShutdownTimeout(5 * time.Second)).shutdownTimeout; got != 5*time.Second {
		t.Errorf("expected 5s, got %v", got)
	}
	if got := newOptions(WithShutdownTimeout(time.Millisecond)).shutdownTimeout; got != DefaultShutdownTimeout {
		t.Errorf("values below the minimum should be ignored, got %v", got)
	}
}

func TestOTelOptions(t *testing.T) {
	opts := newOptions(WithTracing(true))
	if !opts.tracingEnabled || opts.metricsEnabled {
		t.Error("WithTracing should only enable tracing")
	}
	opts = newOptions(WithMetrics(true))
	if opts.tracingEnabled || !opts.metricsEnabled {
		t.Error("WithMetrics should only enable metrics")
	}
	opts = newOptions(WithOTel(true), WithMetrics(false))
	if !opts.tracingEnabled || opts.metricsEnabled {
		t.Error("later options should override WithOTel")
	}

	if got := newOptions(WithServiceName("journal")).serviceName; got != "journal" {
		t.Errorf("expected journal, got %q", got)
	}
	if got := newOptions(WithServiceName("")).serviceName; got != "" {
		t.Errorf("empty name should be ignored, got %q", got)
	}
}

func TestCollaboratorOptions(t *testing.T) {
	profiles := profile.NewMemoryStore()
	scorer := sentiment.ScorerFunc(func(context.Context, string) (float64, error) { return 0, nil })

	opts := newOptions(
		WithProfileStore(profiles),
		WithSentimentScorer(scorer, sentiment.WithConcurrency(2)),
		WithSnapshotArchive(nil),
	)
	if opts.profiles != profiles {
		t.Error("expected custom profile store")
	}
	if opts.scorer == nil || len(opts.sentiment) != 1 {
		t.Error("expected scorer with one analyzer option")
	}
	if opts.archive != nil {
		t.Error("nil archive should be ignored")
	}
}

func TestWithPlugins(t *testing.T) {
	a := &recordingHook{name: "a"}
	b := &recordingHook{name: "b"}
	opts := newOptions(WithPlugin(a), WithPlugin(nil), WithPlugins(b, nil))
	if len(opts.plugins) != 2 {
		t.Errorf("expected 2 plugins, got %d", len(opts.plugins))
	}
}

func TestWithStatsRefreshInterval(t *testing.T) {
	if got := newOptions(WithStatsRefreshInterval(time.Minute)).statsRefreshInterval; got != time.Minute {
		t.Errorf("expected 1m, got %v", got)
	}
	if got := newOptions(WithStatsRefreshInterval(0)).statsRefreshInterval; got != DefaultStatsRefreshInterval {
		t.Errorf("expected default, got %v", got)
	}
}
