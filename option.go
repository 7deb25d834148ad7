package moodlog

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/rbaliyan/moodlog/profile"
	"github.com/rbaliyan/moodlog/sentiment"
	"github.com/rbaliyan/moodlog/snapshot"
	"github.com/rbaliyan/moodlog/stats"
	"github.com/rbaliyan/moodlog/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	DefaultWindowSize      = stats.DefaultWindowSize
	MaxWindowSize          = 366
	DefaultShutdownTimeout = 30 * time.Second
	MinShutdownTimeout     = 1 * time.Second

	// Record limits
	DefaultMaxNoteLength  = 4096            // runes
	DefaultMaxFutureSkew  = 5 * time.Minute // tolerated clock drift for timestamps
	DefaultSectionHorizon = 7 * 24 * time.Hour

	// Concurrency limits
	DefaultMaxConcurrentWrites = 10

	// Stats cache
	DefaultStatsRefreshInterval = 30 * time.Second
)

// options holds service configuration.
type options struct {
	store    store.Store
	logger   *slog.Logger
	plugins  []Plugin
	location *time.Location
	clock    func() time.Time

	windowSize    int
	maxNoteLength int
	maxFutureSkew time.Duration

	// Collaborators
	profiles  profile.Store
	scorer    sentiment.Scorer
	sentiment []sentiment.Option
	archive   *snapshot.Archive

	maxConcurrentWrites int
	shutdownTimeout     time.Duration

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	statsRefreshInterval time.Duration

	// Event handling
	eventErrorsFatal      bool
	eventTransport        transport.Transport
	redisClient           redis.UniversalClient
	onEventPublishFailure EventPublishFailureFunc
}

// EventPublishFailureFunc is called when an event fails to publish.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure calls the failure callback, recovering from panics.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:               slog.Default(),
		location:             time.Local,
		clock:                time.Now,
		windowSize:           DefaultWindowSize,
		maxNoteLength:        DefaultMaxNoteLength,
		maxFutureSkew:        DefaultMaxFutureSkew,
		maxConcurrentWrites:  DefaultMaxConcurrentWrites,
		shutdownTimeout:      DefaultShutdownTimeout,
		statsRefreshInterval: DefaultStatsRefreshInterval,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.profiles == nil {
		o.profiles = profile.NewMemoryStore()
	}
	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}
	return o
}

// now returns the clock's time in the configured location.
func (o *options) now() time.Time {
	return o.clock().In(o.location)
}

// Option configures a Service.
type Option func(*options)

// --- Core Options ---

// WithStore sets the storage backend (required).
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPlugin registers a plugin. May be given multiple times.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithPlugins registers multiple plugins at once.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		for _, p := range plugins {
			if p != nil {
				o.plugins = append(o.plugins, p)
			}
		}
	}
}

// --- Calendar Options ---

// WithLocation sets the time zone that defines calendar days.
// Default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithWindowSize sets the number of days in the trend window.
// Default is 14. Values above MaxWindowSize are ignored.
func WithWindowSize(days int) Option {
	return func(o *options) {
		if days > 0 && days <= MaxWindowSize {
			o.windowSize = days
		}
	}
}

// --- Record Limit Options ---

// WithMaxNoteLength sets the maximum note length in runes. Default is 4096.
func WithMaxNoteLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxNoteLength = n
		}
	}
}

// WithMaxFutureSkew sets how far ahead of the clock a timestamp may be.
// Default is 5 minutes.
func WithMaxFutureSkew(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.maxFutureSkew = d
		}
	}
}

// --- Collaborator Options ---

// WithProfileStore sets where profiles are kept. Default is in memory.
func WithProfileStore(s profile.Store) Option {
	return func(o *options) {
		if s != nil {
			o.profiles = s
		}
	}
}

// WithSentimentScorer enables Journal.NoteSentiment with the given scorer.
// opts tune the analyzer (concurrency, retries).
func WithSentimentScorer(s sentiment.Scorer, opts ...sentiment.Option) Option {
	return func(o *options) {
		if s != nil {
			o.scorer = s
			o.sentiment = opts
		}
	}
}

// WithSnapshotArchive enables Journal.Backup and Journal.Restore.
func WithSnapshotArchive(a *snapshot.Archive) Option {
	return func(o *options) {
		if a != nil {
			o.archive = a
		}
	}
}

// --- Concurrency Options ---

// WithMaxConcurrentWrites caps in-flight mutations across all users.
// Close waits for them to drain. Default is 10.
func WithMaxConcurrentWrites(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentWrites = n
		}
	}
}

// WithShutdownTimeout bounds how long Close waits for in-flight mutations.
// Default is 30 seconds, minimum 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing. Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics. Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables or disables both tracing and metrics.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name used for telemetry and event bus
// naming. Default is "moodlog".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Stats Options ---

// WithStatsRefreshInterval sets the TTL for cached journal stats.
// Event-driven updates keep the cache close to current between refreshes.
// Default is 30 seconds.
func WithStatsRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.statsRefreshInterval = d
		}
	}
}

// --- Event Options ---

// WithEventErrorsFatal makes a failed event publish fail the operation
// with an *EventPublishError. The mutation itself is not rolled back.
// Default is false: failures are reported to the failure handler.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the event transport. Without a transport or
// Redis client, events are dropped and the stats cache is disabled.
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient publishes events to Redis Streams.
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets a callback for non-fatal publish
// failures. By default they are logged.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}

// hasEventTransport reports whether events actually leave the process.
func (o *options) hasEventTransport() bool {
	return o.eventTransport != nil || o.redisClient != nil
}
