package moodlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"github.com/rbaliyan/moodlog/profile"
	"github.com/rbaliyan/moodlog/sentiment"
	"github.com/rbaliyan/moodlog/snapshot"
	"github.com/rbaliyan/moodlog/stats"
	"github.com/rbaliyan/moodlog/store"
	"golang.org/x/sync/semaphore"
)

// Type aliases for commonly used store types.
type (
	ListOptions = store.ListOptions
	MentalState = store.MentalState
	Record      = store.Record
)

// Re-exported mental states.
const (
	Distressed = store.Distressed
	Anxious    = store.Anxious
	Neutral    = store.Neutral
	Happy      = store.Happy
)

// Service manages storage connections and hands out per-user journals.
type Service interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
	// Connect connects the store, event bus and plugins.
	Connect(ctx context.Context) error
	// Close waits for in-flight mutations and closes all connections.
	Close(ctx context.Context) error
	// Client returns the journal of the given user. Invalid user ids yield
	// a journal whose operations fail with ErrInvalidUserID.
	Client(userID string) Journal
	// Events returns this service's events.
	Events() *ServiceEvents
}

// RecordWriter mutates a journal. Mutations of one user are serialized.
type RecordWriter interface {
	// Add validates and stores a record, counting it into its day bucket.
	Add(ctx context.Context, timestamp time.Time, state store.MentalState, note string) (store.Record, error)
	// Delete removes a record and uncounts it. An unknown id reports false.
	Delete(ctx context.Context, recordID string) (bool, error)
	// RemoveAll deletes every record and bucket, returning the record count.
	RemoveAll(ctx context.Context) (int64, error)
}

// RecordReader reads records in listing order: newest first, then most
// severe first.
type RecordReader interface {
	Get(ctx context.Context, recordID string) (store.Record, error)
	List(ctx context.Context, opts store.ListOptions) ([]store.Record, error)
	// WithNotes lists only records that carry a note.
	WithNotes(ctx context.Context) ([]store.Record, error)
	// Sections groups records into today, the past week and earlier.
	Sections(ctx context.Context) (*Sections, error)
}

// TrendReader reads daily buckets and derived statistics.
type TrendReader interface {
	// Buckets returns every stored bucket in ascending day order.
	Buckets(ctx context.Context) ([]store.DailyBucket, error)
	// Window returns the configured number of days ending today, with
	// missing days filled with zero buckets.
	Window(ctx context.Context) ([]store.DailyBucket, error)
	// WindowAt returns size days ending on anchor's day.
	WindowAt(ctx context.Context, anchor time.Time, size int) ([]store.DailyBucket, error)
	// Trend fits the OCD index over Window.
	Trend(ctx context.Context) (*stats.TrendResult, error)
}

// ProfileClient reads and writes the user's profile.
type ProfileClient interface {
	Profile(ctx context.Context) (*profile.Profile, error)
	SaveProfile(ctx context.Context, p *profile.Profile) error
}

// SentimentReader summarizes the sentiment of the user's notes.
type SentimentReader interface {
	NoteSentiment(ctx context.Context) (*sentiment.Summary, error)
}

// SnapshotClient exports and restores the whole journal.
type SnapshotClient interface {
	Export(ctx context.Context) (*snapshot.Snapshot, error)
	// Import replaces the journal with snap.
	Import(ctx context.Context, snap *snapshot.Snapshot) error
	// Backup exports and uploads to the configured archive.
	Backup(ctx context.Context) (string, error)
	// Restore downloads a snapshot from the archive and imports it.
	Restore(ctx context.Context, uri string) error
}

// Journal is one user's mood journal.
type Journal interface {
	UserID() string
	RecordWriter
	RecordReader
	TrendReader
	StatsReader
	ProfileClient
	SentimentReader
	SnapshotClient
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	store    store.Store
	logger   *slog.Logger
	opts     *options
	state    int32
	plugins  *pluginRegistry
	otel     *otelInstrumentation
	analyzer *sentiment.Analyzer

	writeSem   *semaphore.Weighted // bounds in-flight mutations; drained by Close
	userLocks  sync.Map            // userID -> *sync.Mutex
	statsCache sync.Map            // userID -> *statsEntry

	eventBus *event.Bus
	events   *ServiceEvents
}

// NewService creates a journal service. Call Connect before use.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}

	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	var analyzer *sentiment.Analyzer
	if o.scorer != nil {
		sopts := append([]sentiment.Option{sentiment.WithLogger(o.logger)}, o.sentiment...)
		if analyzer, err = sentiment.NewAnalyzer(o.scorer, sopts...); err != nil {
			return nil, fmt.Errorf("init sentiment: %w", err)
		}
	}

	return &service{
		store:    o.store,
		logger:   o.logger,
		opts:     o,
		plugins:  plugins,
		otel:     otelInstr,
		analyzer: analyzer,
		writeSem: semaphore.NewWeighted(int64(o.maxConcurrentWrites)),
	}, nil
}

// Events returns per-service event instances.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes connections to the store and event bus.
func (s *service) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := s.initEventBus(ctx); err != nil {
		s.store.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	if err := s.plugins.initAll(ctx); err != nil {
		s.eventBus.Close(ctx)
		s.store.Close(ctx)
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	s.logger.Info("moodlog service connected",
		"location", s.opts.location.String(),
		"window_size", s.opts.windowSize,
		"stats_cache", s.opts.hasEventTransport())
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus creates this service's bus and events. With a real
// transport, the stats cache handlers are subscribed as well.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "moodlog"
	}
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}

	if s.opts.hasEventTransport() {
		if err := s.subscribeStatsHandlers(ctx); err != nil {
			bus.Close(ctx)
			return err
		}
	}
	return nil
}

// Close waits up to the shutdown timeout for in-flight mutations, then
// closes plugins, the event bus and the store.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	s.logger.Info("waiting for in-flight writes to complete", "timeout", s.opts.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer cancel()
	if err := s.writeSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentWrites)); err != nil {
		s.logger.Warn("timeout waiting for in-flight writes, proceeding with shutdown", "error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.writeSem.Release(int64(s.opts.maxConcurrentWrites))
	}

	if err := s.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	if s.eventBus != nil {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.statsCache.Clear()
	return errors.Join(errs...)
}

// Client returns the journal of userID.
func (s *service) Client(userID string) Journal {
	return &userJournal{
		userID:      userID,
		service:     s,
		validUserID: isValidUserID(userID),
	}
}

// userLock returns the mutex serializing userID's mutations.
func (s *service) userLock(userID string) *sync.Mutex {
	mu, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// userJournal is the default implementation of Journal.
type userJournal struct {
	userID      string
	service     *service
	validUserID bool
}

// UserID returns the journal owner's id.
func (j *userJournal) UserID() string {
	return j.userID
}

// checkAccess fails with ErrNotConnected or ErrInvalidUserID.
func (j *userJournal) checkAccess() error {
	if !j.service.IsConnected() {
		return ErrNotConnected
	}
	if !j.validUserID {
		return ErrInvalidUserID
	}
	return nil
}

// write runs fn holding a write slot and the user's lock.
func (j *userJournal) write(ctx context.Context, fn func() error) error {
	if err := j.checkAccess(); err != nil {
		return err
	}
	if err := j.service.writeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer j.service.writeSem.Release(1)

	mu := j.service.userLock(j.userID)
	mu.Lock()
	defer mu.Unlock()

	// Close may have started while waiting.
	if !j.service.IsConnected() {
		return ErrNotConnected
	}
	return fn()
}

// readConsistent runs fn under the user lock without taking a write slot,
// so multi-step reads see no interleaved writes.
func (j *userJournal) readConsistent(fn func() error) error {
	if err := j.checkAccess(); err != nil {
		return err
	}
	mu := j.service.userLock(j.userID)
	mu.Lock()
	defer mu.Unlock()

	if !j.service.IsConnected() {
		return ErrNotConnected
	}
	return fn()
}

// today returns local midnight of the service clock's current day.
func (j *userJournal) today() time.Time {
	return store.DayOf(j.service.opts.now(), j.service.opts.location)
}
