// Package postgres provides a PostgreSQL implementation of store.Store.
//
// Records live in one table and daily buckets in another, keyed by
// (owner_id, day). Every mutation runs in a single transaction so the two
// tables never diverge. A bucket's day is stored as the TIMESTAMPTZ instant
// of local midnight, which keeps the calendar day intact across session
// time zones.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/rbaliyan/moodlog/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// countColumns maps a state slot to its bucket column.
var countColumns = [store.NumStates]string{"distressed", "anxious", "neutral", "happy"}

// Store implements store.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new PostgreSQL store with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a new PostgreSQL store from a standard sql.DB connection.
// This wraps the sql.DB with sqlx for enhanced functionality.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect initializes the schema and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL", "table", s.opts.table, "bucket_table", s.opts.bucketTable)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureSchema creates the required tables and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	createRecords := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			state SMALLINT NOT NULL CHECK (state BETWEEN 1 AND 4),
			note TEXT NOT NULL DEFAULT '',
			day TIMESTAMPTZ NOT NULL
		)
	`, s.opts.table)
	if _, err := s.db.ExecContext(ctx, createRecords); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}

	createBuckets := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			owner_id VARCHAR(255) NOT NULL,
			day TIMESTAMPTZ NOT NULL,
			distressed BIGINT NOT NULL DEFAULT 0 CHECK (distressed >= 0),
			anxious BIGINT NOT NULL DEFAULT 0 CHECK (anxious >= 0),
			neutral BIGINT NOT NULL DEFAULT 0 CHECK (neutral >= 0),
			happy BIGINT NOT NULL DEFAULT 0 CHECK (happy >= 0),
			PRIMARY KEY (owner_id, day)
		)
	`, s.opts.bucketTable)
	if _, err := s.db.ExecContext(ctx, createBuckets); err != nil {
		return fmt.Errorf("create buckets table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner_recorded ON %s(owner_id, recorded_at DESC, state ASC)`, s.opts.table, s.opts.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner_day ON %s(owner_id, day)`, s.opts.table, s.opts.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_noted ON %s(owner_id, recorded_at DESC) WHERE note <> ''`, s.opts.table, s.opts.table),
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}

	return nil
}

// checkConnected returns error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}
