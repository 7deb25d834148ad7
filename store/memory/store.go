// Package memory provides an in-memory Store implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rbaliyan/moodlog/stats"
	"github.com/rbaliyan/moodlog/store"
)

// Store implements store.Store with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
type Store struct {
	journals  sync.Map // map[string]*journal (ownerID -> journal)
	connected int32
}

// journal holds one owner's records and day buckets.
// Both are guarded by mu so every mutation updates them together.
type journal struct {
	mu      sync.Mutex
	records map[string]store.Record
	agg     *stats.Aggregator
}

func newJournal() *journal {
	return &journal{
		records: make(map[string]store.Record),
		agg:     stats.NewAggregator(nil),
	}
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// journal returns the journal for an owner, creating one if needed.
// Uses LoadOrStore for atomic get-or-create.
func (s *Store) journal(ownerID string) *journal {
	if j, ok := s.journals.Load(ownerID); ok {
		return j.(*journal)
	}
	j, _ := s.journals.LoadOrStore(ownerID, newJournal())
	return j.(*journal)
}

// lookup returns the journal for an owner without creating it.
func (s *Store) lookup(ownerID string) (*journal, bool) {
	j, ok := s.journals.Load(ownerID)
	if !ok {
		return nil, false
	}
	return j.(*journal), true
}

// Compile-time check
var _ store.Store = (*Store)(nil)
