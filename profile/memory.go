package profile

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps profiles in a map. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

// Get returns a copy of the stored profile or the default profile.
func (s *MemoryStore) Get(_ context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[userID]; ok {
		return p.Clone(), nil
	}
	return Default(userID), nil
}

// Save stores a copy of p.
func (s *MemoryStore) Save(_ context.Context, p *Profile) error {
	c, err := prepare(p, time.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profiles[c.UserID] = c
	s.mu.Unlock()
	p.Avatar, p.UpdatedAt = c.Avatar, c.UpdatedAt
	return nil
}

// Delete removes the profile.
func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	s.mu.Lock()
	delete(s.profiles, userID)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
