package persistence

import (
	"context"
	"sync"
)

// MemoryUserStore is an in-memory UserStore.
// Suitable for development and testing.
type MemoryUserStore struct {
	users  map[string]*UserRecord
	mu     sync.RWMutex
	closed bool
}

// NewMemoryUserStore creates a new in-memory user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*UserRecord)}
}

// Close closes the store
func (s *MemoryUserStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryUserStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// ReadUser returns a copy of the stored document.
func (s *MemoryUserStore) ReadUser(ctx context.Context, userID string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

// CreateUser stores a new document.
func (s *MemoryUserStore) CreateUser(ctx context.Context, user *UserRecord) error {
	if err := user.normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.users[user.UserID]; ok {
		return ErrAlreadyExists
	}
	s.users[user.UserID] = user.Clone()
	return nil
}

// UpdateUser replaces the stored document.
func (s *MemoryUserStore) UpdateUser(ctx context.Context, user *UserRecord) error {
	if err := user.normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.users[user.UserID] = user.Clone()
	return nil
}

// GenerateSessionID returns a new session id.
func (s *MemoryUserStore) GenerateSessionID() string {
	return GenerateSessionID()
}
