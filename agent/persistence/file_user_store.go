package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileUserStore keeps one JSON file per user.
// Suitable for single-node deployments.
type FileUserStore struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileUserStore creates a file-based user store under config.BaseDir/users.
func NewFileUserStore(config StoreConfig) (*FileUserStore, error) {
	baseDir := filepath.Join(config.BaseDir, "users")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create user store directory: %w", err)
	}
	return &FileUserStore{baseDir: baseDir}, nil
}

// path escapes the user id so it is always a single file name.
func (s *FileUserStore) path(userID string) string {
	return filepath.Join(s.baseDir, url.PathEscape(userID)+".json")
}

// Close closes the store
func (s *FileUserStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *FileUserStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.baseDir)
	return err
}

// ReadUser loads the user's file.
func (s *FileUserStore) ReadUser(ctx context.Context, userID string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.read(userID)
}

func (s *FileUserStore) read(userID string) (*UserRecord, error) {
	data, err := os.ReadFile(s.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user document: %w", err)
	}
	var u UserRecord
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user document: %w", err)
	}
	if err := u.normalize(); err != nil {
		return nil, fmt.Errorf("corrupt user document %q: %w", userID, err)
	}
	return &u, nil
}

// CreateUser writes a new file.
func (s *FileUserStore) CreateUser(ctx context.Context, user *UserRecord) error {
	if err := user.normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, err := os.Stat(s.path(user.UserID)); err == nil {
		return ErrAlreadyExists
	}
	return s.write(user)
}

// UpdateUser replaces the user's file.
func (s *FileUserStore) UpdateUser(ctx context.Context, user *UserRecord) error {
	if err := user.normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.write(user)
}

// write is atomic: temp file then rename.
func (s *FileUserStore) write(user *UserRecord) error {
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user document: %w", err)
	}
	path := s.path(user.UserID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write user document: %w", err)
	}
	return os.Rename(tempPath, path)
}

// GenerateSessionID returns a new session id.
func (s *FileUserStore) GenerateSessionID() string {
	return GenerateSessionID()
}
