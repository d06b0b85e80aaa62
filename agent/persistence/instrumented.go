package persistence

import (
	"context"
	"errors"
	"time"
)

// StoreRecorder receives one observation per store call.
type StoreRecorder interface {
	RecordStoreOperation(backend, operation, status string, duration time.Duration)
}

// InstrumentedUserStore reports the outcome and latency of every call.
type InstrumentedUserStore struct {
	UserStore
	backend  string
	recorder StoreRecorder
}

// NewInstrumentedUserStore wraps store; a nil recorder returns store unchanged.
func NewInstrumentedUserStore(store UserStore, backend StoreType, recorder StoreRecorder) UserStore {
	if recorder == nil {
		return store
	}
	return &InstrumentedUserStore{UserStore: store, backend: string(backend), recorder: recorder}
}

// ReadUser records "not_found" separately so misses do not count as errors.
func (s *InstrumentedUserStore) ReadUser(ctx context.Context, userID string) (*UserRecord, error) {
	start := time.Now()
	u, err := s.UserStore.ReadUser(ctx, userID)
	s.observe("read", start, err)
	return u, err
}

func (s *InstrumentedUserStore) CreateUser(ctx context.Context, user *UserRecord) error {
	start := time.Now()
	err := s.UserStore.CreateUser(ctx, user)
	s.observe("create", start, err)
	return err
}

func (s *InstrumentedUserStore) UpdateUser(ctx context.Context, user *UserRecord) error {
	start := time.Now()
	err := s.UserStore.UpdateUser(ctx, user)
	s.observe("update", start, err)
	return err
}

func (s *InstrumentedUserStore) observe(op string, start time.Time, err error) {
	s.recorder.RecordStoreOperation(s.backend, op, operationStatus(err), time.Since(start))
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "conflict"
	default:
		return "error"
	}
}
