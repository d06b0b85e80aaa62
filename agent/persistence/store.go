package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/moneta/types"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidInput  = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeMongo  StoreType = "mongo"
	StoreTypeSQL    StoreType = "sql"
)

// ChatRecord is one session transcript.
type ChatRecord struct {
	Messages  []types.Message `json:"messages" bson:"messages"`
	Metrics   map[string]any  `json:"metrics,omitempty" bson:"metrics,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" bson:"updated_at"`
}

// UserRecord is the per-user document. ChatHistories is keyed by session id.
type UserRecord struct {
	ID            string                 `json:"id" bson:"_id"`
	UserID        string                 `json:"user_id" bson:"user_id"`
	ChatHistories map[string]*ChatRecord `json:"chat_histories" bson:"chat_histories"`
}

// NewUserRecord returns an empty document for userID.
func NewUserRecord(userID string) *UserRecord {
	return &UserRecord{
		ID:            userID,
		UserID:        userID,
		ChatHistories: make(map[string]*ChatRecord),
	}
}

// Clone returns a deep copy so callers never share transcripts with a store.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	out := &UserRecord{ID: u.ID, UserID: u.UserID, ChatHistories: make(map[string]*ChatRecord, len(u.ChatHistories))}
	for id, chat := range u.ChatHistories {
		if chat == nil {
			continue
		}
		c := *chat
		c.Messages = append([]types.Message(nil), chat.Messages...)
		if chat.Metrics != nil {
			c.Metrics = make(map[string]any, len(chat.Metrics))
			for k, v := range chat.Metrics {
				c.Metrics[k] = v
			}
		}
		out.ChatHistories[id] = &c
	}
	return out
}

// SessionIDs returns the session ids ordered by creation time, then id.
func (u *UserRecord) SessionIDs() []string {
	ids := make([]string, 0, len(u.ChatHistories))
	for id := range u.ChatHistories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := u.ChatHistories[ids[i]], u.ChatHistories[ids[j]]
		if a != nil && b != nil && !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// normalize fills the identity fields and the history map.
func (u *UserRecord) normalize() error {
	if u == nil {
		return ErrInvalidInput
	}
	if u.UserID == "" {
		u.UserID = u.ID
	}
	if u.UserID == "" {
		return ErrInvalidInput
	}
	u.ID = u.UserID
	if u.ChatHistories == nil {
		u.ChatHistories = make(map[string]*ChatRecord)
	}
	return nil
}

// Store is the base interface for all store implementations
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// UserStore persists user documents. Writes replace the whole document; the
// later of two concurrent writers wins.
type UserStore interface {
	Store

	// ReadUser returns ErrNotFound when no document exists.
	ReadUser(ctx context.Context, userID string) (*UserRecord, error)

	// CreateUser returns ErrAlreadyExists when a document exists.
	CreateUser(ctx context.Context, user *UserRecord) error

	// UpdateUser writes the whole document, creating it if absent.
	UpdateUser(ctx context.Context, user *UserRecord) error

	// GenerateSessionID returns a new opaque session id.
	GenerateSessionID() string
}

// GenerateSessionID returns a random UUID string.
func GenerateSessionID() string {
	return uuid.NewString()
}

// StoreConfig is the configuration for the file and Redis backends.
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      StoreTypeMemory,
		BaseDir:   "./data/users",
		KeyPrefix: "moneta:user:",
	}
}
