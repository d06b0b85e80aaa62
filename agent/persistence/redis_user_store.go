package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/moneta/internal/tlsutil"
)

// RedisUserStore stores each user document as a JSON string value.
// Suitable for distributed deployments.
type RedisUserStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ownClient bool
}

// NewRedisUserStore wraps an existing client. Close does not close it.
func NewRedisUserStore(client redis.UniversalClient, config StoreConfig) *RedisUserStore {
	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultStoreConfig().KeyPrefix
	}
	return &RedisUserStore{client: client, keyPrefix: keyPrefix}
}

// RedisOptions configures a store-owned client.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	TLS          bool
}

// DialRedisUserStore opens its own client and verifies the connection.
func DialRedisUserStore(ctx context.Context, opts RedisOptions, config StoreConfig) (*RedisUserStore, error) {
	redisOpts := &redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
	}
	if opts.TLS {
		redisOpts.TLSConfig = tlsutil.ClientTLSConfig(opts.Addr)
	}
	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := NewRedisUserStore(client, config)
	store.ownClient = true
	return store, nil
}

// Close closes the client if the store created it.
func (s *RedisUserStore) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

// Ping checks if the store is healthy
func (s *RedisUserStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisUserStore) key(userID string) string {
	return s.keyPrefix + userID
}

// ReadUser loads and decodes the user's document.
func (s *RedisUserStore) ReadUser(ctx context.Context, userID string) (*UserRecord, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
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

// CreateUser stores the document only if the key is absent.
func (s *RedisUserStore) CreateUser(ctx context.Context, user *UserRecord) error {
	data, err := s.encode(user)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(user.UserID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create user document: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// UpdateUser overwrites the document.
func (s *RedisUserStore) UpdateUser(ctx context.Context, user *UserRecord) error {
	data, err := s.encode(user)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(user.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update user document: %w", err)
	}
	return nil
}

func (s *RedisUserStore) encode(user *UserRecord) ([]byte, error) {
	if err := user.normalize(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user document: %w", err)
	}
	return data, nil
}

// GenerateSessionID returns a new session id.
func (s *RedisUserStore) GenerateSessionID() string {
	return GenerateSessionID()
}
