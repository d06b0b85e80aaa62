package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoUserStore keeps each user document in one collection, keyed by _id.
type MongoUserStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoUserStore connects to MongoDB and verifies the primary is reachable.
func NewMongoUserStore(ctx context.Context, cfg MongoConfig) (*MongoUserStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required: %w", ErrInvalidInput)
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("mongo database and collection are required: %w", ErrInvalidInput)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	store := &MongoUserStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		timeout:    cfg.Timeout,
	}
	if err := store.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return store, nil
}

func userFilter(userID string) bson.M {
	return bson.M{"_id": userID}
}

// Close disconnects the client.
func (s *MongoUserStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks if the store is healthy
func (s *MongoUserStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// ReadUser fetches the document by _id.
func (s *MongoUserStore) ReadUser(ctx context.Context, userID string) (*UserRecord, error) {
	var u UserRecord
	err := s.collection.FindOne(ctx, userFilter(userID)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user document: %w", err)
	}
	if err := u.normalize(); err != nil {
		return nil, fmt.Errorf("corrupt user document %q: %w", userID, err)
	}
	return &u, nil
}

// CreateUser inserts the document; a duplicate _id maps to ErrAlreadyExists.
func (s *MongoUserStore) CreateUser(ctx context.Context, user *UserRecord) error {
	if err := user.normalize(); err != nil {
		return err
	}
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user document: %w", err)
	}
	return nil
}

// UpdateUser replaces the document, inserting it when absent.
func (s *MongoUserStore) UpdateUser(ctx context.Context, user *UserRecord) error {
	if err := user.normalize(); err != nil {
		return err
	}
	_, err := s.collection.ReplaceOne(ctx, userFilter(user.UserID), user, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update user document: %w", err)
	}
	return nil
}

// GenerateSessionID returns a new session id.
func (s *MongoUserStore) GenerateSessionID() string {
	return GenerateSessionID()
}
