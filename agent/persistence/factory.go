package persistence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/config"
	"github.com/BaSui01/moneta/internal/database"
)

type factoryOptions struct {
	redisClient redis.UniversalClient
	poolOpts    []database.PoolOption
}

// FactoryOption customises NewUserStore.
type FactoryOption func(*factoryOptions)

// WithRedisClient shares an existing client instead of dialing a new one.
func WithRedisClient(client redis.UniversalClient) FactoryOption {
	return func(o *factoryOptions) { o.redisClient = client }
}

// WithPoolOptions passes options to the SQL connection pool.
func WithPoolOptions(opts ...database.PoolOption) FactoryOption {
	return func(o *factoryOptions) { o.poolOpts = append(o.poolOpts, opts...) }
}

// NewUserStore creates the backend selected by cfg.Store.Type.
func NewUserStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...FactoryOption) (UserStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o factoryOptions
	for _, opt := range opts {
		opt(&o)
	}

	storeCfg := StoreConfig{
		Type:      StoreType(cfg.Store.Type),
		BaseDir:   cfg.Store.BaseDir,
		KeyPrefix: cfg.Store.KeyPrefix,
	}

	var (
		store UserStore
		err   error
	)
	switch storeCfg.Type {
	case StoreTypeMemory, "":
		store = NewMemoryUserStore()
	case StoreTypeFile:
		store, err = NewFileUserStore(storeCfg)
	case StoreTypeRedis:
		if o.redisClient != nil {
			store = NewRedisUserStore(o.redisClient, storeCfg)
			break
		}
		store, err = DialRedisUserStore(ctx, RedisOptions{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			TLS:          cfg.Redis.TLS,
		}, storeCfg)
	case StoreTypeMongo:
		store, err = NewMongoUserStore(ctx, MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
		})
	case StoreTypeSQL:
		store, err = newSQLUserStore(cfg.Database, logger, o.poolOpts)
	default:
		return nil, fmt.Errorf("unsupported user store type: %s", storeCfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s user store: %w", storeCfg.Type, err)
	}

	logger.Info("user store initialized", zap.String("type", string(storeCfg.Type)))
	return store, nil
}

func newSQLUserStore(cfg config.DatabaseConfig, logger *zap.Logger, opts []database.PoolOption) (UserStore, error) {
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, err := database.NewPoolManager(db, database.PoolConfigFromDatabase(cfg), logger, opts...)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return NewSQLUserStore(pool)
}
