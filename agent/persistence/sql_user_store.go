package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/moneta/internal/database"
)

// userDocumentRow is the user_documents table. The document column holds the
// JSON-encoded UserRecord.
type userDocumentRow struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:255"`
	Document  string    `gorm:"column:document;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (userDocumentRow) TableName() string { return "user_documents" }

// sqlCreateRetries bounds retries of the create transaction on deadlocks and
// serialization failures.
const sqlCreateRetries = 3

// SQLUserStore stores user documents in a relational table through GORM.
// The schema is owned by the migration package; AutoMigrateSQL exists for tests
// and throwaway SQLite files.
type SQLUserStore struct {
	pool *database.PoolManager
}

// NewSQLUserStore wraps a connection pool. Close closes the pool.
func NewSQLUserStore(pool *database.PoolManager) (*SQLUserStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil: %w", ErrInvalidInput)
	}
	return &SQLUserStore{pool: pool}, nil
}

// AutoMigrateSQL creates the user_documents table if it is missing.
func AutoMigrateSQL(db *gorm.DB) error {
	return db.AutoMigrate(&userDocumentRow{})
}

// Close closes the store
func (s *SQLUserStore) Close() error {
	return s.pool.Close()
}

// Ping checks if the store is healthy
func (s *SQLUserStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ReadUser loads and decodes the row for userID.
func (s *SQLUserStore) ReadUser(ctx context.Context, userID string) (*UserRecord, error) {
	var row userDocumentRow
	err := s.pool.DB().WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user document: %w", err)
	}

	var u UserRecord
	if err := json.Unmarshal([]byte(row.Document), &u); err != nil {
		return nil, fmt.Errorf("failed to decode user document: %w", err)
	}
	if err := u.normalize(); err != nil {
		return nil, fmt.Errorf("corrupt user document %q: %w", userID, err)
	}
	return &u, nil
}

// CreateUser inserts the row unless one exists. The insert is a single
// statement with ON CONFLICT DO NOTHING, so two concurrent first contacts
// resolve to one row and ErrAlreadyExists for the loser.
func (s *SQLUserStore) CreateUser(ctx context.Context, user *UserRecord) error {
	row, err := encodeRow(user)
	if err != nil {
		return err
	}
	return s.pool.WithTransactionRetry(ctx, sqlCreateRetries, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(row)
		if res.Error != nil {
			return fmt.Errorf("failed to create user document: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyExists
		}
		return nil
	})
}

// UpdateUser upserts the row, keeping created_at.
func (s *SQLUserStore) UpdateUser(ctx context.Context, user *UserRecord) error {
	row, err := encodeRow(user)
	if err != nil {
		return err
	}
	err = s.pool.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to update user document: %w", err)
	}
	return nil
}

func encodeRow(user *UserRecord) (*userDocumentRow, error) {
	if err := user.normalize(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user document: %w", err)
	}
	return &userDocumentRow{UserID: user.UserID, Document: string(data)}, nil
}

// GenerateSessionID returns a new session id.
func (s *SQLUserStore) GenerateSessionID() string {
	return GenerateSessionID()
}
