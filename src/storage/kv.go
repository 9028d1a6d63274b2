package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StorageError wraps persistence-layer failures. Callers on the trading
// path log it and degrade to a no-op; it is never surfaced to the user.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// KV is the namespaced record store boundary. Get returns (nil, nil)
// when the key is absent; "not found" is never an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// KVRecord is one small JSON-like record scoped by namespace.
type KVRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Namespace string `gorm:"uniqueIndex:idx_kv_ns_key;size:100;not null"`
	Key       string `gorm:"uniqueIndex:idx_kv_ns_key;size:255;not null"`
	Value     []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (KVRecord) TableName() string { return "kv_records" }

// Store implements KV on gorm.
type Store struct {
	db        *gorm.DB
	namespace string
}

func NewStore(db *gorm.DB, namespace string) *Store {
	logger.WithFields(map[string]interface{}{
		"component": "Store",
		"namespace": namespace,
	}).Debug("Creating KV store")

	return &Store{db: db, namespace: namespace}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var rec KVRecord
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", s.namespace, key).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"namespace": s.namespace,
			"key":       key,
		}).WithError(err).Error("Failed to read KV record")
		return nil, &StorageError{Op: "get", Err: err}
	}
	return rec.Value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	rec := KVRecord{Namespace: s.namespace, Key: key, Value: value}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"namespace": s.namespace,
			"key":       key,
		}).WithError(err).Error("Failed to write KV record")
		return &StorageError{Op: "set", Err: err}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", s.namespace, key).
		Delete(&KVRecord{}).Error
	if err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}
