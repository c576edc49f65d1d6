// Package repo implements the data persistence layer, backed by GORM. This
// file provides the key/value rows that hold whole JSON documents (the query
// list, the user list, notification inboxes).
//
// Functions follow the "thin repository" approach: they accept a *gorm.DB
// (plain or transaction-bound) and perform persistence only.
//
// Error semantics:
//   - A missing key is reported by GetValue as ErrNotFound.
//   - DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

// GetValue returns the stored document for key, or ErrNotFound.
func GetValue(ctx context.Context, db *gorm.DB, key string) (*domain.KVEntry, error) {
	var e domain.KVEntry
	err := db.WithContext(ctx).Where("kv_key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PutValue inserts or overwrites the document stored under key in a single
// statement and bumps its version.
func PutValue(ctx context.Context, db *gorm.DB, key string, value []byte) error {
	e := domain.KVEntry{
		Key:       key,
		Value:     value,
		Version:   1,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      value,
			"version":    gorm.Expr("kv_entries.version + 1"),
			"updated_at": e.UpdatedAt,
		}),
	}).Create(&e).Error
}

// DeleteValue removes key. Deleting an absent key is not an error.
func DeleteValue(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Where("kv_key = ?", key).Delete(&domain.KVEntry{}).Error
}
