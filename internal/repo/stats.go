// Package repo implements the data persistence layer, backed by GORM. This
// file provides small metadata lookups used for conditional responses (weak
// ETags) in the HTTP layer.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

// ValueStats returns the write version and last update time of the document
// stored under key without loading the document itself.
//
// When the key is absent, version is 0 and updatedAt is nil.
func ValueStats(ctx context.Context, db *gorm.DB, key string) (version int64, updatedAt *time.Time, err error) {
	var row struct {
		Version   int64
		UpdatedAt time.Time
	}
	err = db.WithContext(ctx).
		Model(&domain.KVEntry{}).
		Select("version", "updated_at").
		Where("kv_key = ?", key).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return row.Version, &row.UpdatedAt, nil
}
