package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-quetras-backend/internal/repo"
)

// SQLKV stores documents in the kv_entries table.
type SQLKV struct {
	DB *gorm.DB
}

// NewSQLKV returns a KV backed by db. The caller is responsible for running
// repo.AutoMigrate first.
func NewSQLKV(db *gorm.DB) *SQLKV { return &SQLKV{DB: db} }

// Get implements KV.
func (s *SQLKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := repo.GetValue(ctx, s.DB, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

// Set implements KV.
func (s *SQLKV) Set(ctx context.Context, key string, value []byte) error {
	return repo.PutValue(ctx, s.DB, key, value)
}

// Stat implements Statter.
func (s *SQLKV) Stat(ctx context.Context, key string) (Stat, bool, error) {
	ver, ts, err := repo.ValueStats(ctx, s.DB, key)
	if err != nil || ts == nil {
		return Stat{}, false, err
	}
	return Stat{Version: ver, UpdatedAt: *ts}, true, nil
}
