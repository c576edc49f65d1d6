// Package storage provides the durable key/value collaborator the query
// store persists through. Each key holds one whole JSON document; writes
// replace the document in a single operation, so readers never observe a
// partially written value.
//
// Implementations:
//   - SQLKV:    rows in a GORM-managed table (SQLite, Postgres, MySQL)
//   - RedisKV:  plain Redis strings
//   - MemoryKV: process-local map, for tests and ephemeral runs
package storage

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyQueries       = "quetras_queries"
	KeyUsers         = "quetras_users"
	KeyNotifications = "quetras_notifications"
)

// KV is a minimal get/set-by-key persistence contract.
//
// Get reports ok=false (and a nil error) when the key is absent. Set
// overwrites the whole value.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Stat describes the last write of a key.
type Stat struct {
	Version   int64
	UpdatedAt time.Time
}

// Statter is implemented by backends that can report write metadata
// cheaply. The HTTP layer uses it to build weak ETags.
type Statter interface {
	Stat(ctx context.Context, key string) (Stat, bool, error)
}
