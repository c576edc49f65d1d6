package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is a process-local KV. Values are copied on the way in and out.
// SetErr, when non-nil, is returned by every Set (tests use it to simulate
// write failures).
type MemoryKV struct {
	mu     sync.RWMutex
	data   map[string][]byte
	stats  map[string]Stat
	SetErr error
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string][]byte{}, stats: map[string]Stat{}}
}

// Get implements KV.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements KV.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = append([]byte(nil), value...)
	st := m.stats[key]
	m.stats[key] = Stat{Version: st.Version + 1, UpdatedAt: time.Now().UTC()}
	return nil
}

// Stat implements Statter.
func (m *MemoryKV) Stat(_ context.Context, key string) (Stat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stats[key]
	return st, ok, nil
}
