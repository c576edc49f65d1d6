package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-quetras-backend/internal/domain"
)

func TestPutGetValue_UpsertBumpsVersion(t *testing.T) {
	db := newTestDB(t, &domain.KVEntry{})
	ctx := context.Background()

	if _, err := GetValue(ctx, db, "quetras_queries"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := PutValue(ctx, db, "quetras_queries", []byte(`[1]`)); err != nil {
		t.Fatalf("put 1: %v", err)
	}
	if err := PutValue(ctx, db, "quetras_queries", []byte(`[1,2]`)); err != nil {
		t.Fatalf("put 2: %v", err)
	}
	e, err := GetValue(ctx, db, "quetras_queries")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(e.Value) != `[1,2]` || e.Version != 2 {
		t.Fatalf("unexpected entry: value=%s version=%d", e.Value, e.Version)
	}

	var n int64
	db.Model(&domain.KVEntry{}).Count(&n)
	if n != 1 {
		t.Fatalf("upsert created %d rows", n)
	}
}

func TestDeleteValue(t *testing.T) {
	db := newTestDB(t, &domain.KVEntry{})
	ctx := context.Background()

	_ = PutValue(ctx, db, "a", []byte(`{}`))
	if err := DeleteValue(ctx, db, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetValue(ctx, db, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := DeleteValue(ctx, db, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestGetValue_NoTable(t *testing.T) {
	db := newTestDB(t)
	if _, err := GetValue(context.Background(), db, "a"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a DB error, got %v", err)
	}
}
