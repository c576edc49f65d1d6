package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// Runs only against a live server: REDIS_ADDR=localhost:6379 go test ./internal/storage
func TestRedisKV_Live(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	prefix := "test:" + uuid.NewString() + ":"
	kv := &RedisKV{Client: client, Prefix: prefix}
	t.Cleanup(func() { client.Del(ctx, prefix+KeyQueries, prefix+KeyQueries+":meta") })

	if _, ok, err := kv.Get(ctx, KeyQueries); ok || err != nil {
		t.Fatalf("absent: ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, KeyQueries, []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := kv.Get(ctx, KeyQueries)
	if err != nil || !ok || string(got) != `[]` {
		t.Fatalf("get: %s ok=%v err=%v", got, ok, err)
	}
	st, ok, err := kv.Stat(ctx, KeyQueries)
	if err != nil || !ok || st.Version != 1 {
		t.Fatalf("stat: %+v ok=%v err=%v", st, ok, err)
	}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "127.0.0.1:1", "", 0); err == nil {
		t.Fatal("expected connection error")
	}
}
