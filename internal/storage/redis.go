package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores documents as Redis strings. A companion hash
// "<prefix><key>:meta" tracks the write version and time.
type RedisKV struct {
	Client *redis.Client
	Prefix string
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// Get implements KV.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.Client.Get(ctx, r.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set implements KV. The value and its metadata are written in one
// MULTI/EXEC block.
func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	meta := r.Prefix + key + ":meta"
	_, err := r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.Prefix+key, value, 0)
		p.HIncrBy(ctx, meta, "version", 1)
		p.HSet(ctx, meta, "updated_at", time.Now().UTC().UnixNano())
		return nil
	})
	return err
}

// Stat implements Statter.
func (r *RedisKV) Stat(ctx context.Context, key string) (Stat, bool, error) {
	vals, err := r.Client.HGetAll(ctx, r.Prefix+key+":meta").Result()
	if err != nil {
		return Stat{}, false, err
	}
	if len(vals) == 0 {
		return Stat{}, false, nil
	}
	ver, _ := strconv.ParseInt(vals["version"], 10, 64)
	ns, _ := strconv.ParseInt(vals["updated_at"], 10, 64)
	return Stat{Version: ver, UpdatedAt: time.Unix(0, ns).UTC()}, true, nil
}
