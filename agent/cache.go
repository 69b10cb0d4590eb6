package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/tbxark/actionblock/action"
)

// Cache is the key-value substrate behind context-routed stores.
type Cache[S any] interface {
	Set(ctx context.Context, key string, val S) error
	Get(ctx context.Context, key string) (S, bool, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type MemoryCache[S any] struct {
	mu sync.RWMutex
	m  map[string]S
}

func NewMemoryCore[S any]() *MemoryCache[S] {
	return &MemoryCache[S]{m: map[string]S{}}
}

func (m *MemoryCache[S]) Set(ctx context.Context, key string, val S) error {
	m.mu.Lock()
	m.m[key] = val
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	m.mu.RLock()
	val, ok := m.m[key]
	m.mu.RUnlock()
	return val, ok, nil
}

func (m *MemoryCache[S]) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.m, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[S]) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.m[key]
	m.mu.RUnlock()
	return ok, nil
}

// RedisCache stores sonic-encoded values in Redis. A zero ttl keeps values
// until they are deleted.
type RedisCache[S any] struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCore[S any](client redis.Cmdable, ttl time.Duration) *RedisCache[S] {
	return &RedisCache[S]{client: client, ttl: ttl}
}

func (r *RedisCache[S]) Set(ctx context.Context, key string, val S) error {
	data, err := sonic.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *RedisCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	var zero S
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s: %w", key, err)
	}
	var val S
	if err := sonic.Unmarshal(data, &val); err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return val, true, nil
}

func (r *RedisCache[S]) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache[S]) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SQLiteCache stores sonic-encoded values in the conversation_state table of
// a SQLite record store.
type SQLiteCache[S any] struct {
	db *action.SQLiteStore
}

func NewSQLiteCore[S any](db *action.SQLiteStore) *SQLiteCache[S] {
	return &SQLiteCache[S]{db: db}
}

func (c *SQLiteCache[S]) Set(ctx context.Context, key string, val S) error {
	data, err := sonic.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.db.SetState(ctx, key, data)
}

func (c *SQLiteCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	var zero S
	data, ok, err := c.db.GetState(ctx, key)
	if err != nil {
		return zero, false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return zero, false, nil
	}
	var val S
	if err := sonic.Unmarshal(data, &val); err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return val, true, nil
}

func (c *SQLiteCache[S]) Del(ctx context.Context, key string) error {
	return c.db.DeleteState(ctx, key)
}

func (c *SQLiteCache[S]) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.db.GetState(ctx, key)
	return ok, err
}
