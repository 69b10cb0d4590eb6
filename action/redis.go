package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/tbxark/actionblock/types"
)

// RedisStore keeps records under "<namespace>:record:<key>" written once,
// plus a sorted-set index scored by an insertion sequence for scans.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// putRecordScript writes a record and its index entry atomically.
// KEYS[1] = record key, KEYS[2] = index key, KEYS[3] = sequence key
// ARGV[1] = encoded record, ARGV[2] = index member
var putRecordScript = redis.NewScript(`
if not redis.call("SET", KEYS[1], ARGV[1], "NX") then
    return 0
end
local seq = redis.call("INCR", KEYS[3])
redis.call("ZADD", KEYS[2], seq, ARGV[2])
return 1
`)

var (
	_ RecordStore = (*RedisStore)(nil)
	_ Preferences = (*RedisStore)(nil)
)

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "actionblock"
	}
	return &RedisStore{client: client, namespace: namespace}
}

// DialRedis creates a client and checks connectivity.
func DialRedis(ctx context.Context, addr, password string, db int, namespace string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisStore(rdb, namespace), nil
}

// Client exposes the connection so other stores can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) recordKey(key types.InstanceKey) string {
	return s.namespace + ":record:" + string(key)
}

func (s *RedisStore) indexKey() string {
	return s.namespace + ":records"
}

func (s *RedisStore) seqKey() string {
	return s.namespace + ":records:seq"
}

func (s *RedisStore) prefsKey() string {
	return s.namespace + ":prefs"
}

func (s *RedisStore) Get(ctx context.Context, key types.InstanceKey) (*types.Record, bool, error) {
	raw, err := s.client.Get(ctx, s.recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec types.Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decode record %s: %w", key, err)
	}
	return &rec, true, nil
}

func (s *RedisStore) Put(ctx context.Context, rec *types.Record) (bool, error) {
	raw, err := sonic.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode record %s: %w", rec.Key, err)
	}
	keys := []string{s.recordKey(rec.Key), s.indexKey(), s.seqKey()}
	n, err := putRecordScript.Run(ctx, s.client, keys, raw, string(rec.Key)).Int()
	if err != nil {
		return false, fmt.Errorf("put record %s: %w", rec.Key, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Scan(ctx context.Context, fn func(rec *types.Record) bool) error {
	keys, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return err
	}
	for _, k := range keys {
		rec, ok, err := s.Get(ctx, types.InstanceKey(k))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !fn(rec) {
			return nil
		}
	}
	return nil
}

func (s *RedisStore) GetPreference(ctx context.Context, name string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.prefsKey(), name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetPreference(ctx context.Context, name, value string) error {
	return s.client.HSet(ctx, s.prefsKey(), name, value).Err()
}
