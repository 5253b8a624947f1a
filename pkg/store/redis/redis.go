package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by Store.
const DefaultPrefix = "bookgraph:cache:"

// Store is a Redis-backed persistent cache backend. Entries are plain string
// keys; a sorted set scored by write time indexes them for pruning.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore wraps a Redis client. An empty prefix means DefaultPrefix.
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) makeKey(key string) string {
	return s.prefix + key
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Get implements cache.Backend.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.makeKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to GET %s: %w", key, err)
	}
	return data, true, nil
}

// Put implements cache.Backend.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	fullKey := s.makeKey(key)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fullKey, value, 0)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(time.Now().UnixNano()), Member: fullKey})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to SET %s: %w", key, err)
	}
	return nil
}

// Delete implements cache.Backend.
func (s *Store) Delete(ctx context.Context, key string) error {
	fullKey := s.makeKey(key)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, fullKey)
	pipe.ZRem(ctx, s.indexKey(), fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to DEL %s: %w", key, err)
	}
	return nil
}

// Prune implements cache.Pruner.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	cutoff := "(" + strconv.FormatInt(olderThan.UnixNano(), 10)
	keys, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache index: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	pipe := s.client.TxPipeline()
	deleted := pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, s.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prune cache entries: %w", err)
	}
	return deleted.Val(), nil
}
