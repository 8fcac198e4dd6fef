package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// RedisStorage keeps log records in Redis, one JSON string per key
type RedisStorage struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewRedisStorage connects to the Redis server at config.URL and pings it
func NewRedisStorage(ctx context.Context, config RedisConfig, retention time.Duration) (*RedisStorage, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStorageWithClient(client, retention), nil
}

// NewRedisStorageWithClient wraps an existing client
func NewRedisStorageWithClient(client redis.UniversalClient, retention time.Duration) *RedisStorage {
	return &RedisStorage{client: client, retention: retention}
}

// Put stores record under key with the configured retention as TTL
func (rs *RedisStorage) Put(ctx context.Context, key string, record LogRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := rs.client.Set(ctx, key, jsonData, rs.retention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// ListKeys scans for keys matching prefix and returns them sorted
func (rs *RedisStorage) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := rs.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// GetMany fetches keys with MGET; expired or missing keys yield nil
func (rs *RedisStorage) GetMany(ctx context.Context, keys []string) ([]*LogRecord, error) {
	records := make([]*LogRecord, len(keys))
	if len(keys) == 0 {
		return records, nil
	}

	values, err := rs.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var record LogRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", keys[i], err)
		}
		records[i] = &record
	}
	return records, nil
}

func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}
