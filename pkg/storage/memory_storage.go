package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage keeps log records as JSON blobs in process memory
type MemoryStorage struct {
	data   map[string][]byte
	mu     sync.RWMutex
	closed bool
}

// NewMemoryStorage creates a new memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data: make(map[string][]byte),
	}
}

// Put stores a record under key, replacing any previous value
func (ms *MemoryStorage) Put(ctx context.Context, key string, record LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrSinkClosed
	}
	ms.data[key] = jsonData
	return nil
}

// ListKeys returns every key starting with prefix in sorted order
func (ms *MemoryStorage) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return nil, ErrSinkClosed
	}

	keys := make([]string, 0, len(ms.data))
	for key := range ms.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// GetMany loads records for keys; missing keys yield nil
func (ms *MemoryStorage) GetMany(ctx context.Context, keys []string) ([]*LogRecord, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return nil, ErrSinkClosed
	}

	records := make([]*LogRecord, len(keys))
	for i, key := range keys {
		jsonData, exists := ms.data[key]
		if !exists {
			continue
		}
		var record LogRecord
		if err := json.Unmarshal(jsonData, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", key, err)
		}
		records[i] = &record
	}
	return records, nil
}

// Len reports how many records are stored
func (ms *MemoryStorage) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.data)
}

// Close drops all records
func (ms *MemoryStorage) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	ms.data = nil
	return nil
}
