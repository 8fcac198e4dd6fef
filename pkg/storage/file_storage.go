package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// fileEntry is one line of the JSON-lines log file
type fileEntry struct {
	Key       string    `json:"key"`
	Record    LogRecord `json:"record"`
	ExpiresAt int64     `json:"expires_at,omitempty"`
}

// FileStorage appends log records to a JSON-lines file. A sidecar lock
// file guards the log so several processes can share it.
type FileStorage struct {
	path      string
	lock      *flock.Flock
	retention time.Duration
	now       func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewFileStorage opens (creating if needed) the log file at path
func NewFileStorage(path string, retention time.Duration) (*FileStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("file storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	f.Close()

	return &FileStorage{
		path:      path,
		lock:      flock.New(path + ".lock"),
		retention: retention,
		now:       time.Now,
	}, nil
}

// Put appends one entry under an exclusive file lock
func (fs *FileStorage) Put(ctx context.Context, key string, record LogRecord) error {
	entry := fileEntry{Key: key, Record: record}
	if fs.retention > 0 {
		entry.ExpiresAt = fs.now().Add(fs.retention).UnixMilli()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	line = append(line, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return ErrSinkClosed
	}

	if err := fs.acquire(ctx, fs.lock.TryLockContext); err != nil {
		return err
	}
	defer fs.lock.Unlock()

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append record: %w", err)
	}
	return f.Close()
}

// ListKeys returns the live keys starting with prefix, sorted
func (fs *FileStorage) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := fs.readAll(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// GetMany returns the latest record written under each key
func (fs *FileStorage) GetMany(ctx context.Context, keys []string) ([]*LogRecord, error) {
	entries, err := fs.readAll(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*LogRecord, len(keys))
	for i, key := range keys {
		if record, ok := entries[key]; ok {
			r := record
			records[i] = &r
		}
	}
	return records, nil
}

func (fs *FileStorage) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.closed = true
	return fs.lock.Close()
}

// readAll loads the file under a shared lock. Later lines win and
// expired entries are skipped.
func (fs *FileStorage) readAll(ctx context.Context) (map[string]LogRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil, ErrSinkClosed
	}

	if err := fs.acquire(ctx, fs.lock.TryRLockContext); err != nil {
		return nil, err
	}
	defer fs.lock.Unlock()

	f, err := os.Open(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]LogRecord{}, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	nowMs := fs.now().UnixMilli()
	entries := make(map[string]LogRecord)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry fileEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// a torn write from a crashed process
			continue
		}
		if entry.ExpiresAt > 0 && entry.ExpiresAt <= nowMs {
			delete(entries, entry.Key)
			continue
		}
		entries[entry.Key] = entry.Record
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return entries, nil
}

func (fs *FileStorage) acquire(ctx context.Context, try func(context.Context, time.Duration) (bool, error)) error {
	locked, err := try(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock log file: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock log file: %w", ctx.Err())
	}
	return nil
}
