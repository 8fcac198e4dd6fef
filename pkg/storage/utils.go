package storage

import (
	"strconv"
	"sync"
	"time"
)

// KeyClock hands out epoch-millisecond keys that never repeat within a
// process, even when two records land in the same millisecond.
type KeyClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewKeyClock creates a clock reading time from now; nil means time.Now
func NewKeyClock(now func() time.Time) *KeyClock {
	if now == nil {
		now = time.Now
	}
	return &KeyClock{now: now}
}

// Next returns prefix followed by a strictly increasing epoch millisecond
func (kc *KeyClock) Next(prefix string) string {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	ms := kc.now().UnixMilli()
	if ms <= kc.last {
		ms = kc.last + 1
	}
	kc.last = ms
	return prefix + strconv.FormatInt(ms, 10)
}
