package worker

import (
	"sync/atomic"
	"time"
)

// PoolMetrics counts task outcomes for one pool
type PoolMetrics struct {
	TasksSubmitted atomic.Uint64
	TasksCompleted atomic.Uint64
	TasksFailed    atomic.Uint64
	TasksRejected  atomic.Uint64

	totalNanos atomic.Uint64
	maxNanos   atomic.Uint64

	StartTime time.Time
}

// NewPoolMetrics creates a new metrics instance
func NewPoolMetrics() *PoolMetrics {
	return &PoolMetrics{StartTime: time.Now()}
}

func (pm *PoolMetrics) IncrementTasksSubmitted() {
	pm.TasksSubmitted.Add(1)
}

func (pm *PoolMetrics) IncrementTasksRejected() {
	pm.TasksRejected.Add(1)
}

// RecordTaskResult records the outcome and duration of one task
func (pm *PoolMetrics) RecordTaskResult(result Result) {
	if result.Error != nil {
		pm.TasksFailed.Add(1)
	} else {
		pm.TasksCompleted.Add(1)
	}

	nanos := uint64(result.Duration.Nanoseconds())
	pm.totalNanos.Add(nanos)
	for {
		current := pm.maxNanos.Load()
		if nanos <= current || pm.maxNanos.CompareAndSwap(current, nanos) {
			break
		}
	}
}

// GetSnapshot returns a point-in-time copy of the counters
func (pm *PoolMetrics) GetSnapshot() MetricsSnapshot {
	completed := pm.TasksCompleted.Load()
	failed := pm.TasksFailed.Load()

	var avg time.Duration
	if finished := completed + failed; finished > 0 {
		avg = time.Duration(pm.totalNanos.Load() / finished)
	}

	return MetricsSnapshot{
		TasksSubmitted:  pm.TasksSubmitted.Load(),
		TasksCompleted:  completed,
		TasksFailed:     failed,
		TasksRejected:   pm.TasksRejected.Load(),
		AverageDuration: avg,
		MaxDuration:     time.Duration(pm.maxNanos.Load()),
		Uptime:          time.Since(pm.StartTime),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	TasksSubmitted  uint64        `json:"tasks_submitted"`
	TasksCompleted  uint64        `json:"tasks_completed"`
	TasksFailed     uint64        `json:"tasks_failed"`
	TasksRejected   uint64        `json:"tasks_rejected"`
	AverageDuration time.Duration `json:"average_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	Uptime          time.Duration `json:"uptime"`
}
