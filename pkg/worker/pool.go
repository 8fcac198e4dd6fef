package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"keyword-harvester/pkg/logger"
)

// Task represents a unit of work to be executed
type Task struct {
	ID      string
	Fn      func(ctx context.Context) error
	Timeout time.Duration
}

// Result represents the result of task execution
type Result struct {
	TaskID   string
	Error    error
	Duration time.Duration
}

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	MaxWorkers    int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	WorkerTimeout time.Duration `mapstructure:"task_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
}

// DefaultWorkerPoolConfig returns the settings used for one aggregation run
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		MaxWorkers:    8,
		QueueSize:     128,
		WorkerTimeout: 10 * time.Second,
		EnableMetrics: true,
	}
}

// WorkerPool manages a pool of goroutines for concurrent task execution
type WorkerPool struct {
	config    WorkerPoolConfig
	taskQueue chan Task
	workers   []*worker
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	log       *logger.Logger

	metrics *PoolMetrics

	started atomic.Bool
	closed  atomic.Bool
	// submitMu keeps Submit from racing with closing the queue
	submitMu sync.RWMutex
}

// NewWorkerPool creates a new worker pool with the given configuration
func NewWorkerPool(config WorkerPoolConfig) *WorkerPool {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.MaxWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &WorkerPool{
		config:    config,
		taskQueue: make(chan Task, config.QueueSize),
		workers:   make([]*worker, 0, config.MaxWorkers),
		ctx:       ctx,
		cancel:    cancel,
		log:       logger.GetLogger().WithField("component", "worker_pool"),
	}

	if config.EnableMetrics {
		pool.metrics = NewPoolMetrics()
	}

	return pool
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() error {
	if !wp.started.CompareAndSwap(false, true) {
		return fmt.Errorf("worker pool already started")
	}

	wp.log.WithField("max_workers", wp.config.MaxWorkers).Debug("Starting worker pool")

	for i := 0; i < wp.config.MaxWorkers; i++ {
		w := newWorker(i, wp.taskQueue, wp.config.WorkerTimeout, wp.log)
		wp.workers = append(wp.workers, w)

		wp.wg.Add(1)
		go func(worker *worker) {
			defer wp.wg.Done()
			worker.start(wp.ctx, wp.metrics)
		}(w)
	}

	return nil
}

// Submit adds a task to the worker pool queue
func (wp *WorkerPool) Submit(task Task) error {
	wp.submitMu.RLock()
	defer wp.submitMu.RUnlock()

	if wp.closed.Load() {
		return fmt.Errorf("worker pool is closed")
	}
	if !wp.started.Load() {
		return fmt.Errorf("worker pool not started")
	}

	if task.Timeout == 0 {
		task.Timeout = wp.config.WorkerTimeout
	}

	select {
	case wp.taskQueue <- task:
		if wp.metrics != nil {
			wp.metrics.IncrementTasksSubmitted()
		}
		return nil
	default:
		if wp.metrics != nil {
			wp.metrics.IncrementTasksRejected()
		}
		return fmt.Errorf("task queue is full")
	}
}

// SubmitFunc is a convenience method to submit a function as a task
func (wp *WorkerPool) SubmitFunc(id string, fn func(ctx context.Context) error) error {
	return wp.Submit(Task{
		ID: id,
		Fn: fn,
	})
}

// Close stops accepting tasks and waits until every queued task has run.
// ctx bounds the wait; when it expires the remaining tasks are cancelled.
func (wp *WorkerPool) Close(ctx context.Context) error {
	if !wp.closeQueue() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		return nil
	case <-ctx.Done():
		wp.cancel()
		<-done
		return fmt.Errorf("worker pool drain interrupted: %w", ctx.Err())
	}
}

func (wp *WorkerPool) closeQueue() bool {
	wp.submitMu.Lock()
	defer wp.submitMu.Unlock()

	if !wp.closed.CompareAndSwap(false, true) {
		return false
	}
	close(wp.taskQueue)
	return true
}

// GetMetrics returns a snapshot of the pool metrics
func (wp *WorkerPool) GetMetrics() MetricsSnapshot {
	if wp.metrics == nil {
		return MetricsSnapshot{}
	}
	return wp.metrics.GetSnapshot()
}
