package worker

import (
	"context"
	"fmt"
	"time"

	"keyword-harvester/pkg/logger"
)

// worker represents a single worker goroutine
type worker struct {
	id        int
	taskQueue <-chan Task
	timeout   time.Duration
	log       *logger.Logger
}

// newWorker creates a new worker instance
func newWorker(id int, taskQueue <-chan Task, timeout time.Duration, log *logger.Logger) *worker {
	return &worker{
		id:        id,
		taskQueue: taskQueue,
		timeout:   timeout,
		log:       log.WithField("worker_id", id),
	}
}

// start runs queued tasks until the queue is closed and drained. A cancelled
// pool context still drains the queue so every task observes cancellation
// through its own context instead of being dropped silently.
func (w *worker) start(ctx context.Context, metrics *PoolMetrics) {
	for task := range w.taskQueue {
		w.processTask(ctx, task, metrics)
	}
}

// processTask executes a single task with timeout and panic recovery
func (w *worker) processTask(ctx context.Context, task Task, metrics *PoolMetrics) Result {
	start := time.Now()

	taskTimeout := task.Timeout
	if taskTimeout == 0 {
		taskTimeout = w.timeout
	}

	taskCtx := ctx
	if taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, taskTimeout)
		defer cancel()
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.WithFields(map[string]interface{}{
					"task_id": task.ID,
					"panic":   r,
				}).Error("Task panicked")
				err = &PanicError{Value: r}
			}
		}()

		err = task.Fn(taskCtx)
	}()

	duration := time.Since(start)

	result := Result{
		TaskID:   task.ID,
		Error:    err,
		Duration: duration,
	}

	if metrics != nil {
		metrics.RecordTaskResult(result)
	}

	if err != nil {
		w.log.WithFields(map[string]interface{}{
			"task_id":  task.ID,
			"duration": duration.String(),
			"error":    err.Error(),
		}).Warn("Task completed with error")
	}

	return result
}

// PanicError wraps a panic value as an error
type PanicError struct {
	Value interface{}
}

func (pe *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", pe.Value)
}
