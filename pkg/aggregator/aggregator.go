// Package aggregator fans expanded queries out to the suggestion fetcher,
// merges the answers and records a search log per run.
package aggregator

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"keyword-harvester/pkg/expansion"
	"keyword-harvester/pkg/locale"
	"keyword-harvester/pkg/logger"
	"keyword-harvester/pkg/metrics"
	"keyword-harvester/pkg/storage"
	"keyword-harvester/pkg/suggest"
	"keyword-harvester/pkg/worker"
)

// Config tunes fan-out and log emission
type Config struct {
	Workers        int           `mapstructure:"workers"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
	TemporalPolicy string        `mapstructure:"temporal_policy"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
	KeyPrefix      string        `mapstructure:"key_prefix"`
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	pool := worker.DefaultWorkerPoolConfig()
	return Config{
		Workers:        pool.MaxWorkers,
		TaskTimeout:    pool.WorkerTimeout,
		TemporalPolicy: string(expansion.DefaultTemporalPolicy),
		SinkTimeout:    5 * time.Second,
		KeyPrefix:      storage.DefaultKeyPrefix,
	}
}

// Option customizes an Aggregator
type Option func(*Aggregator)

// WithClock overrides the clock used for log timestamps and keys
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
		a.keys = storage.NewKeyClock(now)
	}
}

// WithLogger sets the logger; the global logger is used otherwise
func WithLogger(log *logger.Logger) Option {
	return func(a *Aggregator) {
		a.log = log.WithField("component", "aggregator")
	}
}

// Aggregator runs keyword aggregations. It is safe for concurrent use.
type Aggregator struct {
	config    Config
	tables    *locale.Tables
	generator *expansion.Generator
	fetcher   suggest.Fetcher
	sink      storage.LogSink
	keys      *storage.KeyClock
	now       func() time.Time
	log       *logger.Logger

	pending sync.WaitGroup
}

// fetchBatch is the answer for the variant at index
type fetchBatch struct {
	index       int
	suggestions []string
}

// New creates an aggregator. tables provide the region remap, generator
// the variants and fetcher the suggestions; one record per run goes to sink.
func New(config Config, tables *locale.Tables, generator *expansion.Generator, fetcher suggest.Fetcher, sink storage.LogSink, opts ...Option) *Aggregator {
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = defaults.TaskTimeout
	}
	if config.SinkTimeout <= 0 {
		config.SinkTimeout = defaults.SinkTimeout
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}

	a := &Aggregator{
		config:    config,
		tables:    tables,
		generator: generator,
		fetcher:   fetcher,
		sink:      sink,
		keys:      storage.NewKeyClock(nil),
		now:       time.Now,
		log:       logger.GetLogger().WithField("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate expands req, fetches every variant and returns the deduplicated
// results with a per-category summary. Only validation errors are returned;
// fetch and log sink failures are absorbed.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*Response, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	log := a.log.WithFields(map[string]interface{}{
		"run_id":   runID,
		"keyword":  req.Keyword,
		"country":  req.Country,
		"language": req.Language,
	})

	region := a.tables.Region(req.Country)
	if !a.tables.Supported(req.Language) {
		log.WithField("fallback", a.tables.Resolve(req.Language).Code).Debug("No locale table for language, using fallback")
	}
	variants := a.generator.Generate(req.Keyword, req.Language, req.Country).Variants()
	log.WithFields(map[string]interface{}{
		"variants": len(variants),
		"region":   region,
	}).Debug("Starting aggregation")

	batches := a.fetchAll(ctx, variants, req.Language, region, log)

	raw := make([]RawSuggestion, 0, len(variants)*10)
	for i, v := range variants {
		for _, s := range batches[i] {
			raw = append(raw, RawSuggestion{
				Index:      v.Index,
				Category:   v.Category,
				Query:      v.Query,
				Suggestion: s,
			})
		}
	}

	results := Dedupe(raw)
	resp := &Response{
		Results: results,
		Summary: Summarize(results),
		Total:   len(results),
	}

	duration := time.Since(start)
	metrics.ObserveAggregation(resp.Total, duration)
	log.WithFields(map[string]interface{}{
		"raw":      len(raw),
		"unique":   resp.Total,
		"duration": duration.String(),
	}).Info("Aggregation completed")

	a.emitLog(req, resp.Total, log)
	return resp, nil
}

// Wait blocks until every pending log write has finished
func (a *Aggregator) Wait() {
	a.pending.Wait()
}

// fetchAll runs one fetch per variant through a bounded pool. Batches come
// back over a channel and are placed by generation index, so the result
// does not depend on completion order.
func (a *Aggregator) fetchAll(ctx context.Context, variants []expansion.Variant, language, region string, log *logger.Logger) [][]string {
	batches := make([][]string, len(variants))
	if len(variants) == 0 {
		return batches
	}

	out := make(chan fetchBatch, len(variants))
	poolConfig := worker.DefaultWorkerPoolConfig()
	poolConfig.MaxWorkers = a.config.Workers
	poolConfig.QueueSize = len(variants)
	poolConfig.WorkerTimeout = a.config.TaskTimeout
	pool := worker.NewWorkerPool(poolConfig)
	if err := pool.Start(); err != nil {
		log.WithError(err).Error("Failed to start worker pool")
		return batches
	}

	for _, v := range variants {
		err := pool.Submit(worker.Task{
			ID: strconv.Itoa(v.Index),
			Fn: func(taskCtx context.Context) error {
				fetchCtx, cancel := joinContexts(ctx, taskCtx)
				defer cancel()
				out <- fetchBatch{index: v.Index, suggestions: a.fetcher.Fetch(fetchCtx, v.Query, language, region)}
				return nil
			},
		})
		if err != nil {
			log.WithError(err).WithField("query", v.Query).Warn("Failed to dispatch query")
		}
	}

	if err := pool.Close(ctx); err != nil {
		log.WithError(err).Warn("Aggregation interrupted")
	}
	close(out)

	snap := pool.GetMetrics()
	log.WithFields(map[string]interface{}{
		"submitted":    snap.TasksSubmitted,
		"rejected":     snap.TasksRejected,
		"max_duration": snap.MaxDuration.String(),
	}).Debug("Fetch pool drained")

	for batch := range out {
		batches[batch.index] = batch.suggestions
	}
	return batches
}

// emitLog writes the run record in the background with its own timeout
func (a *Aggregator) emitLog(req Request, count int, log *logger.Logger) {
	record := storage.NewLogRecord(req.Keyword, req.Country, req.Language, count, a.now())
	key := a.keys.Next(a.config.KeyPrefix)

	a.pending.Add(1)
	go func() {
		defer a.pending.Done()

		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("log sink panic: %v", r)
			}
			metrics.ObserveSinkWrite(err)
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("Failed to write search log")
			}
		}()

		if a.sink == nil {
			err = storage.ErrSinkClosed
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.config.SinkTimeout)
		defer cancel()
		err = a.sink.Put(ctx, key, record)
	}()
}

// joinContexts derives a context from parent that also ends when task does,
// carrying the task deadline so the fetcher can size its request timeout.
func joinContexts(parent, task context.Context) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if deadline, ok := task.Deadline(); ok {
		ctx, cancel = context.WithDeadline(parent, deadline)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	stop := context.AfterFunc(task, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
