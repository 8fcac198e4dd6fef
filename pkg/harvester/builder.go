// Package harvester assembles the locale tables, variant generator,
// suggestion client and aggregator into one ready-to-use pipeline.
package harvester

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"keyword-harvester/pkg/aggregator"
	"keyword-harvester/pkg/expansion"
	"keyword-harvester/pkg/locale"
	"keyword-harvester/pkg/logger"
	"keyword-harvester/pkg/storage"
	"keyword-harvester/pkg/suggest"
)

const maxWorkers = 64

// Pipeline is a fully wired aggregation stack
type Pipeline struct {
	Tables     *locale.Tables
	Generator  *expansion.Generator
	Fetcher    suggest.Fetcher
	Aggregator *aggregator.Aggregator
}

// Builder collects pipeline settings and reports every invalid one at Build
type Builder struct {
	suggestConfig suggest.Config
	aggConfig     aggregator.Config
	tablesPath    string
	fetcher       suggest.Fetcher
	sink          storage.LogSink
	log           *logger.Logger
	now           func() time.Time
	errors        []error
}

// NewBuilder starts from the default suggest and aggregator settings
func NewBuilder() *Builder {
	return &Builder{
		suggestConfig: suggest.DefaultConfig(),
		aggConfig:     aggregator.DefaultConfig(),
		errors:        make([]error, 0),
	}
}

// WithSuggest sets the autocomplete endpoint settings
func (b *Builder) WithSuggest(config suggest.Config) *Builder {
	if config.Endpoint != "" {
		u, err := url.Parse(config.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			b.errors = append(b.errors, fmt.Errorf("invalid suggest endpoint %q", config.Endpoint))
			return b
		}
	}
	if config.Client != "" {
		if _, err := suggest.ModeForClient(config.Client); err != nil {
			b.errors = append(b.errors, err)
			return b
		}
	}

	b.suggestConfig = config
	return b
}

// WithFetcher replaces the HTTP client, mostly for tests and dry runs
func (b *Builder) WithFetcher(fetcher suggest.Fetcher) *Builder {
	b.fetcher = fetcher
	return b
}

// WithAggregator sets fan-out and log emission settings
func (b *Builder) WithAggregator(config aggregator.Config) *Builder {
	if config.Workers <= 0 {
		b.errors = append(b.errors, fmt.Errorf("worker count must be positive, got: %d", config.Workers))
		return b
	}
	if config.Workers > maxWorkers {
		b.errors = append(b.errors, fmt.Errorf("worker count too high (max %d), got: %d", maxWorkers, config.Workers))
		return b
	}
	if _, err := expansion.ParseTemporalPolicy(config.TemporalPolicy); err != nil {
		b.errors = append(b.errors, err)
		return b
	}

	b.aggConfig = config
	return b
}

// WithLocaleTables loads tables from path instead of the embedded ones
func (b *Builder) WithLocaleTables(path string) *Builder {
	b.tablesPath = strings.TrimSpace(path)
	return b
}

// WithSink sets where run records go; a memory sink is used otherwise
func (b *Builder) WithSink(sink storage.LogSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the logger handed to the aggregator
func (b *Builder) WithLogger(log *logger.Logger) *Builder {
	b.log = log
	return b
}

// WithClock fixes the clock for temporal variants and log timestamps
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Validate returns all collected errors as one
func (b *Builder) Validate() error {
	if len(b.errors) == 0 {
		return nil
	}

	messages := make([]string, 0, len(b.errors))
	for _, err := range b.errors {
		messages = append(messages, err.Error())
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(messages, "; "))
}

// Build wires the pipeline
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	tables := locale.Default()
	if b.tablesPath != "" {
		loaded, err := locale.Load(b.tablesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load locale tables: %w", err)
		}
		tables = loaded
	}

	policy, _ := expansion.ParseTemporalPolicy(b.aggConfig.TemporalPolicy)
	genOpts := []expansion.GeneratorOption{expansion.WithTemporalPolicy(policy)}
	if b.now != nil {
		genOpts = append(genOpts, expansion.WithClock(b.now))
	}
	generator := expansion.NewGenerator(tables, genOpts...)

	fetcher := b.fetcher
	if fetcher == nil {
		client, err := suggest.NewClient(b.suggestConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create suggest client: %w", err)
		}
		fetcher = client
	}

	sink := b.sink
	if sink == nil {
		sink = storage.NewMemoryStorage()
	}

	var aggOpts []aggregator.Option
	if b.log != nil {
		aggOpts = append(aggOpts, aggregator.WithLogger(b.log))
	}
	if b.now != nil {
		aggOpts = append(aggOpts, aggregator.WithClock(b.now))
	}

	return &Pipeline{
		Tables:     tables,
		Generator:  generator,
		Fetcher:    fetcher,
		Aggregator: aggregator.New(b.aggConfig, tables, generator, fetcher, sink, aggOpts...),
	}, nil
}

// HasErrors returns true if there are any validation errors
func (b *Builder) HasErrors() bool {
	return len(b.errors) > 0
}
