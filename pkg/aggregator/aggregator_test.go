package aggregator

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"keyword-harvester/pkg/expansion"
	"keyword-harvester/pkg/locale"
	"keyword-harvester/pkg/logger"
	"keyword-harvester/pkg/storage"
	"keyword-harvester/pkg/suggest"
	"keyword-harvester/pkg/worker"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

// recordingSink remembers every Put and optionally fails
type recordingSink struct {
	storage.LogSink
	mu      sync.Mutex
	keys    []string
	records []storage.LogRecord
	err     error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{LogSink: storage.NewMemoryStorage()}
}

func (s *recordingSink) Put(ctx context.Context, key string, record storage.LogRecord) error {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.records = append(s.records, record)
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return s.LogSink.Put(ctx, key, record)
}

func (s *recordingSink) puts() []storage.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.LogRecord(nil), s.records...)
}

// callLog records the arguments of every fetch
type callLog struct {
	mu      sync.Mutex
	queries []string
	regions map[string]bool
	langs   map[string]bool
}

func (c *callLog) wrap(answers map[string][]string) suggest.Fetcher {
	c.regions = map[string]bool{}
	c.langs = map[string]bool{}
	return suggest.FetcherFunc(func(ctx context.Context, query, language, region string) []string {
		c.mu.Lock()
		c.queries = append(c.queries, query)
		c.regions[region] = true
		c.langs[language] = true
		c.mu.Unlock()
		return answers[query]
	})
}

func newTestAggregator(fetcher suggest.Fetcher, sink storage.LogSink) *Aggregator {
	tables := locale.Default()
	generator := expansion.NewGenerator(tables, expansion.WithClock(func() time.Time { return fixedNow }))
	return New(Config{Workers: 4, TaskTimeout: time.Second}, tables, generator, fetcher, sink,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logger.Nop()))
}

func TestAggregatePizzaScenario(t *testing.T) {
	calls := &callLog{}
	fetcher := calls.wrap(map[string][]string{
		"pizza":   {"pizza recipe"},
		"pizza a": {"pizza az"},
	})
	sink := newRecordingSink()
	agg := newTestAggregator(fetcher, sink)

	resp, err := agg.Aggregate(context.Background(), Request{Keyword: "pizza", Country: "us", Language: "en"})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	agg.Wait()

	want := []ResultItem{
		{Category: expansion.CategoryBase, Suggestion: "pizza recipe", Query: "pizza"},
		{Category: expansion.CategoryAlphabet, Suggestion: "pizza az", Query: "pizza a"},
	}
	if !reflect.DeepEqual(resp.Results, want) {
		t.Errorf("Unexpected results %+v", resp.Results)
	}

	wantSummary := []CategorySummary{
		{Category: expansion.CategoryBase, Count: 1},
		{Category: expansion.CategoryAlphabet, Count: 1},
	}
	if !reflect.DeepEqual(resp.Summary, wantSummary) {
		t.Errorf("Unexpected summary %+v", resp.Summary)
	}
	if resp.Total != 2 {
		t.Errorf("Expected total 2, got %d", resp.Total)
	}

	if len(calls.queries) != 46 {
		t.Errorf("Expected 46 fetches, got %d", len(calls.queries))
	}

	puts := sink.puts()
	if len(puts) != 1 || puts[0].ResultsCount != 2 || puts[0].Keyword != "pizza" {
		t.Errorf("Unexpected log writes %+v", puts)
	}
	if puts[0].Date != "2026-10-18T09:30:00.000Z" {
		t.Errorf("Unexpected log date %s", puts[0].Date)
	}
}

func TestAggregateFullFailure(t *testing.T) {
	fetcher := suggest.FetcherFunc(func(ctx context.Context, query, language, region string) []string {
		return []string{}
	})
	sink := newRecordingSink()
	agg := newTestAggregator(fetcher, sink)

	resp, err := agg.Aggregate(context.Background(), Request{Keyword: "pizza", Country: "es", Language: "es"})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	agg.Wait()

	if len(resp.Results) != 0 || len(resp.Summary) != 0 || resp.Total != 0 {
		t.Errorf("Expected empty response, got %+v", resp)
	}
	if resp.Results == nil || resp.Summary == nil {
		t.Error("Expected empty slices, not nil, so JSON renders []")
	}

	puts := sink.puts()
	if len(puts) != 1 {
		t.Fatalf("Expected exactly one log write, got %d", len(puts))
	}
	if puts[0].ResultsCount != 0 {
		t.Errorf("Expected results count 0, got %d", puts[0].ResultsCount)
	}
}

func TestAggregateValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing keyword", Request{Keyword: "  ", Country: "us", Language: "en"}, "keyword"},
		{"missing country", Request{Keyword: "pizza", Language: "en"}, "country"},
		{"missing language", Request{Keyword: "pizza", Country: "us", Language: "\t"}, "language"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetched := false
			fetcher := suggest.FetcherFunc(func(ctx context.Context, query, language, region string) []string {
				fetched = true
				return nil
			})
			sink := newRecordingSink()
			agg := newTestAggregator(fetcher, sink)

			_, err := agg.Aggregate(context.Background(), tt.req)
			agg.Wait()

			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("Expected validation error on %s, got %v", tt.field, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("Expected error to match ErrValidation")
			}
			if fetched {
				t.Error("Expected no fetches on invalid request")
			}
			if len(sink.puts()) != 0 {
				t.Error("Expected no log write on invalid request")
			}
		})
	}
}

func TestAggregateRegionRemap(t *testing.T) {
	calls := &callLog{}
	fetcher := calls.wrap(nil)
	sink := newRecordingSink()
	agg := newTestAggregator(fetcher, sink)

	if _, err := agg.Aggregate(context.Background(), Request{Keyword: "pizza", Country: "pr", Language: "es"}); err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	agg.Wait()

	if len(calls.regions) != 1 || !calls.regions["us"] {
		t.Errorf("Expected every fetch to use region us, got %v", calls.regions)
	}
	if len(calls.langs) != 1 || !calls.langs["es"] {
		t.Errorf("Expected language passed through, got %v", calls.langs)
	}

	puts := sink.puts()
	if len(puts) != 1 || puts[0].Country != "pr" {
		t.Errorf("Expected log to keep original country, got %+v", puts)
	}
}

func TestAggregateUnsupportedLanguageFallsBack(t *testing.T) {
	calls := &callLog{}
	fetcher := calls.wrap(nil)
	agg := newTestAggregator(fetcher, newRecordingSink())

	if _, err := agg.Aggregate(context.Background(), Request{Keyword: "pizza", Country: "de", Language: "de"}); err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	agg.Wait()

	if len(calls.langs) != 1 || !calls.langs["de"] {
		t.Errorf("Expected requested language passed through, got %v", calls.langs)
	}
	found := false
	for _, q := range calls.queries {
		if q == "cómo pizza" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected fallback question variants, got %v", calls.queries)
	}
}

func TestDefaultConfigFollowsPoolDefaults(t *testing.T) {
	pool := worker.DefaultWorkerPoolConfig()
	config := DefaultConfig()
	if config.Workers != pool.MaxWorkers || config.TaskTimeout != pool.WorkerTimeout {
		t.Errorf("DefaultConfig() = %+v, pool defaults %+v", config, pool)
	}
}

func TestAggregateFirstCategoryWinsUnderReordering(t *testing.T) {
	// The Base answer arrives last, after every other variant answered
	// with the same suggestion.
	release := make(chan struct{})
	var once sync.Once
	var answered sync.WaitGroup
	answered.Add(45)

	fetcher := suggest.FetcherFunc(func(ctx context.Context, query, language, region string) []string {
		if query == "pizza" {
			once.Do(func() {
				go func() {
					answered.Wait()
					close(release)
				}()
			})
			<-release
			return []string{"pizza hut", "pizza base only"}
		}
		defer answered.Done()
		return []string{"pizza hut"}
	})

	sink := newRecordingSink()
	agg := newTestAggregator(fetcher, sink)

	resp, err := agg.Aggregate(context.Background(), Request{Keyword: "pizza", Country: "us", Language: "en"})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	agg.Wait()

	want := []ResultItem{
		{Category: expansion.CategoryBase, Suggestion: "pizza hut", Query: "pizza"},
		{Category: expansion.CategoryBase, Suggestion: "pizza base only", Query: "pizza"},
	}
	if !reflect.DeepEqual(resp.Results, want) {
		t.Errorf("Unexpected results %+v", resp.Results)
	}
}

func TestAggregateSinkFailureIsAbsorbed(t *testing.T) {
	fetcher := suggest.FetcherFunc(func(ctx context.Context, query, language, region string) []string {
		if query == "pizza" {
			return []string{"pizza hut"}
		}
		return nil
	})
	sink := newRecordingSink()
	sink.err = errors.New("connection refused")
	agg := newTestAggregator(fetcher, sink)

	resp, err := agg.Aggregate(context.Background(), Request{Keyword: "pizza", Country: "us", Language: "en"})
	if err != nil {
		t.Fatalf("Expected sink failure to be absorbed, got %v", err)
	}
	agg.Wait()

	if resp.Total != 1 {
		t.Errorf("Expected one result, got %d", resp.Total)
	}
	if len(sink.puts()) != 1 {
		t.Errorf("Expected one attempted write, got %d", len(sink.puts()))
	}
}

func TestAggregateLogKeysIncrease(t *testing.T) {
	fetcher := suggest.FetcherFunc(func(ctx context.Context, query, language, region string) []string { return nil })
	sink := newRecordingSink()
	agg := newTestAggregator(fetcher, sink)

	for i := 0; i < 3; i++ {
		if _, err := agg.Aggregate(context.Background(), Request{Keyword: "pizza", Country: "us", Language: "en"}); err != nil {
			t.Fatalf("Aggregate failed: %v", err)
		}
	}
	agg.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.keys) != 3 {
		t.Fatalf("Expected 3 keys, got %v", sink.keys)
	}
	seen := map[string]bool{}
	for _, key := range sink.keys {
		if seen[key] {
			t.Errorf("Duplicate log key %s", key)
		}
		seen[key] = true
	}
}

func TestAggregateSlowFetchTimesOut(t *testing.T) {
	fetcher := suggest.FetcherFunc(func(ctx context.Context, query, language, region string) []string {
		if query == "pizza" {
			<-ctx.Done()
			return nil
		}
		if query == "pizza a" {
			return []string{"pizza al taglio"}
		}
		return nil
	})

	tables := locale.Default()
	generator := expansion.NewGenerator(tables, expansion.WithClock(func() time.Time { return fixedNow }))
	agg := New(Config{Workers: 8, TaskTimeout: 50 * time.Millisecond}, tables, generator, fetcher, newRecordingSink(),
		WithLogger(logger.Nop()))

	resp, err := agg.Aggregate(context.Background(), Request{Keyword: "pizza", Country: "us", Language: "en"})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	agg.Wait()

	if resp.Total != 1 || resp.Results[0].Suggestion != "pizza al taglio" {
		t.Errorf("Expected only the fast answer, got %+v", resp.Results)
	}
}
