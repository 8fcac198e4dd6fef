package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeLister struct {
	keys []string
	err  error
}

func (f *fakeLister) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	return f.keys, f.err
}

func TestStoredLogsCollector(t *testing.T) {
	collector := &StoredLogsCollector{
		sink:    &fakeLister{keys: []string{"search_log:1", "search_log:2", "search_log:3"}},
		prefix:  "search_log:",
		timeout: time.Second,
	}

	if got := testutil.CollectAndCount(collector); got != 1 {
		t.Fatalf("Expected 1 metric, got %d", got)
	}

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(collector)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) != 1 {
		t.Fatalf("Expected 1 family, got %d", len(families))
	}
	if v := families[0].GetMetric()[0].GetGauge().GetValue(); v != 3 {
		t.Errorf("Expected gauge value 3, got %v", v)
	}
}

func TestStoredLogsCollectorSkipsOnError(t *testing.T) {
	collector := &StoredLogsCollector{
		sink:    &fakeLister{err: errors.New("boom")},
		timeout: time.Second,
	}

	if got := testutil.CollectAndCount(collector); got != 0 {
		t.Errorf("Expected no metrics on sink error, got %d", got)
	}
}

func TestObserveFetchCounts(t *testing.T) {
	before := testutil.ToFloat64(fetchTotal.WithLabelValues("list", OutcomeOK))
	ObserveFetch("list", OutcomeOK, 10*time.Millisecond)
	after := testutil.ToFloat64(fetchTotal.WithLabelValues("list", OutcomeOK))

	if after-before != 1 {
		t.Errorf("Expected counter to grow by 1, grew by %v", after-before)
	}
}
