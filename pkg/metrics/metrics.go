// Package metrics exposes Prometheus instrumentation for fetches,
// aggregations and the log sink.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"keyword-harvester/pkg/logger"
)

const namespace = "harvester"

// Fetch outcomes
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeStatus    = "bad_status"
	OutcomeDecode    = "decode_error"
	OutcomeTimeout   = "timeout"
)

var (
	fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "suggest_fetch_total",
		Help:      "Autocomplete requests by response mode and outcome",
	}, []string{"mode", "outcome"})

	fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "suggest_fetch_duration_seconds",
		Help:      "Autocomplete request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	aggregationTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aggregations_total",
		Help:      "Completed keyword aggregations",
	})

	aggregationResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "aggregation_results",
		Help:      "Unique suggestions returned per aggregation",
		Buckets:   []float64{0, 10, 25, 50, 100, 200, 400, 800},
	})

	aggregationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "aggregation_duration_seconds",
		Help:      "Wall-clock time of a full aggregation",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40},
	})

	sinkWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "log_sink_writes_total",
		Help:      "Search log writes by outcome",
	}, []string{"outcome"})

	storedLogsDesc = prometheus.NewDesc(
		namespace+"_search_logs_stored",
		"Search log records currently held by the log sink",
		nil,
		nil,
	)
)

// KeyLister is the part of the log sink the stored-log collector needs
type KeyLister interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// StoredLogsCollector counts stored search logs on each scrape
type StoredLogsCollector struct {
	sink    KeyLister
	prefix  string
	timeout time.Duration
}

// Describe sends the metric descriptor to the channel.
func (c *StoredLogsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storedLogsDesc
}

// Collect lists the sink keys and emits their count as a gauge.
func (c *StoredLogsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	keys, err := c.sink.ListKeys(ctx, c.prefix)
	if err != nil {
		logger.GetLogger().WithField("component", "metrics").WithError(err).Warn("Failed to collect stored log count")
		return
	}
	ch <- prometheus.MustNewConstMetric(storedLogsDesc, prometheus.GaugeValue, float64(len(keys)))
}

var registerOnce sync.Once

// Register adds all collectors to reg. sink may be nil, in which case the
// stored-log gauge is not exported. Must be called once at startup.
func Register(reg prometheus.Registerer, sink KeyLister, prefix string) {
	registerOnce.Do(func() {
		reg.MustRegister(fetchTotal, fetchDuration, aggregationTotal, aggregationResults, aggregationDuration, sinkWrites)
		if sink != nil {
			reg.MustRegister(&StoredLogsCollector{sink: sink, prefix: prefix, timeout: 5 * time.Second})
		}
	})
}

// ObserveFetch records one autocomplete request
func ObserveFetch(mode, outcome string, duration time.Duration) {
	fetchTotal.WithLabelValues(mode, outcome).Inc()
	fetchDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveAggregation records one finished aggregation
func ObserveAggregation(results int, duration time.Duration) {
	aggregationTotal.Inc()
	aggregationResults.Observe(float64(results))
	aggregationDuration.Observe(duration.Seconds())
}

// ObserveSinkWrite records a log sink write
func ObserveSinkWrite(err error) {
	if err != nil {
		sinkWrites.WithLabelValues("error").Inc()
		return
	}
	sinkWrites.WithLabelValues("ok").Inc()
}
