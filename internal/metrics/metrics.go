// Package metrics exposes request and cache counters in the Prometheus
// format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("veneer.metrics")

const namespace = "veneer"

var (
	// requests counts dispatched editor requests.
	// Labels: operation, dialect
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "requests_total",
		Help:      "Editor requests dispatched to an engine",
	}, []string{"operation", "dialect"})

	// notApplicable counts requests answered with an empty result before
	// reaching an engine (unknown dialect, missing capability, mapping gap).
	// Labels: operation, dialect, reason
	notApplicable = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "not_applicable_total",
		Help:      "Editor requests that had no applicable answer",
	}, []string{"operation", "dialect", "reason"})

	// engineFailures counts engine errors and panics.
	// Labels: operation, engine
	engineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "engine_failures_total",
		Help:      "Engine calls that returned an error or panicked",
	}, []string{"operation", "engine"})

	// engineLatency measures engine calls.
	// Labels: operation, engine
	engineLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "engine_seconds",
		Help:      "Engine call latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation", "engine"})

	// indexedFiles counts files committed to the workspace index.
	indexedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "files_total",
		Help:      "Files committed to the workspace index",
	})

	caches = newCacheCollector()
)

func init() {
	prometheus.MustRegister(caches)
}

func RecordRequest(operation, dialect string) {
	requests.WithLabelValues(operation, dialect).Inc()
}

func RecordNotApplicable(operation, dialect, reason string) {
	notApplicable.WithLabelValues(operation, dialect, reason).Inc()
}

func RecordEngineFailure(operation, engine string) {
	engineFailures.WithLabelValues(operation, engine).Inc()
}

func RecordEngineLatency(operation, engine string, d time.Duration) {
	engineLatency.WithLabelValues(operation, engine).Observe(d.Seconds())
}

func RecordIndexedFile() {
	indexedFiles.Inc()
}

// StatsFunc reports cache lookups answered from the cache and lookups that
// had to compute.
type StatsFunc func() (hits, misses uint64)

// TrackCache exports the hit and miss counts of a cache. Tracking a name
// again replaces the previous source.
func TrackCache(name string, stats StatsFunc) {
	caches.track(name, stats)
}

type cacheCollector struct {
	hits   *prometheus.Desc
	misses *prometheus.Desc

	mu      sync.Mutex
	sources map[string]StatsFunc
}

func newCacheCollector() *cacheCollector {
	return &cacheCollector{
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hits_total"),
			"Cache lookups answered from the cache", []string{"cache"}, nil),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "misses_total"),
			"Cache lookups that had to compute", []string{"cache"}, nil),
		sources: make(map[string]StatsFunc),
	}
}

func (c *cacheCollector) track(name string, stats StatsFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[name] = stats
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, stats := range c.sources {
		hits, misses := stats()
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(misses), name)
	}
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	}()

	log.Infof("serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
