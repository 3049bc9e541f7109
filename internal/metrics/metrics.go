// Package metrics defines process metrics for the NDVI pipeline and exports
// them to a node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ndvimap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ndvimap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"cache"})

	// Upstream metrics
	TokenExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ndvimap",
		Subsystem: "auth",
		Name:      "token_exchanges_total",
		Help:      "Client-credentials exchanges by result",
	}, []string{"result"})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ndvimap",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Outbound HTTP requests",
	}, []string{"method", "host", "status"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ndvimap",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Outbound HTTP latency in seconds",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "host"})

	// Statistics metrics
	IntervalsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ndvimap",
		Subsystem: "stats",
		Name:      "intervals_total",
		Help:      "Statistics intervals seen by outcome",
	}, []string{"outcome"})

	// Raster metrics
	SynthesisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ndvimap",
		Subsystem: "synth",
		Name:      "duration_seconds",
		Help:      "Procedural raster synthesis time in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 7),
	})
)

// WriteTextfile writes every registered metric to path in the Prometheus text
// format, creating parent directories as needed.
func WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
