// Package metrics registers the Prometheus collectors exported by traild.
//
// Collectors are package-level and registered once on the default registry so
// the batching engine, the API middleware and the daemon can record without
// passing a registry around. The /metrics route serves them through Handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trail"

var (
	RecordsAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "batch", Name: "records_added_total", Help: "Records admitted into a batch"},
		[]string{"type"},
	)
	BatchesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "batch", Name: "dispatched_total", Help: "Batches dispatched successfully"},
		[]string{"type"},
	)
	DispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "batch", Name: "dispatch_failures_total", Help: "Failed dispatch attempts"},
		[]string{"type"},
	)
	DispatchAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "batch", Name: "dispatch_alerts_total", Help: "Dispatch failures past the alert threshold"},
		[]string{"type"},
	)
	AdmissionTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "batch", Name: "admission_timeouts_total", Help: "Add calls rejected after waiting for a batch slot"},
		[]string{"type"},
	)
	PersistenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "batch", Name: "persistence_failures_total", Help: "Failed batch persistence writes"},
		[]string{"type"},
	)
	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: namespace, Subsystem: "batch", Name: "size_records", Help: "Records per dispatched batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8)},
	)
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: namespace, Subsystem: "batch", Name: "dispatch_duration_seconds", Help: "Time from batch close to completion, retries included",
			Buckets: prometheus.DefBuckets},
	)
	ActiveProcessors = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Subsystem: "batch", Name: "active_processors", Help: "Batch processors currently registered"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "events", Name: "published_total", Help: "Client events published"},
		[]string{"type"},
	)
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "events", Name: "dropped_total", Help: "Client events dropped because the buffer was full or publishing failed"},
		[]string{"type"},
	)
	GossipPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Subsystem: "gossip", Name: "peers", Help: "Alive peers in the gossip pool, this node included"},
	)
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "api", Name: "requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds", Help: "HTTP request latency", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		RecordsAdded,
		BatchesDispatched,
		DispatchFailures,
		DispatchAlerts,
		AdmissionTimeouts,
		PersistenceFailures,
		BatchSize,
		DispatchDuration,
		ActiveProcessors,
		EventsPublished,
		EventsDropped,
		GossipPeers,
		APIRequests,
		APIRequestDuration,
	)
}

// ObserveRequest records one finished HTTP request. path is the route
// template, not the raw URL, to keep label cardinality bounded.
func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	APIRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
