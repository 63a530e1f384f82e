// Package metrics holds the Prometheus collectors of the fragment server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smoothstreamd"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by request kind and status code.",
	}, []string{"kind", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds by request kind.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 20},
	}, []string{"kind"})

	ServedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "served_total",
		Help:      "Manifests and fragments served, by request kind and source (local or remote).",
	}, []string{"kind", "source"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests proxied to the remote origin by upstream status code, or \"error\".",
	}, []string{"status"})

	UpstreamRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Remote origin fetch duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	})

	CaptionRewritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "caption_rewrites_total",
		Help:      "Caption fragments passed through the override engine, by result.",
	}, []string{"result"})

	WorkersBusy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_busy",
		Help:      "Requests currently holding a worker slot.",
	})

	RequestsQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "requests_queued",
		Help:      "Requests waiting for a worker slot.",
	})

	RequestsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_rejected_total",
		Help:      "Requests turned away before handling, by reason.",
	}, []string{"reason"})

	CatalogSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_size",
		Help:      "Loaded catalog entries by kind (episodes, streams, tracks, overrides).",
	}, []string{"kind"})
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ServedTotal,
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		CaptionRewritesTotal,
		WorkersBusy,
		RequestsQueued,
		RequestsRejectedTotal,
		CatalogSize,
	)
}
