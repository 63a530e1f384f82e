// Package api serves the Smooth-Streaming HTTP surface: manifests and fragments
// from local copies first, proxied from the origin otherwise, with caption
// fragments rewritten on the way out.
package api

import (
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"net/http"
	"smoothstreamd/internal/logger"
	"smoothstreamd/internal/origin"
)

// Catalog resolves episodes to remote URLs and local copies.
type Catalog interface {
	ManifestURL(episodeID string) (string, error)
	FragmentURL(episodeID, bitrate, trackKey, startTime string) (string, error)
	ClientManifest(episodeID string) ([]byte, bool)
	Fragment(episodeID, trackKey, bitrate, startTime string) ([]byte, bool)
}

// Fetcher performs pass-through GETs against the origin.
type Fetcher interface {
	Fetch(ctx context.Context, target string, inbound http.Header) (*origin.Response, error)
}

// Overrider rewrites the TTML of a caption fragment.
type Overrider interface {
	Override(episodeID, trackKey string, ttml []byte, titleSentinel bool) []byte
}

// HealthFunc reports counters shown by /healthz.
type HealthFunc func() map[string]int

// Server wires the request handlers to their collaborators.
type Server struct {
	catalog   Catalog
	origin    Fetcher
	subtitles Overrider
	logger    logger.Logger

	offline    bool
	maxThreads int
	maxQueued  int
	rateLimit  float64
	gatherer   prometheus.Gatherer
	health     HealthFunc
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithOfflineMode makes missing local copies answer 406 instead of being proxied.
func WithOfflineMode(offline bool) ServerOption {
	return func(s *Server) {
		s.offline = offline
	}
}

// WithWorkerPool bounds concurrent requests to maxThreads with up to maxQueued waiting.
func WithWorkerPool(maxThreads, maxQueued int) ServerOption {
	return func(s *Server) {
		s.maxThreads = maxThreads
		s.maxQueued = maxQueued
	}
}

// WithRateLimit enables a global token bucket of rps requests per second.
func WithRateLimit(rps float64) ServerOption {
	return func(s *Server) {
		s.rateLimit = rps
	}
}

// WithMetrics exposes g on /metrics.
func WithMetrics(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithHealth adds counters to the /healthz payload.
func WithHealth(fn HealthFunc) ServerOption {
	return func(s *Server) {
		s.health = fn
	}
}

// NewServer creates a server. subtitles may be nil when no caption rewriting is wanted.
func NewServer(catalog Catalog, fetcher Fetcher, subtitles Overrider, options ...ServerOption) *Server {
	s := &Server{
		catalog:   catalog,
		origin:    fetcher,
		subtitles: subtitles,
		logger:    logger.Nop(),
	}
	for _, option := range options {
		if option != nil {
			option(s)
		}
	}
	return s
}

// Handler returns the HTTP handler with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recovery(s.logger))
	r.Use(accessLog(s.logger.Named("http")))
	r.Use(instrument)
	if s.rateLimit > 0 {
		r.Use(rateLimit(s.rateLimit, max(int(s.rateLimit), 1)))
	}
	if s.maxThreads > 0 {
		r.Use(newWorkerPool(s.maxThreads, s.maxQueued).middleware)
	}

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	smooth := otelhttp.NewHandler(http.HandlerFunc(s.serveSmooth), "smoothstreamd")
	r.NotFound(smooth.ServeHTTP)
	r.MethodNotAllowed(smooth.ServeHTTP)
	r.Handle("/*", smooth)
	return r
}
