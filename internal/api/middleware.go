package api

import (
	"bufio"
	"context"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"net"
	"net/http"
	"runtime/debug"
	"smoothstreamd/internal/logger"
	"smoothstreamd/internal/metrics"
	"smoothstreamd/internal/route"
	"strconv"
	"time"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

// requestID reuses an inbound X-Request-ID or generates a UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDFrom returns the request id stored by the request id middleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// accessLog writes one line per request; the level follows the status class.
func accessLog(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			const format = "%s %s -> %d (%d bytes) in %s [%s]"
			args := []interface{}{r.Method, r.URL.Path, rw.status, rw.size, time.Since(start), RequestIDFrom(r.Context())}
			switch {
			case rw.status >= 500:
				log.Errorf(format, args...)
			case rw.status >= 400:
				log.Warnf(format, args...)
			default:
				log.Debugf(format, args...)
			}
		})
	}
}

// recovery turns a panicking handler into a 500 so the worker survives.
func recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					if recovered == http.ErrAbortHandler {
						panic(recovered)
					}
					log.Errorf("panic recovered on %s %s: %v\n%s", r.Method, r.URL.Path, recovered, debug.Stack())
					writeStatus(w, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// instrument records request counts and latency by request kind.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := requestKind(r)
		if kind == "metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		metrics.HTTPRequestsTotal.WithLabelValues(kind, strconv.Itoa(rw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	})
}

func requestKind(r *http.Request) string {
	switch r.URL.Path {
	case "/metrics":
		return "metrics"
	case "/healthz":
		return "health"
	}
	return route.Parse(r.Method, r.URL.Path).Kind.String()
}

// isOperational reports whether the request targets /healthz or /metrics.
func isOperational(r *http.Request) bool {
	return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
}

// rateLimit applies a global token bucket. Requests over the limit receive 429.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isOperational(r) {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow() {
				metrics.RequestsRejectedTotal.WithLabelValues("rate_limited").Inc()
				w.Header().Set("Retry-After", "1")
				writeStatus(w, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
