package api

import (
	"golang.org/x/sync/semaphore"
	"net/http"
	"smoothstreamd/internal/metrics"
	"sync/atomic"
)

// workerPool bounds how many requests run at once. Up to maxQueued further
// requests wait for a slot; anything beyond that is answered with 503.
type workerPool struct {
	slots     *semaphore.Weighted
	maxQueued int64
	queued    atomic.Int64
}

func newWorkerPool(maxThreads, maxQueued int) *workerPool {
	return &workerPool{
		slots:     semaphore.NewWeighted(int64(maxThreads)),
		maxQueued: int64(maxQueued),
	}
}

func (p *workerPool) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isOperational(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !p.slots.TryAcquire(1) {
			if p.queued.Add(1) > p.maxQueued {
				p.queued.Add(-1)
				metrics.RequestsRejectedTotal.WithLabelValues("queue_full").Inc()
				writeStatus(w, http.StatusServiceUnavailable)
				return
			}
			metrics.RequestsQueued.Inc()
			err := p.slots.Acquire(r.Context(), 1)
			p.queued.Add(-1)
			metrics.RequestsQueued.Dec()
			if err != nil {
				// The caller left while queued.
				metrics.RequestsRejectedTotal.WithLabelValues("cancelled").Inc()
				return
			}
		}
		metrics.WorkersBusy.Inc()
		defer func() {
			metrics.WorkersBusy.Dec()
			p.slots.Release(1)
		}()
		next.ServeHTTP(w, r)
	})
}
