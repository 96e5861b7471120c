// Package proxy forwards application requests to the backend through a pool
// of recycling workers. The pool reproduces the process-group contract the
// deployment has always run with: a fixed number of workers, a fixed number
// of concurrent requests per worker, and periodic worker recycling so no
// single upstream connection set lives forever.
package proxy

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/scitran/nims-gateway/pkg/types"
)

const (
	defaultWorkers        = 4
	defaultThreads        = 16
	defaultMaxRequests    = 1000
	defaultAcquireTimeout = 10 * time.Second
)

// Worker owns one upstream transport and a fixed number of request slots.
type Worker struct {
	id           int
	slots        *semaphore.Weighted
	transport    atomic.Pointer[http.Transport]
	newTransport func() *http.Transport

	inflight atomic.Int64
	served   atomic.Uint64
	recycles atomic.Uint64

	maxRequests uint64
}

// Transport returns the worker's current upstream transport. In-flight
// requests keep whatever transport they started with across a recycle.
func (w *Worker) Transport() http.RoundTripper {
	return w.transport.Load()
}

func (w *Worker) recycle() {
	old := w.transport.Swap(w.newTransport())
	if old != nil {
		old.CloseIdleConnections()
	}
	w.recycles.Add(1)
	log.Debug().Int("worker", w.id).Uint64("served", w.served.Load()).Msg("worker recycled")
}

// WorkerStats is a point-in-time snapshot for health reporting.
type WorkerStats struct {
	ID       int    `json:"id"`
	Inflight int64  `json:"inflight"`
	Served   uint64 `json:"served"`
	Recycles uint64 `json:"recycles"`
}

// Pool dispatches requests to the least-loaded worker.
type Pool struct {
	displayName    string
	workers        []*Worker
	acquireTimeout time.Duration

	mu sync.Mutex // serializes dispatch decisions
}

// NewPool builds the worker pool. transportFactory produces a fresh upstream
// transport; it is called once per worker at startup and again on recycle.
func NewPool(cfg types.PoolConfig, transportFactory func() *http.Transport) *Pool {
	workers := cfg.Workers
	if workers < 1 {
		workers = defaultWorkers
	}
	threads := cfg.Threads
	if threads < 1 {
		threads = defaultThreads
	}
	maxRequests := cfg.MaxRequests
	if maxRequests < 1 {
		maxRequests = defaultMaxRequests
	}
	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = defaultAcquireTimeout
	}

	p := &Pool{
		displayName:    cfg.DisplayName,
		acquireTimeout: acquireTimeout,
	}
	for i := 0; i < workers; i++ {
		w := &Worker{
			id:           i,
			slots:        semaphore.NewWeighted(int64(threads)),
			newTransport: transportFactory,
			maxRequests:  uint64(maxRequests),
		}
		w.transport.Store(transportFactory())
		p.workers = append(p.workers, w)
	}

	log.Info().
		Str("pool", cfg.DisplayName).
		Int("workers", workers).
		Int("threads", threads).
		Int("max_requests", maxRequests).
		Msg("upstream pool started")

	return p
}

// Acquire picks the least-loaded worker and claims a request slot, blocking
// until a slot frees up, the context ends, or the acquire timeout expires.
// The returned release func must be called exactly once when the request
// completes; it counts the request toward the worker's recycle threshold.
func (p *Pool) Acquire(ctx context.Context) (*Worker, func(), error) {
	p.mu.Lock()
	w := p.workers[0]
	for _, candidate := range p.workers[1:] {
		if candidate.inflight.Load() < w.inflight.Load() {
			w = candidate
		}
	}
	w.inflight.Add(1)
	p.mu.Unlock()

	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	if err := w.slots.Acquire(acquireCtx, 1); err != nil {
		w.inflight.Add(-1)
		return nil, nil, &types.ErrNoWorkerAvailable{Pool: p.displayName}
	}

	release := func() {
		w.slots.Release(1)
		w.inflight.Add(-1)
		// served values are unique per completion, so exactly one request
		// triggers each recycle
		if w.served.Add(1)%w.maxRequests == 0 {
			w.recycle()
		}
	}
	return w, release, nil
}

// Stats snapshots every worker for the health endpoint.
func (p *Pool) Stats() []WorkerStats {
	stats := make([]WorkerStats, 0, len(p.workers))
	for _, w := range p.workers {
		stats = append(stats, WorkerStats{
			ID:       w.id,
			Inflight: w.inflight.Load(),
			Served:   w.served.Load(),
			Recycles: w.recycles.Load(),
		})
	}
	return stats
}

// DisplayName tags log lines and health output for the group.
func (p *Pool) DisplayName() string {
	return p.displayName
}

// Shutdown closes idle upstream connections on every worker.
func (p *Pool) Shutdown() {
	for _, w := range p.workers {
		if t := w.transport.Load(); t != nil {
			t.CloseIdleConnections()
		}
	}
}

// DefaultTransportFactory builds upstream transports for an HTTP backend.
// unixSocket, when set, routes every connection through the socket instead
// of TCP (the usual arrangement when the application server runs alongside
// the gateway).
func DefaultTransportFactory(unixSocket string) func() *http.Transport {
	return func() *http.Transport {
		t := &http.Transport{
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
		}
		if unixSocket != "" {
			t.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", unixSocket)
			}
		}
		return t
	}
}
