package proxy

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scitran/nims-gateway/pkg/types"
)

func newTestPool(cfg types.PoolConfig) *Pool {
	return NewPool(cfg, DefaultTransportFactory(""))
}

func TestPoolDefaults(t *testing.T) {
	p := newTestPool(types.PoolConfig{DisplayName: "nims"})

	stats := p.Stats()
	require.Len(t, stats, 4)
	assert.Equal(t, "nims", p.DisplayName())
}

func TestAcquireRelease(t *testing.T) {
	p := newTestPool(types.PoolConfig{Workers: 2, Threads: 2, MaxRequests: 100})

	w, release, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.NotNil(t, w.Transport())

	release()

	total := uint64(0)
	for _, s := range p.Stats() {
		total += s.Served
		assert.Zero(t, s.Inflight)
	}
	assert.Equal(t, uint64(1), total)
}

func TestLeastLoadedDispatch(t *testing.T) {
	p := newTestPool(types.PoolConfig{Workers: 2, Threads: 4, MaxRequests: 100})

	// hold a slot on one worker; next acquire must land on the other
	w1, release1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer release1()

	w2, release2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer release2()

	assert.NotEqual(t, w1, w2)
}

func TestRecycleAfterMaxRequests(t *testing.T) {
	p := newTestPool(types.PoolConfig{Workers: 1, Threads: 4, MaxRequests: 5})
	w := p.workers[0]
	before := w.Transport()

	for i := 0; i < 5; i++ {
		_, release, err := p.Acquire(context.Background())
		require.NoError(t, err)
		release()
	}

	stats := p.Stats()[0]
	assert.Equal(t, uint64(5), stats.Served)
	assert.Equal(t, uint64(1), stats.Recycles)
	assert.NotSame(t, before.(*http.Transport), w.Transport().(*http.Transport))

	// next cycle recycles again
	for i := 0; i < 5; i++ {
		_, release, err := p.Acquire(context.Background())
		require.NoError(t, err)
		release()
	}
	assert.Equal(t, uint64(2), p.Stats()[0].Recycles)
}

func TestRecycleKeepsInflightTransport(t *testing.T) {
	p := newTestPool(types.PoolConfig{Workers: 1, Threads: 4, MaxRequests: 1})

	w, release, err := p.Acquire(context.Background())
	require.NoError(t, err)
	held := w.Transport()

	// another request completes and trips the recycle
	_, release2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	release2()

	// the in-flight request still holds its original transport reference
	assert.NotSame(t, held.(*http.Transport), w.Transport().(*http.Transport))
	release()
}

func TestAcquireTimesOutWhenSaturated(t *testing.T) {
	p := newTestPool(types.PoolConfig{
		Workers:        1,
		Threads:        1,
		MaxRequests:    100,
		AcquireTimeout: 50 * time.Millisecond,
	})

	_, release, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, _, err = p.Acquire(context.Background())
	require.Error(t, err)
	var unavailable *types.ErrNoWorkerAvailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestAcquireHonorsRequestContext(t *testing.T) {
	p := newTestPool(types.PoolConfig{Workers: 1, Threads: 1, MaxRequests: 100, AcquireTimeout: time.Minute})

	_, release, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = p.Acquire(ctx)
	assert.Error(t, err)
}

func TestConcurrentAcquire(t *testing.T) {
	p := newTestPool(types.PoolConfig{Workers: 4, Threads: 16, MaxRequests: 10})

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := p.Acquire(context.Background())
			if err == nil {
				release()
			}
		}()
	}
	wg.Wait()

	total := uint64(0)
	for _, s := range p.Stats() {
		assert.Zero(t, s.Inflight)
		total += s.Served
	}
	assert.Equal(t, uint64(200), total)
}
