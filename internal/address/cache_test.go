package address

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/odyssey-erp/accounts/internal/shared"
)

type stubLookup struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	result Address
	err    error
}

func (s *stubLookup) Lookup(ctx context.Context, code string) (Address, error) {
	s.calls.Add(1)
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

func (s *stubLookup) set(addr Address, err error) {
	s.mu.Lock()
	s.result, s.err = addr, err
	s.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var paulista = Address{PostalCode: "01310-930", Region: "SP", Locality: "São Paulo", Street: "Avenida Paulista 2100", District: "Bela Vista"}

func TestCacheCollapsesConcurrentMisses(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	upstream := &stubLookup{started: make(chan struct{}, 1), release: make(chan struct{}), result: paulista}
	clock := newFakeClock()
	cache := NewCache(upstream, WithTTL(time.Hour), WithClock(clock.Now))

	ctx := context.Background()
	results := make([]Address, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = cache.Resolve(ctx, "01310930")
	}()
	<-upstream.started
	go func() {
		defer wg.Done()
		results[1], errs[1] = cache.Resolve(ctx, "01310-930")
	}()
	time.Sleep(20 * time.Millisecond)
	close(upstream.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, paulista, results[0])
	assert.Equal(t, paulista, results[1])
	assert.Equal(t, int32(1), upstream.calls.Load())

	// Warm cache: no upstream call.
	got, err := cache.Resolve(ctx, "01310930")
	require.NoError(t, err)
	assert.Equal(t, paulista, got)
	assert.Equal(t, int32(1), upstream.calls.Load())

	// Past the TTL the entry is refreshed.
	clock.Advance(time.Hour)
	_, err = cache.Resolve(ctx, "01310930")
	require.NoError(t, err)
	assert.Equal(t, int32(2), upstream.calls.Load())
}

func TestCacheStoresNotFound(t *testing.T) {
	upstream := &stubLookup{err: ErrNotFound}
	clock := newFakeClock()
	cache := NewCache(upstream, WithTTL(time.Minute), WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		_, err := cache.Resolve(context.Background(), "99999999")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(1), upstream.calls.Load())

	clock.Advance(time.Minute + time.Second)
	upstream.set(paulista, nil)
	got, err := cache.Resolve(context.Background(), "99999999")
	require.NoError(t, err)
	assert.Equal(t, paulista, got)
	assert.Equal(t, int32(2), upstream.calls.Load())
}

func TestCacheDoesNotStoreUpstreamFailures(t *testing.T) {
	upstream := &stubLookup{err: fmt.Errorf("%w: timeout", shared.ErrUpstream)}
	cache := NewCache(upstream)

	_, err := cache.Resolve(context.Background(), "01310930")
	assert.ErrorIs(t, err, shared.ErrUpstream)
	assert.Equal(t, 0, cache.Len())

	upstream.set(paulista, nil)
	got, err := cache.Resolve(context.Background(), "01310930")
	require.NoError(t, err)
	assert.Equal(t, paulista, got)
	assert.Equal(t, int32(2), upstream.calls.Load())
}

func TestCacheRejectsMalformedCodes(t *testing.T) {
	upstream := &stubLookup{result: paulista}
	cache := NewCache(upstream)

	for _, code := range []string{"", "1234", "01310-9300", "abcde-fgh", "01.310-930"} {
		_, err := cache.Resolve(context.Background(), code)
		assert.ErrorIs(t, err, ErrMalformedPostalCode, code)
		assert.ErrorIs(t, err, shared.ErrValidation, code)
	}
	assert.Equal(t, int32(0), upstream.calls.Load())
}

func TestCacheCallerCancellationDoesNotPoisonFlight(t *testing.T) {
	upstream := &stubLookup{started: make(chan struct{}, 1), release: make(chan struct{}), result: paulista}
	cache := NewCache(upstream)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(ctx, "01310930")
		done <- err
	}()
	<-upstream.started
	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))

	close(upstream.release)
	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 5*time.Millisecond)
	got, err := cache.Resolve(context.Background(), "01310930")
	require.NoError(t, err)
	assert.Equal(t, paulista, got)
	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestCachePurge(t *testing.T) {
	upstream := &stubLookup{result: paulista}
	cache := NewCache(upstream)
	_, err := cache.Resolve(context.Background(), "01310930")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	upstream := &stubLookup{result: paulista}
	cache := NewCache(upstream, WithMetrics(metrics))

	_, _ = cache.Resolve(context.Background(), "01310930")
	_, _ = cache.Resolve(context.Background(), "01310930")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.upstreamTotal.WithLabelValues("found")))
}
