package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchErr struct{ temp bool }

func (e fetchErr) Error() string   { return "upstream failed" }
func (e fetchErr) Temporary() bool { return e.temp }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *clock { return &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)} }

var fiveMinutes = Policy{StaleTime: 5 * time.Minute, Retries: 3, RetryWait: time.Millisecond}

func counting[T any](calls *int32, v T, err error) func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		atomic.AddInt32(calls, 1)
		return v, err
	}
}

func TestFetch_FreshValueIsServedFromCache(t *testing.T) {
	c := New(WithClock(newClock().now))
	var calls int32
	fn := counting(&calls, []string{"a", "b"}, nil)

	got, err := Fetch(context.Background(), c, "categories", fiveMinutes, fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = Fetch(context.Background(), c, "categories", fiveMinutes, fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, StatusSuccess, c.Status("categories"))
}

func TestFetch_RefetchesAfterStaleTime(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.now))
	var calls int32
	fn := counting(&calls, 42, nil)

	_, err := Fetch(context.Background(), c, "product/1", fiveMinutes, fn)
	require.NoError(t, err)

	clk.advance(5*time.Minute - time.Second)
	_, err = Fetch(context.Background(), c, "product/1", fiveMinutes, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clk.advance(time.Second)
	_, err = Fetch(context.Background(), c, "product/1", fiveMinutes, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_RetriesTemporaryFailures(t *testing.T) {
	c := New()
	var calls int32
	fn := func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			return "", fetchErr{temp: true}
		}
		return "ok", nil
	}

	got, err := Fetch(context.Background(), c, "products", fiveMinutes, fn)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestFetch_SurfacesErrorAfterRetryBudget(t *testing.T) {
	c := New()
	var calls int32
	fn := counting(&calls, "", error(fetchErr{temp: true}))

	_, err := Fetch(context.Background(), c, "products", fiveMinutes, fn)
	require.Error(t, err)

	var fe fetchErr
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "one attempt plus three retries")
	assert.Equal(t, StatusError, c.Status("products"))
	assert.Error(t, c.Err("products"))

	// No automatic retry beyond the budget: the next call is a fresh attempt
	// only because the caller asked again.
	_, err = Fetch(context.Background(), c, "products", fiveMinutes, fn)
	require.Error(t, err)
	assert.Equal(t, int32(8), atomic.LoadInt32(&calls))
}

func TestFetch_PermanentFailureIsNotRetried(t *testing.T) {
	c := New()
	var calls int32
	fn := counting(&calls, 0, error(fetchErr{temp: false}))

	_, err := Fetch(context.Background(), c, "product/99", fiveMinutes, fn)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_ZeroRetries(t *testing.T) {
	c := New()
	var calls int32
	fn := counting(&calls, 0, error(fetchErr{temp: true}))

	_, err := Fetch(context.Background(), c, "k", Policy{StaleTime: time.Minute}, fn)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_FailureKeepsPreviousValue(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.now))

	_, err := Fetch(context.Background(), c, "categories", fiveMinutes, counting(new(int32), "v1", nil))
	require.NoError(t, err)
	at, ok := c.FetchedAt("categories")
	require.True(t, ok)

	clk.advance(10 * time.Minute)
	_, err = Fetch(context.Background(), c, "categories", fiveMinutes, counting(new(int32), "", error(fetchErr{})))
	require.Error(t, err)

	at2, ok := c.FetchedAt("categories")
	assert.True(t, ok)
	assert.Equal(t, at, at2)
	assert.Equal(t, StatusError, c.Status("categories"))
}

func TestFetch_SharesInFlightCallPerKey(t *testing.T) {
	c := New()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = Fetch(context.Background(), c, "products", fiveMinutes, fn)
	}()
	<-started
	assert.Equal(t, StatusPending, c.Status("products"))

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Fetch(context.Background(), c, "products", fiveMinutes, fn)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, 7, r)
	}
}

func TestFetch_KeysAreIndependent(t *testing.T) {
	c := New()
	var calls int32

	_, err := Fetch(context.Background(), c, "products/category/jewelery", fiveMinutes, counting(&calls, 1, nil))
	require.NoError(t, err)
	_, err = Fetch(context.Background(), c, "products/category/electronics", fiveMinutes, counting(&calls, 2, nil))
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, StatusIdle, c.Status("products"))
}

func TestInvalidate(t *testing.T) {
	c := New()
	var calls int32
	fn := counting(&calls, "x", nil)

	_, _ = Fetch(context.Background(), c, "products", fiveMinutes, fn)
	c.Invalidate("products")
	assert.Equal(t, StatusIdle, c.Status("products"))

	_, _ = Fetch(context.Background(), c, "products", fiveMinutes, fn)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	c.Clear()
	_, ok := c.FetchedAt("products")
	assert.False(t, ok)
}

func TestFetch_CanceledCallerDoesNotFetch(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	slow := Policy{StaleTime: time.Minute, Retries: 3, RetryWait: time.Hour}
	_, err := Fetch(ctx, c, "products", slow, counting(&calls, 0, error(fetchErr{temp: true})))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Equal(t, StatusIdle, c.Status("products"))
}

func TestFetch_CallerLeavingDoesNotFailSharedCall(t *testing.T) {
	c := New()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		select {
		case <-release:
			return 42, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Fetch(first, c, "products", fiveMinutes, fn)
		firstErr <- err
	}()
	<-started

	second := make(chan int, 1)
	go func() {
		v, err := Fetch(context.Background(), c, "products", fiveMinutes, fn)
		assert.NoError(t, err)
		second <- v
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, 42, <-second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, StatusSuccess, c.Status("products"))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegistry(reg))
	fn := counting(new(int32), 1, nil)

	_, _ = Fetch(context.Background(), c, "product/1", fiveMinutes, fn)
	_, _ = Fetch(context.Background(), c, "product/1", fiveMinutes, fn)
	_, _ = Fetch(context.Background(), c, "product/2", fiveMinutes, fn)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.misses.WithLabelValues("product")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.hits.WithLabelValues("product")))
}
