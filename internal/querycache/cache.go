// Package querycache is a small read-through cache for remote queries. Each
// key holds the last successful value and when it was fetched; a value younger
// than the policy's stale time is served without calling the fetcher.
package querycache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

const maxRetryWait = 30 * time.Second

// Policy configures one family of queries.
type Policy struct {
	// StaleTime is the freshness window.
	StaleTime time.Duration
	// Retries is the number of extra attempts after a temporary failure.
	Retries int
	// RetryWait is the first backoff interval; it doubles per attempt.
	RetryWait time.Duration
}

type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

type entry struct {
	value     any
	hasValue  bool
	fetchedAt time.Time
	err       error
	status    Status
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	now     func() time.Time
	metrics *metrics
}

type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRegistry registers hit/miss/error counters on reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		if reg != nil {
			c.metrics = newMetrics(reg)
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: map[string]*entry{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// temporary is implemented by errors that are worth retrying.
type temporary interface {
	Temporary() bool
}

func isTemporary(err error) bool {
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

// Fetch returns the cached value under key while it is fresh, otherwise calls
// fn. Concurrent callers for the same key share a single call, which runs
// detached from any one caller's cancellation; a caller whose ctx ends stops
// waiting without failing the others. Temporary failures are retried per the
// policy; the error surfaced after that is left for the caller to retry.
func Fetch[T any](ctx context.Context, c *Cache, key string, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := lookup[T](c, key, p.StaleTime); ok {
		c.metrics.hit(key)
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	c.metrics.miss(key)

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		c.markPending(key)

		v, err := retry(shared, p, fn)
		if err != nil {
			c.metrics.fetchError(key)
			c.storeError(key, err)
			return nil, err
		}

		c.storeValue(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, errors.New("querycache: type mismatch for key " + key)
		}
		return v, nil
	}
}

func retry[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	if p.Retries <= 0 {
		return fn(ctx)
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.RetryWait,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxRetryWait,
	}
	b.Reset()

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !isTemporary(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(p.Retries+1)))
}

func lookup[T any](c *Cache, key string, stale time.Duration) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return zero, false
	}
	if c.now().Sub(e.fetchedAt) >= stale {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

func (c *Cache) slot(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) markPending(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot(key).status = StatusPending
}

func (c *Cache) storeValue(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.slot(key)
	e.value = v
	e.hasValue = true
	e.fetchedAt = c.now()
	e.err = nil
	e.status = StatusSuccess
}

// storeError keeps the previous value; only the status and error change.
func (c *Cache) storeError(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.slot(key)
	e.err = err
	e.status = StatusError
}

// Status reports the observable state of key.
func (c *Cache) Status(key string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.status
	}
	return StatusIdle
}

// Err returns the last fetch error for key, nil after a success.
func (c *Cache) Err(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.err
	}
	return nil
}

// FetchedAt reports when key was last filled successfully.
func (c *Cache) FetchedAt(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return time.Time{}, false
	}
	return e.fetchedAt, true
}

// Invalidate drops key so the next Fetch goes upstream.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*entry{}
}
