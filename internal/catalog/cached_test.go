package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Storefront/internal/catalog"
	"Storefront/internal/catalog/catalogtest"
	"Storefront/internal/querycache"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newCached(t *testing.T) (*catalog.CachedClient, *catalogtest.Server, *fakeClock) {
	t.Helper()

	up := catalogtest.NewServer(t)
	clk := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := catalog.NewCachedClient(
		catalog.NewClient(up.URL, time.Second),
		querycache.New(querycache.WithClock(clk.Now)),
	)
	c.RetryWait = time.Millisecond
	return c, up, clk
}

func TestCachedClient_ProductsWithinWindow(t *testing.T) {
	c, up, clk := newCached(t)
	ctx := context.Background()

	_, err := c.Products(ctx)
	require.NoError(t, err)
	clk.Advance(4 * time.Minute)
	_, err = c.Products(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, up.Calls("/products"))

	clk.Advance(time.Minute)
	_, err = c.Products(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls("/products"))
}

func TestCachedClient_CategoriesHaveLongerWindow(t *testing.T) {
	c, up, clk := newCached(t)
	ctx := context.Background()

	_, err := c.Categories(ctx)
	require.NoError(t, err)
	clk.Advance(9 * time.Minute)
	_, err = c.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, up.Calls("/products/categories"))

	clk.Advance(time.Minute)
	_, err = c.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls("/products/categories"))
}

func TestCachedClient_KeysPerProductAndCategory(t *testing.T) {
	c, up, _ := newCached(t)
	ctx := context.Background()

	_, err := c.Product(ctx, 1)
	require.NoError(t, err)
	_, err = c.Product(ctx, 2)
	require.NoError(t, err)
	_, err = c.Product(ctx, 1)
	require.NoError(t, err)

	_, err = c.ProductsByCategory(ctx, "jewelery")
	require.NoError(t, err)
	_, err = c.ProductsByCategory(ctx, "jewelery")
	require.NoError(t, err)

	assert.Equal(t, 1, up.Calls("/products/1"))
	assert.Equal(t, 1, up.Calls("/products/2"))
	assert.Equal(t, 1, up.Calls("/products/category/jewelery"))
	assert.Equal(t, querycache.StatusSuccess, c.Status(catalog.ProductKey(1)))
}

func TestCachedClient_RetriesTransientFailures(t *testing.T) {
	c, up, _ := newCached(t)

	up.FailNext(http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusInternalServerError)
	got, err := c.Products(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Equal(t, 4, up.Calls("/products"))
}

func TestCachedClient_GivesUpAfterThreeRetries(t *testing.T) {
	c, up, _ := newCached(t)

	up.FailNext(500, 500, 500, 500)
	_, err := c.Products(context.Background())

	var fe *catalog.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "products", fe.Resource)
	assert.Equal(t, 4, up.Calls("/products"))
	assert.Equal(t, querycache.StatusError, c.Status(catalog.ProductsKey()))

	got, err := c.Products(context.Background())
	require.NoError(t, err, "a manual retry after the budget is exhausted succeeds")
	assert.NotEmpty(t, got)
}

func TestCachedClient_NotFoundIsNotRetried(t *testing.T) {
	c, up, _ := newCached(t)

	_, err := c.Product(context.Background(), 77)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, 1, up.Calls("/products/77"))
}

func TestCachedClient_QueryReportsState(t *testing.T) {
	c, up, clk := newCached(t)
	ctx := context.Background()

	qs := c.Query(catalog.ProductsKey())
	assert.Equal(t, "idle", qs.Status)
	assert.Nil(t, qs.FetchedAt)

	up.FailNext(500, 500, 500, 500)
	_, err := c.Products(ctx)
	require.Error(t, err)
	qs = c.Query(catalog.ProductsKey())
	assert.Equal(t, "error", qs.Status)
	assert.Contains(t, qs.Error, "failed to fetch products")

	_, err = c.Products(ctx)
	require.NoError(t, err)
	qs = c.Query(catalog.ProductsKey())
	assert.Equal(t, "success", qs.Status)
	assert.Empty(t, qs.Error)
	require.NotNil(t, qs.FetchedAt)
	assert.True(t, qs.FetchedAt.Equal(clk.Now()))
}

func TestCachedClient_InvalidateRefetches(t *testing.T) {
	c, up, _ := newCached(t)
	ctx := context.Background()

	_, err := c.Products(ctx)
	require.NoError(t, err)
	_, err = c.Categories(ctx)
	require.NoError(t, err)

	c.Invalidate(catalog.ProductsKey())
	assert.Equal(t, "idle", c.Query(catalog.ProductsKey()).Status)
	_, err = c.Products(ctx)
	require.NoError(t, err)
	_, err = c.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls("/products"))
	assert.Equal(t, 1, up.Calls("/products/categories"))

	c.InvalidateAll()
	_, err = c.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls("/products/categories"))
}
