package catalog

import (
	"context"
	"strconv"
	"time"

	"Storefront/internal/querycache"
)

// Freshness windows and retry budget for catalog queries.
var (
	ProductsPolicy   = querycache.Policy{StaleTime: 5 * time.Minute, Retries: 3, RetryWait: time.Second}
	ProductPolicy    = querycache.Policy{StaleTime: 5 * time.Minute, Retries: 3, RetryWait: time.Second}
	CategoriesPolicy = querycache.Policy{StaleTime: 10 * time.Minute, Retries: 3, RetryWait: time.Second}
	CategoryPolicy   = querycache.Policy{StaleTime: 5 * time.Minute, Retries: 3, RetryWait: time.Second}
)

// Source is the catalog read surface shared by the raw and cached clients.
type Source interface {
	Products(ctx context.Context) ([]Product, error)
	Product(ctx context.Context, id int) (Product, error)
	Categories(ctx context.Context) ([]string, error)
	ProductsByCategory(ctx context.Context, category string) ([]Product, error)
}

var (
	_ Source = (*Client)(nil)
	_ Source = (*CachedClient)(nil)
)

// CachedClient puts a querycache in front of a Source.
type CachedClient struct {
	src   Source
	cache *querycache.Cache

	// RetryWait overrides the first backoff interval of every policy when set.
	RetryWait time.Duration
}

func NewCachedClient(src Source, cache *querycache.Cache) *CachedClient {
	return &CachedClient{src: src, cache: cache}
}

func ProductsKey() string                { return "products" }
func ProductKey(id int) string           { return "product/" + strconv.Itoa(id) }
func CategoriesKey() string              { return "categories" }
func CategoryKey(category string) string { return "products/category/" + category }

func (c *CachedClient) policy(p querycache.Policy) querycache.Policy {
	if c.RetryWait > 0 {
		p.RetryWait = c.RetryWait
	}
	return p
}

func (c *CachedClient) Products(ctx context.Context) ([]Product, error) {
	return querycache.Fetch(ctx, c.cache, ProductsKey(), c.policy(ProductsPolicy), c.src.Products)
}

func (c *CachedClient) Product(ctx context.Context, id int) (Product, error) {
	return querycache.Fetch(ctx, c.cache, ProductKey(id), c.policy(ProductPolicy), func(ctx context.Context) (Product, error) {
		return c.src.Product(ctx, id)
	})
}

func (c *CachedClient) Categories(ctx context.Context) ([]string, error) {
	return querycache.Fetch(ctx, c.cache, CategoriesKey(), c.policy(CategoriesPolicy), c.src.Categories)
}

func (c *CachedClient) ProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	return querycache.Fetch(ctx, c.cache, CategoryKey(category), c.policy(CategoryPolicy), func(ctx context.Context) ([]Product, error) {
		return c.src.ProductsByCategory(ctx, category)
	})
}

// Status exposes the pending/success/error state of a catalog query key.
func (c *CachedClient) Status(key string) querycache.Status {
	return c.cache.Status(key)
}

// QueryState is the observable state of one catalog query.
type QueryState struct {
	Key       string     `json:"key"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// Inspector is implemented by catalog clients that keep query state.
type Inspector interface {
	Query(key string) QueryState
	Invalidate(key string)
	InvalidateAll()
}

var _ Inspector = (*CachedClient)(nil)

func (c *CachedClient) Query(key string) QueryState {
	qs := QueryState{Key: key, Status: c.cache.Status(key).String()}
	if err := c.cache.Err(key); err != nil {
		qs.Error = err.Error()
	}
	if at, ok := c.cache.FetchedAt(key); ok {
		at = at.UTC()
		qs.FetchedAt = &at
	}
	return qs
}

// Invalidate drops one query so the next read goes upstream.
func (c *CachedClient) Invalidate(key string) { c.cache.Invalidate(key) }

func (c *CachedClient) InvalidateAll() { c.cache.Clear() }
