package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://fakestoreapi.com"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// Client is the raw, uncached catalog API client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.get(ctx, "/products", productsResource, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Product fetches one product. The upstream answers an unknown id with 200 and
// an empty body; both that and a 404 come back as ErrNotFound.
func (c *Client) Product(ctx context.Context, id int) (Product, error) {
	var p *Product
	resource := productResource(id)
	if err := c.get(ctx, "/products/"+strconv.Itoa(id), resource, &p); err != nil {
		return Product{}, err
	}
	if p == nil {
		return Product{}, &FetchError{Resource: resource, Err: ErrNotFound}
	}
	return *p, nil
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.get(ctx, "/products/categories", categoriesResource, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	var out []Product
	path := "/products/category/" + url.PathEscape(category)
	if err := c.get(ctx, path, categoryResource(category), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path, resource string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return &FetchError{Resource: resource, Err: fmt.Errorf("%w: %v", errBadPayload, err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &FetchError{Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &FetchError{Resource: resource, Status: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &FetchError{Resource: resource, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &FetchError{Resource: resource, Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &FetchError{Resource: resource, Err: fmt.Errorf("%w: %v", errBadPayload, err)}
	}
	return nil
}
