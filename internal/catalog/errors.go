package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

var (
	ErrNotFound = errors.New("catalog: not found")
	// ErrUnavailable means the breaker is open and the upstream was not called.
	ErrUnavailable = errors.New("catalog: unavailable")

	errBadPayload = errors.New("bad payload")
)

// FetchError reports a failed catalog read. Resource names what was being
// fetched, e.g. "products" or "product 7".
type FetchError struct {
	Resource string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	msg := "failed to fetch " + e.Resource
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil && !errors.Is(e.Err, ErrNotFound) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same read may succeed. Transport
// failures, 5xx and 429 are temporary. Other statuses, bad payloads and an open
// breaker are not.
func (e *FetchError) Temporary() bool {
	switch {
	case e.Status == http.StatusTooManyRequests:
		return true
	case e.Status != 0:
		return e.Status >= http.StatusInternalServerError
	case errors.Is(e.Err, ErrNotFound), errors.Is(e.Err, ErrUnavailable),
		errors.Is(e.Err, errBadPayload), errors.Is(e.Err, context.Canceled):
		return false
	default:
		return true
	}
}

const (
	productsResource   = "products"
	categoriesResource = "categories"
)

func productResource(id int) string { return "product " + strconv.Itoa(id) }

func categoryResource(name string) string { return "products for category " + name }
