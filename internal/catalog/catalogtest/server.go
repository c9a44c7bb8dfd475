// Package catalogtest serves a fakestoreapi-shaped catalog for tests.
package catalogtest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"Storefront/internal/catalog"
	"Storefront/pkg/kit"
)

// Seed is the default product set.
func Seed() []catalog.Product {
	return []catalog.Product{
		{
			ID: 1, Title: "Fjallraven Backpack", Price: decimal.RequireFromString("109.95"),
			Category: "men's clothing", Image: "https://img.test/1.jpg",
			Description: "Your perfect pack for everyday use", Rating: catalog.Rating{Rate: 3.9, Count: 120},
		},
		{
			ID: 2, Title: "Slim Fit T-Shirt", Price: decimal.RequireFromString("22.3"),
			Category: "men's clothing", Image: "https://img.test/2.jpg",
			Description: "Slim-fitting style", Rating: catalog.Rating{Rate: 4.1, Count: 259},
		},
		{
			ID: 5, Title: "Dragon Station Chain Bracelet", Price: decimal.RequireFromString("695"),
			Category: "jewelery", Image: "https://img.test/5.jpg",
			Description: "Silver dragon bracelet", Rating: catalog.Rating{Rate: 4.6, Count: 400},
		},
		{
			ID: 9, Title: "WD 2TB Elements Portable Hard Drive", Price: decimal.RequireFromString("64"),
			Category: "electronics", Image: "https://img.test/9.jpg",
			Description: "USB 3.0 and USB 2.0 compatibility", Rating: catalog.Rating{Rate: 3.3, Count: 203},
		},
		{
			ID: 13, Title: "Acer 21.5 inch Full HD Monitor", Price: decimal.RequireFromString("599"),
			Category: "electronics", Image: "https://img.test/13.jpg",
			Description: "21.5 inches Full HD widescreen", Rating: catalog.Rating{Rate: 2.9, Count: 250},
		},
	}
}

// Server is an in-memory catalog upstream with call counting and failure
// injection.
type Server struct {
	mu       sync.Mutex
	products map[int]catalog.Product
	calls    map[string]int
	failures []int

	*httptest.Server
}

// NewServer starts a server seeded with Seed and closes it with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		products: map[int]catalog.Product{},
		calls:    map[string]int{},
	}
	for _, p := range Seed() {
		s.products[p.ID] = p
	}

	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)

	r.Get("/products", s.list)
	r.Get("/products/categories", s.categories)
	r.Get("/products/category/{name}", s.byCategory)
	r.Get("/products/{id}", s.get)

	return r
}

// FailNext makes the next len(statuses) requests answer with those statuses.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// SetPrice changes a product upstream, e.g. to check snapshot semantics.
func (s *Server) SetPrice(id int, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Price = price
	s.products[id] = p
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.EscapedPath()]++
		var fail int
		if len(s.failures) > 0 {
			fail, s.failures = s.failures[0], s.failures[1:]
		}
		s.mu.Unlock()

		if fail != 0 {
			w.WriteHeader(fail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sorted() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.sorted())
}

// get mimics the upstream: an unknown id is a 200 with an empty body.
func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	p, ok := s.products[id]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) categories(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, catalog.Categories(s.sorted()))
}

func (s *Server) byCategory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kit.WriteJSON(w, http.StatusOK, catalog.Filter(s.sorted(), "", name))
}
