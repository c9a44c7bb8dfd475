// Package wishlist keeps the products a shopper saved for later. It lives in
// memory only and starts empty with every process.
package wishlist

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"Storefront/internal/catalog"
)

type Entry struct {
	ProductID   int             `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Rating      catalog.Rating  `json:"rating"`
	Description string          `json:"description"`
}

func entryOf(p catalog.Product) Entry {
	return Entry{
		ProductID:   p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Image:       p.Image,
		Category:    p.Category,
		Rating:      p.Rating,
		Description: p.Description,
	}
}

// Product rebuilds the catalog product the entry was saved from.
func (e Entry) Product() catalog.Product {
	return catalog.Product{
		ID:          e.ProductID,
		Title:       e.Title,
		Price:       e.Price,
		Description: e.Description,
		Category:    e.Category,
		Image:       e.Image,
		Rating:      e.Rating,
	}
}

type State struct {
	Entries []Entry `json:"entries"`
	Count   int     `json:"count"`
}

type Store struct {
	mu      sync.RWMutex
	entries []Entry
	log     *zap.Logger
}

func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{log: log}
}

func (s *Store) index(id int) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.ProductID == id })
}

// Add saves p. Saving a product twice keeps the first entry where it is.
func (s *Store) Add(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(p)
}

func (s *Store) add(p catalog.Product) bool {
	if s.index(p.ID) >= 0 {
		return false
	}
	s.entries = append(s.entries, entryOf(p))
	s.log.Debug("wishlist add", zap.Int("product_id", p.ID), zap.Int("count", len(s.entries)))
	return true
}

func (s *Store) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(id)
}

func (s *Store) remove(id int) bool {
	n := len(s.entries)
	s.entries = slices.DeleteFunc(s.entries, func(e Entry) bool { return e.ProductID == id })
	if len(s.entries) == n {
		return false
	}
	s.log.Debug("wishlist remove", zap.Int("product_id", id), zap.Int("count", len(s.entries)))
	return true
}

// Toggle adds p when absent and removes it when present. It reports whether
// p is in the wishlist afterwards.
func (s *Store) Toggle(p catalog.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remove(p.ID) {
		return false
	}
	return s.add(p)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

func (s *Store) Contains(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index(id) >= 0
}

func (s *Store) Get(id int) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.entries[i], true
	}
	return Entry{}, false
}

func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := slices.Clone(s.entries)
	if entries == nil {
		entries = []Entry{}
	}
	return State{Entries: entries, Count: len(entries)}
}
