// Package cart owns the shopping cart: one line per product, a total that is
// recomputed on every change, and a snapshot persisted after every change.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"Storefront/internal/catalog"
	"Storefront/internal/storage"
)

// StorageKey is the slot the cart snapshot lives under.
const StorageKey = "cart"

// PersistenceError describes a failed read or write of the cart snapshot. It is
// logged by the store and never returned from a cart operation.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("cart %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the cart. Mutations are serialized, so each one completes,
// including its write to storage, before the next starts.
type Store struct {
	mu    sync.RWMutex
	lines []Line
	total decimal.Decimal

	kv       storage.Store
	log      *zap.Logger
	failures *prometheus.CounterVec
}

type Option func(*Store)

// WithRegistry counts persistence failures by operation on reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(s *Store) {
		if reg == nil {
			return
		}
		s.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_persist_failures_total",
			Help: "Cart snapshot reads and writes that failed",
		}, []string{"op"})
		reg.MustRegister(s.failures)
	}
}

// New loads the cart from kv. A missing or unreadable snapshot yields an empty
// cart; the total is always recomputed, never read back.
func New(ctx context.Context, kv storage.Store, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{kv: kv, log: log, total: decimal.Zero}
	for _, o := range opts {
		o(s)
	}

	s.lines = s.load(ctx)
	s.total = total(s.lines)
	return s
}

func (s *Store) load(ctx context.Context) []Line {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		s.persistFailed(&PersistenceError{Op: "load", Key: StorageKey, Err: err})
		return nil
	}
	if !ok {
		return nil
	}

	var stored []Line
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.persistFailed(&PersistenceError{Op: "decode", Key: StorageKey, Err: err})
		return nil
	}
	return sanitize(stored)
}

// sanitize drops repeated product ids (first one wins) and clamps quantities
// so a hand-edited snapshot cannot break the cart invariants.
func sanitize(in []Line) []Line {
	seen := make(map[int]struct{}, len(in))
	out := make([]Line, 0, len(in))
	for _, l := range in {
		if _, dup := seen[l.ProductID]; dup {
			continue
		}
		seen[l.ProductID] = struct{}{}
		l.Quantity = max(MinQuantity, min(l.Quantity, MaxQuantity))
		out = append(out, l)
	}
	return out
}

func (s *Store) persistFailed(err *PersistenceError) {
	s.log.Error("cart persistence failed", zap.String("op", err.Op), zap.String("key", err.Key), zap.Error(err.Err))
	if s.failures != nil {
		s.failures.WithLabelValues(err.Op).Inc()
	}
}

// commit recomputes the total and writes the snapshot. Callers hold mu. The
// write is detached from ctx cancellation so a caller going away cannot leave
// the stored snapshot behind the in-memory cart; storage bounds it with its own
// timeout.
func (s *Store) commit(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.total = total(s.lines)

	raw, err := json.Marshal(s.lines)
	if err != nil {
		s.persistFailed(&PersistenceError{Op: "encode", Key: StorageKey, Err: err})
		return
	}
	if err := s.kv.Set(ctx, StorageKey, string(raw)); err != nil {
		s.persistFailed(&PersistenceError{Op: "save", Key: StorageKey, Err: err})
	}
}

func (s *Store) index(id int) int {
	return slices.IndexFunc(s.lines, func(l Line) bool { return l.ProductID == id })
}

// Add puts qty of p in the cart. An existing line grows and is capped at
// MaxQuantity without error; a new line is appended. qty below 1 is ignored.
func (s *Store) Add(ctx context.Context, p catalog.Product, qty int) {
	if qty < MinQuantity {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(p.ID); i >= 0 {
		s.lines[i].Quantity = min(s.lines[i].Quantity+qty, MaxQuantity)
	} else {
		s.lines = append(s.lines, newLine(p, qty))
	}
	s.commit(ctx)
}

// Remove drops the line for id. A missing line is a no-op.
func (s *Store) Remove(ctx context.Context, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = slices.DeleteFunc(s.lines, func(l Line) bool { return l.ProductID == id })
	s.commit(ctx)
}

// UpdateQuantity sets the quantity of an existing line. Out-of-range
// quantities and unknown ids leave the cart untouched.
func (s *Store) UpdateQuantity(ctx context.Context, id, qty int) {
	if !validQuantity(qty) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return
	}
	s.lines[i].Quantity = qty
	s.commit(ctx)
}

// Clear empties the cart and deletes the stored snapshot.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear(ctx)
}

// Drain returns the cart as it was and empties it in the same step, so no
// mutation can land between the two.
func (s *Store) Drain(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{Lines: slices.Clone(s.lines), Total: s.total}
	if st.Lines == nil {
		st.Lines = []Line{}
	}
	s.clear(ctx)
	return st
}

// clear is Clear without locking. Callers hold mu.
func (s *Store) clear(ctx context.Context) {
	s.lines = nil
	s.total = decimal.Zero
	if err := s.kv.Remove(context.WithoutCancel(ctx), StorageKey); err != nil {
		s.persistFailed(&PersistenceError{Op: "remove", Key: StorageKey, Err: err})
	}
}

func (s *Store) Contains(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index(id) >= 0
}

// Quantity returns the quantity of id, 0 when it is not in the cart.
func (s *Store) Quantity(id int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

// ItemCount is the sum of all line quantities.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines)
}

func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := slices.Clone(s.lines)
	if lines == nil {
		lines = []Line{}
	}
	return State{Lines: lines, Total: s.total}
}

// TotalWithTax returns total * (1 + rate).
func (s *Store) TotalWithTax(rate decimal.Decimal) decimal.Decimal {
	return s.Total().Mul(decimal.NewFromInt(1).Add(rate))
}

// Summary builds the order summary. Shipping is always free.
func (s *Store) Summary(rate decimal.Decimal) Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return Summary{
		ItemCount:    n,
		Subtotal:     s.total,
		Shipping:     decimal.Zero,
		Tax:          s.total.Mul(rate),
		TaxRate:      rate,
		TotalWithTax: s.total.Mul(decimal.NewFromInt(1).Add(rate)),
	}
}
