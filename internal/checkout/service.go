// Package checkout simulates placing an order for the current cart. No payment
// is taken; the order exists only as the confirmation returned to the shopper.
package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"Storefront/internal/cart"
)

const DefaultDelay = 2 * time.Second

var ErrEmptyCart = errors.New("cart is empty")

type Order struct {
	ID       string          `json:"id"`
	Shipping Form            `json:"shipping"`
	Lines    []cart.Line     `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
}

type Service struct {
	Cart    *cart.Store
	TaxRate decimal.Decimal
	Delay   time.Duration
	Log     *zap.Logger

	now func() time.Time

	mu     sync.Mutex
	placed *Order
}

func NewService(c *cart.Store, taxRate decimal.Decimal, delay time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Cart: c, TaxRate: taxRate, Delay: delay, Log: log, now: time.Now}
}

// Place validates the form, waits out the simulated processing time, then
// drains the cart and records the order as placed. The order holds exactly
// the lines removed from the cart.
func (s *Service) Place(ctx context.Context, f Form) (Order, error) {
	if err := f.Validate(); err != nil {
		return Order{}, err
	}
	if s.Cart.Len() == 0 {
		return Order{}, ErrEmptyCart
	}

	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return Order{}, ctx.Err()
		case <-t.C:
		}
	}

	snap := s.Cart.Drain(ctx)
	if len(snap.Lines) == 0 {
		return Order{}, ErrEmptyCart
	}

	tax := snap.Total.Mul(s.TaxRate).Round(2)
	o := Order{
		ID:       "o_" + uuid.NewString(),
		Shipping: f,
		Lines:    snap.Lines,
		Subtotal: snap.Total,
		Tax:      tax,
		Total:    snap.Total.Add(tax),
		PlacedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.placed = &o
	s.mu.Unlock()

	s.Log.Info("order placed", zap.String("order_id", o.ID), zap.Int("lines", len(o.Lines)), zap.String("total", o.Total.StringFixed(2)))
	return o, nil
}

// Placed returns the last order placed in this session.
func (s *Service) Placed() (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.placed == nil {
		return Order{}, false
	}
	return *s.placed, true
}

// Reset forgets the placed order, as when the shopper leaves the confirmation.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed = nil
}
