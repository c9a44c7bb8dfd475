package storefront

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/internal/catalog"
	"Storefront/internal/wishlist"
)

// Session ties the two stores of one shopper together. Moves between them go
// through here so neither store knows about the other. Moves and toggles are
// serialized: a product leaves the wishlist at most once per save.
type Session struct {
	Cart     *cart.Store
	Wishlist *wishlist.Store
	Log      *zap.Logger

	mu sync.Mutex
}

func NewSession(c *cart.Store, w *wishlist.Store, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{Cart: c, Wishlist: w, Log: log}
}

// MoveToCart adds qty of a saved product to the cart and then drops it from
// the wishlist. It reports false when id is not in the wishlist.
func (s *Session) MoveToCart(ctx context.Context, id, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	e, ok := s.Wishlist.Get(id)
	if !ok {
		return false, nil
	}
	if qty < 1 {
		qty = 1
	}

	s.Cart.Add(ctx, e.Product(), qty)
	s.Wishlist.Remove(id)
	return true, nil
}

// MoveAllToCart moves every saved product into the cart, one unit each, in
// wishlist order. When ctx ends midway the remaining entries stay saved.
func (s *Session) MoveAllToCart(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	for _, e := range s.Wishlist.Entries() {
		if err := ctx.Err(); err != nil {
			s.Log.Warn("move all to cart interrupted", zap.Int("moved", moved), zap.Error(err))
			return moved, err
		}
		s.Cart.Add(ctx, e.Product(), 1)
		s.Wishlist.Remove(e.ProductID)
		moved++
	}
	return moved, nil
}

// ToggleWishlist saves or unsaves p and reports whether it is saved now.
func (s *Session) ToggleWishlist(p catalog.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Wishlist.Toggle(p)
}
