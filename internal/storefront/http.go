package storefront

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/internal/catalog"
	"Storefront/internal/checkout"
	"Storefront/internal/storage"
	"Storefront/internal/wishlist"
	"Storefront/pkg/kit"
)

const readyTimeout = 2 * time.Second

type Server struct {
	Catalog  catalog.Source
	Session  *Session
	Checkout *checkout.Service
	Storage  storage.Store
	TaxRate  decimal.Decimal
	Log      *zap.Logger
}

type productView struct {
	catalog.Product
	Slug         string `json:"slug"`
	TopRated     bool   `json:"top_rated"`
	InCart       bool   `json:"in_cart"`
	CartQuantity int    `json:"cart_quantity"`
	InWishlist   bool   `json:"in_wishlist"`
}

type listView struct {
	Products   []catalog.Product `json:"products"`
	Count      int               `json:"count"`
	Search     string            `json:"search,omitempty"`
	Category   string            `json:"category,omitempty"`
	Sort       catalog.SortKey   `json:"sort,omitempty"`
	Categories []string          `json:"categories"`
}

type cartView struct {
	cart.State
	Summary cart.Summary `json:"summary"`
}

type addItemReq struct {
	ProductID int  `json:"product_id"`
	Quantity  *int `json:"quantity"`
}

type quantityReq struct {
	Quantity *int `json:"quantity"`
}

var (
	errBadID       = errors.New("bad id")
	errBadQuantity = errors.New("quantity must be between 1 and 10")
)

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Storage.Ping(ctx); err != nil {
		s.Log.Warn("readyz failed: storage", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "storage not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Catalog.Products(r.Context())
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	q := r.URL.Query()
	search, category := q.Get("search"), q.Get("category")
	key := catalog.ParseSortKey(q.Get("sort"))
	shown := catalog.Browse(products, search, category, key)

	kit.WriteJSON(w, http.StatusOK, listView{
		Products:   shown,
		Count:      len(shown),
		Search:     search,
		Category:   category,
		Sort:       key,
		Categories: catalog.Categories(products),
	})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return
	}

	p, err := s.Catalog.Product(r.Context(), id)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, productView{
		Product:      p,
		Slug:         catalog.Slug(p.Title),
		TopRated:     catalog.IsTopRated(p),
		InCart:       s.Session.Cart.Contains(id),
		CartQuantity: s.Session.Cart.Quantity(id),
		InWishlist:   s.Session.Wishlist.Contains(id),
	})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.Catalog.Categories(r.Context())
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) categoryProducts(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	products, err := s.Catalog.ProductsByCategory(r.Context(), name)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	key := catalog.ParseSortKey(r.URL.Query().Get("sort"))
	shown := catalog.Sort(products, key)
	kit.WriteJSON(w, http.StatusOK, listView{
		Products:   shown,
		Count:      len(shown),
		Category:   name,
		Sort:       key,
		Categories: []string{name},
	})
}

func (s *Server) cartView() cartView {
	return cartView{
		State:   s.Session.Cart.Snapshot(),
		Summary: s.Session.Cart.Summary(s.TaxRate),
	}
}

func (s *Server) getCart(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.Session.Cart.Clear(r.Context())
	kit.WriteJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	qty, err := quantityOrDefault(req.Quantity)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.ProductID <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "product_id required", nil)
		return
	}

	p, err := s.Catalog.Product(r.Context(), req.ProductID)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	s.Session.Cart.Add(r.Context(), p, qty)
	kit.WriteJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return
	}

	var req quantityReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.Quantity == nil || *req.Quantity < cart.MinQuantity || *req.Quantity > cart.MaxQuantity {
		kit.WriteError(w, r, http.StatusBadRequest, errBadQuantity.Error(), nil)
		return
	}
	if !s.Session.Cart.Contains(id) {
		kit.WriteError(w, r, http.StatusNotFound, "not in cart", map[string]any{"id": id})
		return
	}

	s.Session.Cart.UpdateQuantity(r.Context(), id, *req.Quantity)
	kit.WriteJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return
	}
	s.Session.Cart.Remove(r.Context(), id)
	kit.WriteJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) getWishlist(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Session.Wishlist.Snapshot())
}

func (s *Server) clearWishlist(w http.ResponseWriter, _ *http.Request) {
	s.Session.Wishlist.Clear()
	kit.WriteJSON(w, http.StatusOK, s.Session.Wishlist.Snapshot())
}

func (s *Server) addToWishlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID int `json:"product_id"`
	}
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.ProductID <= 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "product_id required", nil)
		return
	}

	p, err := s.Catalog.Product(r.Context(), req.ProductID)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	s.Session.Wishlist.Add(p)
	kit.WriteJSON(w, http.StatusOK, s.Session.Wishlist.Snapshot())
}

func (s *Server) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return
	}
	s.Session.Wishlist.Remove(id)
	kit.WriteJSON(w, http.StatusOK, s.Session.Wishlist.Snapshot())
}

func (s *Server) toggleWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return
	}

	var p catalog.Product
	if e, ok := s.Session.Wishlist.Get(id); ok {
		p = e.Product()
	} else if p, err = s.Catalog.Product(r.Context(), id); err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	saved := s.Session.ToggleWishlist(p)
	kit.WriteJSON(w, http.StatusOK, struct {
		InWishlist bool `json:"in_wishlist"`
		wishlist.State
	}{saved, s.Session.Wishlist.Snapshot()})
}

func (s *Server) moveToCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return
	}

	var req quantityReq
	if r.ContentLength != 0 {
		if err := kit.DecodeJSON(w, r, &req); err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
			return
		}
	}
	qty, err := quantityOrDefault(req.Quantity)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	moved, err := s.Session.MoveToCart(r.Context(), id, qty)
	if err != nil {
		kit.WriteError(w, r, http.StatusServiceUnavailable, "request canceled", nil)
		return
	}
	if !moved {
		kit.WriteError(w, r, http.StatusNotFound, "not in wishlist", map[string]any{"id": id})
		return
	}
	s.writeSession(w, http.StatusOK, nil)
}

func (s *Server) moveAllToCart(w http.ResponseWriter, r *http.Request) {
	moved, err := s.Session.MoveAllToCart(r.Context())
	if err != nil {
		kit.WriteError(w, r, http.StatusServiceUnavailable, "request canceled", map[string]any{"moved": moved})
		return
	}
	s.writeSession(w, http.StatusOK, &moved)
}

func (s *Server) writeSession(w http.ResponseWriter, status int, moved *int) {
	kit.WriteJSON(w, status, struct {
		Moved    *int           `json:"moved,omitempty"`
		Cart     cartView       `json:"cart"`
		Wishlist wishlist.State `json:"wishlist"`
	}{moved, s.cartView(), s.Session.Wishlist.Snapshot()})
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var form checkout.Form
	if err := kit.DecodeJSON(w, r, &form); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	o, err := s.Checkout.Place(r.Context(), form)
	if err != nil {
		s.writeCheckoutError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, o)
}

func (s *Server) getCheckout(w http.ResponseWriter, _ *http.Request) {
	o, placed := s.Checkout.Placed()
	resp := struct {
		Placed  bool            `json:"placed"`
		Order   *checkout.Order `json:"order,omitempty"`
		Summary cart.Summary    `json:"summary"`
	}{Placed: placed, Summary: s.Session.Cart.Summary(s.TaxRate)}
	if placed {
		resp.Order = &o
	}
	kit.WriteJSON(w, http.StatusOK, resp)
}

// leaveCheckout forgets the placed order so the checkout page shows the form
// again.
func (s *Server) leaveCheckout(w http.ResponseWriter, _ *http.Request) {
	s.Checkout.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) inspector(w http.ResponseWriter, r *http.Request) (catalog.Inspector, bool) {
	in, ok := s.Catalog.(catalog.Inspector)
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "catalog cache disabled", nil)
	}
	return in, ok
}

// catalogStatus reports the state of the queried keys, or of the product list
// and categories when none are given.
func (s *Server) catalogStatus(w http.ResponseWriter, r *http.Request) {
	in, ok := s.inspector(w, r)
	if !ok {
		return
	}
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		keys = []string{catalog.ProductsKey(), catalog.CategoriesKey()}
	}
	out := make([]catalog.QueryState, 0, len(keys))
	for _, k := range keys {
		out = append(out, in.Query(k))
	}
	kit.WriteJSON(w, http.StatusOK, struct {
		Queries []catalog.QueryState `json:"queries"`
	}{out})
}

func (s *Server) invalidateCatalog(w http.ResponseWriter, r *http.Request) {
	in, ok := s.inspector(w, r)
	if !ok {
		return
	}
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		in.InvalidateAll()
	}
	for _, k := range keys {
		in.Invalidate(k)
	}
	s.Log.Info("catalog cache invalidated", zap.Strings("keys", keys))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		kit.WriteError(w, r, http.StatusUnprocessableEntity, "validation failed", verr.Fields())
	case errors.Is(err, checkout.ErrEmptyCart):
		kit.WriteError(w, r, http.StatusConflict, "cart is empty", nil)
	case isTimeoutErr(err):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		s.Log.Error("place order failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	var ferr *catalog.FetchError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", nil)
	case errors.Is(err, catalog.ErrUnavailable) && errors.As(err, &ferr):
		kit.WriteError(w, r, http.StatusServiceUnavailable, ferr.Error(), map[string]any{"resource": ferr.Resource})
	case isTimeoutErr(err):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	case errors.As(err, &ferr):
		s.Log.Warn("catalog fetch failed", zap.String("resource", ferr.Resource), zap.Error(err))
		kit.WriteError(w, r, http.StatusBadGateway, ferr.Error(), map[string]any{"resource": ferr.Resource})
	default:
		s.Log.Error("catalog error", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

func quantityOrDefault(q *int) (int, error) {
	if q == nil {
		return 1, nil
	}
	if *q < cart.MinQuantity || *q > cart.MaxQuantity {
		return 0, errBadQuantity
	}
	return *q, nil
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
