// Package catalog reads the remote product catalog and offers pure helpers to
// search, filter and sort an already fetched product list.
package catalog

import "github.com/shopspring/decimal"

type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is owned by the remote catalog. Nothing in this module mutates one;
// the cart and the wishlist copy the fields they need.
type Product struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Rating      Rating          `json:"rating"`
}
