package cart

import (
	"github.com/shopspring/decimal"

	"Storefront/internal/catalog"
)

const (
	MinQuantity = 1
	MaxQuantity = 10
)

// DefaultTaxRate is applied when the caller does not pick one.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// Line is one product in the cart. Title, price and image are copied from the
// product when the line is created and never follow later catalog changes.
type Line struct {
	ProductID int             `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func newLine(p catalog.Product, qty int) Line {
	return Line{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     p.Price,
		Image:     p.Image,
		Quantity:  min(qty, MaxQuantity),
	}
}

// State is a point-in-time copy of the cart.
type State struct {
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// Summary is the order summary shown next to the cart.
type Summary struct {
	ItemCount    int             `json:"item_count"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Shipping     decimal.Decimal `json:"shipping"`
	Tax          decimal.Decimal `json:"tax"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	TotalWithTax decimal.Decimal `json:"total_with_tax"`
}

func total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

func validQuantity(q int) bool {
	return q >= MinQuantity && q <= MaxQuantity
}
