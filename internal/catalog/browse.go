package catalog

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortKey string

const (
	SortNone      SortKey = ""
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortRating    SortKey = "rating"
	SortName      SortKey = "name"
)

// topRatedThreshold is the rating at which a product gets the top-rated badge.
const topRatedThreshold = 4.5

// ParseSortKey maps a query value to a SortKey; unknown values keep the
// catalog order.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case SortPriceLow, SortPriceHigh, SortRating, SortName:
		return k
	default:
		return SortNone
	}
}

// Filter keeps products whose title contains search (case-insensitive) and
// whose category equals category. Empty search or category match everything.
func Filter(products []Product, search, category string) []Product {
	needle := strings.ToLower(search)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if !strings.Contains(strings.ToLower(p.Title), needle) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Sort returns a sorted copy; the input is left untouched. Ties keep their
// original order.
func Sort(products []Product, key SortKey) []Product {
	out := slices.Clone(products)

	switch key {
	case SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating.Rate > out[j].Rating.Rate })
	case SortName:
		col := collate.New(language.English)
		sort.SliceStable(out, func(i, j int) bool { return col.CompareString(out[i].Title, out[j].Title) < 0 })
	}
	return out
}

// Browse applies Filter then Sort.
func Browse(products []Product, search, category string, key SortKey) []Product {
	return Sort(Filter(products, search, category), key)
}

// Categories lists the distinct categories of products in first-seen order.
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	var out []string
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

func IsTopRated(p Product) bool {
	return p.Rating.Rate >= topRatedThreshold
}

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Slug builds a URL-friendly name from a product title.
func Slug(title string) string {
	return strings.Trim(slugRegexp.ReplaceAllString(strings.ToLower(title), "-"), "-")
}
