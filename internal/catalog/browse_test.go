package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func products() []Product {
	return []Product{
		{ID: 1, Title: "Mens Casual Premium Slim Fit T-Shirts", Price: decimal.RequireFromString("22.3"), Category: "men's clothing", Rating: Rating{Rate: 4.1}},
		{ID: 2, Title: "John Hardy Bracelet", Price: decimal.RequireFromString("695"), Category: "jewelery", Rating: Rating{Rate: 4.6}},
		{ID: 3, Title: "eXtreme SSD", Price: decimal.RequireFromString("109"), Category: "electronics", Rating: Rating{Rate: 4.8}},
		{ID: 4, Title: "Mens Cotton Jacket", Price: decimal.RequireFromString("55.99"), Category: "men's clothing", Rating: Rating{Rate: 4.7}},
	}
}

func ids(ps []Product) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	cases := []struct {
		name     string
		search   string
		category string
		want     []int
	}{
		{"everything", "", "", []int{1, 2, 3, 4}},
		{"case insensitive substring", "MENS", "", []int{1, 4}},
		{"category equality", "", "jewelery", []int{2}},
		{"search and category", "jacket", "men's clothing", []int{4}},
		{"no match", "laptop", "", []int{}},
		{"category is exact", "", "Jewelery", []int{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(Filter(products(), tc.search, tc.category)))
		})
	}
}

func TestSort(t *testing.T) {
	cases := []struct {
		key  SortKey
		want []int
	}{
		{SortPriceLow, []int{1, 4, 3, 2}},
		{SortPriceHigh, []int{2, 3, 4, 1}},
		{SortRating, []int{3, 4, 2, 1}},
		{SortName, []int{3, 2, 1, 4}},
		{SortNone, []int{1, 2, 3, 4}},
	}

	for _, tc := range cases {
		t.Run(string(tc.key), func(t *testing.T) {
			assert.Equal(t, tc.want, ids(Sort(products(), tc.key)))
		})
	}
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	in := products()
	_ = Sort(in, SortPriceHigh)
	assert.Equal(t, []int{1, 2, 3, 4}, ids(in))
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortPriceLow, ParseSortKey("price-low"))
	assert.Equal(t, SortName, ParseSortKey(" name "))
	assert.Equal(t, SortNone, ParseSortKey("newest"))
	assert.Equal(t, SortNone, ParseSortKey(""))
}

func TestBrowse(t *testing.T) {
	got := Browse(products(), "mens", "men's clothing", SortPriceHigh)
	assert.Equal(t, []int{4, 1}, ids(got))
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"men's clothing", "jewelery", "electronics"}, Categories(products()))
	assert.Nil(t, Categories(nil))
}

func TestIsTopRated(t *testing.T) {
	assert.True(t, IsTopRated(Product{Rating: Rating{Rate: 4.5}}))
	assert.False(t, IsTopRated(Product{Rating: Rating{Rate: 4.49}}))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "fjallraven-foldsack-no-1-backpack", Slug("Fjallraven - Foldsack No. 1 Backpack"))
	assert.Equal(t, "mens-casual-t-shirt", Slug("  Mens Casual T-Shirt!  "))
}
