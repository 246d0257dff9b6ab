// Package catalog provides the garment sources the game draws from:
// a local read-only inventory and a rate-limited remote product search.
//
// Both sources expose the same Searcher contract, so the gathering
// phase can treat them uniformly and callers can stub either in tests.
package catalog

import (
	"context"

	"github.com/stylerush/stylerush/model"
)

// Searcher finds candidate garments for a query within a category.
// An empty result is not an error; it means no matches.
type Searcher interface {
	Search(ctx context.Context, query string, category model.Category) ([]model.Product, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, category model.Category) ([]model.Product, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string, category model.Category) ([]model.Product, error) {
	return f(ctx, query, category)
}
