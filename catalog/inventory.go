// Local garment inventory.
//
// Information Hiding:
// - Directory layout and image discovery hidden
// - Query matching strategy hidden
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stylerush/stylerush/model"
)

// inventoryDefaultLimit bounds a single inventory query result.
const inventoryDefaultLimit = 20

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

var categoryDirs = map[model.Category]string{
	model.CategoryTop:    "tops",
	model.CategoryBottom: "bottoms",
	model.CategoryDress:  "dresses",
}

// Inventory is the local static garment collection, queryable by
// category and free-text words. Read-only; products are constructed at
// query time and never mutated.
type Inventory struct {
	byCategory map[model.Category][]model.Product
	limit      int
}

// NewInventory creates an inventory from an explicit product list.
// Useful for tests and for callers that load the collection themselves.
func NewInventory(products []model.Product) *Inventory {
	byCategory := make(map[model.Category][]model.Product)
	for _, p := range products {
		p.Provider = model.SourceInventory
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}
	return &Inventory{byCategory: byCategory, limit: inventoryDefaultLimit}
}

// OpenInventoryDir builds an inventory by scanning a closet directory
// laid out as <dir>/tops, <dir>/bottoms, <dir>/dresses, one image file
// per garment. Missing category directories yield empty categories,
// not errors.
func OpenInventoryDir(dir string) (*Inventory, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("inventory directory: %w", err)
	}

	byCategory := make(map[model.Category][]model.Product)
	for category, sub := range categoryDirs {
		categoryDir := filepath.Join(dir, sub)
		entries, err := os.ReadDir(categoryDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", categoryDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				continue
			}
			byCategory[category] = append(byCategory[category], fileProduct(categoryDir, entry.Name(), category))
		}
	}
	return &Inventory{byCategory: byCategory, limit: inventoryDefaultLimit}, nil
}

func fileProduct(dir, name string, category model.Category) model.Product {
	path := filepath.Join(dir, name)
	return model.Product{
		ID:       fmt.Sprintf("local-%s-%s", category, hashShort(path, 8)),
		Title:    normalizeTitle(name),
		Image:    path,
		Category: category,
		Provider: model.SourceInventory,
	}
}

func hashShort(text string, length int) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:length]
}

// normalizeTitle turns "navy_linen-shirt.png" into "Navy Linen Shirt".
func normalizeTitle(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	words := strings.Fields(base)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Search returns products in the category whose title matches any word
// of the query. When nothing matches it falls back to the first N
// products of the category; an empty category yields an empty result.
func (inv *Inventory) Search(ctx context.Context, query string, category model.Category) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := inv.byCategory[category]
	words := strings.Fields(strings.ToLower(query))

	var matched []model.Product
	for _, p := range candidates {
		title := strings.ToLower(p.Title)
		for _, w := range words {
			if strings.Contains(title, w) {
				matched = append(matched, p)
				break
			}
		}
	}
	if len(matched) == 0 {
		matched = candidates
	}
	if len(matched) > inv.limit {
		matched = matched[:inv.limit]
	}
	// Copy so callers cannot alias the internal slice.
	out := make([]model.Product, len(matched))
	copy(out, matched)
	return out, nil
}

// All returns every product in the given categories.
func (inv *Inventory) All(categories ...model.Category) []model.Product {
	var out []model.Product
	for _, c := range categories {
		out = append(out, inv.byCategory[c]...)
	}
	return out
}

// Verify Inventory implements Searcher
var _ Searcher = (*Inventory)(nil)
