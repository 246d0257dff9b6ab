package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stylerush/stylerush/model"
)

func testInventory() *Inventory {
	return NewInventory([]model.Product{
		{ID: "t1", Title: "Navy Linen Shirt", Image: "tops/navy.png", Category: model.CategoryTop},
		{ID: "t2", Title: "White Cotton Tee", Image: "tops/white.png", Category: model.CategoryTop},
		{ID: "b1", Title: "Tan Chino Pants", Image: "bottoms/tan.png", Category: model.CategoryBottom},
		{ID: "d1", Title: "Black Evening Dress", Image: "dresses/black.png", Category: model.CategoryDress},
	})
}

func TestInventorySearchMatchesWords(t *testing.T) {
	inv := testInventory()
	products, err := inv.Search(context.Background(), "navy summer", model.CategoryTop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || products[0].ID != "t1" {
		t.Errorf("expected only the navy shirt, got %+v", products)
	}
}

func TestInventorySearchFallsBackToCategory(t *testing.T) {
	inv := testInventory()
	products, err := inv.Search(context.Background(), "no such words", model.CategoryTop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 2 {
		t.Errorf("expected fallback to all tops, got %d products", len(products))
	}
}

func TestInventorySearchEmptyCategory(t *testing.T) {
	inv := NewInventory(nil)
	products, err := inv.Search(context.Background(), "anything", model.CategoryDress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("expected empty result, got %d", len(products))
	}
}

func TestInventoryTagsProvider(t *testing.T) {
	inv := NewInventory([]model.Product{
		{ID: "x", Title: "X", Category: model.CategoryTop, Provider: model.SourceRemote},
	})
	products, _ := inv.Search(context.Background(), "x", model.CategoryTop)
	if products[0].Provider != model.SourceInventory {
		t.Errorf("inventory products must carry the inventory origin, got %q", products[0].Provider)
	}
}

func TestOpenInventoryDir(t *testing.T) {
	dir := t.TempDir()
	for sub, files := range map[string][]string{
		"tops":    {"navy_linen-shirt.png", "white-tee.jpg", "notes.txt"},
		"bottoms": {"tan-chinos.webp"},
	} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
		for _, f := range files {
			if err := os.WriteFile(filepath.Join(dir, sub, f), []byte("img"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}

	inv, err := OpenInventoryDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tops := inv.All(model.CategoryTop)
	if len(tops) != 2 {
		t.Fatalf("expected 2 tops (txt file skipped), got %d", len(tops))
	}
	bottoms := inv.All(model.CategoryBottom)
	if len(bottoms) != 1 {
		t.Fatalf("expected 1 bottom, got %d", len(bottoms))
	}
	if dresses := inv.All(model.CategoryDress); len(dresses) != 0 {
		t.Errorf("expected missing dresses dir to be empty, got %d", len(dresses))
	}

	found := false
	for _, p := range tops {
		if p.Title == "Navy Linen Shirt" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected normalized title 'Navy Linen Shirt', got %+v", tops)
	}
}

func TestOpenInventoryDirMissing(t *testing.T) {
	if _, err := OpenInventoryDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}
