package player

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stylerush/stylerush/model"
)

// resolvedOutfit is an outfit skeleton with its slots bound to
// concrete products.
type resolvedOutfit struct {
	ID    string
	Items []model.Product
}

// gatherResult carries the resolved outfits plus the variation seeds
// handed to the try-on executor (distinct seeds yield distinct renders
// of the same outfit).
type gatherResult struct {
	Outfits        []resolvedOutfit
	VariationSeeds []int
}

// gather runs the plan's queries concurrently and resolves each outfit
// skeleton against the pooled results. Inventory is scanned once per
// category any skeleton needs; remote searches run only while the
// per-run search budget lasts and their failures degrade to empty
// results. Pools list remote finds first so fresh items win ties.
func (p *Player) gather(ctx context.Context, plan model.Plan) gatherResult {
	needed := neededCategories(plan.Skeletons)

	var mu sync.Mutex
	inventoryPool := make(map[model.Category][]model.Product)
	remotePool := make(map[model.Category][]model.Product)

	g, gctx := errgroup.WithContext(ctx)

	for _, category := range needed {
		category := category
		g.Go(func() error {
			products, err := p.searchCloset(gctx, category)
			if err != nil {
				// Closet scan failures degrade to an empty pool.
				return nil
			}
			mu.Lock()
			inventoryPool[category] = products
			mu.Unlock()
			return nil
		})
	}

	for _, query := range plan.Queries {
		query := query
		g.Go(func() error {
			if !p.takeRemoteSearch() {
				p.thought(PhaseGather, fmt.Sprintf("Remote search budget spent; skipping %s query.", query.Category))
				return nil
			}
			products, err := p.searchRemote(gctx, query)
			if err != nil {
				p.thought(PhaseGather, fmt.Sprintf("Remote search failed for %s; continuing with closet.", query.Category))
				return nil
			}
			mu.Lock()
			remotePool[query.Category] = append(remotePool[query.Category], products...)
			mu.Unlock()
			return nil
		})
	}

	g.Wait()

	outfits := p.resolveSkeletons(plan.Skeletons, remotePool, inventoryPool)
	return gatherResult{Outfits: outfits, VariationSeeds: []int{11, 77}}
}

func (p *Player) searchCloset(ctx context.Context, category model.Category) ([]model.Product, error) {
	return withTool(p, PhaseGather, "searchCloset",
		fmt.Sprintf("Scan closet: %ss", category),
		map[string]any{"category": category},
		func() ([]model.Product, error) {
			return p.inventory.Search(ctx, "", category)
		},
		func(products []model.Product) (string, map[string]any) {
			return fmt.Sprintf("Found %d %ss (closet)", len(products), category),
				map[string]any{"count": len(products)}
		})
}

func (p *Player) searchRemote(ctx context.Context, query model.PlanQuery) ([]model.Product, error) {
	return withTool(p, PhaseGather, "searchRemote",
		fmt.Sprintf("Remote search %s", query.Category),
		map[string]any{"category": query.Category, "q": query.Query},
		func() ([]model.Product, error) {
			return p.remote.Search(ctx, query.Query, query.Category)
		},
		func(products []model.Product) (string, map[string]any) {
			return fmt.Sprintf("Remote returned %d", len(products)),
				map[string]any{"count": len(products)}
		})
}

// takeRemoteSearch consumes one unit of the per-run search budget.
// Returns false once the budget is spent; the caller must then skip the
// search entirely.
func (p *Player) takeRemoteSearch() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remoteSearchesUsed >= p.remoteSearchBudget {
		return false
	}
	p.remoteSearchesUsed++
	return true
}

// takeRemotePick consumes one unit of the per-run remote garment
// budget.
func (p *Player) takeRemotePick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remotePicksUsed >= p.remotePickBudget {
		return false
	}
	p.remotePicksUsed++
	return true
}

// resolveSkeletons binds each skeleton slot to the first product from
// the preferred pool, falling back to the other pool when the preferred
// one is empty. Remote products count against the per-run pick budget;
// once spent, only inventory can fill a slot. Picked products are
// consumed so two slots never share a garment. Skeletons that resolve
// zero items are dropped.
func (p *Player) resolveSkeletons(skeletons []model.OutfitSkeleton, remotePool, inventoryPool map[model.Category][]model.Product) []resolvedOutfit {
	var outfits []resolvedOutfit
	for _, skeleton := range skeletons {
		var items []model.Product
		for _, slot := range skeleton.Slots {
			product, ok := p.resolveSlot(slot, remotePool, inventoryPool)
			if !ok {
				continue
			}
			items = append(items, product)
		}
		if len(items) == 0 {
			continue
		}
		outfits = append(outfits, resolvedOutfit{ID: skeleton.ID, Items: items})
	}
	return outfits
}

func (p *Player) resolveSlot(slot model.SkeletonSlot, remotePool, inventoryPool map[model.Category][]model.Product) (model.Product, bool) {
	takeRemote := func() (model.Product, bool) {
		pool := remotePool[slot.Category]
		if len(pool) == 0 {
			return model.Product{}, false
		}
		if !p.takeRemotePick() {
			return model.Product{}, false
		}
		product := pool[0]
		remotePool[slot.Category] = pool[1:]
		return product, true
	}
	takeInventory := func() (model.Product, bool) {
		pool := inventoryPool[slot.Category]
		if len(pool) == 0 {
			return model.Product{}, false
		}
		product := pool[0]
		inventoryPool[slot.Category] = pool[1:]
		return product, true
	}

	if slot.Source == model.SourceRemote {
		if product, ok := takeRemote(); ok {
			return product, true
		}
		return takeInventory()
	}
	if product, ok := takeInventory(); ok {
		return product, true
	}
	return takeRemote()
}

func neededCategories(skeletons []model.OutfitSkeleton) []model.Category {
	seen := make(map[model.Category]bool)
	var out []model.Category
	for _, s := range skeletons {
		for _, slot := range s.Slots {
			if !seen[slot.Category] {
				seen[slot.Category] = true
				out = append(out, slot.Category)
			}
		}
	}
	return out
}
