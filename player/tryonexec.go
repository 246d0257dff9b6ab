package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stylerush/stylerush/internal/async"
	"github.com/stylerush/stylerush/model"
)

// tryOn renders every resolved outfit concurrently, one render per
// variation seed. Each render call is bounded by the shared semaphore
// and wrapped in the retry policy; exhausted retries leave the outfit
// with fewer (possibly zero) images rather than failing the run.
func (p *Player) tryOn(ctx context.Context, result gatherResult, modelImage string) []model.OutfitCandidate {
	type render struct {
		outfitID string
		images   []string
	}

	var wg sync.WaitGroup
	renders := make(chan render, len(result.Outfits)*len(result.VariationSeeds))

	for _, outfit := range result.Outfits {
		garment := representativeGarment(outfit)
		if garment == "" {
			continue
		}
		for _, seed := range result.VariationSeeds {
			outfit, seed := outfit, seed
			wg.Add(1)
			go func() {
				defer wg.Done()
				images, err := p.renderOutfit(ctx, outfit, garment, modelImage, seed)
				if err != nil {
					// tool:error already emitted; candidate keeps going
					// with whatever renders it has.
					return
				}
				renders <- render{outfitID: outfit.ID, images: images}
			}()
		}
	}

	wg.Wait()
	close(renders)

	imagesByOutfit := make(map[string][]string)
	for r := range renders {
		imagesByOutfit[r.outfitID] = append(imagesByOutfit[r.outfitID], r.images...)
	}

	candidates := make([]model.OutfitCandidate, 0, len(result.Outfits))
	for _, outfit := range result.Outfits {
		images := imagesByOutfit[outfit.ID]
		candidates = append(candidates, model.OutfitCandidate{
			ID:     outfit.ID,
			Items:  outfit.Items,
			Images: images,
			Notes:  fmt.Sprintf("%d item(s), %d render(s)", len(outfit.Items), len(images)),
		})
	}

	p.saveManifest(ctx, candidates)
	return candidates
}

func (p *Player) renderOutfit(ctx context.Context, outfit resolvedOutfit, garment, modelImage string, seed int) ([]string, error) {
	return withTool(p, PhaseTryOn, "renderTryOn",
		fmt.Sprintf("Try-on for %s", outfit.ID),
		map[string]any{"outfitId": outfit.ID, "items": len(outfit.Items), "variation": seed},
		func() ([]string, error) {
			var images []string
			err := p.sem.Run(ctx, func(ctx context.Context) error {
				return async.Retry(ctx, "tryon render", p.renderAttempts, func(ctx context.Context) error {
					var renderErr error
					images, renderErr = p.renderer.Render(ctx, modelImage, garment)
					return renderErr
				})
			})
			if err != nil {
				return nil, err
			}
			return images, nil
		},
		func(images []string) (string, map[string]any) {
			return fmt.Sprintf("Got %d image(s)", len(images)),
				map[string]any{"images": len(images)}
		})
}

// representativeGarment is the image sent to the renderer: the first
// item's image, matching the one-garment-per-call provider contract.
func representativeGarment(outfit resolvedOutfit) string {
	for _, item := range outfit.Items {
		if item.Image != "" {
			return item.Image
		}
	}
	return ""
}

// saveManifest persists the run's candidates for later viewing.
// Best-effort: a storage failure is reported as a tool:error and the
// run continues.
func (p *Player) saveManifest(ctx context.Context, candidates []model.OutfitCandidate) {
	if p.manifests == nil {
		return
	}
	withTool(p, PhaseTryOn, "saveManifest",
		"Saving manifest",
		map[string]any{"candidates": len(candidates)},
		func() (struct{}, error) {
			return struct{}{}, p.manifests.SaveManifest(ctx, model.RunManifest{
				RunID:      p.emitter.RunID(),
				Theme:      p.theme,
				Candidates: candidates,
				CreatedAt:  time.Now().UTC(),
			})
		}, nil)
}
