package player

import (
	"context"
	"strings"

	stylejson "github.com/stylerush/stylerush/internal/json"
	"github.com/stylerush/stylerush/model"
)

const (
	maxPlanQueries   = 2
	maxPlanSkeletons = 2
)

// plan asks the language model for a styling plan and normalizes it:
// queries and outfits are capped regardless of what the model returned,
// and a missing palette is inferred from the theme. A malformed or
// failed response falls back to a deterministic minimal plan so the run
// always has forward progress.
func (p *Player) plan(ctx context.Context, theme string) (model.Plan, bool) {
	if p.llm == nil {
		return fallbackPlan(theme), false
	}
	response, err := p.llm.Complete(ctx, planSystemPrompt, planUserPrompt(theme, p.avatarURL, p.remaining()))
	if err != nil {
		return fallbackPlan(theme), false
	}

	parsed, ok := stylejson.Decode[model.Plan](response)
	if !ok {
		return fallbackPlan(theme), false
	}

	if len(parsed.Queries) > maxPlanQueries {
		parsed.Queries = parsed.Queries[:maxPlanQueries]
	}
	if len(parsed.Skeletons) > maxPlanSkeletons {
		parsed.Skeletons = parsed.Skeletons[:maxPlanSkeletons]
	}
	parsed.Queries = validQueries(parsed.Queries)
	parsed.Skeletons = validSkeletons(parsed.Skeletons)
	if len(parsed.Palette) == 0 {
		parsed.Palette = inferPalette(theme)
	}
	if len(parsed.Skeletons) == 0 {
		return fallbackPlan(theme), false
	}
	return parsed, true
}

// fallbackPlan is the deterministic minimal plan: no remote queries,
// one single-slot outfit sourced from remote search, neutral palette.
func fallbackPlan(theme string) model.Plan {
	return model.Plan{
		Palette: []string{"navy", "white"},
		Queries: nil,
		Skeletons: []model.OutfitSkeleton{
			{
				ID:    "outfit-1",
				Slots: []model.SkeletonSlot{{Category: model.CategoryTop, Source: model.SourceRemote}},
			},
		},
	}
}

func validQueries(queries []model.PlanQuery) []model.PlanQuery {
	out := queries[:0]
	for _, q := range queries {
		if _, ok := model.ParseCategory(string(q.Category)); !ok {
			continue
		}
		if strings.TrimSpace(q.Query) == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}

func validSkeletons(skeletons []model.OutfitSkeleton) []model.OutfitSkeleton {
	out := skeletons[:0]
	for i, s := range skeletons {
		slots := s.Slots[:0]
		for _, slot := range s.Slots {
			if _, ok := model.ParseCategory(string(slot.Category)); !ok {
				continue
			}
			if slot.Source != model.SourceInventory && slot.Source != model.SourceRemote {
				slot.Source = model.SourceInventory
			}
			slots = append(slots, slot)
		}
		if len(slots) == 0 {
			continue
		}
		s.Slots = slots
		if s.ID == "" {
			s.ID = defaultSkeletonID(i)
		}
		out = append(out, s)
	}
	return out
}

func defaultSkeletonID(i int) string {
	return "outfit-" + string(rune('1'+i))
}

// inferPalette mirrors the in-game heuristic: warm-weather themes lean
// light and nautical, formal themes lean dark.
func inferPalette(theme string) []string {
	lowered := strings.ToLower(theme)
	for _, k := range []string{"summer", "beach", "rooftop"} {
		if strings.Contains(lowered, k) {
			return []string{"navy", "white", "tan"}
		}
	}
	for _, k := range []string{"winter", "formal", "evening"} {
		if strings.Contains(lowered, k) {
			return []string{"black", "charcoal", "white"}
		}
	}
	return []string{"navy", "white", "tan"}
}
