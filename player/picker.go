package player

import (
	"context"

	stylejson "github.com/stylerush/stylerush/internal/json"
	"github.com/stylerush/stylerush/model"
)

type pickResult struct {
	FinalOutfitID string `json:"final_outfit_id"`
	Reason        string `json:"reason"`
}

// pick asks the language model to judge the candidates. The model is
// advisory: a failed call, malformed JSON, or an id that matches no
// candidate all fall back to the first candidate with a render.
func (p *Player) pick(ctx context.Context, theme string, candidates []model.OutfitCandidate) (model.OutfitCandidate, string, bool) {
	if len(candidates) == 0 {
		return model.OutfitCandidate{}, "", false
	}

	if p.llm == nil {
		return fallbackPick(candidates)
	}
	response, err := p.llm.Complete(ctx, pickSystemPrompt, pickUserPrompt(theme, candidates))
	if err == nil {
		if parsed, ok := stylejson.Decode[pickResult](response); ok {
			for _, c := range candidates {
				if c.ID == parsed.FinalOutfitID {
					reason := parsed.Reason
					if reason == "" {
						reason = "Best fit for the theme."
					}
					return c, reason, true
				}
			}
		}
	}

	return fallbackPick(candidates)
}

// fallbackPick selects the first candidate with a non-empty image list,
// or the first candidate at all when nothing rendered.
func fallbackPick(candidates []model.OutfitCandidate) (model.OutfitCandidate, string, bool) {
	for _, c := range candidates {
		if len(c.Images) > 0 {
			return c, "This was the best rendered option.", true
		}
	}
	return candidates[0], "No renders completed; picked the first shortlisted outfit.", true
}
