package player

import (
	"fmt"
	"strings"
	"time"

	"github.com/stylerush/stylerush/model"
)

const planSystemPrompt = `You are a fashion stylist planning an outfit for a styling game.
Respond with strict JSON only, no prose, matching exactly this shape:
{
  "palette": ["color", "color", ...],
  "queries": [{"category": "top|bottom|dress", "query": "search text"}],
  "outfits": [{"id": "outfit-1", "slots": [{"category": "top|bottom|dress", "source": "inventory|remote"}]}]
}
Rules:
- at most 2 queries
- 1 or 2 outfits, each with 1 or 2 slots
- a dress slot is never combined with a top or bottom slot in the same outfit
- source "remote" means a live shop search, "inventory" means the player's closet
- when little time remains in the round, prefer fewer queries and simpler outfits`

func planUserPrompt(theme, avatarURL string, remaining time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %q.\n", theme)
	if avatarURL != "" {
		fmt.Fprintf(&b, "Avatar image: %s\n", avatarURL)
	}
	if remaining > 0 {
		fmt.Fprintf(&b, "About %d seconds remain in the round.\n", int(remaining.Seconds()))
	}
	b.WriteString("Plan a palette, search queries and outfit skeletons that fit the theme.")
	return b.String()
}

const pickSystemPrompt = `You are judging outfits rendered on a player's avatar for a styling game.
Respond with strict JSON only, no prose: {"final_outfit_id": "...", "reason": "one sentence"}.
Pick the candidate that best fits the theme. Prefer candidates that have rendered images.`

func pickUserPrompt(theme string, candidates []model.OutfitCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %q. Candidates:\n", theme)
	for _, c := range candidates {
		images := c.Images
		if len(images) > 2 {
			images = images[:2]
		}
		titles := make([]string, 0, len(c.Items))
		for _, item := range c.Items {
			titles = append(titles, fmt.Sprintf("%s (%s)", item.Title, item.Category))
		}
		fmt.Fprintf(&b, "- id=%s items=[%s] renders=%d %s\n",
			c.ID, strings.Join(titles, ", "), len(images), strings.Join(images, " "))
	}
	return b.String()
}
