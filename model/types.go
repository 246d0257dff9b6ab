// Package model provides domain types shared across packages.
package model

import "time"

// Category is the closed set of garment categories the game knows about.
type Category string

const (
	CategoryTop    Category = "top"
	CategoryBottom Category = "bottom"
	CategoryDress  Category = "dress"
)

// Categories lists all garment categories in a stable order.
func Categories() []Category {
	return []Category{CategoryTop, CategoryBottom, CategoryDress}
}

// ParseCategory parses a category string, reporting whether it is valid.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryTop, CategoryBottom, CategoryDress:
		return Category(s), true
	}
	return "", false
}

// Source identifies where a garment should come from when resolving an
// outfit slot.
type Source string

const (
	SourceInventory Source = "inventory"
	SourceRemote    Source = "remote"
)

// Product is a candidate garment from either the local inventory or a
// remote search. Immutable once constructed; identity is unique within
// its provider.
type Product struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Image    string   `json:"image"`
	Category Category `json:"category"`
	Provider Source   `json:"provider"`
}

// PlanQuery is one (category, query) pair the planner wants searched.
type PlanQuery struct {
	Category Category `json:"category"`
	Query    string   `json:"query"`
}

// SkeletonSlot is one required garment slot in an outfit skeleton.
type SkeletonSlot struct {
	Category Category `json:"category"`
	Source   Source   `json:"source"`
}

// OutfitSkeleton describes an outfit the planner wants assembled:
// which categories, sourced from where.
type OutfitSkeleton struct {
	ID    string         `json:"id"`
	Slots []SkeletonSlot `json:"slots"`
}

// Plan is the planner's output for one run. Queries are capped at two
// entries and skeletons at two; both caps are enforced by the planner
// regardless of what the language model returns.
type Plan struct {
	Palette   []string         `json:"palette"`
	Queries   []PlanQuery      `json:"queries"`
	Skeletons []OutfitSkeleton `json:"outfits"`
}

// OutfitCandidate is a skeleton resolved to concrete products, plus the
// try-on renders and evaluation notes attached later in the run.
type OutfitCandidate struct {
	ID     string    `json:"id"`
	Items  []Product `json:"items"`
	Images []string  `json:"images,omitempty"`
	Notes  string    `json:"notes,omitempty"`
}

// JobStatus is the strict linear state machine for a try-on job.
// Transitions only move forward: queued -> running -> succeeded|failed.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// TryOnJob is a persisted unit of player-facing try-on work.
// Identity is the (BaseImageKey, ItemID) pair: at most one job may ever
// exist per pair, and enqueue returns the existing job unchanged.
type TryOnJob struct {
	ID           string    `json:"id"`
	BaseImageKey string    `json:"baseImageKey"`
	BaseImageURL string    `json:"baseImageUrl"`
	BaseImageID  string    `json:"baseImageId,omitempty"`
	ItemID       string    `json:"itemId"`
	ItemImageURL string    `json:"itemImageUrl"`
	Status       JobStatus `json:"status"`
	Images       []string  `json:"images,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RunManifest is the record of one autonomous run's outfit candidates
// and their renders, written once try-ons finish.
type RunManifest struct {
	RunID      string            `json:"runId"`
	Theme      string            `json:"theme"`
	Candidates []OutfitCandidate `json:"candidates"`
	CreatedAt  time.Time         `json:"createdAt"`
}
