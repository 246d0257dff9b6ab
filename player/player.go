package player

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stylerush/stylerush/catalog"
	"github.com/stylerush/stylerush/internal/async"
	"github.com/stylerush/stylerush/llm"
	"github.com/stylerush/stylerush/model"
	"github.com/stylerush/stylerush/tryon"
)

// ManifestStore persists the candidates a run produced.
type ManifestStore interface {
	SaveManifest(ctx context.Context, manifest model.RunManifest) error
}

// Config wires one Player run.
type Config struct {
	Theme     string
	AvatarURL string
	// Duration is the advisory wall-clock budget. Zero means no limit.
	Duration time.Duration

	LLM       *llm.Client
	Inventory catalog.Searcher
	Remote    catalog.Searcher
	Renderer  tryon.Renderer
	// Semaphore must be shared with the try-on job queue so their
	// combined renders stay under provider capacity.
	Semaphore *async.Semaphore
	// Manifests is optional; nil disables manifest persistence.
	Manifests ManifestStore
	Output    io.Writer
	Logger    *zap.Logger

	RemoteSearchBudget int
	RemotePickBudget   int
	RenderAttempts     int
}

// Player executes one autonomous styling run, streaming ndjson events
// to its output as it goes.
type Player struct {
	theme     string
	avatarURL string
	duration  time.Duration
	endsAt    time.Time

	llm       *llm.Client
	inventory catalog.Searcher
	remote    catalog.Searcher
	renderer  tryon.Renderer
	sem       *async.Semaphore
	manifests ManifestStore
	emitter   *Emitter
	log       *zap.Logger

	mu                 sync.Mutex
	remoteSearchesUsed int
	remoteSearchBudget int
	remotePicksUsed    int
	remotePickBudget   int
	renderAttempts     int
}

// New creates a Player for a single run.
func New(cfg Config) *Player {
	if cfg.RemoteSearchBudget <= 0 {
		cfg.RemoteSearchBudget = 2
	}
	if cfg.RemotePickBudget <= 0 {
		cfg.RemotePickBudget = 2
	}
	if cfg.RenderAttempts <= 0 {
		cfg.RenderAttempts = async.DefaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	return &Player{
		theme:              cfg.Theme,
		avatarURL:          cfg.AvatarURL,
		duration:           cfg.Duration,
		llm:                cfg.LLM,
		inventory:          cfg.Inventory,
		remote:             cfg.Remote,
		renderer:           cfg.Renderer,
		sem:                cfg.Semaphore,
		manifests:          cfg.Manifests,
		emitter:            NewEmitter(uuid.NewString()[:8], cfg.Output),
		log:                cfg.Logger,
		remoteSearchBudget: cfg.RemoteSearchBudget,
		remotePickBudget:   cfg.RemotePickBudget,
		renderAttempts:     cfg.RenderAttempts,
	}
}

// RunID returns this run's identifier.
func (p *Player) RunID() string {
	return p.emitter.RunID()
}

// Run drives the full lifecycle: INIT, PLAN, GATHER, TRYON, PICK, DONE.
// Phases execute strictly in order; errors inside a phase degrade via
// fallbacks and never abort the run. Run always emits a terminal DONE
// event and closes the output exactly once, even on a panic.
//
// The duration budget is advisory: it informs planning and the
// remaining-time thoughts but never cancels in-flight provider calls,
// which carry their own fixed timeouts.
func (p *Player) Run(ctx context.Context) error {
	p.endsAt = time.Time{}
	if p.duration > 0 {
		p.endsAt = time.Now().Add(p.duration)
	}

	defer p.emitter.Close()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("run panicked", zap.Any("panic", r))
			message := fmt.Sprintf("%v", r)
			p.emit(StreamEvent{Phase: PhaseDone, Type: EventPhaseError,
				Message: "AI player failed", Error: &EventError{Message: message}})
			p.emit(StreamEvent{Phase: PhaseDone, Type: EventSystem,
				Message: "AI player has finished its turn."})
		}
	}()

	p.emit(StreamEvent{Phase: PhaseInit, Type: EventSystem, Message: "AI player initialized"})
	p.thought(PhaseInit, fmt.Sprintf("Using avatar: %s", truncate(p.avatarURL, 80)))

	// PLAN
	p.emit(StreamEvent{Phase: PhasePlan, Type: EventPhaseStart, Message: "Planning outfit searches"})
	plan, planned := p.plan(ctx, p.theme)
	p.thought(PhasePlan, fmt.Sprintf("Theme set: %s", p.theme))
	if !planned {
		p.thought(PhasePlan, "Plan unusable; falling back to a minimal plan.")
	}
	p.thought(PhasePlan, fmt.Sprintf("Palette intent: %s", strings.Join(plan.Palette, ", ")))
	p.emit(StreamEvent{Phase: PhasePlan, Type: EventPhaseResult,
		Message: "Planned queries for categories",
		Context: map[string]any{
			"palette": plan.Palette,
			"queries": queriesContext(plan.Queries),
			"outfits": skeletonIDs(plan.Skeletons),
		}})

	// GATHER
	p.emit(StreamEvent{Phase: PhaseGather, Type: EventPhaseStart, Message: "Gathering candidates"})
	gathered := p.gather(ctx, plan)
	p.emit(StreamEvent{Phase: PhaseGather, Type: EventPhaseResult,
		Message: fmt.Sprintf("Shortlisted %d outfits", len(gathered.Outfits)),
		Context: map[string]any{
			"outfits":    outfitIDs(gathered.Outfits),
			"variations": gathered.VariationSeeds,
		}})
	if remaining := p.remaining(); remaining > 0 {
		p.thought(PhaseGather, fmt.Sprintf("%s left in the round.", remaining.Round(time.Second)))
	}

	// TRYON
	p.emit(StreamEvent{Phase: PhaseTryOn, Type: EventPhaseStart, Message: "Rendering try-ons"})
	candidates := p.tryOn(ctx, gathered, p.avatarURL)
	p.emit(StreamEvent{Phase: PhaseTryOn, Type: EventPhaseResult,
		Message: fmt.Sprintf("Got %d candidates", len(candidates)),
		Context: map[string]any{"candidates": candidatesContext(candidates)}})

	// PICK
	p.emit(StreamEvent{Phase: PhasePick, Type: EventPhaseStart, Message: "Picking best outfit"})
	final, reason, picked := p.pick(ctx, p.theme, candidates)
	if picked {
		p.emit(StreamEvent{Phase: PhasePick, Type: EventPhaseResult,
			Message: "Picked final outfit",
			Context: map[string]any{
				"outfitId": final.ID,
				"items":    productIDs(final.Items),
				"reason":   reason,
			}})
		p.thought(PhasePick, fmt.Sprintf("Picked outfit with %d item(s).", len(final.Items)))
	} else {
		p.emit(StreamEvent{Phase: PhasePick, Type: EventPhaseResult, Message: "No outfit selected"})
	}

	p.emit(StreamEvent{Phase: PhaseDone, Type: EventSystem, Message: "AI player has finished its turn."})
	return nil
}

// emit writes one event; emission failures are logged, never fatal.
func (p *Player) emit(event StreamEvent) {
	if err := p.emitter.Emit(event); err != nil {
		p.log.Warn("event emission failed", zap.Error(err))
	}
}

func (p *Player) thought(phase Phase, message string) {
	p.emit(StreamEvent{Phase: phase, Type: EventThought, Message: message})
}

func (p *Player) remaining() time.Duration {
	if p.endsAt.IsZero() {
		return 0
	}
	return time.Until(p.endsAt)
}

// withTool brackets fn with tool:start and tool:result/tool:error
// events carrying the tool name and wall-clock duration. The summary
// callback shapes the result message; nil gets a generic one.
func withTool[T any](p *Player, phase Phase, name, startMessage string, startContext map[string]any, fn func() (T, error), summary func(T) (string, map[string]any)) (T, error) {
	start := time.Now()
	p.emit(StreamEvent{Phase: phase, Type: EventToolStart,
		Tool: &ToolRef{Name: name}, Message: startMessage, Context: startContext})

	result, err := fn()
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		p.emit(StreamEvent{Phase: phase, Type: EventToolError,
			Tool: &ToolRef{Name: name}, DurationMs: durationMs,
			Message: err.Error(), Error: &EventError{Message: err.Error()}})
		return result, err
	}

	message, context := "Completed", map[string]any(nil)
	if summary != nil {
		message, context = summary(result)
	}
	p.emit(StreamEvent{Phase: phase, Type: EventToolResult,
		Tool: &ToolRef{Name: name}, DurationMs: durationMs,
		Message: message, Context: context})
	return result, nil
}

// truncate shortens s to at most n runes, never splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func queriesContext(queries []model.PlanQuery) []map[string]any {
	out := make([]map[string]any, 0, len(queries))
	for _, q := range queries {
		out = append(out, map[string]any{"category": q.Category, "q": q.Query})
	}
	return out
}

func skeletonIDs(skeletons []model.OutfitSkeleton) []string {
	out := make([]string, 0, len(skeletons))
	for _, s := range skeletons {
		out = append(out, s.ID)
	}
	return out
}

func outfitIDs(outfits []resolvedOutfit) []string {
	out := make([]string, 0, len(outfits))
	for _, o := range outfits {
		out = append(out, o.ID)
	}
	return out
}

func productIDs(products []model.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func candidatesContext(candidates []model.OutfitCandidate) []map[string]any {
	out := make([]map[string]any, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, map[string]any{"id": c.ID, "images": len(c.Images)})
	}
	return out
}
