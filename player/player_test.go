package player

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stylerush/stylerush/catalog"
	"github.com/stylerush/stylerush/internal/async"
	"github.com/stylerush/stylerush/llm"
	"github.com/stylerush/stylerush/model"
	"github.com/stylerush/stylerush/tryon"
)

// scriptedProvider returns canned responses in call order. When the
// script runs out, the last response repeats. A non-nil err fails every
// call. User prompts are recorded for inspection.
type scriptedProvider struct {
	mu          sync.Mutex
	responses   []string
	calls       int
	err         error
	userPrompts []string
}

func (s *scriptedProvider) Name() string  { return "scripted" }
func (s *scriptedProvider) Model() string { return "scripted-1" }

func (s *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.Response, error) {
	return s.ChatWithFormat(ctx, messages, nil)
}

func (s *scriptedProvider) ChatWithFormat(_ context.Context, messages []llm.ChatMessage, _ *llm.ResponseFormat) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range messages {
		if msg.Role == "user" {
			s.userPrompts = append(s.userPrompts, msg.Content)
		}
	}
	if s.err != nil {
		return llm.Response{}, s.err
	}
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return llm.Response{Content: s.responses[idx]}, nil
}

var _ llm.Provider = (*scriptedProvider)(nil)

const happyPlanJSON = `{
	"palette": ["navy", "white", "tan"],
	"queries": [
		{"category": "top", "query": "navy linen shirt"},
		{"category": "bottom", "query": "white chinos"}
	],
	"outfits": [
		{"id": "outfit-1", "slots": [
			{"category": "top", "source": "remote"},
			{"category": "bottom", "source": "inventory"}
		]},
		{"id": "outfit-2", "slots": [{"category": "dress", "source": "inventory"}]}
	]
}`

func inventoryProducts() []model.Product {
	return []model.Product{
		{ID: "inv-top-1", Title: "White Linen Shirt", Image: "inv://top1.png", Category: model.CategoryTop},
		{ID: "inv-top-2", Title: "Navy Tee", Image: "inv://top2.png", Category: model.CategoryTop},
		{ID: "inv-bottom-1", Title: "Tan Chinos", Image: "inv://bottom1.png", Category: model.CategoryBottom},
		{ID: "inv-dress-1", Title: "White Sundress", Image: "inv://dress1.png", Category: model.CategoryDress},
	}
}

func remoteSearcher(calls *atomic.Int32) catalog.Searcher {
	return catalog.SearcherFunc(func(_ context.Context, query string, category model.Category) ([]model.Product, error) {
		if calls != nil {
			calls.Add(1)
		}
		return []model.Product{
			{ID: "rem-" + string(category) + "-1", Title: "Remote " + string(category), Image: "rem://" + string(category) + ".png", Category: category, Provider: model.SourceRemote},
			{ID: "rem-" + string(category) + "-2", Title: "Remote " + string(category) + " 2", Image: "rem://" + string(category) + "2.png", Category: category, Provider: model.SourceRemote},
		}, nil
	})
}

type manifestRecorder struct {
	mu        sync.Mutex
	manifests []model.RunManifest
}

func (m *manifestRecorder) SaveManifest(_ context.Context, manifest model.RunManifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests = append(m.manifests, manifest)
	return nil
}

func okRenderer() tryon.Renderer {
	return tryon.RendererFunc(func(_ context.Context, _ string, garment string) ([]string, error) {
		return []string{"render://" + garment}, nil
	})
}

func phaseRank(p Phase) int {
	switch p {
	case PhaseInit:
		return 0
	case PhasePlan:
		return 1
	case PhaseGather:
		return 2
	case PhaseTryOn:
		return 3
	case PhasePick:
		return 4
	case PhaseDone:
		return 5
	}
	return -1
}

func runPlayer(t *testing.T, cfg Config) []StreamEvent {
	t.Helper()
	out := &closeCounter{}
	cfg.Output = out
	p := New(cfg)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.closes != 1 {
		t.Fatalf("output closed %d times, want exactly once", out.closes)
	}
	return decodeEvents(t, out.Bytes())
}

func assertGaplessSeq(t *testing.T, events []StreamEvent) {
	t.Helper()
	for i, ev := range events {
		if ev.Seq != i+1 {
			t.Fatalf("seq gap at index %d: got %d, want %d", i, ev.Seq, i+1)
		}
	}
}

func countDone(events []StreamEvent) int {
	n := 0
	for _, ev := range events {
		if ev.Phase == PhaseDone && ev.Type == EventSystem {
			n++
		}
	}
	return n
}

func TestRunHappyPath(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		happyPlanJSON,
		`{"final_outfit_id": "outfit-1", "reason": "Navy and white reads crisp for a rooftop."}`,
	}}
	var remoteCalls atomic.Int32
	manifests := &manifestRecorder{}

	events := runPlayer(t, Config{
		Theme:     "Summer Rooftop Party",
		AvatarURL: "avatar://base.png",
		LLM:       llm.NewClient(provider),
		Inventory: catalog.NewInventory(inventoryProducts()),
		Remote:    remoteSearcher(&remoteCalls),
		Renderer:  okRenderer(),
		Semaphore: async.NewSemaphore(6),
		Manifests: manifests,
	})

	assertGaplessSeq(t, events)

	// Phases never interleave: ranks are non-decreasing in emission
	// order even though work inside GATHER and TRYON is concurrent.
	lastRank := -1
	for _, ev := range events {
		rank := phaseRank(ev.Phase)
		if rank < 0 {
			t.Fatalf("unknown phase %q", ev.Phase)
		}
		if rank < lastRank {
			t.Fatalf("phase %s event after later phase had started", ev.Phase)
		}
		lastRank = rank
	}

	if n := countDone(events); n != 1 {
		t.Errorf("expected exactly one DONE system event, got %d", n)
	}
	if n := remoteCalls.Load(); n > 2 {
		t.Errorf("remote search quota exceeded: %d calls", n)
	}

	// Every tool:start has exactly one matching terminal tool event.
	starts := map[string]int{}
	finishes := map[string]int{}
	for _, ev := range events {
		if ev.Tool == nil {
			continue
		}
		switch ev.Type {
		case EventToolStart:
			starts[ev.Tool.Name]++
		case EventToolResult, EventToolError:
			finishes[ev.Tool.Name]++
		}
	}
	for name, n := range starts {
		if finishes[name] != n {
			t.Errorf("tool %s: %d starts but %d finishes", name, n, finishes[name])
		}
	}

	var picked *StreamEvent
	for i, ev := range events {
		if ev.Phase == PhasePick && ev.Type == EventPhaseResult {
			picked = &events[i]
		}
	}
	if picked == nil {
		t.Fatal("no PICK phase:result event")
	}
	if picked.Context["outfitId"] != "outfit-1" {
		t.Errorf("expected outfit-1 picked, got %v", picked.Context["outfitId"])
	}

	manifests.mu.Lock()
	defer manifests.mu.Unlock()
	if len(manifests.manifests) != 1 {
		t.Fatalf("expected one manifest, got %d", len(manifests.manifests))
	}
	if got := len(manifests.manifests[0].Candidates); got != 2 {
		t.Errorf("expected 2 manifest candidates, got %d", got)
	}
}

func TestRunTerminatesWhenEverythingFails(t *testing.T) {
	failing := catalog.SearcherFunc(func(context.Context, string, model.Category) ([]model.Product, error) {
		return nil, errors.New("backend down")
	})
	events := runPlayer(t, Config{
		Theme:     "Gala Night",
		AvatarURL: "avatar://base.png",
		LLM:       llm.NewClient(&scriptedProvider{err: errors.New("llm unavailable")}),
		Inventory: failing,
		Remote:    failing,
		Renderer: tryon.RendererFunc(func(context.Context, string, string) ([]string, error) {
			return nil, errors.New("render down")
		}),
		Semaphore: async.NewSemaphore(2),
	})

	assertGaplessSeq(t, events)
	if n := countDone(events); n != 1 {
		t.Fatalf("expected exactly one DONE system event, got %d", n)
	}
	if events[len(events)-1].Phase != PhaseDone {
		t.Errorf("last event not DONE: %+v", events[len(events)-1])
	}
}

func TestRunFallsBackOnMalformedPlan(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"here is my plan, enjoy"}}
	events := runPlayer(t, Config{
		Theme:     "Summer Rooftop Party",
		AvatarURL: "avatar://base.png",
		LLM:       llm.NewClient(provider),
		Inventory: catalog.NewInventory(inventoryProducts()),
		Remote:    remoteSearcher(nil),
		Renderer:  okRenderer(),
		Semaphore: async.NewSemaphore(2),
	})

	var sawFallback bool
	for _, ev := range events {
		if ev.Phase == PhasePlan && ev.Type == EventThought && strings.Contains(ev.Message, "minimal plan") {
			sawFallback = true
		}
	}
	if !sawFallback {
		t.Error("expected fallback-plan thought event")
	}
	if n := countDone(events); n != 1 {
		t.Errorf("expected exactly one DONE system event, got %d", n)
	}
}

func TestRemoteSearchBudgetIsHard(t *testing.T) {
	provider := &scriptedProvider{responses: []string{happyPlanJSON, `{}`}}
	var remoteCalls atomic.Int32
	events := runPlayer(t, Config{
		Theme:              "Summer Rooftop Party",
		AvatarURL:          "avatar://base.png",
		LLM:                llm.NewClient(provider),
		Inventory:          catalog.NewInventory(inventoryProducts()),
		Remote:             remoteSearcher(&remoteCalls),
		Renderer:           okRenderer(),
		Semaphore:          async.NewSemaphore(2),
		RemoteSearchBudget: 1,
	})

	if n := remoteCalls.Load(); n != 1 {
		t.Errorf("expected exactly 1 remote search with budget 1, got %d", n)
	}
	var sawSkip bool
	for _, ev := range events {
		if ev.Phase == PhaseGather && ev.Type == EventThought && strings.Contains(ev.Message, "budget") {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Error("expected a skip thought when the search budget runs out")
	}
}

func TestRemotePickBudgetIsHard(t *testing.T) {
	// Every slot asks for remote; only the pick budget may be spent on
	// remote garments, the rest fall back to inventory.
	plan := `{
		"palette": ["navy", "white"],
		"queries": [{"category": "top", "query": "tops"}, {"category": "bottom", "query": "bottoms"}],
		"outfits": [
			{"id": "outfit-1", "slots": [
				{"category": "top", "source": "remote"},
				{"category": "bottom", "source": "remote"}
			]},
			{"id": "outfit-2", "slots": [
				{"category": "top", "source": "remote"},
				{"category": "bottom", "source": "remote"}
			]}
		]
	}`
	provider := &scriptedProvider{responses: []string{plan, `{}`}}
	manifests := &manifestRecorder{}
	runPlayer(t, Config{
		Theme:            "Summer Rooftop Party",
		AvatarURL:        "avatar://base.png",
		LLM:              llm.NewClient(provider),
		Inventory:        catalog.NewInventory(inventoryProducts()),
		Remote:           remoteSearcher(nil),
		Renderer:         okRenderer(),
		Semaphore:        async.NewSemaphore(2),
		Manifests:        manifests,
		RemotePickBudget: 2,
	})

	manifests.mu.Lock()
	defer manifests.mu.Unlock()
	if len(manifests.manifests) != 1 {
		t.Fatalf("expected one manifest, got %d", len(manifests.manifests))
	}
	remotePicks := 0
	for _, c := range manifests.manifests[0].Candidates {
		for _, item := range c.Items {
			if item.Provider == model.SourceRemote {
				remotePicks++
			}
		}
	}
	if remotePicks > 2 {
		t.Errorf("remote pick budget exceeded: %d remote garments", remotePicks)
	}
}

func TestBudgetExpiryDoesNotCancelRenders(t *testing.T) {
	// The duration budget is advisory: a render already in flight when
	// the budget runs out still completes on its own timeout, it is not
	// cancelled through the run context.
	provider := &scriptedProvider{responses: []string{
		happyPlanJSON,
		`{"final_outfit_id": "outfit-1", "reason": "ok"}`,
	}}
	renderer := tryon.RendererFunc(func(ctx context.Context, _, _ string) ([]string, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return []string{"render://slow.png"}, nil
		}
	})

	events := runPlayer(t, Config{
		Theme:     "Summer Rooftop Party",
		AvatarURL: "avatar://base.png",
		Duration:  time.Millisecond,
		LLM:       llm.NewClient(provider),
		Inventory: catalog.NewInventory(inventoryProducts()),
		Remote:    remoteSearcher(nil),
		Renderer:  renderer,
		Semaphore: async.NewSemaphore(6),
	})

	var results, failures int
	for _, ev := range events {
		if ev.Phase != PhaseTryOn || ev.Tool == nil || ev.Tool.Name != "renderTryOn" {
			continue
		}
		switch ev.Type {
		case EventToolResult:
			results++
		case EventToolError:
			failures++
		}
	}
	if failures != 0 {
		t.Errorf("renders were cancelled by the expired budget: %d tool:error events", failures)
	}
	if results == 0 {
		t.Error("expected completed renders despite the expired budget")
	}
}

func TestPlanPromptCarriesRemainingTimeAndAvatar(t *testing.T) {
	provider := &scriptedProvider{responses: []string{happyPlanJSON, `{}`}}
	runPlayer(t, Config{
		Theme:     "Summer Rooftop Party",
		AvatarURL: "avatar://base.png",
		Duration:  time.Minute,
		LLM:       llm.NewClient(provider),
		Inventory: catalog.NewInventory(inventoryProducts()),
		Remote:    remoteSearcher(nil),
		Renderer:  okRenderer(),
		Semaphore: async.NewSemaphore(2),
	})

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.userPrompts) == 0 {
		t.Fatal("no prompts recorded")
	}
	planPrompt := provider.userPrompts[0]
	if !strings.Contains(planPrompt, "seconds remain") {
		t.Errorf("plan prompt missing remaining time: %q", planPrompt)
	}
	if !strings.Contains(planPrompt, "avatar://base.png") {
		t.Errorf("plan prompt missing avatar reference: %q", planPrompt)
	}
}

func TestRenderFailureKeepsCandidate(t *testing.T) {
	provider := &scriptedProvider{responses: []string{happyPlanJSON, `{}`}}
	manifests := &manifestRecorder{}
	events := runPlayer(t, Config{
		Theme:     "Summer Rooftop Party",
		AvatarURL: "avatar://base.png",
		LLM:       llm.NewClient(provider),
		Inventory: catalog.NewInventory(inventoryProducts()),
		Remote:    remoteSearcher(nil),
		Renderer: tryon.RendererFunc(func(context.Context, string, string) ([]string, error) {
			return nil, async.Permanent(errors.New("render rejected"))
		}),
		Semaphore: async.NewSemaphore(2),
		Manifests: manifests,
	})

	var sawToolError bool
	for _, ev := range events {
		if ev.Phase == PhaseTryOn && ev.Type == EventToolError {
			sawToolError = true
		}
	}
	if !sawToolError {
		t.Error("expected tool:error events for failed renders")
	}

	manifests.mu.Lock()
	defer manifests.mu.Unlock()
	if len(manifests.manifests) != 1 {
		t.Fatalf("expected one manifest, got %d", len(manifests.manifests))
	}
	for _, c := range manifests.manifests[0].Candidates {
		if len(c.Images) != 0 {
			t.Errorf("candidate %s has images despite failed renders", c.ID)
		}
	}
	if n := countDone(events); n != 1 {
		t.Errorf("expected exactly one DONE system event, got %d", n)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"longer text here", 6, "longer"},
		{"日本語のテスト", 3, "日本語"},
		{"café crème", 4, "café"},
		{"", 5, ""},
	}
	for _, tc := range cases {
		got := truncate(tc.in, tc.n)
		if got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tc.in, tc.n, got)
		}
	}
}
