// Package queue provides the player-facing try-on job queue.
//
// Try-on requests triggered from the game UI are deduplicated by
// (base image, garment) identity, persisted as jobs, and processed by a
// background loop with bounded client-side concurrency. The loop polls
// the backlog at a fixed cadence; simplicity over latency for a
// low-volume queue.
//
// Information Hiding:
// - Backlog scheduling and in-flight accounting hidden
// - Listener fan-out hidden
package queue

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stylerush/stylerush/internal/async"
	"github.com/stylerush/stylerush/model"
	"github.com/stylerush/stylerush/tryon"
)

// JobStore is the persistence contract the queue depends on. Any store
// honoring upsert-if-absent semantics is interchangeable: in-memory
// map, embedded database, remote database.
type JobStore interface {
	// UpsertIfAbsent returns the existing job for the
	// (baseImageKey, itemID) pair, or persists and returns job if none
	// exists. It never replaces an existing job.
	UpsertIfAbsent(ctx context.Context, job model.TryOnJob) (model.TryOnJob, error)

	// UpdateStatus transitions a job and applies the patch fields
	// (images on success, error message on failure).
	UpdateStatus(ctx context.Context, jobID string, status model.JobStatus, patch JobPatch) error

	// ListByStatus returns up to limit jobs with the given status.
	ListByStatus(ctx context.Context, status model.JobStatus, limit int) ([]model.TryOnJob, error)

	// GetByPair returns the job for the identity pair, if any.
	GetByPair(ctx context.Context, baseImageKey, itemID string) (model.TryOnJob, bool, error)
}

// JobPatch carries the optional fields attached on a status transition.
type JobPatch struct {
	Images []string
	Error  string
}

// BaseImageKey computes the dedup key for a base image: the stored
// image id when one exists, else a stable hash of the URL. The hash
// must be deterministic across calls so repeated enqueues of the same
// URL collapse to one job.
func BaseImageKey(baseImageID, baseImageURL string) string {
	if baseImageID != "" {
		return baseImageID
	}
	h := fnv.New32a()
	h.Write([]byte(baseImageURL))
	return fmt.Sprintf("h%x", h.Sum32())
}

// EnqueueRequest describes a try-on the player asked for.
type EnqueueRequest struct {
	BaseImageID  string
	BaseImageURL string
	ItemID       string
	ItemImageURL string
}

// Listener receives a snapshot of a job at every status transition.
type Listener func(job model.TryOnJob)

// Config tunes the queue's processing loop.
type Config struct {
	// MaxConcurrency caps jobs processed at once on this client.
	MaxConcurrency int
	// IdleInterval is the sleep between backlog checks.
	IdleInterval time.Duration
	// RestartDelay is the pause before the loop restarts after a crash.
	RestartDelay time.Duration
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 3,
		IdleInterval:   500 * time.Millisecond,
		RestartDelay:   time.Second,
	}
}

// Queue deduplicates, persists and processes player try-on jobs.
// Renders go through the shared semaphore so the combined load of the
// queue and the AI player stays under the provider's capacity.
type Queue struct {
	store    JobStore
	renderer tryon.Renderer
	sem      *async.Semaphore
	cfg      Config
	log      *zap.Logger

	mu        sync.Mutex
	running   bool
	inFlight  map[string]bool
	listeners map[int]Listener
	nextID    int

	baseCtx context.Context
}

// New creates a queue. The semaphore must be the same instance handed
// to the AI player's try-on executor.
func New(store JobStore, renderer tryon.Renderer, sem *async.Semaphore, cfg Config, log *zap.Logger) *Queue {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultConfig().IdleInterval
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultConfig().RestartDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		store:     store,
		renderer:  renderer,
		sem:       sem,
		cfg:       cfg,
		log:       log,
		inFlight:  make(map[string]bool),
		listeners: make(map[int]Listener),
		baseCtx:   context.Background(),
	}
}

// OnChange registers a listener called with a job snapshot at every
// status transition. The returned function unsubscribes.
func (q *Queue) OnChange(listener Listener) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = listener
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.listeners, id)
	}
}

func (q *Queue) notify(job model.TryOnJob) {
	q.mu.Lock()
	listeners := make([]Listener, 0, len(q.listeners))
	for _, l := range q.listeners {
		listeners = append(listeners, l)
	}
	q.mu.Unlock()
	for _, l := range listeners {
		l(job)
	}
}

// Enqueue upserts a job for the request's identity pair and returns it.
// Idempotent: a second enqueue for the same pair returns the existing
// job unchanged, whatever its status, and triggers no second render.
// Enqueue also (re)starts the processing loop if it is not running.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (model.TryOnJob, error) {
	now := time.Now().UTC()
	job := model.TryOnJob{
		ID:           newJobID(now),
		BaseImageKey: BaseImageKey(req.BaseImageID, req.BaseImageURL),
		BaseImageURL: req.BaseImageURL,
		BaseImageID:  req.BaseImageID,
		ItemID:       req.ItemID,
		ItemImageURL: req.ItemImageURL,
		Status:       model.JobQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	stored, err := q.store.UpsertIfAbsent(ctx, job)
	if err != nil {
		return model.TryOnJob{}, fmt.Errorf("enqueue: %w", err)
	}

	q.Start()
	return stored, nil
}

// Start launches the background processing loop if it is not running.
// Safe to call repeatedly.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()
	go q.loop()
}

// Stop halts the processing loop after the current iteration. Jobs
// already in flight run to completion.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
}

func (q *Queue) stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.running
}

// loop polls the backlog: each iteration fills remaining capacity with
// queued jobs and dispatches them. A crash of the loop itself (a bug,
// not a job failure) logs, marks the queue stopped and schedules a
// restart rather than leaving the queue permanently stalled.
func (q *Queue) loop() {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("queue loop crashed, restarting", zap.Any("panic", r))
			q.Stop()
			time.AfterFunc(q.cfg.RestartDelay, q.Start)
		}
	}()

	for {
		if q.stopped() {
			return
		}

		capacity := q.capacity()
		if capacity > 0 {
			jobs, err := q.store.ListByStatus(q.baseCtx, model.JobQueued, capacity)
			if err != nil {
				q.log.Warn("listing queued jobs failed", zap.Error(err))
			}
			for _, job := range jobs {
				if !q.claim(job.ID) {
					continue
				}
				go q.process(job)
			}
		}

		time.Sleep(q.cfg.IdleInterval)
	}
}

func (q *Queue) capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cfg.MaxConcurrency - len(q.inFlight)
}

func (q *Queue) claim(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight[jobID] {
		return false
	}
	q.inFlight[jobID] = true
	return true
}

func (q *Queue) release(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, jobID)
}

// process runs one job to a terminal status. Failures transition the
// job to failed with a captured message; they never escape the loop.
func (q *Queue) process(job model.TryOnJob) {
	defer q.release(job.ID)

	if err := q.store.UpdateStatus(q.baseCtx, job.ID, model.JobRunning, JobPatch{}); err != nil {
		q.log.Warn("marking job running failed", zap.String("job", job.ID), zap.Error(err))
		return
	}
	job.Status = model.JobRunning
	q.notify(job)

	var images []string
	err := q.sem.Run(q.baseCtx, func(ctx context.Context) error {
		var renderErr error
		images, renderErr = q.renderer.Render(ctx, job.BaseImageURL, job.ItemImageURL)
		return renderErr
	})

	if err != nil {
		if uerr := q.store.UpdateStatus(q.baseCtx, job.ID, model.JobFailed, JobPatch{Error: err.Error()}); uerr != nil {
			q.log.Warn("marking job failed failed", zap.String("job", job.ID), zap.Error(uerr))
		}
		job.Status = model.JobFailed
		job.Error = err.Error()
		q.notify(job)
		return
	}

	if uerr := q.store.UpdateStatus(q.baseCtx, job.ID, model.JobSucceeded, JobPatch{Images: images}); uerr != nil {
		q.log.Warn("marking job succeeded failed", zap.String("job", job.ID), zap.Error(uerr))
	}
	job.Status = model.JobSucceeded
	job.Images = images
	q.notify(job)
}

func newJobID(now time.Time) string {
	return fmt.Sprintf("job_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}
