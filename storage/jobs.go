// Package storage provides SQLite persistence for try-on jobs and run
// manifests.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stylerush/stylerush/model"
	"github.com/stylerush/stylerush/queue"
)

// SqliteStore implements queue.JobStore and manifest persistence using
// SQLite. The UNIQUE constraint on (base_image_key, item_id) is the
// source of truth for job deduplication: concurrent upserts for the
// same pair race at the database, and exactly one row survives.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tryon_jobs (
			id TEXT PRIMARY KEY,
			base_image_key TEXT NOT NULL,
			base_image_url TEXT NOT NULL,
			base_image_id TEXT NOT NULL DEFAULT '',
			item_id TEXT NOT NULL,
			item_image_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			images TEXT NOT NULL DEFAULT '[]',
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(base_image_key, item_id)
		);

		CREATE INDEX IF NOT EXISTS idx_tryon_jobs_status
		ON tryon_jobs(status, created_at);

		CREATE TABLE IF NOT EXISTS run_manifests (
			run_id TEXT PRIMARY KEY,
			theme TEXT NOT NULL,
			candidates TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertIfAbsent inserts the job unless a row for its
// (base_image_key, item_id) pair already exists, then returns whichever
// row won. ON CONFLICT DO NOTHING plus a re-select keeps the operation
// race-free without an explicit transaction.
func (s *SqliteStore) UpsertIfAbsent(ctx context.Context, job model.TryOnJob) (model.TryOnJob, error) {
	images, err := json.Marshal(imagesOrEmpty(job.Images))
	if err != nil {
		return model.TryOnJob{}, fmt.Errorf("failed to marshal images: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tryon_jobs
			(id, base_image_key, base_image_url, base_image_id,
			 item_id, item_image_url, status, images, error,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(base_image_key, item_id) DO NOTHING
	`, job.ID, job.BaseImageKey, job.BaseImageURL, job.BaseImageID,
		job.ItemID, job.ItemImageURL, string(job.Status), string(images),
		job.Error, job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return model.TryOnJob{}, fmt.Errorf("failed to upsert job: %w", err)
	}

	stored, ok, err := s.GetByPair(ctx, job.BaseImageKey, job.ItemID)
	if err != nil {
		return model.TryOnJob{}, err
	}
	if !ok {
		return model.TryOnJob{}, fmt.Errorf("job vanished after upsert: %s/%s", job.BaseImageKey, job.ItemID)
	}
	return stored, nil
}

// UpdateStatus transitions a job and applies patch fields. Succeeded
// jobs get their images, failed jobs their error message.
func (s *SqliteStore) UpdateStatus(ctx context.Context, jobID string, status model.JobStatus, patch queue.JobPatch) error {
	images, err := json.Marshal(imagesOrEmpty(patch.Images))
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tryon_jobs
		SET status = ?,
		    images = CASE WHEN ? != '[]' THEN ? ELSE images END,
		    error = CASE WHEN ? != '' THEN ? ELSE error END,
		    updated_at = ?
		WHERE id = ?
	`, string(status), string(images), string(images),
		patch.Error, patch.Error,
		time.Now().UTC().Format(time.RFC3339Nano), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}
	return nil
}

// ListByStatus returns up to limit jobs with the given status, oldest
// first.
func (s *SqliteStore) ListByStatus(ctx context.Context, status model.JobStatus, limit int) ([]model.TryOnJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, base_image_key, base_image_url, base_image_id,
		       item_id, item_image_url, status, images, error,
		       created_at, updated_at
		FROM tryon_jobs
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.TryOnJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetByPair returns the job for the identity pair, if any.
func (s *SqliteStore) GetByPair(ctx context.Context, baseImageKey, itemID string) (model.TryOnJob, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, base_image_key, base_image_url, base_image_id,
		       item_id, item_image_url, status, images, error,
		       created_at, updated_at
		FROM tryon_jobs
		WHERE base_image_key = ? AND item_id = ?
	`, baseImageKey, itemID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return model.TryOnJob{}, false, nil
	}
	if err != nil {
		return model.TryOnJob{}, false, err
	}
	return job, true, nil
}

// SaveManifest persists a run manifest, replacing any earlier write for
// the same run.
func (s *SqliteStore) SaveManifest(ctx context.Context, manifest model.RunManifest) error {
	candidates, err := json.Marshal(manifest.Candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal candidates: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_manifests (run_id, theme, candidates, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			theme = excluded.theme,
			candidates = excluded.candidates
	`, manifest.RunID, manifest.Theme, string(candidates),
		manifest.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// GetManifest returns the manifest for a run, if any.
func (s *SqliteStore) GetManifest(ctx context.Context, runID string) (model.RunManifest, bool, error) {
	var m model.RunManifest
	var candidates, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, theme, candidates, created_at
		FROM run_manifests
		WHERE run_id = ?
	`, runID).Scan(&m.RunID, &m.Theme, &candidates, &createdAt)
	if err == sql.ErrNoRows {
		return model.RunManifest{}, false, nil
	}
	if err != nil {
		return model.RunManifest{}, false, fmt.Errorf("failed to get manifest: %w", err)
	}
	if err := json.Unmarshal([]byte(candidates), &m.Candidates); err != nil {
		return model.RunManifest{}, false, fmt.Errorf("failed to unmarshal candidates: %w", err)
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return m, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (model.TryOnJob, error) {
	var job model.TryOnJob
	var status, images, createdAt, updatedAt string
	err := row.Scan(&job.ID, &job.BaseImageKey, &job.BaseImageURL,
		&job.BaseImageID, &job.ItemID, &job.ItemImageURL, &status,
		&images, &job.Error, &createdAt, &updatedAt)
	if err != nil {
		return model.TryOnJob{}, err
	}
	job.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(images), &job.Images); err != nil {
		return model.TryOnJob{}, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return job, nil
}

func imagesOrEmpty(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

var _ queue.JobStore = (*SqliteStore)(nil)
