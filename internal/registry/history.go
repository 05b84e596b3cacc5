package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"slidecast/internal/services"
)

// History persists terminal jobs to sqlite so completed and failed work
// survives restarts. Active jobs live only in the Registry.
type History struct {
	db   *sql.DB
	path string
}

const historySchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    source_filename TEXT NOT NULL,
    display_title TEXT NOT NULL,
    status TEXT NOT NULL,
    page_count INTEGER NOT NULL DEFAULT 0,
    pages_json TEXT NOT NULL DEFAULT '[]',
    error_kind TEXT NOT NULL DEFAULT '',
    error_detail TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    completed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_completed_at ON jobs(completed_at);
`

// OpenHistory opens or creates the history database at path.
func OpenHistory(path string) (*History, error) {
	if path == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &History{db: db, path: path}, nil
}

func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Record upserts a terminal job. Non-terminal jobs are rejected.
func (h *History) Record(ctx context.Context, job *Job) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("job %s is not terminal (%s)", job.ID, job.Status)
	}

	pagesJSON, err := json.Marshal(job.Pages)
	if err != nil {
		return fmt.Errorf("encode pages for job %s: %w", job.ID, err)
	}
	completedAt := job.UpdatedAt
	if job.CompletedAt != nil {
		completedAt = *job.CompletedAt
	}

	_, err = h.db.ExecContext(ctx, `
        INSERT INTO jobs (id, source_filename, display_title, status, page_count, pages_json, error_kind, error_detail, created_at, completed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            page_count = excluded.page_count,
            pages_json = excluded.pages_json,
            error_kind = excluded.error_kind,
            error_detail = excluded.error_detail,
            completed_at = excluded.completed_at`,
		job.ID,
		job.SourceFilename,
		job.DisplayTitle,
		string(job.Status),
		job.PageCount,
		string(pagesJSON),
		job.ErrorKind,
		job.ErrorDetail,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		completedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns a single recorded job or services.ErrNotFound.
func (h *History) Get(ctx context.Context, id string) (*Job, error) {
	row := h.db.QueryRowContext(ctx, `
        SELECT id, source_filename, display_title, status, page_count, pages_json, error_kind, error_detail, created_at, completed_at
        FROM jobs WHERE id = ?`, id)
	job, err := scanHistoryJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}
	return job, err
}

// List returns up to limit recorded jobs, most recently completed first.
// A non-positive limit returns everything.
func (h *History) List(ctx context.Context, limit int) ([]*Job, error) {
	query := `
        SELECT id, source_filename, display_title, status, page_count, pages_json, error_kind, error_detail, created_at, completed_at
        FROM jobs ORDER BY completed_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanHistoryJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a recorded job.
func (h *History) Delete(ctx context.Context, id string) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history job %s: %w", id, err)
	}
	return nil
}

// Prune removes records whose completion is older than cutoff and returns
// the IDs removed so the caller can clean artifacts on disk.
func (h *History) Prune(ctx context.Context, cutoff time.Time) ([]string, error) {
	boundary := cutoff.UTC().Format(time.RFC3339Nano)

	rows, err := h.db.QueryContext(ctx, `SELECT id FROM jobs WHERE completed_at < ?`, boundary)
	if err != nil {
		return nil, fmt.Errorf("select expired history jobs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := h.db.ExecContext(ctx, `DELETE FROM jobs WHERE completed_at < ?`, boundary); err != nil {
		return nil, fmt.Errorf("prune history jobs: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistoryJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		status      string
		pagesJSON   string
		createdAt   string
		completedAt string
	)
	err := row.Scan(
		&job.ID,
		&job.SourceFilename,
		&job.DisplayTitle,
		&status,
		&job.PageCount,
		&pagesJSON,
		&job.ErrorKind,
		&job.ErrorDetail,
		&createdAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = Status(status)
	if err := json.Unmarshal([]byte(pagesJSON), &job.Pages); err != nil {
		return nil, fmt.Errorf("decode pages for job %s: %w", job.ID, err)
	}
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for job %s: %w", job.ID, err)
	}
	completed, err := time.Parse(time.RFC3339Nano, completedAt)
	if err != nil {
		return nil, fmt.Errorf("parse completed_at for job %s: %w", job.ID, err)
	}
	job.CompletedAt = &completed
	job.UpdatedAt = completed
	job.ProgressPercent = 100
	if job.Status == StatusFailed {
		job.ProgressPercent = 0
		job.ProgressMessage = job.ErrorDetail
	}
	return &job, nil
}
