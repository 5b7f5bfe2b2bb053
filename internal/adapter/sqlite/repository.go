package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"genstudio/internal/domain"
)

// Timestamps are stored as unix nanoseconds so range comparisons stay numeric.
const schema = `
CREATE TABLE IF NOT EXISTS generation_jobs (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    prompt        TEXT NOT NULL,
    platform      TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    cost          REAL NOT NULL DEFAULT 0,
    result_url    TEXT,
    error_kind    TEXT,
    error_message TEXT,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generation_jobs_status ON generation_jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_generation_jobs_dedup ON generation_jobs(user_id, platform, status, created_at);
`

const jobColumns = `id, user_id, prompt, platform, status, cost,
       COALESCE(result_url, ''), COALESCE(error_kind, ''), COALESCE(error_message, ''),
       created_at, updated_at`

// Repository implements domain.JobRepository using SQLite.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Option customizes a Repository.
type Option func(*Repository)

// WithClock overrides the clock used to stamp status transitions.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// New opens (or creates) the database at dbPath and initializes the schema.
// Use ":memory:" for a throwaway database.
func New(dbPath string, opts ...Option) (*Repository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	r := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new job.
func (r *Repository) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO generation_jobs (id, user_id, prompt, platform, status, cost, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.Prompt, job.Platform, string(job.Status), job.Cost,
		job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano(),
	)
	return err
}

// GetForUser retrieves a job owned by userID.
func (r *Repository) GetForUser(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM generation_jobs WHERE id = ? AND user_id = ?`, jobID, userID,
	)
	return scanJob(row)
}

// FindRecentCompleted returns the newest completed job matching the dedup key.
func (r *Repository) FindRecentCompleted(ctx context.Context, userID, prompt, platform string, since time.Time) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM generation_jobs
		 WHERE user_id = ? AND prompt = ? AND platform = ? AND status = 'completed' AND created_at >= ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, prompt, platform, since.UnixNano(),
	)
	return scanJob(row)
}

// ClaimPending atomically claims up to limit pending jobs, oldest first.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := r.db.QueryContext(ctx,
		`UPDATE generation_jobs SET status = 'processing', updated_at = ?
		 WHERE status = 'pending' AND id IN (
		     SELECT id FROM generation_jobs WHERE status = 'pending'
		     ORDER BY created_at ASC, id ASC LIMIT ?
		 )
		 RETURNING `+jobColumns,
		r.now().UnixNano(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// Complete records the result of a processing job.
func (r *Repository) Complete(ctx context.Context, jobID, resultURL string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE generation_jobs SET status = 'completed', result_url = ?, updated_at = ?
		 WHERE id = ? AND status = 'processing'
		 RETURNING `+jobColumns,
		resultURL, r.now().UnixNano(), jobID,
	)
	job, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, r.transitionError(ctx, jobID)
	}
	return job, err
}

// Fail records a terminal failure for a processing job.
func (r *Repository) Fail(ctx context.Context, jobID string, kind domain.ErrorKind, message string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE generation_jobs SET status = 'failed', error_kind = ?, error_message = ?, updated_at = ?
		 WHERE id = ? AND status = 'processing'
		 RETURNING `+jobColumns,
		string(kind), message, r.now().UnixNano(), jobID,
	)
	job, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, r.transitionError(ctx, jobID)
	}
	return job, err
}

// Cancel moves a pending job owned by userID to cancelled.
func (r *Repository) Cancel(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE generation_jobs SET status = 'cancelled', updated_at = ?
		 WHERE id = ? AND user_id = ? AND status = 'pending'
		 RETURNING `+jobColumns,
		r.now().UnixNano(), jobID, userID,
	)
	job, err := scanJob(row)
	if !errors.Is(err, domain.ErrNotFound) {
		return job, err
	}
	current, err := r.GetForUser(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return nil, &domain.CancelRejectedError{JobID: jobID, Status: current.Status}
}

// CountPending returns the number of jobs waiting to be claimed.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generation_jobs WHERE status = 'pending'`).Scan(&count)
	return count, err
}

// FailStale fails jobs stuck in processing since before olderThan (crash recovery).
func (r *Repository) FailStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE generation_jobs
		 SET status = 'failed', error_kind = ?, error_message = ?, updated_at = ?
		 WHERE status = 'processing' AND updated_at < ?`,
		string(domain.ErrorKindUnknown), "worker stopped while the job was processing",
		r.now().UnixNano(), olderThan.UnixNano(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *Repository) transitionError(ctx context.Context, jobID string) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM generation_jobs WHERE id = ?`, jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s", domain.ErrStaleTransition, jobID, status)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*domain.Job, error) {
	var job domain.Job
	var status, errorKind string
	var createdAt, updatedAt int64
	if err := s.Scan(
		&job.ID, &job.UserID, &job.Prompt, &job.Platform, &status, &job.Cost,
		&job.ResultURL, &errorKind, &job.ErrorMessage, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.ErrorKind = domain.ErrorKind(errorKind)
	job.CreatedAt = time.Unix(0, createdAt).UTC()
	job.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &job, nil
}

var _ domain.JobRepository = (*Repository)(nil)
