package repo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// EnsureSchema creates the job tables when they do not exist yet.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QCreateSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.UserID,
		job.Prompt,
		job.Platform,
		string(job.Status),
		job.Cost,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetForUser fetches a job owned by userID.
func (r *JobRepositoryPG) GetForUser(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	if !isUUID(jobID) {
		return nil, domain.ErrNotFound
	}
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobForUser, jobID, userID))
}

// FindRecentCompleted returns the newest completed job matching the dedup key.
func (r *JobRepositoryPG) FindRecentCompleted(ctx context.Context, userID, prompt, platform string, since time.Time) (*domain.Job, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectRecentCompletedJob, userID, prompt, platform, since))
}

// ClaimPending atomically claims up to limit pending jobs, oldest first.
func (r *JobRepositoryPG) ClaimPending(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := r.sql.Query(ctx, sqlinline.QClaimPendingJobs, limit)
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
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID, resultURL string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QCompleteJob, jobID, resultURL))
	if err == domain.ErrNotFound {
		return nil, r.transitionError(ctx, jobID)
	}
	return job, err
}

// Fail records a terminal failure for a processing job.
func (r *JobRepositoryPG) Fail(ctx context.Context, jobID string, kind domain.ErrorKind, message string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QFailJob, jobID, string(kind), message))
	if err == domain.ErrNotFound {
		return nil, r.transitionError(ctx, jobID)
	}
	return job, err
}

// Cancel moves a pending job owned by userID to cancelled.
func (r *JobRepositoryPG) Cancel(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	if !isUUID(jobID) {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QCancelJob, jobID, userID))
	if err != domain.ErrNotFound {
		return job, err
	}
	current, err := r.GetForUser(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return nil, &domain.CancelRejectedError{JobID: jobID, Status: current.Status}
}

// CountPending returns the number of jobs waiting to be claimed.
func (r *JobRepositoryPG) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountPendingJobs).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// FailStale fails jobs stuck in processing since before olderThan.
func (r *JobRepositoryPG) FailStale(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailStaleJobs, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *JobRepositoryPG) transitionError(ctx context.Context, jobID string) error {
	var status string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectJobStatusByID, jobID).Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: job %s is %s", domain.ErrStaleTransition, jobID, status)
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var status, errorKind string
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Prompt,
		&job.Platform,
		&status,
		&job.Cost,
		&job.ResultURL,
		&errorKind,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.ErrorKind = domain.ErrorKind(errorKind)
	return &job, nil
}

// isUUID guards uuid-typed parameters so malformed ids read as missing jobs
// instead of database errors.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
