package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
	"genstudio/internal/sqlinline"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubExecutor struct {
	rows  map[string]stubRow
	execs map[string]pgconn.CommandTag
	calls []string
	args  map[string][]any
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{
		rows:  map[string]stubRow{},
		execs: map[string]pgconn.CommandTag{},
		args:  map[string][]any{},
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, query)
	s.args[query] = args
	tag, ok := s.execs[query]
	if !ok {
		return pgconn.CommandTag{}, errors.New("unexpected exec")
	}
	return tag, nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, query)
	s.args[query] = args
	return s.rows[query]
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func jobRow(job domain.Job) stubRow {
	return stubRow{scan: func(dest ...any) error {
		*dest[0].(*string) = job.ID
		*dest[1].(*string) = job.UserID
		*dest[2].(*string) = job.Prompt
		*dest[3].(*string) = job.Platform
		*dest[4].(*string) = string(job.Status)
		*dest[5].(*float64) = job.Cost
		*dest[6].(*string) = job.ResultURL
		*dest[7].(*string) = string(job.ErrorKind)
		*dest[8].(*string) = job.ErrorMessage
		*dest[9].(*time.Time) = job.CreatedAt
		*dest[10].(*time.Time) = job.UpdatedAt
		return nil
	}}
}

const testJobID = "6f1b7c7e-3d0a-4b55-9a52-0d2f3c1e9b10"

func TestGetForUserMapsColumns(t *testing.T) {
	exec := newStubExecutor()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	exec.rows[sqlinline.QSelectJobForUser] = jobRow(domain.Job{
		ID: testJobID, UserID: "alice", Prompt: "hi", Platform: "twitter",
		Status: domain.JobStatusFailed, Cost: 0.02, ErrorKind: domain.ErrorKindAIService,
		ErrorMessage: "boom", CreatedAt: created, UpdatedAt: created.Add(time.Minute),
	})
	repo := NewJobRepository(exec)

	job, err := repo.GetForUser(context.Background(), "alice", testJobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, domain.ErrorKindAIService, job.ErrorKind)
	assert.Equal(t, created.Add(time.Minute), job.UpdatedAt)
	assert.Equal(t, []any{testJobID, "alice"}, exec.args[sqlinline.QSelectJobForUser])
}

func TestGetForUserRejectsMalformedIDWithoutQuerying(t *testing.T) {
	exec := newStubExecutor()
	repo := NewJobRepository(exec)

	_, err := repo.GetForUser(context.Background(), "alice", "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, exec.calls)
}

func TestCancelReportsCurrentStatusWhenNotPending(t *testing.T) {
	exec := newStubExecutor()
	exec.rows[sqlinline.QCancelJob] = stubRow{}
	exec.rows[sqlinline.QSelectJobForUser] = jobRow(domain.Job{
		ID: testJobID, UserID: "alice", Status: domain.JobStatusProcessing,
	})
	repo := NewJobRepository(exec)

	_, err := repo.Cancel(context.Background(), "alice", testJobID)
	var rejected *domain.CancelRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, domain.JobStatusProcessing, rejected.Status)
}

func TestCancelNotFound(t *testing.T) {
	exec := newStubExecutor()
	exec.rows[sqlinline.QCancelJob] = stubRow{}
	exec.rows[sqlinline.QSelectJobForUser] = stubRow{}
	repo := NewJobRepository(exec)

	_, err := repo.Cancel(context.Background(), "alice", testJobID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompleteOnTerminalJobIsStaleTransition(t *testing.T) {
	exec := newStubExecutor()
	exec.rows[sqlinline.QCompleteJob] = stubRow{}
	exec.rows[sqlinline.QSelectJobStatusByID] = stubRow{scan: func(dest ...any) error {
		*dest[0].(*string) = "cancelled"
		return nil
	}}
	repo := NewJobRepository(exec)

	_, err := repo.Complete(context.Background(), testJobID, "https://cdn.example.com/x")
	assert.ErrorIs(t, err, domain.ErrStaleTransition)
}

func TestFailStaleReturnsAffectedRows(t *testing.T) {
	exec := newStubExecutor()
	exec.execs[sqlinline.QFailStaleJobs] = pgconn.NewCommandTag("UPDATE 3")
	repo := NewJobRepository(exec)

	n, err := repo.FailStale(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
