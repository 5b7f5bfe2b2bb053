package domain_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/adapter/sqlite"
	"genstudio/internal/domain"
	"genstudio/internal/moderation"
	"genstudio/internal/platform"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T) (*domain.JobService, *sqlite.Repository, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	repo, err := sqlite.New(":memory:", sqlite.WithClock(c.Now))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	var seq int
	svc := domain.NewJobService(repo, moderation.NewFilter(), platform.Default(),
		domain.WithClock(c.Now),
		domain.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("job-%d", seq)
		}),
	)
	return svc, repo, c
}

func complete(t *testing.T, repo *sqlite.Repository, jobID, url string) {
	t.Helper()
	claimed, err := repo.ClaimPending(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, jobID, claimed[0].ID)
	_, err = repo.Complete(context.Background(), jobID, url)
	require.NoError(t, err)
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	svc, _, c := newService(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, "alice", "  <b>Write</b> about   coffee ", "twitter")
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.JobID)
	assert.False(t, res.Duplicate)
	assert.Empty(t, res.ResultURL)

	job, err := svc.GetStatus(ctx, "alice", res.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, "Write about coffee", job.Prompt)
	assert.Equal(t, "twitter", job.Platform)
	assert.Equal(t, platform.Default().EstimateCost("twitter"), job.Cost)
	assert.True(t, job.CreatedAt.Equal(c.Now()))

	depth, err := svc.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestSubmitRejectsProfanityWithoutCreatingJob(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "alice", "idiot you suck", "twitter")
	require.ErrorIs(t, err, domain.ErrProfanityDetected)
	assert.Equal(t, domain.ErrorKindProfanity, domain.KindOf(err))

	depth, err := svc.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestSubmitValidatesInput(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "", "coffee", "twitter")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Submit(ctx, "alice", "coffee", " ")
	assert.ErrorIs(t, err, domain.ErrInvalidPlatform)

	_, err = svc.Submit(ctx, "alice", "<p>  </p>", "twitter")
	assert.ErrorIs(t, err, domain.ErrInvalidPrompt)

	_, err = svc.Submit(ctx, "alice", strings.Repeat("a", domain.MaxPromptLength+1), "twitter")
	assert.ErrorIs(t, err, domain.ErrInvalidPrompt)
}

func TestSubmitReturnsRecentCompletedDuplicate(t *testing.T) {
	svc, repo, c := newService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, "alice", "coffee", "twitter")
	require.NoError(t, err)
	complete(t, repo, first.JobID, "https://files.test/alice/job-1")

	c.Advance(30 * time.Minute)
	dup, err := svc.Submit(ctx, "alice", "coffee", "twitter")
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, first.JobID, dup.JobID)
	assert.Equal(t, "https://files.test/alice/job-1", dup.ResultURL)

	depth, err := svc.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth, "duplicates create no job")
}

func TestSubmitDedupIsScoped(t *testing.T) {
	svc, repo, c := newService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, "alice", "coffee", "twitter")
	require.NoError(t, err)
	complete(t, repo, first.JobID, "https://files.test/alice/job-1")

	other, err := svc.Submit(ctx, "bob", "coffee", "twitter")
	require.NoError(t, err)
	assert.False(t, other.Duplicate, "other users never share results")

	samePromptOtherPlatform, err := svc.Submit(ctx, "alice", "coffee", "instagram")
	require.NoError(t, err)
	assert.False(t, samePromptOtherPlatform.Duplicate)

	c.Advance(time.Hour + time.Second)
	expired, err := svc.Submit(ctx, "alice", "coffee", "twitter")
	require.NoError(t, err)
	assert.False(t, expired.Duplicate, "completed jobs older than an hour are ignored")
}

func TestSubmitDedupIgnoresPlatformCase(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, "alice", "coffee", "Twitter")
	require.NoError(t, err)
	complete(t, repo, first.JobID, "https://files.test/alice/job-1")

	job, err := svc.GetStatus(ctx, "alice", first.JobID)
	require.NoError(t, err)
	assert.Equal(t, "twitter", job.Platform)

	dup, err := svc.Submit(ctx, "alice", "coffee", " twitter ")
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, first.JobID, dup.JobID)
}

func TestSubmitMeasuresPromptInCharacters(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "alice", strings.Repeat("é", domain.MaxPromptLength), "twitter")
	require.NoError(t, err, "multi-byte characters count once")

	_, err = svc.Submit(ctx, "alice", strings.Repeat("é", domain.MaxPromptLength+1), "twitter")
	assert.ErrorIs(t, err, domain.ErrInvalidPrompt)
}

func TestSubmitDoesNotDedupAgainstUnfinishedJobs(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, "alice", "coffee", "twitter")
	require.NoError(t, err)
	second, err := svc.Submit(ctx, "alice", "coffee", "twitter")
	require.NoError(t, err)
	assert.False(t, second.Duplicate)
	assert.NotEqual(t, first.JobID, second.JobID)
}

func TestGetStatusIsOwnerScoped(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, "alice", "coffee", "twitter")
	require.NoError(t, err)

	_, err = svc.GetStatus(ctx, "bob", res.JobID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.GetStatus(ctx, "alice", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelOnlyPendingJobs(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, "alice", "coffee", "twitter")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "bob", res.JobID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cancelled, err := svc.Cancel(ctx, "alice", res.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, "alice", res.JobID)
	var rejected *domain.CancelRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, domain.JobStatusCancelled, rejected.Status)

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "cancelled jobs are never claimed")
}

func TestCancelRejectsProcessingJob(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, "alice", "coffee", "twitter")
	require.NoError(t, err)
	_, err = repo.ClaimPending(ctx, 1)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "alice", res.JobID)
	var rejected *domain.CancelRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, domain.JobStatusProcessing, rejected.Status)
}

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, domain.JobStatusPending.CanTransition(domain.JobStatusProcessing))
	assert.True(t, domain.JobStatusPending.CanTransition(domain.JobStatusCancelled))
	assert.True(t, domain.JobStatusProcessing.CanTransition(domain.JobStatusCompleted))
	assert.True(t, domain.JobStatusProcessing.CanTransition(domain.JobStatusFailed))
	assert.False(t, domain.JobStatusProcessing.CanTransition(domain.JobStatusCancelled))
	for _, terminal := range []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled} {
		assert.True(t, terminal.IsTerminal())
		assert.False(t, terminal.CanTransition(domain.JobStatusPending))
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("worker: %w", &domain.JobError{Kind: domain.ErrorKindStorage, Message: "disk full"})
	assert.Equal(t, domain.ErrorKindStorage, domain.KindOf(wrapped))
	assert.Equal(t, domain.ErrorKindUnknown, domain.KindOf(errors.New("plain")))
	assert.True(t, errors.Is(wrapped, &domain.JobError{Kind: domain.ErrorKindStorage}))
}
