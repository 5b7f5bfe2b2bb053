package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxPromptLength bounds the sanitized prompt stored on a job, in characters.
const MaxPromptLength = 4000

// JobService implements the submission and control operations. It only
// touches the repository; providers are never called from here.
type JobService struct {
	repo    JobRepository
	filter  ContentFilter
	catalog PlatformCatalog
	now     func() time.Time
	newID   func() string
}

// ServiceOption customizes a JobService.
type ServiceOption func(*JobService)

// WithClock overrides the clock used for timestamps and the dedup window.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *JobService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *JobService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewJobService creates a new JobService.
func NewJobService(repo JobRepository, filter ContentFilter, catalog PlatformCatalog, opts ...ServiceOption) *JobService {
	s := &JobService{
		repo:    repo,
		filter:  filter,
		catalog: catalog,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the prompt, short-circuits on a recent identical completed
// job and otherwise records a new pending job.
func (s *JobService) Submit(ctx context.Context, userID, rawPrompt, platform string) (SubmitResult, error) {
	if strings.TrimSpace(userID) == "" {
		return SubmitResult{}, ErrUnauthorized
	}
	platform = s.catalog.Normalize(platform)
	if platform == "" {
		return SubmitResult{}, ErrInvalidPlatform
	}
	prompt := strings.TrimSpace(s.filter.Sanitize(rawPrompt))
	if prompt == "" {
		return SubmitResult{}, ErrInvalidPrompt
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return SubmitResult{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidPrompt, MaxPromptLength)
	}
	if !s.filter.IsClean(prompt) {
		return SubmitResult{}, ErrProfanityDetected
	}

	dup, err := s.FindDuplicate(ctx, userID, prompt, platform)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("dedup lookup: %w", err)
	}
	if dup != nil {
		return SubmitResult{JobID: dup.ID, ResultURL: dup.ResultURL, Duplicate: true}, nil
	}

	now := s.now().UTC()
	job := &Job{
		ID:        s.newID(),
		UserID:    userID,
		Prompt:    prompt,
		Platform:  platform,
		Status:    JobStatusPending,
		Cost:      s.catalog.EstimateCost(platform),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return SubmitResult{}, fmt.Errorf("create job: %w", err)
	}
	return SubmitResult{JobID: job.ID}, nil
}

// FindDuplicate returns the most recent completed job with the same owner,
// prompt and platform created inside DedupWindow, or nil.
func (s *JobService) FindDuplicate(ctx context.Context, userID, prompt, platform string) (*Job, error) {
	since := s.now().UTC().Add(-DedupWindow)
	job, err := s.repo.FindRecentCompleted(ctx, userID, prompt, platform, since)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// GetStatus returns the caller's own job.
func (s *JobService) GetStatus(ctx context.Context, userID, jobID string) (*Job, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(jobID) == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetForUser(ctx, userID, jobID)
}

// Cancel moves a pending job to cancelled. Any other status is rejected with
// a *CancelRejectedError describing it.
func (s *JobService) Cancel(ctx context.Context, userID, jobID string) (*Job, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(jobID) == "" {
		return nil, ErrNotFound
	}
	return s.repo.Cancel(ctx, userID, jobID)
}

// QueueDepth reports how many jobs are waiting to be claimed.
func (s *JobService) QueueDepth(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx)
}
