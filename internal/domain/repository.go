package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job entities. Every status mutation
// is a conditional update guarded by the expected prior status.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetForUser(ctx context.Context, userID, jobID string) (*Job, error)
	FindRecentCompleted(ctx context.Context, userID, prompt, platform string, since time.Time) (*Job, error)
	// ClaimPending atomically moves up to limit of the oldest pending jobs to
	// processing and returns them.
	ClaimPending(ctx context.Context, limit int) ([]Job, error)
	Complete(ctx context.Context, jobID, resultURL string) (*Job, error)
	Fail(ctx context.Context, jobID string, kind ErrorKind, message string) (*Job, error)
	Cancel(ctx context.Context, userID, jobID string) (*Job, error)
	CountPending(ctx context.Context) (int, error)
	// FailStale fails jobs left in processing since before olderThan.
	FailStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// ContentFilter sanitizes prompts and checks them for inappropriate language.
type ContentFilter interface {
	Sanitize(text string) string
	IsClean(text string) bool
}

// PlatformCatalog knows how each target platform is priced, routed and prompted.
type PlatformCatalog interface {
	// Normalize returns the canonical tag for platform.
	Normalize(platform string) string
	Kind(platform string) PlatformKind
	EstimateCost(platform string) float64
	AdaptPrompt(platform, prompt string) string
}
