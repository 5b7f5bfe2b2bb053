// Package worker drains the pending job queue: it claims jobs, calls the
// generation provider, stores the result and broadcasts every transition.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"genstudio/internal/domain"
	"genstudio/internal/events"
	"genstudio/internal/infra"
	"genstudio/internal/retry"
	"genstudio/internal/storage"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultBatchSize    = 1
	DefaultJobTimeout   = 5 * time.Minute
	DefaultStaleAfter   = 15 * time.Minute

	// persistTimeout bounds recording a job's outcome once generation has
	// finished or run out of time.
	persistTimeout = 10 * time.Second
)

// TextGenerator produces text for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator produces an image for a prompt and returns its URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Deps are the collaborators a Worker drives.
type Deps struct {
	Repo    domain.JobRepository
	Bus     events.Bus
	Text    TextGenerator
	Image   ImageGenerator
	Store   storage.ObjectStore
	Catalog domain.PlatformCatalog
	Logger  infra.Logger
}

// Config tunes polling and failure handling.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// JobTimeout bounds a single job, including retries.
	JobTimeout time.Duration
	// StaleAfter is how long a job may sit in processing before Run fails
	// it on startup. Zero disables the recovery pass.
	StaleAfter time.Duration
	Retry      retry.Policy
	Now        func() time.Time
}

// Worker processes pending jobs on a fixed interval.
type Worker struct {
	Deps
	cfg Config
}

// New builds a Worker, filling zero Config fields with defaults.
func New(deps Deps, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = retry.DefaultMaxAttempts
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = retry.DefaultBaseDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Worker{Deps: deps, cfg: cfg}
}

// Run processes jobs until ctx is cancelled. A tick that is already running
// when ctx is cancelled finishes its claimed jobs before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("worker: started")

	w.recoverStale(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info().Msg("worker: stopped")
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick claims up to BatchSize pending jobs and processes them. It returns
// the number of jobs claimed.
func (w *Worker) Tick(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	jobs, err := w.Repo.ClaimPending(ctx, w.cfg.BatchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.Logger.Error().Err(err).Msg("worker: claim pending jobs failed")
		}
		return 0
	}
	if len(jobs) == 0 {
		return 0
	}

	// Claimed jobs are finished even when ctx is cancelled mid-tick.
	jobCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			w.processJob(jobCtx, job)
			return nil
		})
	}
	_ = g.Wait()

	if depth, err := w.Repo.CountPending(jobCtx); err == nil {
		w.Logger.Debug().Int("processed", len(jobs)).Int("pending_jobs", depth).Msg("worker: tick finished")
	}
	return len(jobs)
}

func (w *Worker) recoverStale(ctx context.Context) {
	if w.cfg.StaleAfter <= 0 {
		return
	}
	n, err := w.Repo.FailStale(ctx, w.cfg.Now().UTC().Add(-w.cfg.StaleAfter))
	if err != nil {
		w.Logger.Error().Err(err).Msg("worker: stale job recovery failed")
		return
	}
	if n > 0 {
		w.Logger.Warn().Int64("jobs", n).Dur("stale_after", w.cfg.StaleAfter).Msg("worker: failed stale processing jobs")
	}
}

func (w *Worker) processJob(ctx context.Context, job domain.Job) {
	logger := w.Logger.With().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("platform", job.Platform).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("worker: job panicked")
			w.fail(ctx, logger, job, &domain.JobError{
				Kind: domain.ErrorKindUnknown,
				Err:  fmt.Errorf("panic: %v", r),
			})
		}
	}()

	logger.Info().Msg("worker: picked job")
	w.publish(ctx, logger, domain.EventProcessing, job)

	genCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	resultURL, err := w.generate(genCtx, logger, job)
	cancel()
	if err != nil {
		w.fail(ctx, logger, job, err)
		return
	}

	storeCtx, cancelStore := persistContext(ctx)
	defer cancelStore()
	done, err := w.Repo.Complete(storeCtx, job.ID, resultURL)
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			logger.Warn().Err(err).Msg("worker: job left processing before completion")
			return
		}
		logger.Error().Err(err).Msg("worker: persist completion failed")
		return
	}
	logger.Info().Str("result_url", done.ResultURL).Msg("worker: job completed")
	w.publish(storeCtx, logger, domain.EventCompleted, *done)
}

// persistContext outlives both the job timeout and shutdown so an outcome
// that was reached is always recorded.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

// generate dispatches on the platform kind. Image URLs are used as is while
// text is uploaded under {userID}/{jobID}.
func (w *Worker) generate(ctx context.Context, logger infra.Logger, job domain.Job) (string, error) {
	prompt := w.Catalog.AdaptPrompt(job.Platform, job.Prompt)

	if w.Catalog.Kind(job.Platform) == domain.PlatformKindImage {
		return retry.Do(ctx, w.policy(logger, "generate_image"), domain.ErrorKindAIService,
			func(ctx context.Context) (string, error) {
				return w.Image.GenerateImage(ctx, prompt)
			})
	}

	text, err := retry.Do(ctx, w.policy(logger, "generate_text"), domain.ErrorKindAIService,
		func(ctx context.Context) (string, error) {
			return w.Text.GenerateText(ctx, prompt)
		})
	if err != nil {
		return "", err
	}
	return retry.Do(ctx, w.policy(logger, "upload"), domain.ErrorKindStorage,
		func(ctx context.Context) (string, error) {
			return w.Store.Upload(ctx, UploadKey(job), []byte(text), "text/plain; charset=utf-8")
		})
}

// UploadKey is the object key text results are stored under.
func UploadKey(job domain.Job) string {
	return job.UserID + "/" + job.ID
}

func (w *Worker) policy(logger infra.Logger, op string) retry.Policy {
	p := w.cfg.Retry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("worker: retrying")
	}
	return p
}

// fail records cause on the job. Only the kind and its coarse message are
// persisted; the cause itself goes to the log.
func (w *Worker) fail(ctx context.Context, logger infra.Logger, job domain.Job, cause error) {
	kind := domain.KindOf(cause)
	logger.Error().Err(cause).Str("error_kind", string(kind)).Msg("worker: job failed")

	ctx, cancel := persistContext(ctx)
	defer cancel()
	failed, err := w.Repo.Fail(ctx, job.ID, kind, kind.Message())
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			logger.Warn().Err(err).Msg("worker: job left processing before failure")
			return
		}
		logger.Error().Err(err).Msg("worker: persist failure failed")
		return
	}
	w.publish(ctx, logger, domain.EventFailed, *failed)
}

func (w *Worker) publish(ctx context.Context, logger infra.Logger, t domain.EventType, job domain.Job) {
	if w.Bus == nil {
		return
	}
	if err := w.Bus.Publish(ctx, domain.Event{Type: t, Job: job}); err != nil {
		logger.Warn().Err(err).Str("event", string(t)).Msg("worker: publish event failed")
	}
}
