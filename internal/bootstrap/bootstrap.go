// Package bootstrap assembles the job pipeline from configuration so the API
// and worker binaries wire the same components the same way.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/adapter/sqlite"
	"genstudio/internal/domain"
	"genstudio/internal/events"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/moderation"
	"genstudio/internal/platform"
	"genstudio/internal/providers/genai"
	"genstudio/internal/retry"
	"genstudio/internal/storage"
	"genstudio/internal/worker"
)

// Components holds everything a process needs. Close releases them in
// reverse order of construction.
type Components struct {
	Config  *infra.Config
	Logger  infra.Logger
	Repo    domain.JobRepository
	Bus     events.Bus
	Store   storage.ObjectStore
	Catalog *platform.Catalog
	Filter  *moderation.Filter
	Service *domain.JobService
	GenAI   *genai.Client
	// StaticDir is the directory served under /static when results are
	// stored on the local filesystem.
	StaticDir string

	closers []func() error
}

// Build connects every backend selected by cfg.
func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger) (_ *Components, err error) {
	c := &Components{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	creds, err := c.buildRepo(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.buildBus(ctx); err != nil {
		return nil, err
	}
	if err := c.buildStore(ctx); err != nil {
		return nil, err
	}

	c.Catalog = platform.Default()
	if cfg.PlatformCatalogPath != "" {
		if c.Catalog, err = platform.Load(cfg.PlatformCatalogPath); err != nil {
			return nil, err
		}
	}
	c.Filter = moderation.NewFilter(cfg.ModerationBlocklist...)
	c.Service = domain.NewJobService(c.Repo, c.Filter, c.Catalog)

	apiKey, err := creds.ResolveGeminiAPIKey(ctx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap: failed to load gemini api key from store")
	}
	c.GenAI, err = genai.NewClient(genai.Options{
		APIKey:     apiKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		ImageModel: cfg.GeminiImageModel,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Logger:     &logger,
		ImageStore: c.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("configure gemini client: %w", err)
	}
	if c.GenAI.Synthetic() {
		logger.Warn().Str("model", c.GenAI.Model()).Msg("bootstrap: gemini api key missing, using synthetic generation")
	} else {
		logger.Info().Str("model", c.GenAI.Model()).Str("key_fingerprint", credentials.Fingerprint(apiKey)).Msg("bootstrap: gemini enabled")
	}
	return c, nil
}

// buildRepo opens the job store. The credential store is only available on
// Postgres and is nil otherwise.
func (c *Components) buildRepo(ctx context.Context) (*credentials.Store, error) {
	cfg := c.Config
	switch cfg.JobStore {
	case infra.JobStoreSQLite:
		r, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.Repo = r
		c.closers = append(c.closers, r.Close)
		c.Logger.Info().Str("path", cfg.SQLitePath).Msg("bootstrap: using sqlite job store")
		return nil, nil
	default:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		runner := infra.NewSQLRunner(pool, c.Logger)
		r := repo.NewJobRepository(runner)
		if err := r.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		c.Repo = r
		return credentials.NewStore(runner), nil
	}
}

func (c *Components) buildBus(ctx context.Context) error {
	if c.Config.EventBus != infra.EventBusRedis {
		c.Bus = events.NewMemoryBus()
		c.closers = append(c.closers, c.Bus.Close)
		return nil
	}
	client, err := infra.NewRedisClient(ctx, c.Config)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, client.Close)
	c.Bus = events.NewRedisBus(client, c.Logger)
	c.closers = append(c.closers, c.Bus.Close)
	c.Logger.Info().Str("addr", c.Config.RedisAddr).Msg("bootstrap: using redis event bus")
	return nil
}

func (c *Components) buildStore(ctx context.Context) error {
	cfg := c.Config
	if cfg.StorageDriver == infra.StorageDriverS3 {
		store, err := storage.NewMinioStore(storage.MinioOptions{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		c.Store = store
		return nil
	}

	path := cfg.StoragePath
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	store, err := storage.NewFileStore(path, cfg.StorageBaseURL)
	if err != nil {
		return fmt.Errorf("configure storage: %w", err)
	}
	c.Store = store
	c.StaticDir = store.BasePath()
	return nil
}

// NewWorker builds a worker over the shared components.
func (c *Components) NewWorker() *worker.Worker {
	cfg := c.Config
	return worker.New(worker.Deps{
		Repo:    c.Repo,
		Bus:     c.Bus,
		Text:    c.GenAI,
		Image:   c.GenAI,
		Store:   c.Store,
		Catalog: c.Catalog,
		Logger:  c.Logger,
	}, worker.Config{
		PollInterval: cfg.WorkerPollInterval,
		BatchSize:    cfg.WorkerBatchSize,
		JobTimeout:   cfg.WorkerJobTimeout,
		StaleAfter:   cfg.WorkerStaleAfter,
		Retry: retry.Policy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
		},
	})
}

// Close releases every component, newest first.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
