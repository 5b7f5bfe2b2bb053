package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

func localConfig(t *testing.T) *infra.Config {
	t.Helper()
	dir := t.TempDir()
	return &infra.Config{
		AppEnv:              "test",
		JobStore:            infra.JobStoreSQLite,
		SQLitePath:          ":memory:",
		EventBus:            infra.EventBusMemory,
		StorageDriver:       infra.StorageDriverFilesystem,
		StoragePath:         dir,
		StorageBaseURL:      "http://localhost:8080/static",
		WorkerPollInterval:  time.Second,
		WorkerBatchSize:     2,
		WorkerJobTimeout:    time.Minute,
		RetryMaxAttempts:    1,
		RetryBaseDelay:      time.Millisecond,
		ModerationBlocklist: []string{"grumpkin"},
	}
}

func TestBuildRunsJobEndToEnd(t *testing.T) {
	cfg := localConfig(t)
	c, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.GenAI.Synthetic())
	assert.Equal(t, cfg.StoragePath, c.StaticDir)

	ctx := context.Background()
	events, unsubscribe, err := c.Bus.Subscribe(ctx, domain.EventCompleted)
	require.NoError(t, err)
	defer unsubscribe()

	res, err := c.Service.Submit(ctx, "alice", "Write a tweet about coffee", "twitter")
	require.NoError(t, err)

	assert.Equal(t, 1, c.NewWorker().Tick(ctx))

	select {
	case ev := <-events:
		assert.Equal(t, res.JobID, ev.Job.ID)
		assert.True(t, strings.HasPrefix(ev.Job.ResultURL, "http://localhost:8080/static/alice/"))
	case <-time.After(2 * time.Second):
		t.Fatal("no completion event")
	}

	data, err := os.ReadFile(filepath.Join(cfg.StoragePath, "alice", res.JobID))
	require.NoError(t, err)
	assert.Contains(t, string(data), "synthetic")
}

func TestBuildAppliesModerationBlocklist(t *testing.T) {
	c, err := Build(context.Background(), localConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Service.Submit(context.Background(), "alice", "a grumpkin poem", "twitter")
	assert.ErrorIs(t, err, domain.ErrProfanityDetected)
}

func TestBuildFailsOnMissingCatalog(t *testing.T) {
	cfg := localConfig(t)
	cfg.PlatformCatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Build(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := Build(context.Background(), localConfig(t), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
