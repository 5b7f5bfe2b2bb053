package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	for _, key := range []string{
		"PORT", "STORAGE_BASE_URL", "JOB_STORE", "EVENT_BUS", "STORAGE_DRIVER",
		"S3_ENDPOINT", "WORKER_POLL_INTERVAL", "WORKER_ENABLED", "RETRY_BASE_DELAY",
		"MODERATION_BLOCKLIST", "CORS_ALLOWED_ORIGINS", "WORKER_BATCH_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080/static", cfg.StorageBaseURL)
	assert.Equal(t, JobStorePostgres, cfg.JobStore)
	assert.Equal(t, EventBusMemory, cfg.EventBus)
	assert.Equal(t, StorageDriverFilesystem, cfg.StorageDriver)
	assert.True(t, cfg.WorkerEnabled)
	assert.Equal(t, 10*time.Second, cfg.WorkerPollInterval)
	assert.Equal(t, 1, cfg.WorkerBatchSize)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 25*time.Second, cfg.StreamHeartbeat)
	assert.Zero(t, cfg.HTTPWriteTimeout)
	assert.Empty(t, cfg.ModerationBlocklist)
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "1919")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1919/static", cfg.StorageBaseURL)
}

func TestLoadConfigHonorsExplicitStorageBaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/static", cfg.StorageBaseURL)
}

func TestLoadConfigParsesDurationsAndLists(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WORKER_POLL_INTERVAL", "1500ms")
	t.Setenv("RETRY_BASE_DELAY", "2")
	t.Setenv("WORKER_ENABLED", "false")
	t.Setenv("MODERATION_BLOCKLIST", " spam, , scam ")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.WorkerPollInterval)
	assert.Equal(t, 2*time.Second, cfg.RetryBaseDelay)
	assert.False(t, cfg.WorkerEnabled)
	assert.Equal(t, []string{"spam", "scam"}, cfg.ModerationBlocklist)
}

func TestLoadConfigSQLiteDoesNotNeedDatabaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JOB_STORE", "sqlite")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, JobStoreSQLite, cfg.JobStore)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "postgres without url", env: map[string]string{"DATABASE_URL": ""}},
		{name: "unknown store", env: map[string]string{"JOB_STORE": "mongo"}},
		{name: "unknown bus", env: map[string]string{"EVENT_BUS": "kafka"}},
		{name: "s3 without endpoint", env: map[string]string{"STORAGE_DRIVER": "s3"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
