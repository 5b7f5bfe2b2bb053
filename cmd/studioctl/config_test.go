package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("STUDIOCTL_SERVER", "")
	t.Setenv("STUDIOCTL_TOKEN", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server = "https://studio.example.com"
token = "file-token"
platform = "linkedin"
reconnect_attempts = 3
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://studio.example.com", cfg.Server)
	assert.Equal(t, "file-token", cfg.Token)
	assert.Equal(t, "linkedin", cfg.Platform)
	assert.Equal(t, 3, cfg.ReconnectAttempts)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("STUDIOCTL_SERVER", "")
	t.Setenv("STUDIOCTL_TOKEN", "env-token")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultServer, cfg.Server)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "twitter", cfg.Platform)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("server = "), 0o600))

	_, err := loadConfig(path)
	assert.Error(t, err)
}
