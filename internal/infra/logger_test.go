package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("", true))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("", false))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" WARN ", true))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("chatty", false))
}

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "")
	logger.Debug().Msg("hidden")
	logger.Info().Str("job_id", "job-1").Msg("worker: picked job")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "job-1", line["job_id"])
	assert.Contains(t, line, "time")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewLoggerCLIIsPlainConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "cli", "")
	logger.Debug().Msg("stored key")
	assert.Contains(t, buf.String(), "stored key")
	assert.NotContains(t, buf.String(), "\x1b[")
}
