package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"DB_DSN": "postgres://localhost/tutor"}))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 30*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 50, cfg.OutboxBatch)
	assert.Equal(t, 5, cfg.OutboxMaxAttempts)
	assert.Equal(t, "https://meet.jit.si", cfg.MeetingBaseURL)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvMemoryNeedsNoDSN(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"STORAGE_DRIVER":  "memory",
		"TIMEZONE":        "Europe/Moscow",
		"OUTBOX_INTERVAL": "5s",
		"ENV":             "production",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", cfg.Location.String())
	assert.Equal(t, 5*time.Second, cfg.OutboxInterval)
	assert.True(t, cfg.IsProduction())
}

func TestFromEnvReportsAllProblems(t *testing.T) {
	_, err := FromEnv(env(map[string]string{
		"TIMEZONE":     "Mars/Olympus",
		"OUTBOX_BATCH": "-1",
	}))
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 3)
	assert.ErrorContains(t, err, "DB_DSN is required")
	assert.ErrorContains(t, err, "TIMEZONE")
	assert.ErrorContains(t, err, "OUTBOX_BATCH")
}
