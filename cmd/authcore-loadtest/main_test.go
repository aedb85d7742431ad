package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Lockout.MaxFailedAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Lockout.Duration)
	assert.Equal(t, uint32(8192), cfg.Argon2.Memory)
	assert.Equal(t, 64, cfg.Load.Storm)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTHCORE_LOADTEST_LOCKOUT_DURATION", "5m")
	t.Setenv("AUTHCORE_LOADTEST_LOAD_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Lockout.Duration)
	assert.Equal(t, 4, cfg.Load.Concurrency)
}

func TestLoadRejectsStormBelowThreshold(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTHCORE_LOADTEST_LOAD_STORM", "3")

	_, err := Load()
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(1), percentile(samples, 0))
	assert.Equal(t, time.Duration(5), percentile(samples, 50))
	assert.Equal(t, time.Duration(10), percentile(samples, 100))
	assert.Zero(t, percentile(nil, 50))
}

func TestRunAgainstMiniredis(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTHCORE_LOADTEST_LOAD_ACCOUNTS", "3")
	t.Setenv("AUTHCORE_LOADTEST_LOAD_LOGINS", "20")
	t.Setenv("AUTHCORE_LOADTEST_LOAD_CONCURRENCY", "4")
	t.Setenv("AUTHCORE_LOADTEST_LOAD_STORM", "12")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), cfg, zerolog.Nop()))
}
