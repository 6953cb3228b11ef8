package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv unsets all config env vars so tests start clean.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"LABSYNC_BASE_URL",
		"LABSYNC_USERNAME",
		"LABSYNC_PASSWORD",
		"LABSYNC_HEADLESS",
		"LABSYNC_RETRY_ATTEMPTS",
		"LABSYNC_RETRY_DELAY",
		"LABSYNC_SETTLE_DELAY",
		"LABSYNC_NAV_TIMEOUT",
		"LABSYNC_STATE_DB",
		"ENVIRONMENT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// setRequiredEnv sets the minimum env vars for a valid config.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LABSYNC_BASE_URL", "https://labyrinth.example.org")
	t.Setenv("LABSYNC_USERNAME", "author")
	t.Setenv("LABSYNC_PASSWORD", "secret123")
}

func TestLoad_Minimal(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://labyrinth.example.org", cfg.BaseURL)
	assert.Equal(t, "author", cfg.Username)
	assert.Equal(t, "secret123", cfg.Password)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 30*time.Second, cfg.NavTimeout)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoad_MissingBaseURL(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	os.Unsetenv("LABSYNC_BASE_URL")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LABSYNC_BASE_URL")
}

func TestLoad_RelativeBaseURL(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	t.Setenv("LABSYNC_BASE_URL", "labyrinth.example.org/path")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absolute URL")
}

func TestLoad_MissingUsername(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	os.Unsetenv("LABSYNC_USERNAME")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LABSYNC_USERNAME")
}

func TestLoad_MissingPassword(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	os.Unsetenv("LABSYNC_PASSWORD")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LABSYNC_PASSWORD")
}

func TestLoad_RetryAttemptsBelowOne(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	t.Setenv("LABSYNC_RETRY_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LABSYNC_RETRY_ATTEMPTS")
}

func TestLoad_Overrides(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	t.Setenv("LABSYNC_HEADLESS", "false")
	t.Setenv("LABSYNC_RETRY_ATTEMPTS", "5")
	t.Setenv("LABSYNC_RETRY_DELAY", "1s")
	t.Setenv("LABSYNC_SETTLE_DELAY", "0")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, time.Duration(0), cfg.SettleDelay)
	assert.True(t, cfg.IsProduction())
}

func TestStateDBPath_Explicit(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	dir := t.TempDir()
	t.Setenv("LABSYNC_STATE_DB", filepath.Join(dir, "state.db"))

	cfg, err := Load()
	require.NoError(t, err)

	path, err := cfg.StateDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "state.db"), path)
}

func TestStateDBPath_Default(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	path, err := cfg.StateDBPath()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".labsync", "state.db"), path)
}
