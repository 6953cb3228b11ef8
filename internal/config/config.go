// Package config holds the environment-based configuration for labsync.
// Everything that identifies the remote site and the account lives here;
// per-labyrinth data lives in the content tree.
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for labsync.
type Config struct {
	// Base URL of the labyrinth site, e.g. https://labyrinth.example.org.
	BaseURL string `env:"LABSYNC_BASE_URL"`

	// Site account credentials.
	Username string `env:"LABSYNC_USERNAME"`
	Password string `env:"LABSYNC_PASSWORD"`

	// Headless controls whether the driven browser shows a window.
	Headless bool `env:"LABSYNC_HEADLESS" envDefault:"true"`

	// Retry policy for transient remote failures.
	RetryAttempts int           `env:"LABSYNC_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `env:"LABSYNC_RETRY_DELAY" envDefault:"2s"`

	// SettleDelay is the pause between consecutive destructive remote
	// operations.
	SettleDelay time.Duration `env:"LABSYNC_SETTLE_DELAY" envDefault:"500ms"`

	// NavTimeout bounds each page navigation and element wait.
	NavTimeout time.Duration `env:"LABSYNC_NAV_TIMEOUT" envDefault:"30s"`

	// StateDB is the path of the local session database. Empty means
	// ~/.labsync/state.db.
	StateDB string `env:"LABSYNC_STATE_DB"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("LABSYNC_BASE_URL is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("LABSYNC_BASE_URL %q is not an absolute URL", c.BaseURL)
	}

	if c.Username == "" {
		return fmt.Errorf("LABSYNC_USERNAME is required")
	}

	if c.Password == "" {
		return fmt.Errorf("LABSYNC_PASSWORD is required")
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("LABSYNC_RETRY_ATTEMPTS must be at least 1")
	}

	return nil
}

// StateDBPath returns the configured session database path, defaulting
// to ~/.labsync/state.db.
func (c *Config) StateDBPath() (string, error) {
	if c.StateDB != "" {
		return filepath.Abs(c.StateDB)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".labsync", "state.db"), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
