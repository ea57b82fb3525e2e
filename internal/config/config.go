// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for all databases (always absolute)
	LogLevel       string
	Port           int
	DevMode        bool
	DiscountFactor float64 // Annual discount applied to monetary cost terms
	Horizon        int     // Episode length in years
	SyntheticSeed  int64   // Seed for synthetic table generation when no tables.db exists
	SweepEnabled   bool    // Enable the scheduled Monte Carlo sweep
	SweepSchedule  string  // Cron expression for the sweep job
	SweepEpisodes  int     // Episodes per scheduled sweep
	SweepWorkers   int     // Parallel rollouts per sweep
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. BREAKWATER_DATA_DIR environment variable
	// 2. ./data relative to the working directory
	// Always resolved to an absolute path, created if missing.
	dataDir := getEnv("BREAKWATER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory to absolute path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	discount, err := getEnvFloat("BREAKWATER_DISCOUNT_FACTOR", 0.97)
	if err != nil {
		return nil, err
	}
	if discount <= 0 || discount > 1 {
		return nil, fmt.Errorf("invalid discount factor %.4f: must be in (0, 1]", discount)
	}

	horizon, err := getEnvInt("BREAKWATER_HORIZON", 40)
	if err != nil {
		return nil, err
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("invalid horizon %d: must be positive", horizon)
	}

	port, err := getEnvInt("BREAKWATER_PORT", 8090)
	if err != nil {
		return nil, err
	}

	seed, err := getEnvInt("BREAKWATER_SYNTHETIC_SEED", 1)
	if err != nil {
		return nil, err
	}

	sweepEpisodes, err := getEnvInt("BREAKWATER_SWEEP_EPISODES", 200)
	if err != nil {
		return nil, err
	}
	sweepWorkers, err := getEnvInt("BREAKWATER_SWEEP_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	return &Config{
		DataDir:        absDataDir,
		LogLevel:       getEnv("BREAKWATER_LOG_LEVEL", "info"),
		Port:           port,
		DevMode:        getEnv("BREAKWATER_DEV_MODE", "false") == "true",
		DiscountFactor: discount,
		Horizon:        horizon,
		SyntheticSeed:  int64(seed),
		SweepEnabled:   getEnv("BREAKWATER_SWEEP_ENABLED", "false") == "true",
		SweepSchedule:  getEnv("BREAKWATER_SWEEP_SCHEDULE", "0 0 3 * * *"),
		SweepEpisodes:  sweepEpisodes,
		SweepWorkers:   sweepWorkers,
	}, nil
}

// DatabasePath returns the absolute path for a named database file inside DataDir.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}
