// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (token store, channel manager) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/taibuivan/leadcrm/internal/platform/constants"
)

// # Token Backends

// Supported values for [Config.TokenBackend].
const (
	TokenBackendFile   = "file"
	TokenBackendRedis  = "redis"
	TokenBackendMemory = "memory"
)

// # Client Configuration Schema

// Config holds all runtime configuration for the CRM client core.
type Config struct {

	// External endpoints. Both fall back to the local development backend.
	APIURL      string `env:"API_URL"      envDefault:"http://localhost:5000/api"`
	RealtimeURL string `env:"REALTIME_URL" envDefault:"ws://localhost:5000/realtime"`

	// Debug enables debug-level structured logging.
	Debug bool `env:"DEBUG" envDefault:"false"`

	// Profile separates the persisted tokens of several operators on one machine.
	Profile string `env:"PROFILE" envDefault:"default"`

	// Token persistence
	TokenBackend string `env:"TOKEN_BACKEND" envDefault:"file"`
	TokenFile    string `env:"TOKEN_FILE"`
	RedisURL     string `env:"REDIS_URL"`

	// Timeouts
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT"    envDefault:"15s"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"20s"`

	// Realtime reconnection policy
	Reconnect            bool          `env:"RECONNECT"              envDefault:"true"`
	ReconnectAttempts    int           `env:"RECONNECT_ATTEMPTS"     envDefault:"5"`
	ReconnectDelay       time.Duration `env:"RECONNECT_DELAY"        envDefault:"1s"`
	ReconnectDelayMax    time.Duration `env:"RECONNECT_DELAY_MAX"    envDefault:"5s"`
	ReconnectMultiplier  float64       `env:"RECONNECT_MULTIPLIER"   envDefault:"2"`
	DashboardRefreshRate time.Duration `env:"DASHBOARD_REFRESH"      envDefault:"30s"`
}

// # Configuration Loading

// EnvPrefix namespaces every variable read by [Load].
const EnvPrefix = "LEADCRM_"

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Map LEADCRM_* variables onto the struct fields.
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects combinations the environment tags cannot express.
func (c *Config) validate() error {
	switch c.TokenBackend {
	case TokenBackendFile, TokenBackendMemory:
	case TokenBackendRedis:
		if c.RedisURL == "" {
			return errors.New("config: LEADCRM_REDIS_URL is required when LEADCRM_TOKEN_BACKEND=redis")
		}
	default:
		return fmt.Errorf("config: unknown token backend %q", c.TokenBackend)
	}

	if c.ReconnectAttempts < 0 {
		return errors.New("config: LEADCRM_RECONNECT_ATTEMPTS must not be negative")
	}
	if c.ReconnectDelay <= 0 || c.ReconnectDelayMax < c.ReconnectDelay {
		return errors.New("config: reconnect delays must be positive and max must not be below the base delay")
	}
	if c.ReconnectMultiplier < 1 {
		return errors.New("config: LEADCRM_RECONNECT_MULTIPLIER must be at least 1")
	}
	return nil
}

// TokenPath returns the token file location, defaulting to the user config dir.
func (c *Config) TokenPath() (string, error) {
	if c.TokenFile != "" {
		return c.TokenFile, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(dir, constants.AppName, c.Profile, constants.TokenFileName), nil
}

// # Development Backend Configuration Schema

// MockAPIConfig holds the configuration of the development backend in cmd/mockapi.
type MockAPIConfig struct {
	ServerPort  string `env:"SERVER_PORT" envDefault:"5000"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG"       envDefault:"false"`

	// JWTSecret signs HS256 tokens handed to the client.
	JWTSecret string        `env:"JWT_SECRET" envDefault:"leadcrm-dev-secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL"  envDefault:"12h"`

	// DatabaseURL switches the lead repository from memory to PostgreSQL.
	DatabaseURL string `env:"DATABASE_URL"`

	// StatsInterval is how often the realtime hub pushes dashboard stats unprompted (0 disables).
	StatsInterval time.Duration `env:"STATS_INTERVAL" envDefault:"0s"`

	// SeedDemo fills an empty lead store with sample referrals at startup.
	SeedDemo bool `env:"SEED_DEMO" envDefault:"true"`
}

// LoadMockAPI parses MOCKAPI_* environment variables into a [MockAPIConfig].
func LoadMockAPI() (*MockAPIConfig, error) {
	cfg := &MockAPIConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "MOCKAPI_"}); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports whether the backend runs in development mode.
func (c *MockAPIConfig) IsDevelopment() bool {
	return c.Environment == "development"
}
