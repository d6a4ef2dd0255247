// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// Remote query service settings, used only by the relay.
	GenieAPIURL   string
	GenieAPIToken string
	GenieSpaceID  string

	// RelayURL is what the orchestrator's client calls. Defaults to the
	// in-process relay endpoint.
	RelayURL string

	HistoryLimit    int
	PollMaxAttempts int
	SubmitBudget    time.Duration
	SessionTTL      time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")

	cfg := &Config{
		Port:            port,
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/sessions.db"),
		GenieAPIURL:     getEnv("GENIE_API_URL", ""),
		GenieAPIToken:   getEnv("GENIE_API_TOKEN", ""),
		GenieSpaceID:    getEnv("GENIE_SPACE_ID", "default"),
		RelayURL:        getEnv("RELAY_URL", "http://127.0.0.1:"+port+"/relay"),
		HistoryLimit:    getEnvInt("HISTORY_LIMIT", 20),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 30),
		SubmitBudget:    getEnvDuration("SUBMIT_BUDGET", 60*time.Second),
		SessionTTL:      getEnvDuration("SESSION_TTL", 30*24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.GenieAPIURL == "" {
		return fmt.Errorf("GENIE_API_URL cannot be empty")
	}
	if c.GenieAPIToken == "" {
		return fmt.Errorf("GENIE_API_TOKEN cannot be empty")
	}
	if c.RelayURL == "" {
		return fmt.Errorf("RELAY_URL cannot be empty")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be > 0")
	}
	if c.SubmitBudget <= 0 {
		return fmt.Errorf("SUBMIT_BUDGET must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
