// ABOUTME: Server configuration loaded from SPYGLASS_* environment variables,
// ABOUTME: with an optional YAML config file supplying defaults underneath.

package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when no model API key is configured.
var ErrMissingAPIKey = errors.New(
	"SPYGLASS_API_KEY is not set; the workflows cannot call the model without it")

// Config holds server configuration. Environment variables win over the YAML
// file; the file supplies defaults for anything unset.
type Config struct {
	Bind        string `yaml:"bind"`         // listen address (SPYGLASS_BIND, default 127.0.0.1:8390)
	SQLitePath  string `yaml:"sqlite_path"`  // SQLite database path (SPYGLASS_SQLITE_PATH)
	PostgresDSN string `yaml:"postgres_dsn"` // Postgres DSN, takes precedence over SQLite (SPYGLASS_POSTGRES_DSN)
	APIKey      string `yaml:"api_key"`      // model API key (SPYGLASS_API_KEY)
	BaseURL     string `yaml:"base_url"`     // model endpoint base URL (SPYGLASS_BASE_URL)
	Model       string `yaml:"model"`        // model name (SPYGLASS_MODEL, default deepseek-chat)
	MaxRetries  int    `yaml:"max_retries"`  // per-step retry attempts (SPYGLASS_MAX_RETRIES, default 2)
	ListLimit   int    `yaml:"list_limit"`   // default page size for task listings (SPYGLASS_LIST_LIMIT, default 50)
}

// ConfigFromEnv loads configuration. When SPYGLASS_CONFIG names a YAML file,
// it is read first; SPYGLASS_* environment variables override its values.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Bind:       "127.0.0.1:8390",
		Model:      "deepseek-chat",
		BaseURL:    "https://api.deepseek.com",
		MaxRetries: 2,
		ListLimit:  50,
	}

	if path := os.Getenv("SPYGLASS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	overlayString(&cfg.Bind, "SPYGLASS_BIND")
	overlayString(&cfg.SQLitePath, "SPYGLASS_SQLITE_PATH")
	overlayString(&cfg.PostgresDSN, "SPYGLASS_POSTGRES_DSN")
	overlayString(&cfg.APIKey, "SPYGLASS_API_KEY")
	overlayString(&cfg.BaseURL, "SPYGLASS_BASE_URL")
	overlayString(&cfg.Model, "SPYGLASS_MODEL")
	if err := overlayInt(&cfg.MaxRetries, "SPYGLASS_MAX_RETRIES"); err != nil {
		return nil, err
	}
	if err := overlayInt(&cfg.ListLimit, "SPYGLASS_LIST_LIMIT"); err != nil {
		return nil, err
	}

	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("SPYGLASS_MAX_RETRIES must be >= 0, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}

func overlayString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overlayInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	*dst = n
	return nil
}
