// ABOUTME: Config loading tests: defaults, YAML file underlay, environment
// ABOUTME: variable overlay, and validation of required values.

package server

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearSpyglassEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SPYGLASS_CONFIG", "SPYGLASS_BIND", "SPYGLASS_SQLITE_PATH",
		"SPYGLASS_POSTGRES_DSN", "SPYGLASS_API_KEY", "SPYGLASS_BASE_URL",
		"SPYGLASS_MODEL", "SPYGLASS_MAX_RETRIES", "SPYGLASS_LIST_LIMIT",
	} {
		t.Setenv(key, "")
	}
}

func TestConfigDefaults(t *testing.T) {
	clearSpyglassEnv(t)
	t.Setenv("SPYGLASS_API_KEY", "sk-test")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Bind != "127.0.0.1:8390" {
		t.Errorf("Bind = %q", cfg.Bind)
	}
	if cfg.Model != "deepseek-chat" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.BaseURL != "https://api.deepseek.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.ListLimit != 50 {
		t.Errorf("ListLimit = %d", cfg.ListLimit)
	}
}

func TestConfigMissingAPIKey(t *testing.T) {
	clearSpyglassEnv(t)

	_, err := ConfigFromEnv()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestConfigEnvOverridesFile(t *testing.T) {
	clearSpyglassEnv(t)

	path := filepath.Join(t.TempDir(), "spyglass.yaml")
	yaml := "bind: 0.0.0.0:9000\napi_key: from-file\nmodel: file-model\nmax_retries: 5\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPYGLASS_CONFIG", path)
	t.Setenv("SPYGLASS_MODEL", "env-model")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Bind != "0.0.0.0:9000" {
		t.Errorf("Bind = %q, want value from file", cfg.Bind)
	}
	if cfg.APIKey != "from-file" {
		t.Errorf("APIKey = %q, want value from file", cfg.APIKey)
	}
	if cfg.Model != "env-model" {
		t.Errorf("Model = %q, want env to win over file", cfg.Model)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5 from file", cfg.MaxRetries)
	}
}

func TestConfigBadValues(t *testing.T) {
	t.Run("non-integer retries", func(t *testing.T) {
		clearSpyglassEnv(t)
		t.Setenv("SPYGLASS_API_KEY", "sk-test")
		t.Setenv("SPYGLASS_MAX_RETRIES", "two")
		if _, err := ConfigFromEnv(); err == nil {
			t.Fatal("expected error for non-integer SPYGLASS_MAX_RETRIES")
		}
	})

	t.Run("negative retries", func(t *testing.T) {
		clearSpyglassEnv(t)
		t.Setenv("SPYGLASS_API_KEY", "sk-test")
		t.Setenv("SPYGLASS_MAX_RETRIES", "-1")
		if _, err := ConfigFromEnv(); err == nil {
			t.Fatal("expected error for negative SPYGLASS_MAX_RETRIES")
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		clearSpyglassEnv(t)
		t.Setenv("SPYGLASS_API_KEY", "sk-test")
		t.Setenv("SPYGLASS_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		if _, err := ConfigFromEnv(); err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}
