package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil server", func(c *Config) { c.Server = nil }},
		{"empty URL", func(c *Config) { c.Server.URL = "" }},
		{"zero HTTP timeout", func(c *Config) { c.Server.HTTPTimeout = 0 }},
		{"zero dial timeout", func(c *Config) { c.Server.DialTimeout = 0 }},
		{"nil cache", func(c *Config) { c.Cache = nil }},
		{"empty cache path", func(c *Config) { c.Cache.Path = "" }},
		{"nil chat", func(c *Config) { c.Chat = nil }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLASSPOLL_SERVER_URL", "http://polls.example:9000")
	t.Setenv("CLASSPOLL_HTTP_TIMEOUT", "3s")
	t.Setenv("CLASSPOLL_CACHE_PATH", "/tmp/test.db")
	t.Setenv("CLASSPOLL_CHAT_ENABLED", "false")

	cfg := LoadFromEnv()
	if cfg.Server.URL != "http://polls.example:9000" {
		t.Errorf("server URL = %q", cfg.Server.URL)
	}
	if cfg.Server.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTP timeout = %v", cfg.Server.HTTPTimeout)
	}
	if cfg.Cache.Path != "/tmp/test.db" {
		t.Errorf("cache path = %q", cfg.Cache.Path)
	}
	if cfg.Chat.Enabled {
		t.Error("chat gate not overridden")
	}
}

func TestLoadFromEnv_IgnoresBadValues(t *testing.T) {
	t.Setenv("CLASSPOLL_HTTP_TIMEOUT", "not-a-duration")
	t.Setenv("CLASSPOLL_CHAT_ENABLED", "not-a-bool")

	cfg := LoadFromEnv()
	defaults := DefaultConfig()
	if cfg.Server.HTTPTimeout != defaults.Server.HTTPTimeout {
		t.Errorf("bad duration overrode the default: %v", cfg.Server.HTTPTimeout)
	}
	if cfg.Chat.Enabled != defaults.Chat.Enabled {
		t.Error("bad bool overrode the default")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"url": "http://file.example", "http_timeout": "7s"},
		"cache": {"path": "./file.db"},
		"chat": {"enabled": false}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.URL != "http://file.example" {
		t.Errorf("server URL = %q", cfg.Server.URL)
	}
	if cfg.Server.HTTPTimeout != 7*time.Second {
		t.Errorf("HTTP timeout = %v", cfg.Server.HTTPTimeout)
	}
	if cfg.Chat.Enabled {
		t.Error("chat gate not loaded")
	}
	// Unspecified fields keep the defaults.
	if cfg.Server.DialTimeout != DefaultConfig().Server.DialTimeout {
		t.Errorf("dial timeout = %v", cfg.Server.DialTimeout)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("CLASSPOLL_SERVER_URL", "http://env.example")

	// No file: environment wins over defaults.
	cfg := LoadConfigWithPrecedence("")
	if cfg.Server.URL != "http://env.example" {
		t.Errorf("env not applied: %q", cfg.Server.URL)
	}

	// File wins over environment.
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"url": "http://file.example"}}`), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	cfg = LoadConfigWithPrecedence(path)
	if cfg.Server.URL != "http://file.example" {
		t.Errorf("file not applied: %q", cfg.Server.URL)
	}

	// A broken file falls back silently.
	cfg = LoadConfigWithPrecedence(filepath.Join(t.TempDir(), "absent.json"))
	if cfg.Server.URL != "http://env.example" {
		t.Errorf("fallback not applied: %q", cfg.Server.URL)
	}
}
