package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the client's runtime settings.
type Config struct {
	Server *ServerConfig `json:"server"`
	Cache  *CacheConfig  `json:"cache"`
	Chat   *ChatConfig   `json:"chat"`
}

// ServerConfig points at the backend: one base URL serves both the REST
// boundary and the /ws event channel endpoint.
type ServerConfig struct {
	URL         string        `json:"url"`
	HTTPTimeout time.Duration `json:"http_timeout"`
	DialTimeout time.Duration `json:"dial_timeout"`
}

// CacheConfig locates the persisted local cache.
type CacheConfig struct {
	Path string `json:"path"`
}

// ChatConfig gates the messaging channel. Read once at startup; the flag
// is not expected to toggle mid-session.
type ChatConfig struct {
	Enabled bool `json:"enabled"`
}

// DefaultConfig returns settings for a locally running backend.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			URL:         "http://localhost:8080",
			HTTPTimeout: 10 * time.Second,
			DialTimeout: 10 * time.Second,
		},
		Cache: &CacheConfig{
			Path: "./classpoll.db",
		},
		Chat: &ChatConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration before component initialization.
func (c *Config) Validate() error {
	if c.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if c.Server.URL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	if c.Server.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive")
	}
	if c.Server.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive")
	}
	if c.Cache == nil {
		return fmt.Errorf("cache configuration is required")
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("cache path cannot be empty")
	}
	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	return nil
}

// LoadFromEnv returns the defaults overridden by CLASSPOLL_* environment
// variables.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if url := os.Getenv("CLASSPOLL_SERVER_URL"); url != "" {
		config.Server.URL = url
	}
	if timeout := os.Getenv("CLASSPOLL_HTTP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.HTTPTimeout = d
		}
	}
	if timeout := os.Getenv("CLASSPOLL_DIAL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.DialTimeout = d
		}
	}
	if path := os.Getenv("CLASSPOLL_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	}
	if chat := os.Getenv("CLASSPOLL_CHAT_ENABLED"); chat != "" {
		if enabled, err := strconv.ParseBool(chat); err == nil {
			config.Chat.Enabled = enabled
		}
	}

	return config
}

// configFile mirrors Config for JSON parsing, with durations as strings.
type configFile struct {
	Server *struct {
		URL         string `json:"url"`
		HTTPTimeout string `json:"http_timeout"`
		DialTimeout string `json:"dial_timeout"`
	} `json:"server"`
	Cache *struct {
		Path string `json:"path"`
	} `json:"cache"`
	Chat *struct {
		Enabled *bool `json:"enabled"`
	} `json:"chat"`
}

// LoadFromFile reads a JSON config file over the defaults.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()
	if file.Server != nil {
		if file.Server.URL != "" {
			config.Server.URL = file.Server.URL
		}
		if file.Server.HTTPTimeout != "" {
			if d, err := time.ParseDuration(file.Server.HTTPTimeout); err == nil {
				config.Server.HTTPTimeout = d
			}
		}
		if file.Server.DialTimeout != "" {
			if d, err := time.ParseDuration(file.Server.DialTimeout); err == nil {
				config.Server.DialTimeout = d
			}
		}
	}
	if file.Cache != nil && file.Cache.Path != "" {
		config.Cache.Path = file.Cache.Path
	}
	if file.Chat != nil && file.Chat.Enabled != nil {
		config.Chat.Enabled = *file.Chat.Enabled
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}
	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment >
// defaults. File errors are ignored silently so environment and defaults
// still apply.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
