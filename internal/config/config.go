// Package config loads engine configuration from a JSON file backend at
// $XDG_CONFIG_HOME/persona/config.json with PERSONA_* environment variable
// overrides on top of built-in defaults.
package config

import (
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	OpenAI  OpenAIConfig
	Traits  TraitsConfig
	Refresh RefreshConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type StorageConfig struct {
	Backend string // "file" or "sqlite"
	DataDir string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type TraitsConfig struct {
	Timeout  string
	Disabled bool
}

type RefreshConfig struct {
	Interval string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    8001,
			MCPPort: 8002,
		},
		Storage: StorageConfig{
			Backend: "file",
			DataDir: defaultDataDir(),
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Traits: TraitsConfig{
			Timeout: "10s",
		},
		Refresh: RefreshConfig{
			Interval: "10m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend and applies PERSONA_*
// environment overrides. A missing OpenAI API key is not an error: the
// engine runs with fallback trait scoring instead.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// ScoreTimeout parses the trait scorer timeout, falling back to the default
// on malformed input.
func (c Config) ScoreTimeout() time.Duration {
	d, err := time.ParseDuration(c.Traits.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// RefreshInterval parses the sweep interval, falling back to the default on
// malformed input.
func (c Config) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.Refresh.Interval)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}
