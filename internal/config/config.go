// Package config loads gateway configuration from a YAML file plus
// environment variables. Every field has a default so the gateway runs with
// no config file at all.
package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr      = ":3100"
	DefaultModel     = "gpt-4o-mini"
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
	DefaultDagsDir   = "generated-dags"
)

type ChatConfig struct {
	Model               string `yaml:"model"`
	BaseURL             string `yaml:"base_url"`
	APIKeyEnv           string `yaml:"api_key_env"`
	MaxToolRounds       int    `yaml:"max_tool_rounds"`
	HistoryWindow       int    `yaml:"history_window"`
	CompletionTimeoutMS int    `yaml:"completion_timeout_ms"`
}

type ToolsConfig struct {
	TimeoutMS    int     `yaml:"timeout_ms"`
	LatencyScale float64 `yaml:"latency_scale"`
	DagsDir      string  `yaml:"dags_dir"`
}

type Config struct {
	Addr     string      `yaml:"addr"`
	LogLevel string      `yaml:"log_level"`
	Chat     ChatConfig  `yaml:"chat"`
	Tools    ToolsConfig `yaml:"tools"`
}

// APIKey reads the upstream key from the configured environment variable.
func (c *Config) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.Chat.APIKeyEnv))
}

func (c *Config) CompletionTimeout() time.Duration {
	return time.Duration(c.Chat.CompletionTimeoutMS) * time.Millisecond
}

func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Tools.TimeoutMS) * time.Millisecond
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and validates a YAML config file. A missing path returns
// defaults; a present but unreadable or invalid file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := decodeStrict(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func decodeStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = DefaultModel
	}
	if cfg.Chat.APIKeyEnv == "" {
		cfg.Chat.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.Chat.MaxToolRounds == 0 {
		cfg.Chat.MaxToolRounds = 8
	}
	if cfg.Chat.HistoryWindow == 0 {
		cfg.Chat.HistoryWindow = 10
	}
	if cfg.Tools.LatencyScale == 0 {
		cfg.Tools.LatencyScale = 1
	}
	if cfg.Tools.DagsDir == "" {
		cfg.Tools.DagsDir = DefaultDagsDir
	}
}

var addrRe = regexp.MustCompile(`^[^:]*:\d+$`)

func validate(cfg *Config) error {
	if !addrRe.MatchString(cfg.Addr) {
		return fmt.Errorf("invalid addr %q", cfg.Addr)
	}
	switch cfg.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.Chat.MaxToolRounds < 1 {
		return fmt.Errorf("max_tool_rounds must be >= 1, got %d", cfg.Chat.MaxToolRounds)
	}
	if cfg.Chat.HistoryWindow < 1 {
		return fmt.Errorf("history_window must be >= 1, got %d", cfg.Chat.HistoryWindow)
	}
	if cfg.Tools.LatencyScale < 0 {
		return fmt.Errorf("latency_scale must be >= 0, got %v", cfg.Tools.LatencyScale)
	}
	return nil
}
