// Package config loads engine configuration from YAML with built-in
// defaults. Missing file means defaults; a present file overlays only
// the fields it sets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures the OpenAI-compatible reasoning endpoint.
// An empty APIURL disables the LLM reasoner entirely; the agent then
// runs on the deterministic policy alone.
type LLMConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DaemonConfig configures the inbox-watching job daemon.
type DaemonConfig struct {
	InboxDir       string `yaml:"inbox_dir"`
	OutboxDir      string `yaml:"outbox_dir"`
	Workers        int    `yaml:"workers"`
	DebounceMS     int    `yaml:"debounce_ms"`
	PollMode       bool   `yaml:"poll_mode"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
}

// Config holds all engine parameters.
type Config struct {
	DatabasePath string       `yaml:"database_path"`
	AuditLogPath string       `yaml:"audit_log_path"`
	AgentName    string       `yaml:"agent_name"`
	LLM          LLMConfig    `yaml:"llm"`
	Daemon       DaemonConfig `yaml:"daemon"`
}

// Default returns the built-in configuration.
func Default() *Config {
	base := ".policypulse"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".policypulse")
	}
	return &Config{
		DatabasePath: filepath.Join(base, "policypulse.db"),
		AuditLogPath: filepath.Join(base, "audit.jsonl"),
		AgentName:    "PolicyPulse ReAct Agent v1",
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			MaxTokens:      600,
			TimeoutSeconds: 60,
		},
		Daemon: DaemonConfig{
			InboxDir:       filepath.Join(base, "inbox"),
			OutboxDir:      filepath.Join(base, "outbox"),
			Workers:        2,
			DebounceMS:     300,
			PollIntervalMS: 5000,
		},
	}
}

// Load reads configuration from a YAML file. Empty path falls back to
// ~/.policypulse/config.yaml. Missing file returns defaults. Invalid
// YAML returns an error.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(home, ".policypulse", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("POLICYPULSE_API_KEY")
	}
	return cfg, nil
}
