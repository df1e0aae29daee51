package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if !strings.Contains(cfg.DatabasePath, ".policypulse") {
		t.Errorf("database path: %q", cfg.DatabasePath)
	}
	if filepath.Base(cfg.DatabasePath) != "policypulse.db" {
		t.Errorf("database file: %q", cfg.DatabasePath)
	}
	if filepath.Base(cfg.AuditLogPath) != "audit.jsonl" {
		t.Errorf("audit path: %q", cfg.AuditLogPath)
	}
	if cfg.AgentName != "PolicyPulse ReAct Agent v1" {
		t.Errorf("agent name: %q", cfg.AgentName)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.MaxTokens != 600 || cfg.LLM.TimeoutSeconds != 60 {
		t.Errorf("llm defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.APIURL != "" || cfg.LLM.APIKey != "" {
		t.Errorf("llm should be disabled by default: %+v", cfg.LLM)
	}
	if cfg.Daemon.Workers != 2 || cfg.Daemon.DebounceMS != 300 || cfg.Daemon.PollIntervalMS != 5000 {
		t.Errorf("daemon defaults: %+v", cfg.Daemon)
	}
	if cfg.Daemon.PollMode {
		t.Error("event watching should be the default, not polling")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AgentName != Default().AgentName {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadOverlaysOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
database_path: /tmp/custom.db
llm:
  api_url: https://api.example.com/v1/chat/completions
  api_key: sk-test
  model: gpt-4o
daemon:
  workers: 8
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabasePath != "/tmp/custom.db" {
		t.Errorf("database path: %q", cfg.DatabasePath)
	}
	if cfg.LLM.APIURL != "https://api.example.com/v1/chat/completions" || cfg.LLM.APIKey != "sk-test" {
		t.Errorf("llm overlay: %+v", cfg.LLM)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("model overlay: %q", cfg.LLM.Model)
	}
	if cfg.Daemon.Workers != 8 {
		t.Errorf("workers overlay: %d", cfg.Daemon.Workers)
	}

	// Fields the file omits keep their defaults.
	if cfg.LLM.MaxTokens != 600 {
		t.Errorf("max_tokens should stay default, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.AgentName != "PolicyPulse ReAct Agent v1" {
		t.Errorf("agent name should stay default, got %q", cfg.AgentName)
	}
	if cfg.Daemon.DebounceMS != 300 {
		t.Errorf("debounce should stay default, got %d", cfg.Daemon.DebounceMS)
	}
}

func TestLoadInvalidYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("invalid YAML should fail")
	}
}

func TestLoadAPIKeyFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  api_url: https://api.example.com\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("POLICYPULSE_API_KEY", "sk-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("env key: got %q, want sk-env", cfg.LLM.APIKey)
	}

	// A key set in the file wins over the environment.
	if err := os.WriteFile(path, []byte("llm:\n  api_key: sk-file\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-file" {
		t.Errorf("file key: got %q, want sk-file", cfg.LLM.APIKey)
	}
}
