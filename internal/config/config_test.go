package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != DefaultAddr || cfg.Chat.Model != DefaultModel {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Chat.MaxToolRounds != 8 || cfg.Chat.HistoryWindow != 10 {
		t.Fatalf("chat defaults = %+v", cfg.Chat)
	}
	if cfg.Tools.LatencyScale != 1 || cfg.Tools.DagsDir != DefaultDagsDir {
		t.Fatalf("tools defaults = %+v", cfg.Tools)
	}
}

func TestLoad_OverridesAndDefaultsMerge(t *testing.T) {
	path := writeConfig(t, `
addr: ":9999"
chat:
  model: gpt-4o
  max_tool_rounds: 3
tools:
  latency_scale: 0.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Chat.Model != "gpt-4o" || cfg.Chat.MaxToolRounds != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Tools.LatencyScale != 0.5 {
		t.Fatalf("latency_scale = %v", cfg.Tools.LatencyScale)
	}
	if cfg.Chat.HistoryWindow != 10 || cfg.LogLevel != "info" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "addr: \":3100\"\nbogus_field: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad addr", "addr: nonsense\n", "invalid addr"},
		{"bad level", "log_level: loud\n", "invalid log_level"},
		{"negative rounds", "chat:\n  max_tool_rounds: -1\n", "max_tool_rounds"},
		{"negative scale", "tools:\n  latency_scale: -2\n", "latency_scale"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	cfg := Default()
	cfg.Chat.APIKeyEnv = "GATEWAY_TEST_KEY"
	t.Setenv("GATEWAY_TEST_KEY", "  sk-test  ")
	if got := cfg.APIKey(); got != "sk-test" {
		t.Fatalf("key = %q", got)
	}
}
