package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
telegram:
  token: "123:abc"
  admin_ids: [1]
  employee_ids: [2, 3]
llm:
  api_key: "sk-test"
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Limits.MaxMessageLength != 500 {
		t.Errorf("max message length = %d, want 500", cfg.Limits.MaxMessageLength)
	}
	if cfg.Limits.RateLimitInterval != 2*time.Second {
		t.Errorf("rate limit interval = %v, want 2s", cfg.Limits.RateLimitInterval)
	}
	if cfg.Limits.MaxSessionDuration != 30*time.Minute {
		t.Errorf("max session duration = %v, want 30m", cfg.Limits.MaxSessionDuration)
	}
	if cfg.Limits.HistoryWindow != 10 {
		t.Errorf("history window = %d, want 10", cfg.Limits.HistoryWindow)
	}
	if cfg.LLM.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("base url = %q", cfg.LLM.BaseURL)
	}
	if len(cfg.Dialog.FinishPhrases) == 0 {
		t.Error("default finish phrases are empty")
	}
	if task, ok := cfg.Scheduler.Tasks["stale_sessions"]; !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("stale_sessions task not configured by default: %+v", task)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
limits:
  max_message_length: 200
  history_window: 6
dialog:
  finish_phrases: ["bye"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits.MaxMessageLength != 200 {
		t.Errorf("max message length = %d, want 200", cfg.Limits.MaxMessageLength)
	}
	if cfg.Limits.HistoryWindow != 6 {
		t.Errorf("history window = %d, want 6", cfg.Limits.HistoryWindow)
	}
	if len(cfg.Dialog.FinishPhrases) != 1 || cfg.Dialog.FinishPhrases[0] != "bye" {
		t.Errorf("finish phrases = %v", cfg.Dialog.FinishPhrases)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, "llm:\n  api_key: sk-test\n")

	_, err := Load(path)
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("BOT_LLM_API_KEY", "sk-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
}

func TestIsAllowed(t *testing.T) {
	t.Parallel()

	cfg := &Config{Telegram: TelegramConfig{AdminIDs: []int64{1}, EmployeeIDs: []int64{2}}}

	tests := []struct {
		name    string
		id      int64
		admin   bool
		allowed bool
	}{
		{name: "admin", id: 1, admin: true, allowed: true},
		{name: "employee", id: 2, admin: false, allowed: true},
		{name: "stranger", id: 3, admin: false, allowed: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := cfg.IsAdmin(tc.id); got != tc.admin {
				t.Errorf("IsAdmin(%d) = %v, want %v", tc.id, got, tc.admin)
			}
			if got := cfg.IsAllowed(tc.id); got != tc.allowed {
				t.Errorf("IsAllowed(%d) = %v, want %v", tc.id, got, tc.allowed)
			}
		})
	}
}
