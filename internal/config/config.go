// Package config loads and validates the application configuration from
// config.yaml and BOT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration indicates a configuration loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// TelegramConfig holds bot credentials and the access lists.
type TelegramConfig struct {
	Token       string  `mapstructure:"token"        validate:"required"`
	EmployeeIDs []int64 `mapstructure:"employee_ids"`
	AdminIDs    []int64 `mapstructure:"admin_ids"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LLMConfig holds settings for the OpenRouter-compatible chat-completion API.
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"          validate:"required"`
	BaseURL        string        `mapstructure:"base_url"         validate:"required,url"`
	Model          string        `mapstructure:"model"            validate:"required"`
	Temperature    float32       `mapstructure:"temperature"      validate:"min=0,max=2"`
	MaxTokens      int           `mapstructure:"max_tokens"       validate:"min=1"`
	DailyCostLimit float64       `mapstructure:"daily_cost_limit" validate:"min=0"`
	Timeout        time.Duration `mapstructure:"timeout"          validate:"min=1s,max=10m"`
}

// KnowledgeConfig holds vector-store settings.
type KnowledgeConfig struct {
	Path           string `mapstructure:"path"`
	DataDir        string `mapstructure:"data_dir"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TopK           int    `mapstructure:"top_k" validate:"min=1,max=20"`
}

// SheetsConfig holds Google Sheets export settings.
type SheetsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"   validate:"required_if=Enabled true"`
	CredentialsPath string `mapstructure:"credentials_path" validate:"required_if=Enabled true"`
	SummarySheet    string `mapstructure:"summary_sheet"`
	TranscriptSheet string `mapstructure:"transcript_sheet"`
}

// LimitsConfig bounds user input and session lifetime.
type LimitsConfig struct {
	MaxMessageLength   int           `mapstructure:"max_message_length"   validate:"min=1"`
	RateLimitInterval  time.Duration `mapstructure:"rate_limit_interval"  validate:"min=0"`
	MaxSessionDuration time.Duration `mapstructure:"max_session_duration" validate:"min=1m"`
	HistoryWindow      int           `mapstructure:"history_window"       validate:"min=1,max=100"`
}

// DialogConfig holds dialog behavior settings.
type DialogConfig struct {
	// FinishPhrases are matched case-insensitively as substrings of the
	// simulated client's replies; a hit closes the session.
	FinishPhrases []string `mapstructure:"finish_phrases" validate:"min=1"`
}

// TaskConfig enables and schedules a single background task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// Config is the root application configuration.
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Dialog    DialogConfig    `mapstructure:"dialog"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// IsAdmin reports whether the given Telegram ID is in the admin list.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// IsAllowed reports whether the given Telegram ID may use the bot at all.
// Admins are always allowed.
func (c *Config) IsAllowed(telegramID int64) bool {
	if c.IsAdmin(telegramID) {
		return true
	}
	for _, id := range c.Telegram.EmployeeIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// Load reads configuration from the given YAML file and validates the result.
// A missing file is not an error; defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a natural default still need one registered, otherwise
	// Unmarshal never sees their environment overrides.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.employee_ids", []int64{})
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("llm.api_key", "")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.credentials_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("database.path", "storage.db")

	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "anthropic/claude-3.5-sonnet")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.daily_cost_limit", 50.0)
	v.SetDefault("llm.timeout", 2*time.Minute)

	v.SetDefault("knowledge.path", "knowledge.db")
	v.SetDefault("knowledge.data_dir", "knowledge_base")
	v.SetDefault("knowledge.embedding_model", "text-embedding-3-small")
	v.SetDefault("knowledge.top_k", 3)

	v.SetDefault("sheets.enabled", false)
	v.SetDefault("sheets.summary_sheet", "Sessions")
	v.SetDefault("sheets.transcript_sheet", "Transcripts")

	v.SetDefault("limits.max_message_length", 500)
	v.SetDefault("limits.rate_limit_interval", 2*time.Second)
	v.SetDefault("limits.max_session_duration", 30*time.Minute)
	v.SetDefault("limits.history_window", 10)

	v.SetDefault("dialog.finish_phrases", []string{
		"deal",
		"send the contract",
		"goodbye",
		"not interested",
	})

	v.SetDefault("scheduler.tasks.stale_sessions.enabled", true)
	v.SetDefault("scheduler.tasks.stale_sessions.schedule", "*/5 * * * *")
	v.SetDefault("scheduler.tasks.ratelimit_sweep.enabled", true)
	v.SetDefault("scheduler.tasks.ratelimit_sweep.schedule", "0 * * * *")
}
