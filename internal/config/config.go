// Package config provides configuration loading, validation, and management
// for mamabot. Values come from a YAML file, MAMABOT_* environment variables
// and the defaults in defaults.go, in decreasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. MAMABOT_AI_API_KEY overrides ai.api_key.
const EnvPrefix = "MAMABOT"

// Config holds the complete application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	AI        AIConfig        `mapstructure:"ai"`
	Advisory  AdvisoryConfig  `mapstructure:"advisory"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// HTTPConfig controls the HTTP API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// DatabaseConfig selects the SQL driver and connection string.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn"    validate:"required"`
}

// AIConfig configures the text-generation backend.
type AIConfig struct {
	Provider          string  `mapstructure:"provider"            validate:"oneof=gemini openai"`
	APIKey            string  `mapstructure:"api_key"             validate:"required"`
	BaseURL           string  `mapstructure:"base_url"            validate:"omitempty,url"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
}

// AdvisoryConfig configures the AI advisory gateway.
type AdvisoryConfig struct {
	SystemInstruction string `mapstructure:"system_instruction"`
	RecentVitalsLimit int    `mapstructure:"recent_vitals_limit" validate:"min=1,max=100"`
	MaxToolRounds     int    `mapstructure:"max_tool_rounds"     validate:"min=1,max=3"`
	HistoryLimit      int    `mapstructure:"history_limit"       validate:"min=0,max=200"`
}

// AlertsConfig configures alert message generation.
type AlertsConfig struct {
	AIPhrasing      bool          `mapstructure:"ai_phrasing"`
	PhrasingTimeout time.Duration `mapstructure:"phrasing_timeout" validate:"min=1s,max=2m"`
}

// TelegramConfig configures the optional Telegram channel.
type TelegramConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Token          string `mapstructure:"token"            validate:"required_if=Enabled true"`
	FallbackChatID int64  `mapstructure:"fallback_chat_id"`

	// BotInfo is filled at runtime after GetMe succeeds.
	BotInfo *models.User `mapstructure:"-"`
}

// NotifyConfig configures notification sinks.
type NotifyConfig struct {
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout" validate:"min=1s,max=5m"`
	Kafka           KafkaConfig   `mapstructure:"kafka"`
}

// KafkaConfig configures the Kafka event sink.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true,dive,hostname_port"`
	Topic   string   `mapstructure:"topic"   validate:"required_if=Enabled true"`
}

// SchedulerConfig lists scheduled tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig configures one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds user-facing bot texts.
type MessagesConfig struct {
	Welcome      string `mapstructure:"welcome"       validate:"required"`
	Help         string `mapstructure:"help"          validate:"required"`
	NotLinked    string `mapstructure:"not_linked"    validate:"required"`
	VitalsUsage  string `mapstructure:"vitals_usage"  validate:"required"`
	HistoryReset string `mapstructure:"history_reset" validate:"required"`
	SOSReceived  string `mapstructure:"sos_received"  validate:"required"`
	GeneralError string `mapstructure:"general_error" validate:"required"`
}

// LoadConfig reads configuration from path, applies defaults and environment
// overrides, and validates the result. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	// required_if only rejects a nil slice, and the defaults seed an empty one.
	if c.Notify.Kafka.Enabled && len(c.Notify.Kafka.Brokers) == 0 {
		return errors.New("invalid configuration: notify.kafka.brokers must list at least one broker when kafka is enabled")
	}
	return nil
}
