// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Bot transport modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Withdraw WithdrawConfig `mapstructure:"withdraw"`
	Referral ReferralConfig `mapstructure:"referral"`
	Task     TaskConfig     `mapstructure:"task"`
	Support  SupportConfig  `mapstructure:"support"`
	Log      LogConfig      `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token         string        `mapstructure:"token"`
	Mode          string        `mapstructure:"mode"`
	PollTimeout   time.Duration `mapstructure:"poll_timeout"`
	WebhookURL    string        `mapstructure:"webhook_url"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
}

// HTTPConfig holds the HTTP listener used for the webhook, health and metrics.
type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Name              string        `mapstructure:"name"`
	SSLMode           string        `mapstructure:"sslmode"`
	PoolSize          int           `mapstructure:"pool_size"`
	MinConns          int           `mapstructure:"min_conns"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// AdminConfig holds the single administrator identity.
type AdminConfig struct {
	ID int64 `mapstructure:"id"`
}

// WithdrawConfig holds withdrawal rules.
type WithdrawConfig struct {
	MinAmount int64 `mapstructure:"min_amount"`
}

// ReferralConfig holds referral program rules.
type ReferralConfig struct {
	Percent   int64 `mapstructure:"percent"`
	JoinBonus int64 `mapstructure:"join_bonus"`
}

// TaskConfig holds task submission settings.
type TaskConfig struct {
	DefaultPrice string `mapstructure:"default_price"`
	GuideURL     string `mapstructure:"guide_url"`
}

// SupportConfig holds the support group link.
type SupportConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// MigrateURL returns the connection string understood by the migrate pgx/v5 driver.
func (d *DatabaseConfig) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	// A missing .env file is fine, the process environment still applies.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, ADMIN_ID
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.mode", ModePolling)
	v.SetDefault("bot.poll_timeout", "10s")
	v.SetDefault("bot.webhook_url", "")
	v.SetDefault("bot.webhook_secret", "")

	v.SetDefault("http.listen", ":8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "earnbot")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "earnbot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.retry_interval", "500ms")

	v.SetDefault("storage.driver", DriverPostgres)

	v.SetDefault("admin.id", 0)

	v.SetDefault("withdraw.min_amount", 50)

	v.SetDefault("referral.percent", 3)
	v.SetDefault("referral.join_bonus", 1)

	v.SetDefault("task.default_price", "7")
	v.SetDefault("task.guide_url", "https://t.me/taskincometoday/16")

	v.SetDefault("support.url", "https://t.me/+f9tOe5fPe0Q0NGZl")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks the settings the bot cannot run without.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot token is required")
	}
	if c.Admin.ID == 0 {
		return errors.New("admin id is required")
	}
	if c.Withdraw.MinAmount <= 0 {
		return errors.New("withdraw minimum must be positive")
	}
	if c.Referral.Percent < 0 || c.Referral.Percent > 100 {
		return errors.New("referral percent must be between 0 and 100")
	}
	if c.Referral.JoinBonus < 0 {
		return errors.New("referral join bonus cannot be negative")
	}
	switch c.Bot.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Bot.WebhookURL == "" {
			return errors.New("webhook url is required in webhook mode")
		}
	default:
		return errors.Errorf("unknown bot mode %q", c.Bot.Mode)
	}
	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
