package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// Channel is the broadcast channel: either "@username" or a numeric chat id.
	Channel string `yaml:"channel" envconfig:"CHANNEL_ID"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format    string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder string `yaml:"keys_order"`
	Dir       string `yaml:"dir"`
	BotFile   string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// StorageConfig selects where listings are persisted.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORE_DRIVER"`
	Path   string `yaml:"path" envconfig:"STORE_PATH"`
}

// DatabaseConfig holds Postgres connection settings for the postgres storage driver.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// NegotiationConfig selects where pending claim negotiations live.
type NegotiationConfig struct {
	Driver   string `yaml:"driver" envconfig:"NEGOTIATIONS_DRIVER"`
	TTLHours int    `yaml:"ttl_hours" envconfig:"NEGOTIATIONS_TTL_HOURS"`
}

// RedisConfig holds Redis client settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// NATSConfig enables lifecycle event publishing when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url" envconfig:"NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" envconfig:"NATS_SUBJECT_PREFIX"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"

	NegotiationsMemory = "memory"
	NegotiationsRedis  = "redis"

	DefaultStorePath     = "listings.json"
	DefaultSubjectPrefix = "redistbot"
)

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram     TelegramConfig    `yaml:"telegram"`
	Webhook      WebhookConfig     `yaml:"webhook"`
	Logging      LoggingConfig     `yaml:"logging"`
	RateLimit    RateLimitConfig   `yaml:"rate_limit"`
	Storage      StorageConfig     `yaml:"storage"`
	Database     DatabaseConfig    `yaml:"database"`
	Negotiations NegotiationConfig `yaml:"negotiations"`
	Redis        RedisConfig       `yaml:"redis"`
	NATS         NATSConfig        `yaml:"nats"`
	Metrics      MetricsConfig     `yaml:"metrics"`
}

// Load reads configuration from an optional YAML file, a .env file and environment variables.
// A missing file at path is tolerated so the bot can be configured from env alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	cfg.Telegram.Channel = strings.TrimSpace(cfg.Telegram.Channel)
	if cfg.Telegram.Channel == "" {
		return fmt.Errorf("telegram.channel is required")
	}
	if !strings.HasPrefix(cfg.Telegram.Channel, "@") {
		if _, err := strconv.ParseInt(cfg.Telegram.Channel, 10, 64); err != nil {
			return fmt.Errorf("telegram.channel %q must be @username or a numeric chat id", cfg.Telegram.Channel)
		}
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeStorage(cfg); err != nil {
		return err
	}
	if err := normalizeNegotiations(cfg); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.NATS.URL) != "" && strings.TrimSpace(cfg.NATS.SubjectPrefix) == "" {
		cfg.NATS.SubjectPrefix = DefaultSubjectPrefix
	}
	return nil
}

func normalizeStorage(cfg *Config) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" {
		driver = StorageFile
	}
	switch driver {
	case StorageFile:
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			cfg.Storage.Path = DefaultStorePath
		}
	case StoragePostgres:
		db := &cfg.Database
		if db.Host == "" || db.Name == "" || db.User == "" {
			return fmt.Errorf("database.host, database.name and database.user are required when storage.driver is 'postgres'")
		}
		if db.Port == "" {
			db.Port = "5432"
		}
		if db.SSLMode == "" {
			db.SSLMode = "disable"
		}
		if db.MaxConnections <= 0 {
			db.MaxConnections = 4
		}
		if db.MigrationsDir == "" {
			db.MigrationsDir = "migrations"
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: file, postgres", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver
	return nil
}

func normalizeNegotiations(cfg *Config) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.Negotiations.Driver))
	if driver == "" {
		driver = NegotiationsMemory
	}
	switch driver {
	case NegotiationsMemory:
	case NegotiationsRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when negotiations.driver is 'redis'")
		}
	default:
		return fmt.Errorf("invalid negotiations.driver %q; allowed: memory, redis", cfg.Negotiations.Driver)
	}
	if cfg.Negotiations.TTLHours < 0 {
		return fmt.Errorf("negotiations.ttl_hours must be >= 0")
	}
	if cfg.Negotiations.TTLHours == 0 {
		cfg.Negotiations.TTLHours = 72
	}
	cfg.Negotiations.Driver = driver
	return nil
}
