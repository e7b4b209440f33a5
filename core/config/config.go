package config

import (
	"fmt"
	"os"
	"strings"

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
	// APIURL overrides the Bot API base, mostly for local bot-api servers.
	APIURL string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`
	// DropPending discards updates queued while the bot was down.
	DropPending bool `yaml:"drop_pending" envconfig:"TELEGRAM_DROP_PENDING"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
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
	// UpdateMessage identifies text and media messages for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for the per-user cooldown.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": text and media messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

const (
	// ResponderProcess spawns a local program per exchange.
	ResponderProcess = "process"
	// ResponderHTTP posts each exchange to an HTTP endpoint.
	ResponderHTTP = "http"
	// ResponderOpenAI answers in-process through the OpenAI chat API.
	ResponderOpenAI = "openai"
	// ResponderEcho answers locally without any external dependency.
	ResponderEcho = "echo"
)

// ResponderConfig selects and tunes the natural-language responder.
type ResponderConfig struct {
	Mode           string   `yaml:"mode" envconfig:"RESPONDER_MODE"`
	Command        string   `yaml:"command" envconfig:"RESPONDER_COMMAND"`
	Args           []string `yaml:"args" envconfig:"RESPONDER_ARGS"`
	WorkDir        string   `yaml:"workdir" envconfig:"RESPONDER_WORKDIR"`
	URL            string   `yaml:"url" envconfig:"RESPONDER_URL"`
	TimeoutSeconds int      `yaml:"timeout_seconds" envconfig:"RESPONDER_TIMEOUT_SECONDS"`
	MaxQuestions   int      `yaml:"max_questions" envconfig:"RESPONDER_MAX_QUESTIONS"`
	MaxConcurrent  int      `yaml:"max_concurrent" envconfig:"RESPONDER_MAX_CONCURRENT"`

	OpenAIAPIKey  string `yaml:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `yaml:"openai_model" envconfig:"OPENAI_MODEL"`
	OpenAIBaseURL string `yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`
}

// IntakeConfig points at the consent documents and output pagination.
type IntakeConfig struct {
	TermsPath      string `yaml:"terms_path" envconfig:"INTAKE_TERMS_PATH"`
	DisclaimerPath string `yaml:"disclaimer_path" envconfig:"INTAKE_DISCLAIMER_PATH"`
	PageSize       int    `yaml:"page_size" envconfig:"INTAKE_PAGE_SIZE"`
}

const (
	// ArchivePostgres stores transcripts in PostgreSQL.
	ArchivePostgres = "postgres"
	// ArchiveSQLite stores transcripts in a local SQLite file.
	ArchiveSQLite = "sqlite"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// ArchiveConfig enables the write-only transcript archive. Empty driver disables it.
type ArchiveConfig struct {
	Driver     string         `yaml:"driver" envconfig:"ARCHIVE_DRIVER"`
	SQLitePath string         `yaml:"sqlite_path" envconfig:"ARCHIVE_SQLITE_PATH"`
	Postgres   DatabaseConfig `yaml:"postgres"`
}

// MetricsConfig exposes Prometheus metrics when Listen is set.
type MetricsConfig struct {
	Listen    string `yaml:"listen" envconfig:"METRICS_LISTEN"`
	Namespace string `yaml:"namespace" envconfig:"METRICS_NAMESPACE"`
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Responder ResponderConfig `yaml:"responder"`
	Intake    IntakeConfig    `yaml:"intake"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs validation of required configuration fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
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
	cfg.Telegram.APIURL = strings.TrimRight(strings.TrimSpace(cfg.Telegram.APIURL), "/")
	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = "https://api.telegram.org"
	}

	if err := normalizeRateLimit(&cfg.RateLimit); err != nil {
		return err
	}
	if err := normalizeResponder(&cfg.Responder); err != nil {
		return err
	}
	if err := normalizeArchive(&cfg.Archive); err != nil {
		return err
	}

	if cfg.Intake.PageSize <= 0 {
		cfg.Intake.PageSize = 4000
	}
	if cfg.Intake.PageSize > 4096 {
		return fmt.Errorf("intake.page_size must be <= 4096 (Telegram message limit)")
	}
	if strings.TrimSpace(cfg.Metrics.Namespace) == "" {
		cfg.Metrics.Namespace = "petbot"
	}
	return nil
}

func normalizeRateLimit(rl *RateLimitConfig) error {
	if rl.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	if rl.IntervalMS == 0 {
		rl.IntervalMS = 1000
	}
	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range rl.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		rl.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizeResponder(rc *ResponderConfig) error {
	mode := strings.ToLower(strings.TrimSpace(rc.Mode))
	if mode == "" {
		mode = ResponderProcess
	}
	switch mode {
	case ResponderProcess:
		if strings.TrimSpace(rc.Command) == "" {
			return fmt.Errorf("responder.command is required when responder.mode is 'process'")
		}
	case ResponderHTTP:
		if strings.TrimSpace(rc.URL) == "" {
			return fmt.Errorf("responder.url is required when responder.mode is 'http'")
		}
	case ResponderOpenAI:
		if strings.TrimSpace(rc.OpenAIAPIKey) == "" {
			return fmt.Errorf("responder.openai_api_key is required when responder.mode is 'openai'")
		}
		if strings.TrimSpace(rc.OpenAIModel) == "" {
			rc.OpenAIModel = "gpt-4o-mini"
		}
	case ResponderEcho:
	default:
		return fmt.Errorf("invalid responder.mode %q; allowed: process, http, openai, echo", rc.Mode)
	}
	rc.Mode = mode

	if rc.TimeoutSeconds < 0 {
		return fmt.Errorf("responder.timeout_seconds must be >= 0")
	}
	if rc.TimeoutSeconds == 0 {
		rc.TimeoutSeconds = 30
	}
	if rc.MaxQuestions <= 0 {
		rc.MaxQuestions = 4
	}
	if rc.MaxConcurrent <= 0 {
		rc.MaxConcurrent = 8
	}
	return nil
}

func normalizeArchive(ac *ArchiveConfig) error {
	driver := strings.ToLower(strings.TrimSpace(ac.Driver))
	switch driver {
	case "":
	case ArchivePostgres:
		if strings.TrimSpace(ac.Postgres.Host) == "" || strings.TrimSpace(ac.Postgres.Name) == "" {
			return fmt.Errorf("archive.postgres.host and archive.postgres.name are required for the postgres archive")
		}
		if ac.Postgres.SSLMode == "" {
			ac.Postgres.SSLMode = "disable"
		}
		if ac.Postgres.Port == "" {
			ac.Postgres.Port = "5432"
		}
		if ac.Postgres.MaxConnections <= 0 {
			ac.Postgres.MaxConnections = 4
		}
	case ArchiveSQLite:
		if strings.TrimSpace(ac.SQLitePath) == "" {
			ac.SQLitePath = "data/transcripts.db"
		}
	default:
		return fmt.Errorf("invalid archive.driver %q; allowed: postgres, sqlite", ac.Driver)
	}
	ac.Driver = driver
	return nil
}
