package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/collections/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment     DeploymentConfig     `mapstructure:"deployment" validate:"required"`
	Server         ServerConfig         `mapstructure:"server" validate:"required"`
	Logging        LoggingConfig        `mapstructure:"logging" validate:"required"`
	Postgres       PostgresConfig       `mapstructure:"postgres" validate:"required"`
	Temporal       TemporalConfig       `mapstructure:"temporal" validate:"required"`
	Kafka          KafkaConfig          `mapstructure:"kafka" validate:"required"`
	EventPublisher EventPublisherConfig `mapstructure:"event_publisher" validate:"required"`
	S3             S3Config             `mapstructure:"s3" validate:"required"`
	Billing        BillingConfig        `mapstructure:"billing" validate:"required"`
	Bank           BankConfig           `mapstructure:"bank" validate:"required"`
	Fiscal         FiscalConfig         `mapstructure:"fiscal" validate:"required"`
	Fallback       FallbackConfig       `mapstructure:"fallback" validate:"required"`
	Sentry         SentryConfig         `mapstructure:"sentry"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level          types.LogLevel `mapstructure:"level" validate:"required"`
	FluentdEnabled bool           `mapstructure:"fluentd_enabled"`
	FluentdHost    string         `mapstructure:"fluentd_host"`
	FluentdPort    int            `mapstructure:"fluentd_port"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
}

// GetDSN returns the lib/pq connection string.
func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type TemporalConfig struct {
	Address   string `mapstructure:"address" validate:"required"`
	Namespace string `mapstructure:"namespace" validate:"required"`
	TaskQueue string `mapstructure:"task_queue" validate:"required"`
	APIKey    string `mapstructure:"api_key"`
	TLS       bool   `mapstructure:"tls"`
	// Schedules are cron expressions for the recurring workflows. An empty
	// expression leaves the workflow unscheduled.
	Schedules TemporalSchedules `mapstructure:"schedules"`
}

type TemporalSchedules struct {
	AnchorCycleRun  string `mapstructure:"anchor_cycle_run"`
	BankPresentment string `mapstructure:"bank_presentment"`
	FiscalAutorun   string `mapstructure:"fiscal_autorun"`
	FallbackPoll    string `mapstructure:"fallback_poll"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ClientID      string   `mapstructure:"client_id"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

// EventPublisherConfig selects where billing events are published after commit.
type EventPublisherConfig struct {
	// Type is one of "kafka" or "memory"
	Type  string `mapstructure:"type" validate:"required,oneof=kafka memory"`
	Topic string `mapstructure:"topic" validate:"required"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// BillingConfig drives the anchor cycle runner and pricing snapshot builder.
type BillingConfig struct {
	VATRate             decimal.Decimal `mapstructure:"vat_rate"`
	DirectDebitDiscount decimal.Decimal `mapstructure:"direct_debit_discount"`
	BaseCurrency        string          `mapstructure:"base_currency" validate:"required"`
	LocalCurrency       string          `mapstructure:"local_currency" validate:"required"`
	AllowStaleFXRate    bool            `mapstructure:"allow_stale_fx_rate"`
	FXCacheTTL          time.Duration   `mapstructure:"fx_cache_ttl"`
	BatchSize           int             `mapstructure:"batch_size" validate:"min=1"`
	RetryDays           []int           `mapstructure:"retry_days"`
	FallbackIntentTTL   time.Duration   `mapstructure:"fallback_intent_ttl"`
}

// BankConfig selects the bank batch adapter and its identifiers.
type BankConfig struct {
	Adapter   string `mapstructure:"adapter" validate:"required"`
	EntityID  string `mapstructure:"entity_id" validate:"required"`
	ServiceID string `mapstructure:"service_id" validate:"required"`
	// FilePrefix is used by the official layout file name pattern
	FilePrefix string `mapstructure:"file_prefix"`
}

type FiscalConfig struct {
	// Mode is one of "mock" or "http"
	Mode                string        `mapstructure:"mode" validate:"required,oneof=mock http"`
	AutorunEnabled      bool          `mapstructure:"autorun_enabled"`
	AutorunConcurrency  int           `mapstructure:"autorun_concurrency"`
	PointOfSale         int           `mapstructure:"point_of_sale" validate:"min=1"`
	DefaultDocumentType string        `mapstructure:"default_document_type" validate:"required"`
	Endpoint            string        `mapstructure:"endpoint"`
	APIKey              string        `mapstructure:"api_key"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          uint64        `mapstructure:"max_retries"`
}

type FallbackConfig struct {
	// Mode is one of "mock" or "http"
	Mode              string        `mapstructure:"mode" validate:"required,oneof=mock http"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	WebhookSecret     string        `mapstructure:"webhook_secret"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// NewConfig loads the configuration from config.yaml, .env and the environment.
func NewConfig() (*Configuration, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("COLLECTIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct, %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags and the cross-field rules.
func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Fiscal.Mode == "http" && c.Fiscal.Endpoint == "" {
		return fmt.Errorf("invalid configuration: fiscal.endpoint is required when fiscal.mode is http")
	}
	if c.Fallback.Mode == "http" && c.Fallback.BaseURL == "" {
		return fmt.Errorf("invalid configuration: fallback.base_url is required when fallback.mode is http")
	}
	if c.Sentry.Enabled && c.Sentry.DSN == "" {
		return fmt.Errorf("invalid configuration: sentry.dsn is required when sentry.enabled is set")
	}
	for _, d := range c.Billing.RetryDays {
		if d <= 0 {
			return fmt.Errorf("invalid configuration: billing.retry_days must be positive, got %d", d)
		}
	}
	return nil
}

// GetDefaultConfig returns a configuration suitable for tests and local runs.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelInfo},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "collections",
			DBName:  "collections",
			SSLMode: "disable",
		},
		Temporal: TemporalConfig{
			Address:   "localhost:7233",
			Namespace: "default",
			TaskQueue: "collections",
			Schedules: TemporalSchedules{
				AnchorCycleRun:  "0 * * * *",
				BankPresentment: "0 9 * * 1-5",
				FiscalAutorun:   "30 * * * *",
				FallbackPoll:    "*/15 * * * *",
			},
		},
		Kafka: KafkaConfig{ClientID: "collections"},
		EventPublisher: EventPublisherConfig{
			Type:  "memory",
			Topic: "billing_events",
		},
		Billing: BillingConfig{
			VATRate:             decimal.NewFromFloat(0.21),
			DirectDebitDiscount: decimal.NewFromInt(10),
			BaseCurrency:        "USD",
			LocalCurrency:       "ARS",
			FXCacheTTL:          10 * time.Minute,
			BatchSize:           100,
			RetryDays:           []int{3, 5, 7},
			FallbackIntentTTL:   72 * time.Hour,
		},
		Bank: BankConfig{
			Adapter:    "pipe",
			EntityID:   "0001",
			ServiceID:  "COLLECT",
			FilePrefix: "DEB",
		},
		Fiscal: FiscalConfig{
			Mode:                "mock",
			AutorunEnabled:      true,
			AutorunConcurrency:  4,
			PointOfSale:         1,
			DefaultDocumentType: "INVOICE_B",
			Timeout:             30 * time.Second,
			MaxRetries:          3,
		},
		Fallback: FallbackConfig{
			Mode:              "mock",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
		},
		Sentry: SentryConfig{
			Environment: "local",
			SampleRate:  1.0,
		},
	}
}
