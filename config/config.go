package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Payments     PaymentsConfig     `mapstructure:"payments"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Featured     FeaturedConfig     `mapstructure:"featured"`
	Rotation     RotationConfig     `mapstructure:"rotation"`
	Sweep        SweepConfig        `mapstructure:"sweep"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // debug | release
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres | sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	DB      int    `mapstructure:"db"`
}

type PaymentsConfig struct {
	// Enabled false runs the engine in demo mode: trials start and featured
	// bookings confirm without touching the payment processor.
	Enabled           bool          `mapstructure:"enabled"`
	WebhookSecret     string        `mapstructure:"webhook_secret"`
	TrialFeeCents     int           `mapstructure:"trial_fee_cents"`
	MonthlyPriceCents int           `mapstructure:"monthly_price_cents"`
	AnnualPriceCents  int           `mapstructure:"annual_price_cents"`
	IntentTimeout     time.Duration `mapstructure:"intent_timeout"`
}

type SubscriptionConfig struct {
	TrialDays   int `mapstructure:"trial_days"`
	GraceDays   int `mapstructure:"grace_days"`
	MonthlyDays int `mapstructure:"monthly_days"`
	AnnualDays  int `mapstructure:"annual_days"`
}

type FeaturedConfig struct {
	PriceCents       int           `mapstructure:"price_cents"`
	MaxAdvanceDays   int           `mapstructure:"max_advance_days"`
	AvailabilityDays int           `mapstructure:"availability_days"`
	ConfirmWindow    time.Duration `mapstructure:"confirm_window"`
}

type RotationConfig struct {
	WindowHours   int           `mapstructure:"window_hours"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	AuditQueue    int           `mapstructure:"audit_queue"`
	AuditWorkers  int           `mapstructure:"audit_workers"`
	ImpressionRPS int           `mapstructure:"impression_rps"`
}

type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type AuthConfig struct {
	// JWTSecret verifies tokens minted by the external identity provider.
	JWTSecret string `mapstructure:"jwt_secret"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	SentryDSN    string `mapstructure:"sentry_dsn"`
}

// Load reads config.yaml from the working directory (or CONFIG_PATH) with
// LOCALSQUARES_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if p := v.GetString("config_path"); p != "" {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("LOCALSQUARES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine, defaults + env carry a dev setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:localsquares.db?_pragma=foreign_keys(1)")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("payments.enabled", false)
	v.SetDefault("payments.trial_fee_cents", 100)
	v.SetDefault("payments.monthly_price_cents", 1400)
	v.SetDefault("payments.annual_price_cents", 12000)
	v.SetDefault("payments.intent_timeout", 10*time.Second)

	v.SetDefault("subscription.trial_days", 7)
	v.SetDefault("subscription.grace_days", 3)
	v.SetDefault("subscription.monthly_days", 30)
	v.SetDefault("subscription.annual_days", 365)

	v.SetDefault("featured.price_cents", 500)
	v.SetDefault("featured.max_advance_days", 30)
	v.SetDefault("featured.availability_days", 14)
	v.SetDefault("featured.confirm_window", 15*time.Minute)

	v.SetDefault("rotation.window_hours", 24)
	v.SetDefault("rotation.cache_ttl", 5*time.Second)
	v.SetDefault("rotation.audit_queue", 10000)
	v.SetDefault("rotation.audit_workers", 4)
	v.SetDefault("rotation.impression_rps", 20)

	v.SetDefault("sweep.interval", time.Minute)

	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
}
