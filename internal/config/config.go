package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Dhoini/seatsync/internal/billing"
)

// Config is the application configuration.
type Config struct {
	App struct {
		Port            string        `mapstructure:"port"`
		Env             string        `mapstructure:"env"`
		LogLevel        string        `mapstructure:"log_level"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	} `mapstructure:"app"`
	Database struct {
		DSN            string `mapstructure:"dsn"`
		MigrationsPath string `mapstructure:"migrations_path"`
		MaxOpenConns   int    `mapstructure:"max_open_conns"`
		MaxIdleConns   int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		SlotTTL  time.Duration `mapstructure:"slot_ttl"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Stripe struct {
		APIKey             string        `mapstructure:"api_key"`
		WebhookSecret      string        `mapstructure:"webhook_secret"`
		FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
		SignatureTolerance time.Duration `mapstructure:"signature_tolerance"`
		BackendURL         string        `mapstructure:"backend_url"`
	} `mapstructure:"stripe"`
	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`
	Billing   billing.Pricing `mapstructure:"billing"`
	Reconcile struct {
		Enabled  bool          `mapstructure:"enabled"`
		Schedule string        `mapstructure:"schedule"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"reconcile"`
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", 10*time.Second)
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.slot_ttl", 15*time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "organization_seats_changed")

	v.SetDefault("stripe.api_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.fetch_timeout", 10*time.Second)
	v.SetDefault("stripe.signature_tolerance", 5*time.Minute)
	v.SetDefault("stripe.backend_url", "")

	v.SetDefault("auth.jwt_secret", "")

	p := billing.DefaultPricing
	v.SetDefault("billing.cost_per_user_cents", int64(p.CostPerUser))
	v.SetDefault("billing.free_storage_gb", p.FreeStorageGB)
	v.SetDefault("billing.storage_overage_per_gb_cents", int64(p.StorageOveragePerGB))
	v.SetDefault("billing.fleet_map_monthly_cents", int64(p.FleetMapMonthly))
	v.SetDefault("billing.base_storage_gb", p.BaseStorageGB)
	v.SetDefault("billing.storage_per_member_gb", p.StoragePerMemberGB)

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.schedule", "*/15 * * * *")
	v.SetDefault("reconcile.timeout", 5*time.Minute)
}

// LoadConfig reads config.yml from dir (optional) and the environment.
// Outside production a .env file in dir is loaded first when present.
// Environment keys use underscores, e.g. STRIPE_WEBHOOK_SECRET.
func LoadConfig(dir string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		envFile := ".env"
		if dir != "" {
			envFile = dir + "/.env"
		}
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// ValidateStripe checks the settings the webhook endpoint cannot start without.
func (c *Config) ValidateStripe() error {
	var missing []string
	if c.Stripe.APIKey == "" {
		missing = append(missing, "STRIPE_API_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks the settings serve needs.
func (c *Config) Validate() error {
	if err := c.ValidateStripe(); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return errors.New("missing required configuration: DATABASE_DSN")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("missing required configuration: AUTH_JWT_SECRET")
	}
	return nil
}
