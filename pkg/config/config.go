package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the backend reads.
	EnvPrefix = "savora"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cron         CronConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SAVORA_APP_ENV" required:"true"`
	Port         string `envconfig:"SAVORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SAVORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SAVORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SAVORA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SAVORA_DB_DSN"`
	Driver string `envconfig:"SAVORA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SAVORA_DB_HOST"`
	Port     int    `envconfig:"SAVORA_DB_PORT" default:"5432"`
	User     string `envconfig:"SAVORA_DB_USER"`
	Password string `envconfig:"SAVORA_DB_PASSWORD"`
	Name     string `envconfig:"SAVORA_DB_NAME"`
	SSLMode  string `envconfig:"SAVORA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SAVORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SAVORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SAVORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SAVORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// ensureDSN assembles a DSN from discrete host settings when one is not given.
func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either SAVORA_DB_DSN or SAVORA_DB_HOST/USER/NAME must be set")
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	query := url.Values{}
	query.Set("sslmode", d.SSLMode)
	dsn.RawQuery = query.Encode()
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SAVORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SAVORA_REDIS_ADDR"`
	Password     string        `envconfig:"SAVORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SAVORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SAVORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SAVORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SAVORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SAVORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SAVORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SAVORA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SAVORA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SAVORA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"SAVORA_CRON_INTERVAL" default:"5m"`
	SweepInterval       time.Duration `envconfig:"SAVORA_CRON_SWEEP_INTERVAL" default:"30m"`
	CartTTL             time.Duration `envconfig:"SAVORA_CART_TTL" default:"72h"`
	OutboxRetentionDays int           `envconfig:"SAVORA_OUTBOX_RETENTION_DAYS" default:"14"`
}

type OutboxConfig struct {
	PollInterval time.Duration `envconfig:"SAVORA_OUTBOX_POLL_INTERVAL" default:"5s"`
	BatchSize    int           `envconfig:"SAVORA_OUTBOX_BATCH_SIZE" default:"100"`
	MaxAttempts  int           `envconfig:"SAVORA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SAVORA_AUTO_MIGRATE" default:"false"`
}
