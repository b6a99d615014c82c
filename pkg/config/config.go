package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Orders       OrdersConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

// Load reads the environment, fills the DSN from its parts when needed and
// rejects settings the services cannot run with.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}
	check(c.App.LogFormat == "" || slices.Contains([]string{"json", "console"}, strings.ToLower(c.App.LogFormat)),
		"%s must be json or console, got %q", EnvLogFormat, c.App.LogFormat)
	check(c.Checkout.MaxAttempts >= 1, "%s must be at least 1", EnvCheckoutMaxAttempts)
	check(c.Orders.PendingTTL > 0, "%s must be positive", EnvOrdersPendingTTL)
	check(c.Orders.CronInterval > 0, "%s must be positive", EnvCronInterval)
	check(c.RateLimit.Window >= 0, "%s must not be negative", EnvRateLimitWindow)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"FOODAPP_APP_ENV" required:"true"`
	Port         string   `envconfig:"FOODAPP_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"FOODAPP_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"FOODAPP_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"FOODAPP_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"FOODAPP_CORS_ORIGINS"`
}

// IsDev and IsProd compare case-insensitively.
func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

type ServiceConfig struct {
	Kind string `envconfig:"FOODAPP_SERVICE_KIND" default:"api"`

	// MetricsAddr serves /metrics from the workers. Empty disables it.
	MetricsAddr string `envconfig:"FOODAPP_WORKER_METRICS_ADDR"`
}

type DBConfig struct {
	DSN string `envconfig:"FOODAPP_DB_DSN"`

	LegacyHost     string `envconfig:"FOODAPP_DB_HOST"`
	LegacyPort     int    `envconfig:"FOODAPP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FOODAPP_DB_USER"`
	LegacyPassword string `envconfig:"FOODAPP_DB_PASSWORD"`
	LegacyName     string `envconfig:"FOODAPP_DB_NAME"`
	LegacySSLMode  string `envconfig:"FOODAPP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FOODAPP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODAPP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODAPP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODAPP_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery logs statements slower than this; zero silences gorm.
	SlowQuery time.Duration `envconfig:"FOODAPP_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODAPP_REDIS_URL"`
	Address      string        `envconfig:"FOODAPP_REDIS_ADDR"`
	Password     string        `envconfig:"FOODAPP_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODAPP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODAPP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODAPP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODAPP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODAPP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODAPP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for tokens minted by the auth service.
type JWTConfig struct {
	Secret            string `envconfig:"FOODAPP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FOODAPP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FOODAPP_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	Window        time.Duration `envconfig:"FOODAPP_RATE_LIMIT_WINDOW" default:"1m"`
	CartLimit     int           `envconfig:"FOODAPP_RATE_LIMIT_CART" default:"60"`
	CheckoutLimit int           `envconfig:"FOODAPP_RATE_LIMIT_CHECKOUT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FOODAPP_AUTO_MIGRATE" default:"false"`
	AutoSeed    bool `envconfig:"FOODAPP_AUTO_SEED" default:"false"`
}

// CheckoutConfig bounds the retry loop around serialization failures.
type CheckoutConfig struct {
	MaxAttempts int           `envconfig:"FOODAPP_CHECKOUT_MAX_ATTEMPTS" default:"3"`
	BaseBackoff time.Duration `envconfig:"FOODAPP_CHECKOUT_BASE_BACKOFF" default:"25ms"`
}

type OrdersConfig struct {
	PendingTTL       time.Duration `envconfig:"FOODAPP_ORDERS_PENDING_TTL" default:"2h"`
	OutboxRetention  time.Duration `envconfig:"FOODAPP_OUTBOX_RETENTION" default:"720h"`
	CronInterval     time.Duration `envconfig:"FOODAPP_CRON_INTERVAL" default:"15m"`
	CronLockDuration time.Duration `envconfig:"FOODAPP_CRON_LOCK_TTL" default:"10m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FOODAPP_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"FOODAPP_PUBSUB_ORDERS_TOPIC" default:"foodapp-order-events"`
	// CreateTopic creates OrdersTopic on startup when it is missing. Meant for
	// the emulator and local projects.
	CreateTopic bool `envconfig:"FOODAPP_PUBSUB_CREATE_TOPIC" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FOODAPP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FOODAPP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FOODAPP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// resolveDSN assembles a postgres URL from FOODAPP_DB_HOST and friends when
// FOODAPP_DB_DSN is unset.
func (db *DBConfig) resolveDSN() error {
	if db.DSN = strings.TrimSpace(db.DSN); db.DSN != "" {
		return nil
	}

	parts := map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName}
	var missing []string
	for _, env := range legacyDBEnvVars {
		if strings.TrimSpace(parts[env]) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is unset and so is %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		dsn.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
