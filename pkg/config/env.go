package config

// EnvPrefix is passed to envconfig; every field also carries its full name in a tag.
const EnvPrefix = "FOODAPP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "FOODAPP_APP_ENV"
	EnvPort      = "FOODAPP_APP_PORT"
	EnvLogLevel  = "FOODAPP_LOG_LEVEL"
	EnvLogFormat = "FOODAPP_LOG_FORMAT"
	EnvDBDSN     = "FOODAPP_DB_DSN"
	EnvDBHost    = "FOODAPP_DB_HOST"
	EnvDBPort    = "FOODAPP_DB_PORT"
	EnvDBUser    = "FOODAPP_DB_USER"
	EnvDBName    = "FOODAPP_DB_NAME"
	EnvRedisURL  = "FOODAPP_REDIS_URL"
	EnvJWTSecret = "FOODAPP_JWT_SECRET"
	EnvJWTIssuer = "FOODAPP_JWT_ISSUER"

	EnvCheckoutMaxAttempts = "FOODAPP_CHECKOUT_MAX_ATTEMPTS"
	EnvOrdersPendingTTL    = "FOODAPP_ORDERS_PENDING_TTL"
	EnvGCPProjectID        = "FOODAPP_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic   = "FOODAPP_PUBSUB_ORDERS_TOPIC"
	EnvCronInterval        = "FOODAPP_CRON_INTERVAL"
	EnvRateLimitWindow     = "FOODAPP_RATE_LIMIT_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
