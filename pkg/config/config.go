package config

import (
	"time"
)

type DB struct {
	Url            string        `envconfig:"URL"`
	MaxOpenConns   int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns   int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLife    time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate    bool          `envconfig:"AUTO_MIGRATE" default:"false"`
	MigrationsPath string        `envconfig:"MIGRATIONS_PATH" default:"internal/migrations"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET"`
	Issuer string        `envconfig:"ISSUER" default:""`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

type Auth struct {
	Strategy string `envconfig:"STRATEGY" default:"apikey"`
	Jwt      *Jwt   `envconfig:"JWT"`
}

type Redis struct {
	URL       string `envconfig:"URL" default:""`
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"ratelimit:"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Idempotency struct {
	// PendingTTL is how long a pending reservation is honoured before it is
	// considered abandoned and may be reclaimed.
	PendingTTL time.Duration `envconfig:"PENDING_TTL" default:"5m"`
}

type Webhook struct {
	Enabled          bool          `envconfig:"ENABLED" default:"true"`
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	ErrorBackoff     time.Duration `envconfig:"ERROR_BACKOFF" default:"5s"`
	BatchSize        int           `envconfig:"BATCH_SIZE" default:"10"`
	Concurrency      int           `envconfig:"CONCURRENCY" default:"4"`
	MaxAttempts      int           `envconfig:"MAX_ATTEMPTS" default:"5"`
	BackoffStep      time.Duration `envconfig:"BACKOFF_STEP" default:"10s"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	ClaimLease       time.Duration `envconfig:"CLAIM_LEASE" default:"1m"`
	BreakerFailures  uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	BreakerOpenDelay time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[ledger]"`
}

type Server struct {
	Scheme          string        `envconfig:"SCHEME" default:"http"`
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type App struct {
	Env         string       `envconfig:"APP_ENV" default:"development"`
	Server      *Server      `envconfig:"SERVER"`
	Log         *Log         `envconfig:"LOG"`
	DB          *DB          `envconfig:"DATABASE"`
	Auth        *Auth        `envconfig:"AUTH"`
	Redis       *Redis       `envconfig:"REDIS"`
	RateLimit   *RateLimit   `envconfig:"RATE_LIMIT"`
	Idempotency *Idempotency `envconfig:"IDEMPOTENCY"`
	Webhook     *Webhook     `envconfig:"WEBHOOK"`
}
