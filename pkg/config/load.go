package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var authStrategies = map[string]bool{"apikey": true, "jwt": true}

func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	logger.Info("Loading environment variables")

	if len(envFilePath) == 0 {
		logger.Debug("No environment file specified, trying default .env")
		if err := godotenv.Load(); err != nil {
			logger.Warn("No .env file found in current directory")
		}
		return loadFromEnv()
	}

	for _, path := range envFilePath {
		logger.Debug("Looking for environment file", "path", path)
		foundPath, err := FindEnvFile(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}

		logger.Info("Loading environment from file", "path", foundPath)
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}
		return loadFromEnv()
	}

	logger.Info("No valid environment files found, using process environment")
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"db", maskValue(cfg.DB.Url),
		"auth_strategy", cfg.Auth.Strategy,
		"auth_jwt_secret", maskValue(cfg.Auth.Jwt.Secret),
		"redis", maskValue(cfg.Redis.URL),
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
		"idempotency_pending_ttl", cfg.Idempotency.PendingTTL,
		"webhook_poll_interval", cfg.Webhook.PollInterval,
		"webhook_max_attempts", cfg.Webhook.MaxAttempts,
	)
	return &cfg, nil
}

func (c *App) validate() error {
	if !authStrategies[c.Auth.Strategy] {
		return fmt.Errorf("unsupported AUTH_STRATEGY %q", c.Auth.Strategy)
	}
	if c.Auth.Strategy == "jwt" && c.Auth.Jwt.Secret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_STRATEGY=jwt")
	}
	if c.Webhook.MaxAttempts < 1 || c.Webhook.BatchSize < 1 || c.Webhook.Concurrency < 1 {
		return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS, WEBHOOK_BATCH_SIZE and WEBHOOK_CONCURRENCY must be positive")
	}
	// the last event of a batch is sent after rounds-1 slow sends
	rounds := (c.Webhook.BatchSize + c.Webhook.Concurrency - 1) / c.Webhook.Concurrency
	if worst := time.Duration(rounds) * c.Webhook.HTTPTimeout; worst >= c.Webhook.ClaimLease {
		return fmt.Errorf(
			"WEBHOOK_CLAIM_LEASE (%s) must be longer than a full batch of sends (%d rounds of WEBHOOK_HTTP_TIMEOUT %s = %s)",
			c.Webhook.ClaimLease, rounds, c.Webhook.HTTPTimeout, worst)
	}
	return nil
}

func maskValue(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
