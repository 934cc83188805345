package initializer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/amirasaad/tenantledger/infra"
	"github.com/amirasaad/tenantledger/infra/ratelimit"
	infrarepo "github.com/amirasaad/tenantledger/infra/repository"
	infrawebhook "github.com/amirasaad/tenantledger/infra/webhook"
	"github.com/amirasaad/tenantledger/pkg/app"
	"github.com/amirasaad/tenantledger/pkg/config"
)

const redisConnectTimeout = 5 * time.Second

// InitializeDependencies initializes all the application dependencies. Logs
// are written to logOut.
func InitializeDependencies(cfg *config.App, logOut io.Writer) (*app.Deps, error) {
	deps := &app.Deps{}
	logger := SetupLogger(logOut, cfg.Log)
	deps.Logger = logger

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	deps.DB = db

	if cfg.DB.AutoMigrate {
		if err := infra.RunMigrations(db, cfg.DB.MigrationsPath, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	deps.Uow = infrarepo.NewUoW(db)
	deps.Sender = infrawebhook.NewHTTPSender(cfg.Webhook.HTTPTimeout, logger)

	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		storage, err := ratelimit.NewRedisStorageFromURL(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit storage: %w", err)
		}
		deps.RateLimitStorage = storage
		logger.Info("Rate limits stored in redis", "prefix", cfg.Redis.KeyPrefix)
	} else {
		logger.Info("Rate limits stored in memory")
	}
	return deps, nil
}
