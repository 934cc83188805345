package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirasaad/tenantledger/infra/initializer"
	"github.com/amirasaad/tenantledger/pkg/app"
	"github.com/amirasaad/tenantledger/pkg/config"
	"github.com/amirasaad/tenantledger/webapi"
	log "github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, err := initializer.InitializeDependencies(cfg, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	if sqlDB, err := deps.DB.DB(); err == nil {
		defer sqlDB.Close() //nolint: errcheck
	}
	if deps.RateLimitStorage != nil {
		defer deps.RateLimitStorage.Close() //nolint: errcheck
	}

	a := app.New(deps, cfg)
	fiberApp, err := webapi.SetupApp(a)
	if err != nil {
		return fmt.Errorf("failed to set up http app: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	deps.Logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
		"auth_strategy", cfg.Auth.Strategy,
	)
	return serve(ctx, a, fiberApp, addr, cfg.Server.ShutdownTimeout)
}

// serve runs the HTTP server and, when enabled, the webhook worker until ctx
// is done. Shutdown drains in-flight requests first and then waits for the
// worker to finish its batch.
func serve(
	ctx context.Context,
	a *app.App,
	fiberApp *fiber.App,
	addr string,
	shutdownTimeout time.Duration,
) error {
	logger := a.Deps.Logger
	if a.Config.Webhook.Enabled {
		if err := a.Worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start webhook worker: %w", err)
		}
	} else {
		logger.Warn("Webhook delivery disabled; events stay pending")
	}

	listenErr := make(chan error, 1)
	go func() { listenErr <- fiberApp.Listen(addr) }()

	var err error
	select {
	case err = <-listenErr:
		logger.Error("Server stopped", "error", err)
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := fiberApp.ShutdownWithContext(shutdownCtx); shutdownErr != nil {
		err = errors.Join(err, fmt.Errorf("http shutdown: %w", shutdownErr))
	}
	if a.Config.Webhook.Enabled {
		if stopErr := a.Worker.Stop(shutdownCtx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("worker shutdown: %w", stopErr))
		}
	}
	slog.Default().Info("Shutdown complete")
	return err
}
