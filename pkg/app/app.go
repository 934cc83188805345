package app

import (
	"log/slog"

	"github.com/amirasaad/tenantledger/pkg/config"
	"github.com/amirasaad/tenantledger/pkg/repository"
	"github.com/amirasaad/tenantledger/pkg/service/account"
	"github.com/amirasaad/tenantledger/pkg/service/auth"
	"github.com/amirasaad/tenantledger/pkg/service/idempotency"
	"github.com/amirasaad/tenantledger/pkg/service/transaction"
	"github.com/amirasaad/tenantledger/pkg/service/webhook"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps contains the infrastructure the services are built on.
type Deps struct {
	DB     *gorm.DB
	Uow    repository.UnitOfWork
	Sender webhook.Sender
	// RateLimitStorage is nil when limits are kept in process memory.
	RateLimitStorage fiber.Storage
	Logger           *slog.Logger
}

type App struct {
	Deps               *Deps
	Config             *config.App
	AuthService        *auth.Service
	AccountService     *account.Service
	TransactionService *transaction.Service
	WebhookService     *webhook.Service
	Worker             *webhook.Worker
}

func New(deps *Deps, cfg *config.App) *App {
	app := &App{
		Deps:   deps,
		Config: cfg,
	}

	authMap := map[string]func() *auth.Service{
		"jwt": func() *auth.Service {
			return auth.NewWithJWT(deps.Uow, cfg.Auth.Jwt, deps.Logger)
		},
	}
	if authFactory, ok := authMap[cfg.Auth.Strategy]; ok {
		app.AuthService = authFactory()
	} else {
		app.AuthService = auth.NewWithAPIKey(deps.Uow, deps.Logger)
	}

	ledger := idempotency.New(deps.Uow, deps.Logger, idempotency.WithPendingTTL(cfg.Idempotency.PendingTTL))
	app.AccountService = account.New(deps.Uow, deps.Logger)
	app.TransactionService = transaction.New(deps.Uow, ledger, deps.Logger)
	app.WebhookService = webhook.New(deps.Uow, deps.Logger)
	app.Worker = webhook.NewWorker(deps.Uow, deps.Sender, webhook.WorkerConfigFrom(cfg.Webhook), deps.Logger)
	return app
}
