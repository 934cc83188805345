// Package webapi provides the HTTP surface of the ledger. It is organized
// into sub-packages per resource:
//   - transaction: transfers and single-account credits/debits
//   - account: opening and listing accounts
//   - webhook: endpoint registration and the delivery audit trail
//   - health: database liveness
package webapi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/amirasaad/tenantledger/pkg/app"
	"github.com/amirasaad/tenantledger/pkg/metrics"
	accountweb "github.com/amirasaad/tenantledger/webapi/account"
	"github.com/amirasaad/tenantledger/webapi/common"
	"github.com/amirasaad/tenantledger/webapi/health"
	transactionweb "github.com/amirasaad/tenantledger/webapi/transaction"
	webhookweb "github.com/amirasaad/tenantledger/webapi/webhook"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) (*fiber.App, error) {
	sqlDB, err := a.Deps.DB.DB()
	if err != nil {
		return nil, err
	}

	fiberApp := fiber.New(fiber.Config{
		AppName: "tenantledger",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return common.ProblemDetailsJSON(c, fe.Message, nil, fe.Code)
			}
			a.Deps.Logger.Error("Unhandled request error", "path", c.Path(), "error", err)
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(countRequests)

	limiterCfg := limiter.Config{
		Max:        a.Config.RateLimit.MaxRequests,
		Expiration: a.Config.RateLimit.Window,
		// Clients are limited per credential; anonymous callers per address.
		KeyGenerator: func(c *fiber.Ctx) string {
			if key := c.Get(fiber.HeaderAuthorization); key != "" {
				return "key:" + key
			}
			return "ip:" + clientIP(c)
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				nil,
				"rate limit exceeded",
				fiber.StatusTooManyRequests,
			)
		},
	}
	if a.Deps.RateLimitStorage != nil {
		limiterCfg.Storage = a.Deps.RateLimitStorage
	}
	fiberApp.Use(limiter.New(limiterCfg))

	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	health.Routes(fiberApp, sqlDB)
	transactionweb.Routes(fiberApp, a.TransactionService, a.AuthService)
	accountweb.Routes(fiberApp, a.AccountService, a.AuthService)
	webhookweb.Routes(fiberApp, a.WebhookService, a.AuthService)
	return fiberApp, nil
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(c *fiber.Ctx) string {
	if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.IP()
}

func countRequests(c *fiber.Ctx) error {
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	route := "unmatched"
	if r := c.Route(); r != nil && r.Path != "/" {
		route = r.Path
	}
	metrics.HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
	return err
}
