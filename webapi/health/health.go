// Package health reports whether the service can reach its database.
package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Routes registers GET /health. It needs no credentials.
func Routes(app *fiber.App, db Pinger) {
	app.Get("/health", Check(db))
}

// Check answers 200 with status "healthy" when the database responds and 503
// with status "unhealthy" otherwise.
func Check(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"database": "connected",
		})
	}
}
