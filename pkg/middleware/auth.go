// Package middleware holds fiber middleware shared by the HTTP routes.
package middleware

import (
	"context"
	"errors"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const businessIDKey = "business_id"

// Authenticator resolves the raw Authorization header to a business.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (uuid.UUID, error)
}

// Authenticated rejects requests whose Authorization header does not resolve
// to a business and stores the business id in the request locals otherwise.
func Authenticated(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				return problem(c, fiber.StatusUnauthorized, "Unauthorized", "missing or invalid credential")
			}
			return problem(c, fiber.StatusInternalServerError, "Internal Server Error", "authentication unavailable")
		}
		c.Locals(businessIDKey, businessID)
		return c.Next()
	}
}

// BusinessID returns the id stored by Authenticated.
func BusinessID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(businessIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func problem(c *fiber.Ctx, status int, title, detail string) error {
	return c.Status(status).JSON(fiber.Map{
		"type":     "about:blank",
		"title":    title,
		"status":   status,
		"detail":   detail,
		"instance": c.OriginalURL(),
	}, "application/problem+json")
}
