// Package webhook exposes endpoint registration and the delivery audit trail
// over HTTP.
package webhook

import (
	"github.com/amirasaad/tenantledger/pkg/middleware"
	whsvc "github.com/amirasaad/tenantledger/pkg/service/webhook"
	"github.com/amirasaad/tenantledger/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers webhook endpoints for the authenticated business.
//
// Routes:
//   - POST /webhooks                 : Register a delivery endpoint.
//   - GET  /webhooks                 : List registered endpoints.
//   - GET  /webhooks/events?status=  : List events and their delivery state.
func Routes(app *fiber.App, svc *whsvc.Service, auth middleware.Authenticator) {
	group := app.Group("/webhooks", middleware.Authenticated(auth))
	group.Post("/", Register(svc))
	group.Get("/", List(svc))
	group.Get("/events", ListEvents(svc))
}

func Register(svc *whsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, ok := middleware.BusinessID(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, "missing business context", fiber.StatusUnauthorized)
		}
		input, err := common.BindAndValidate[RegisterRequest](c)
		if input == nil {
			return err
		}
		ep, err := svc.Register(c.UserContext(), businessID, input.URL, input.Secret)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to register webhook", err)
		}
		return c.Status(fiber.StatusCreated).JSON(toEndpointDTO(ep))
	}
}

func List(svc *whsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, ok := middleware.BusinessID(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, "missing business context", fiber.StatusUnauthorized)
		}
		endpoints, err := svc.List(c.UserContext(), businessID)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list webhooks", err)
		}
		out := make([]EndpointDTO, 0, len(endpoints))
		for _, ep := range endpoints {
			out = append(out, toEndpointDTO(ep))
		}
		return c.JSON(out)
	}
}

// ListEvents returns the newest events first, optionally filtered by status.
func ListEvents(svc *whsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, ok := middleware.BusinessID(c)
		if !ok {
			return common.ProblemDetailsJSON(c, "Unauthorized", nil, "missing business context", fiber.StatusUnauthorized)
		}
		var q EventsQuery
		if err := c.QueryParser(&q); err != nil {
			return common.ProblemDetailsJSON(c, "Invalid query", err, err.Error(), fiber.StatusBadRequest)
		}
		events, err := svc.ListEvents(c.UserContext(), businessID, q.Status, q.Limit)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list webhook events", err)
		}
		out := make([]EventDTO, 0, len(events))
		for _, ev := range events {
			out = append(out, toEventDTO(ev))
		}
		return c.JSON(out)
	}
}
