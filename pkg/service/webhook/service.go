// Package webhook manages webhook endpoints and drains the outbox of
// webhook events.
package webhook

import (
	"context"
	"errors"
	"log/slog"

	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	"github.com/amirasaad/tenantledger/pkg/repository"
	"github.com/google/uuid"
)

// ErrInvalidStatus is returned when an event status filter is unknown.
var ErrInvalidStatus = errors.New("status must be one of pending, delivered, failed")

const defaultEventsLimit = 100

// Service registers endpoints and exposes the delivery audit trail.
type Service struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
}

func New(uow repository.UnitOfWork, logger *slog.Logger) *Service {
	return &Service{uow: uow, logger: logger.With("component", "webhook")}
}

// Register adds an active endpoint for businessID.
func (s *Service) Register(
	ctx context.Context,
	businessID uuid.UUID,
	url, secret string,
) (*webhook.Endpoint, error) {
	ep, err := webhook.NewEndpoint(businessID, url, secret)
	if err != nil {
		return nil, err
	}
	repo, err := s.uow.WebhookEndpointRepository()
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, ep); err != nil {
		s.logger.Error("Register endpoint failed", "business_id", businessID, "error", err)
		return nil, err
	}
	s.logger.Info("Webhook endpoint registered", "business_id", businessID, "endpoint_id", ep.ID)
	return ep, nil
}

func (s *Service) List(ctx context.Context, businessID uuid.UUID) ([]*webhook.Endpoint, error) {
	repo, err := s.uow.WebhookEndpointRepository()
	if err != nil {
		return nil, err
	}
	return repo.ListByBusiness(ctx, businessID)
}

// ListEvents returns the business's events, newest first. An empty status
// lists every status; limit <= 0 uses the default page size.
func (s *Service) ListEvents(
	ctx context.Context,
	businessID uuid.UUID,
	status string,
	limit int,
) ([]*webhook.Event, error) {
	st := webhook.EventStatus(status)
	switch st {
	case "", webhook.StatusPending, webhook.StatusDelivered, webhook.StatusFailed:
	default:
		return nil, ErrInvalidStatus
	}
	if limit <= 0 || limit > defaultEventsLimit {
		limit = defaultEventsLimit
	}
	repo, err := s.uow.WebhookEventRepository()
	if err != nil {
		return nil, err
	}
	return repo.ListByBusiness(ctx, businessID, st, limit)
}
