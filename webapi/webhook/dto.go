package webhook

import (
	"encoding/json"
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
)

// RegisterRequest registers a delivery endpoint. Secret is echoed back to the
// receiver in the X-Webhook-Secret header.
type RegisterRequest struct {
	URL    string `json:"url" validate:"required,url,max=2048"`
	Secret string `json:"secret" validate:"required,min=8,max=255"`
}

// EventsQuery filters GET /webhooks/events.
type EventsQuery struct {
	Status string `query:"status"`
	Limit  int    `query:"limit"`
}

// EndpointDTO never carries the secret.
type EndpointDTO struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	URL        string    `json:"url"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

type EventDTO struct {
	ID            string          `json:"id"`
	EndpointID    string          `json:"webhook_endpoint_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
	LastError     *string         `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toEndpointDTO(e *webhook.Endpoint) EndpointDTO {
	return EndpointDTO{
		ID:         e.ID.String(),
		BusinessID: e.BusinessID.String(),
		URL:        e.URL,
		IsActive:   e.IsActive,
		CreatedAt:  e.CreatedAt,
	}
}

func toEventDTO(e *webhook.Event) EventDTO {
	return EventDTO{
		ID:            e.ID.String(),
		EndpointID:    e.EndpointID.String(),
		EventType:     string(e.Type),
		Payload:       e.Payload,
		Status:        string(e.Status),
		Attempts:      e.Attempts,
		LastAttemptAt: e.LastAttemptAt,
		NextAttemptAt: e.NextAttemptAt,
		LastError:     e.LastError,
		CreatedAt:     e.CreatedAt,
	}
}
