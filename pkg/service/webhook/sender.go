package webhook

import (
	"context"
	"encoding/json"

	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	"github.com/google/uuid"
)

// Delivery is one POST of an event to an endpoint.
type Delivery struct {
	URL       string
	Secret    string
	EventID   uuid.UUID
	EventType webhook.EventType
	Attempt   int
	Payload   json.RawMessage
}

// Sender performs the HTTP call. It returns the response status, or an error
// when no response was received.
type Sender interface {
	Send(ctx context.Context, d Delivery) (int, error)
}
