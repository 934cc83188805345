// Package webhook holds the outbox model: registered endpoints, the events
// queued for them and the retry policy that drives delivery.
package webhook

import (
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidURL is returned when an endpoint URL is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("webhook url must be an absolute http or https url")

// EventType names the notification sent to an endpoint.
type EventType string

const (
	EventTransferCreated EventType = "transfer.created"
	EventCreditCreated   EventType = "credit.created"
	EventDebitCreated    EventType = "debit.created"
)

// EventStatus is the delivery state of an event.
//
//	pending -> delivered
//	pending -> failed     (terminal, never retried)
type EventStatus string

const (
	StatusPending   EventStatus = "pending"
	StatusDelivered EventStatus = "delivered"
	StatusFailed    EventStatus = "failed"
)

// Endpoint is a business-registered receiver of events.
type Endpoint struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	URL        string
	Secret     string
	IsActive   bool
	CreatedAt  time.Time
}

// NewEndpoint validates rawURL and returns an active endpoint.
func NewEndpoint(businessID uuid.UUID, rawURL, secret string) (*Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}
	return &Endpoint{
		ID:         uuid.New(),
		BusinessID: businessID,
		URL:        rawURL,
		Secret:     secret,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Event is one pending or settled notification for one endpoint.
type Event struct {
	ID            uuid.UUID
	EndpointID    uuid.UUID
	Type          EventType
	Payload       json.RawMessage
	Status        EventStatus
	Attempts      int
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	LastError     *string
	CreatedAt     time.Time
	// LeaseID identifies the claim currently holding the event. It is zero
	// for events that are not claimed.
	LeaseID uuid.UUID
}

// NewEvent builds a pending event carrying payload for endpointID.
func NewEvent(endpointID uuid.UUID, typ EventType, payload json.RawMessage, now time.Time) *Event {
	return &Event{
		ID:         uuid.New(),
		EndpointID: endpointID,
		Type:       typ,
		Payload:    payload,
		Status:     StatusPending,
		CreatedAt:  now,
	}
}

// TransferPayload is the body of transfer.created.
type TransferPayload struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	FromAccountID uuid.UUID `json:"from_account_id"`
	ToAccountID   uuid.UUID `json:"to_account_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
}

// CreditDebitPayload is the body of credit.created and debit.created.
type CreditDebitPayload struct {
	TransactionID   uuid.UUID `json:"transaction_id"`
	AccountID       uuid.UUID `json:"account_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	TransactionType string    `json:"transaction_type"`
	Status          string    `json:"status"`
	NewBalance      int64     `json:"new_balance"`
}
