package business

import (
	"time"

	"github.com/google/uuid"
)

// Business is a tenant. Every account, transaction, idempotency key and
// webhook endpoint is scoped to exactly one business.
type Business struct {
	ID        uuid.UUID
	Name      string
	Email     string
	CreatedAt time.Time
}

func New(name, email string) *Business {
	return &Business{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
}
