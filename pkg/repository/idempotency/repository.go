package idempotency

import (
	"context"
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain/idempotency"
	"github.com/google/uuid"
)

// Repository stores idempotency keys.
type Repository interface {
	// Reserve writes a pending row for (businessID, key) unless a live one
	// exists. A failed row, or a pending row created before staleBefore, is
	// taken over. The write is race safe on the primary key.
	Reserve(ctx context.Context, businessID uuid.UUID, key string, now, staleBefore time.Time) (idempotency.Reservation, error)

	// Complete moves a pending row to success and stores the response body.
	// It returns domain.ErrNotFound if the row is no longer pending.
	Complete(ctx context.Context, businessID uuid.UUID, key string, body []byte, now time.Time) error

	// Release marks a pending row failed so the key can be used again.
	Release(ctx context.Context, businessID uuid.UUID, key string, now time.Time) error

	Get(ctx context.Context, businessID uuid.UUID, key string) (*idempotency.Record, error)
}
