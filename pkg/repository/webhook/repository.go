package webhook

import (
	"context"
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	"github.com/google/uuid"
)

// EndpointRepository stores registered webhook endpoints.
type EndpointRepository interface {
	Create(ctx context.Context, e *webhook.Endpoint) error
	Get(ctx context.Context, id uuid.UUID) (*webhook.Endpoint, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*webhook.Endpoint, error)
	ListActiveByBusiness(ctx context.Context, businessID uuid.UUID) ([]*webhook.Endpoint, error)
}

// EventRepository is the outbox. Rows are created by the transaction engine
// and mutated only by the delivery worker.
type EventRepository interface {
	Create(ctx context.Context, events ...*webhook.Event) error

	// ClaimDue locks up to limit pending events that are due at now, skipping
	// rows locked by other workers. The claimed rows get a fresh LeaseID and
	// next_attempt_at = leaseUntil, which hides them from other claims until
	// the lease runs out. Must run inside a unit of work.
	ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*webhook.Event, error)

	// Renew extends the lease to until, right before a send. It fails with
	// domain.ErrNotFound when the lease expired at now or another claim has
	// taken the event.
	Renew(ctx context.Context, id, lease uuid.UUID, now, until time.Time) error

	// The settle methods below apply only while lease still holds the event;
	// otherwise they return domain.ErrNotFound.
	MarkDelivered(ctx context.Context, id, lease uuid.UUID, attempts int, at time.Time) error
	MarkFailed(ctx context.Context, id, lease uuid.UUID, attempts int, at time.Time, lastErr string) error
	ScheduleRetry(ctx context.Context, id, lease uuid.UUID, attempts int, at, next time.Time, lastErr string) error

	// Release returns a claimed event to the queue without counting an attempt.
	Release(ctx context.Context, id, lease uuid.UUID, next time.Time) error

	Get(ctx context.Context, id uuid.UUID) (*webhook.Event, error)

	// ListByBusiness returns events for the business's endpoints, newest first,
	// optionally filtered by status.
	ListByBusiness(ctx context.Context, businessID uuid.UUID, status webhook.EventStatus, limit int) ([]*webhook.Event, error)
}
