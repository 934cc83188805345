package account

import (
	"context"

	"github.com/amirasaad/tenantledger/pkg/domain/account"
	"github.com/google/uuid"
)

// Repository defines data access for accounts. The locking methods must be
// called on a repository bound to an open unit of work.
type Repository interface {
	// Create inserts a new account.
	Create(ctx context.Context, a *account.Account) error

	// Get returns the account with id, or domain.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)

	// LockForUpdate locks the given rows with SELECT ... FOR UPDATE, one at a
	// time in ascending id order, and returns the ones that exist keyed by id.
	// Missing ids are simply absent from the result.
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*account.Account, error)

	// AdjustBalance adds delta to the balance and returns the new balance. The
	// update is refused with domain.ErrInsufficientBalance if it would go negative.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) (int64, error)

	// ListByBusiness returns the business's accounts, optionally filtered by currency.
	ListByBusiness(ctx context.Context, businessID uuid.UUID, currency string) ([]*account.Account, error)
}
