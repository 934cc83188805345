package transaction

import (
	"context"

	"github.com/amirasaad/tenantledger/pkg/domain/transaction"
	"github.com/google/uuid"
)

// Repository persists immutable transaction records.
type Repository interface {
	// Create inserts t. A second row with the same (business, idempotency key)
	// fails with domain.ErrAlreadyExists.
	Create(ctx context.Context, t *transaction.Transaction) error

	Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)

	// ListByAccount returns transactions touching accountID, newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*transaction.Transaction, error)
}
