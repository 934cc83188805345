package repository

import (
	"context"
	"reflect"

	"github.com/amirasaad/tenantledger/pkg/repository/account"
	"github.com/amirasaad/tenantledger/pkg/repository/apikey"
	"github.com/amirasaad/tenantledger/pkg/repository/business"
	"github.com/amirasaad/tenantledger/pkg/repository/idempotency"
	"github.com/amirasaad/tenantledger/pkg/repository/transaction"
	"github.com/amirasaad/tenantledger/pkg/repository/webhook"
)

// UnitOfWork defines the contract for transactional work and repository access.
//
// Repositories obtained from the UnitOfWork passed into Do share its
// transaction. Repositories obtained outside Do run each statement on its
// own connection in autocommit mode.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary. If fn returns an error,
	// the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	// GetRepository returns a repository of the requested interface type,
	// bound to the current session.
	GetRepository(repoType reflect.Type) (any, error)

	AccountRepository() (account.Repository, error)
	BusinessRepository() (business.Repository, error)
	TransactionRepository() (transaction.Repository, error)
	IdempotencyRepository() (idempotency.Repository, error)
	WebhookEndpointRepository() (webhook.EndpointRepository, error)
	WebhookEventRepository() (webhook.EventRepository, error)
	APIKeyRepository() (apikey.Repository, error)
}
