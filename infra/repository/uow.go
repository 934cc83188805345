package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/amirasaad/tenantledger/pkg/repository"
	"github.com/amirasaad/tenantledger/pkg/repository/account"
	"github.com/amirasaad/tenantledger/pkg/repository/apikey"
	"github.com/amirasaad/tenantledger/pkg/repository/business"
	"github.com/amirasaad/tenantledger/pkg/repository/idempotency"
	"github.com/amirasaad/tenantledger/pkg/repository/transaction"
	"github.com/amirasaad/tenantledger/pkg/repository/webhook"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
// Every repository handed out by a UoW created inside Do shares the same
// *gorm.DB transaction.
type UoW struct {
	db           *gorm.DB
	tx           *gorm.DB
	repoRegistry map[reflect.Type]func(*gorm.DB) any
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{
		db: db,
		repoRegistry: map[reflect.Type]func(*gorm.DB) any{
			typeOf[account.Repository]():         func(db *gorm.DB) any { return NewAccountRepository(db) },
			typeOf[business.Repository]():        func(db *gorm.DB) any { return NewBusinessRepository(db) },
			typeOf[transaction.Repository]():     func(db *gorm.DB) any { return NewTransactionRepository(db) },
			typeOf[idempotency.Repository]():     func(db *gorm.DB) any { return NewIdempotencyRepository(db) },
			typeOf[webhook.EndpointRepository](): func(db *gorm.DB) any { return NewWebhookEndpointRepository(db) },
			typeOf[webhook.EventRepository]():    func(db *gorm.DB) any { return NewWebhookEventRepository(db) },
			typeOf[apikey.Repository]():          func(db *gorm.DB) any { return NewAPIKeyRepository(db) },
		},
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Do runs fn in a transaction boundary, providing a UoW bound to it.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnUow := &UoW{db: u.db, tx: tx, repoRegistry: u.repoRegistry}
		return fn(txnUow)
	})
}

// GetRepository returns the repository registered for repoType, bound to the
// open transaction or, outside Do, to the pool.
func (u *UoW) GetRepository(repoType reflect.Type) (any, error) {
	constructor, ok := u.repoRegistry[repoType]
	if !ok {
		return nil, fmt.Errorf("unsupported repository type: %v", repoType)
	}
	return constructor(u.session()), nil
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func get[T any](u *UoW) (T, error) {
	var zero T
	repoAny, err := u.GetRepository(typeOf[T]())
	if err != nil {
		return zero, err
	}
	repo, ok := repoAny.(T)
	if !ok {
		return zero, fmt.Errorf("invalid repository type for %v", typeOf[T]())
	}
	return repo, nil
}

func (u *UoW) AccountRepository() (account.Repository, error) {
	return get[account.Repository](u)
}

func (u *UoW) BusinessRepository() (business.Repository, error) {
	return get[business.Repository](u)
}

func (u *UoW) TransactionRepository() (transaction.Repository, error) {
	return get[transaction.Repository](u)
}

func (u *UoW) IdempotencyRepository() (idempotency.Repository, error) {
	return get[idempotency.Repository](u)
}

func (u *UoW) WebhookEndpointRepository() (webhook.EndpointRepository, error) {
	return get[webhook.EndpointRepository](u)
}

func (u *UoW) WebhookEventRepository() (webhook.EventRepository, error) {
	return get[webhook.EventRepository](u)
}

func (u *UoW) APIKeyRepository() (apikey.Repository, error) {
	return get[apikey.Repository](u)
}
