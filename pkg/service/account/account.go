// Package account opens and lists the accounts of a business.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/account"
	"github.com/amirasaad/tenantledger/pkg/domain/business"
	"github.com/amirasaad/tenantledger/pkg/domain/transaction"
	"github.com/amirasaad/tenantledger/pkg/repository"
	"github.com/google/uuid"
)

// Service provides account operations scoped to one business.
type Service struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
}

// New creates a new Service.
func New(uow repository.UnitOfWork, logger *slog.Logger) *Service {
	return &Service{uow: uow, logger: logger.With("component", "account")}
}

// Create opens an empty account in currency for businessID. An empty
// currency falls back to account.DefaultCurrency.
func (s *Service) Create(
	ctx context.Context,
	businessID uuid.UUID,
	currency string,
) (*account.Account, error) {
	logger := s.logger.With("business_id", businessID, "currency", currency)
	acc, err := account.New().
		WithBusinessID(businessID).
		WithCurrency(strings.TrimSpace(currency)).
		Build()
	if err != nil {
		logger.Warn("Rejected account", "error", err)
		return nil, err
	}

	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if _, err := getBusiness(ctx, uow, businessID); err != nil {
			return err
		}
		repo, err := uow.AccountRepository()
		if err != nil {
			return err
		}
		return repo.Create(ctx, acc)
	})
	if err != nil {
		logger.Error("Failed to create account", "error", err)
		return nil, err
	}
	logger.Info("Account created", "account_id", acc.ID)
	return acc, nil
}

// List returns the business together with its accounts, optionally filtered
// by currency.
func (s *Service) List(
	ctx context.Context,
	businessID uuid.UUID,
	currency string,
) (*business.Business, []*account.Account, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency != "" && !account.IsValidCurrencyCode(currency) {
		return nil, nil, account.ErrInvalidCurrencyCode
	}
	biz, err := getBusiness(ctx, s.uow, businessID)
	if err != nil {
		return nil, nil, err
	}
	repo, err := s.uow.AccountRepository()
	if err != nil {
		return nil, nil, err
	}
	accounts, err := repo.ListByBusiness(ctx, businessID, currency)
	if err != nil {
		s.logger.Error("Failed to list accounts", "business_id", businessID, "error", err)
		return nil, nil, err
	}
	return biz, accounts, nil
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Transactions returns the movements that touched accountID, newest first.
// The account must belong to businessID; a foreign account is reported as
// domain.ErrNotOwner. limit <= 0 uses the default page size.
func (s *Service) Transactions(
	ctx context.Context,
	businessID, accountID uuid.UUID,
	limit int,
) ([]*transaction.Transaction, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	if _, err := getBusiness(ctx, s.uow, businessID); err != nil {
		return nil, err
	}
	accounts, err := s.uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	acc, err := accounts.Get(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.AccountNotFound(domain.RoleAccount)
	}
	if err != nil {
		return nil, err
	}
	if !acc.OwnedBy(businessID) {
		return nil, domain.ErrNotOwner
	}

	txns, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	history, err := txns.ListByAccount(ctx, accountID, limit)
	if err != nil {
		s.logger.Error("Failed to list transactions",
			"business_id", businessID,
			"account_id", accountID,
			"error", err,
		)
		return nil, err
	}
	return history, nil
}

func getBusiness(
	ctx context.Context,
	uow repository.UnitOfWork,
	id uuid.UUID,
) (*business.Business, error) {
	repo, err := uow.BusinessRepository()
	if err != nil {
		return nil, err
	}
	b, err := repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrBusinessNotFound
	}
	return b, err
}
