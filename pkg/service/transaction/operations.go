package transaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/transaction"
	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	"github.com/amirasaad/tenantledger/pkg/repository"
	"github.com/google/uuid"
)

// Transfer moves cmd.Amount between two accounts of the same currency. The
// source must belong to cmd.BusinessID; the destination may belong to anyone.
func (s *Service) Transfer(ctx context.Context, cmd TransferCommand) (result *TransferResult, err error) {
	start := time.Now()
	logger := s.logger.With(
		"operation", "transfer",
		"business_id", cmd.BusinessID,
		"idempotency_key", cmd.IdempotencyKey,
	)
	defer func() {
		s.observe("transfer", start, result != nil && result.Cached, err)
		logOutcome(logger, result != nil && result.Cached, err)
	}()

	if cmd.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	from, err := uuid.Parse(cmd.FromAccountID)
	if err != nil {
		return nil, domain.InvalidID("from_account_id")
	}
	to, err := uuid.Parse(cmd.ToAccountID)
	if err != nil {
		return nil, domain.InvalidID("to_account_id")
	}
	if from == to {
		return nil, domain.ErrSameAccount
	}

	return execute(ctx, s, cmd.BusinessID, cmd.IdempotencyKey,
		func(ctx context.Context, uow repository.UnitOfWork) (*TransferResult, error) {
			return s.transfer(ctx, uow, cmd, from, to)
		})
}

func (s *Service) transfer(
	ctx context.Context,
	uow repository.UnitOfWork,
	cmd TransferCommand,
	from, to uuid.UUID,
) (*TransferResult, error) {
	if err := requireBusiness(ctx, uow, cmd.BusinessID); err != nil {
		return nil, err
	}
	accounts, err := uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	locked, err := accounts.LockForUpdate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	source, ok := locked[from]
	if !ok {
		return nil, domain.AccountNotFound(domain.RoleSource)
	}
	if !source.OwnedBy(cmd.BusinessID) {
		return nil, domain.ErrNotOwner
	}
	dest, ok := locked[to]
	if !ok {
		return nil, domain.AccountNotFound(domain.RoleDestination)
	}
	if err := source.ValidateTransferTo(dest, cmd.Amount); err != nil {
		return nil, err
	}

	if _, err := accounts.AdjustBalance(ctx, from, -cmd.Amount); err != nil {
		return nil, err
	}
	if _, err := accounts.AdjustBalance(ctx, to, cmd.Amount); err != nil {
		return nil, err
	}

	now := s.now()
	txn := transaction.NewTransfer(cmd.BusinessID, from, to, cmd.Amount, cmd.IdempotencyKey, now)
	if err := createTransaction(ctx, uow, txn); err != nil {
		return nil, err
	}

	result := &TransferResult{
		TransactionID: txn.ID,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        cmd.Amount,
		Currency:      source.Currency,
		Status:        string(txn.Status),
	}
	if _, err := enqueue(ctx, uow, cmd.BusinessID, webhook.EventTransferCreated, webhook.TransferPayload{
		TransactionID: txn.ID,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        cmd.Amount,
		Currency:      source.Currency,
		Status:        string(txn.Status),
	}, now); err != nil {
		return nil, err
	}
	return result, nil
}

// CreditDebit adds cmd.Amount to, or takes it from, an account owned by
// cmd.BusinessID.
func (s *Service) CreditDebit(ctx context.Context, cmd CreditDebitCommand) (result *CreditDebitResult, err error) {
	start := time.Now()
	logger := s.logger.With(
		"operation", "credit_debit",
		"business_id", cmd.BusinessID,
		"transaction_type", cmd.TransactionType,
		"idempotency_key", cmd.IdempotencyKey,
	)
	defer func() {
		s.observe("credit_debit", start, result != nil && result.Cached, err)
		logOutcome(logger, result != nil && result.Cached, err)
	}()

	if cmd.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	typ, err := transaction.ParseSingleAccountType(cmd.TransactionType)
	if err != nil {
		return nil, err
	}
	accountID, err := uuid.Parse(cmd.AccountID)
	if err != nil {
		return nil, domain.InvalidID("account_id")
	}

	return execute(ctx, s, cmd.BusinessID, cmd.IdempotencyKey,
		func(ctx context.Context, uow repository.UnitOfWork) (*CreditDebitResult, error) {
			return s.creditDebit(ctx, uow, cmd, accountID, typ)
		})
}

func (s *Service) creditDebit(
	ctx context.Context,
	uow repository.UnitOfWork,
	cmd CreditDebitCommand,
	accountID uuid.UUID,
	typ transaction.Type,
) (*CreditDebitResult, error) {
	if err := requireBusiness(ctx, uow, cmd.BusinessID); err != nil {
		return nil, err
	}
	accounts, err := uow.AccountRepository()
	if err != nil {
		return nil, err
	}
	locked, err := accounts.LockForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	acct, ok := locked[accountID]
	if !ok {
		return nil, domain.AccountNotFound(domain.RoleAccount)
	}
	if !acct.OwnedBy(cmd.BusinessID) {
		return nil, domain.ErrNotOwner
	}

	delta := cmd.Amount
	eventType := webhook.EventCreditCreated
	if typ == transaction.TypeDebit {
		if err := acct.ValidateDebit(cmd.Amount); err != nil {
			return nil, err
		}
		delta = -cmd.Amount
		eventType = webhook.EventDebitCreated
	}
	newBalance, err := accounts.AdjustBalance(ctx, accountID, delta)
	if err != nil {
		return nil, err
	}

	now := s.now()
	txn := transaction.NewSingleAccount(cmd.BusinessID, accountID, typ, cmd.Amount, cmd.IdempotencyKey, now)
	if err := createTransaction(ctx, uow, txn); err != nil {
		return nil, err
	}

	result := &CreditDebitResult{
		TransactionID:   txn.ID,
		AccountID:       accountID,
		Amount:          cmd.Amount,
		Currency:        acct.Currency,
		TransactionType: string(typ),
		Status:          string(txn.Status),
		NewBalance:      newBalance,
	}
	if _, err := enqueue(ctx, uow, cmd.BusinessID, eventType, webhook.CreditDebitPayload{
		TransactionID:   txn.ID,
		AccountID:       accountID,
		Amount:          cmd.Amount,
		Currency:        acct.Currency,
		TransactionType: string(typ),
		Status:          string(txn.Status),
		NewBalance:      newBalance,
	}, now); err != nil {
		return nil, err
	}
	return result, nil
}

func createTransaction(ctx context.Context, uow repository.UnitOfWork, txn *transaction.Transaction) error {
	repo, err := uow.TransactionRepository()
	if err != nil {
		return err
	}
	return repo.Create(ctx, txn)
}

func logOutcome(logger *slog.Logger, cached bool, err error) {
	switch {
	case err == nil && cached:
		logger.Info("Operation replayed from idempotency cache")
	case err == nil:
		logger.Info("Operation committed")
	default:
		if _, ok := domain.AsError(err); ok {
			logger.Warn("Operation rejected", "error", err)
			return
		}
		logger.Error("Operation failed", "error", err)
	}
}
