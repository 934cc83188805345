// Package transaction implements the ledger's balance-moving operations.
//
// Every operation runs as one unit of work: the accounts involved are locked
// in a fixed order, validated, mutated, and the transaction record, its
// outbox events and the idempotency outcome are written before commit.
// Business-rule rejections are returned as *domain.Error values and leave no
// trace in the store.
package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/idempotency"
	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	"github.com/amirasaad/tenantledger/pkg/metrics"
	"github.com/amirasaad/tenantledger/pkg/repository"
	idemsvc "github.com/amirasaad/tenantledger/pkg/service/idempotency"
	"github.com/google/uuid"
)

// Service is the transaction engine.
type Service struct {
	uow    repository.UnitOfWork
	ledger *idemsvc.Ledger
	now    func() time.Time
	logger *slog.Logger
}

func New(uow repository.UnitOfWork, ledger *idemsvc.Ledger, logger *slog.Logger) *Service {
	return &Service{
		uow:    uow,
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "transaction"),
	}
}

// TransferCommand moves Amount from one account to another. The account ids
// are the raw client strings; they are parsed here so the error can name the
// offending field.
type TransferCommand struct {
	BusinessID     uuid.UUID
	FromAccountID  string
	ToAccountID    string
	Amount         int64
	IdempotencyKey string
}

type TransferResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	FromAccountID uuid.UUID `json:"from_account_id"`
	ToAccountID   uuid.UUID `json:"to_account_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Cached        bool      `json:"cached,omitempty"`
}

func (r *TransferResult) markCached() { r.Cached = true }

// CreditDebitCommand adds to or takes from a single account.
type CreditDebitCommand struct {
	BusinessID      uuid.UUID
	AccountID       string
	Amount          int64
	TransactionType string
	IdempotencyKey  string
}

type CreditDebitResult struct {
	TransactionID   uuid.UUID `json:"transaction_id"`
	AccountID       uuid.UUID `json:"account_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	TransactionType string    `json:"transaction_type"`
	Status          string    `json:"status"`
	NewBalance      int64     `json:"new_balance"`
	Cached          bool      `json:"cached,omitempty"`
}

func (r *CreditDebitResult) markCached() { r.Cached = true }

type cacheable[T any] interface {
	*T
	markCached()
}

// execute wraps unit with the idempotency protocol. Without a key the unit
// simply runs in its own transaction.
func execute[T any, P cacheable[T]](
	ctx context.Context,
	s *Service,
	businessID uuid.UUID,
	key string,
	unit func(ctx context.Context, uow repository.UnitOfWork) (P, error),
) (P, error) {
	if key != "" {
		res, err := s.ledger.Reserve(ctx, businessID, key)
		if err != nil {
			return nil, err
		}
		switch res.Outcome {
		case idempotency.Duplicate:
			out := P(new(T))
			if err := json.Unmarshal(res.Response, out); err != nil {
				return nil, fmt.Errorf("decode cached response: %w", err)
			}
			out.markCached()
			return out, nil
		case idempotency.Conflict:
			return nil, domain.ErrOperationInProgress
		}
	}

	// Once the key is pending the operation runs to commit or rollback even
	// if the client goes away.
	ctx = context.WithoutCancel(ctx)

	var out P
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var err error
		out, err = unit(ctx, uow)
		if err != nil {
			return err
		}
		if key == "" {
			return nil
		}
		body, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		return s.ledger.Complete(ctx, uow, businessID, key, body)
	})
	if err != nil {
		if key != "" {
			s.ledger.Release(ctx, businessID, key)
		}
		return nil, err
	}
	return out, nil
}

// requireBusiness maps a missing tenant row to BusinessNotFound.
func requireBusiness(ctx context.Context, uow repository.UnitOfWork, businessID uuid.UUID) error {
	repo, err := uow.BusinessRepository()
	if err != nil {
		return err
	}
	if _, err := repo.Get(ctx, businessID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrBusinessNotFound
		}
		return err
	}
	return nil
}

// enqueue writes one outbox event per active endpoint of the business.
func enqueue(
	ctx context.Context,
	uow repository.UnitOfWork,
	businessID uuid.UUID,
	typ webhook.EventType,
	payload any,
	now time.Time,
) (int, error) {
	endpoints, err := uow.WebhookEndpointRepository()
	if err != nil {
		return 0, err
	}
	active, err := endpoints.ListActiveByBusiness(ctx, businessID)
	if err != nil {
		return 0, err
	}
	if len(active) == 0 {
		return 0, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	events := make([]*webhook.Event, 0, len(active))
	for _, ep := range active {
		events = append(events, webhook.NewEvent(ep.ID, typ, body, now))
	}
	repo, err := uow.WebhookEventRepository()
	if err != nil {
		return 0, err
	}
	if err := repo.Create(ctx, events...); err != nil {
		return 0, err
	}
	return len(events), nil
}

// observe records the outcome of one operation.
func (s *Service) observe(operation string, start time.Time, cached bool, err error) {
	metrics.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	outcome := "success"
	switch {
	case err == nil && cached:
		outcome = "cached"
	case errors.Is(err, domain.ErrOperationInProgress):
		outcome = "in_progress"
	case err != nil:
		if e, ok := domain.AsError(err); ok {
			outcome = string(e.Code)
		} else {
			outcome = "error"
		}
	}
	metrics.Operations.WithLabelValues(operation, outcome).Inc()
}
