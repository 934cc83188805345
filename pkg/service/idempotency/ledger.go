// Package idempotency guards client operations with per-business keys.
//
// A key is reserved before the operation runs and committed with the
// operation's response inside the same unit of work, so a key is only ever
// marked successful together with the mutation it describes.
package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain/idempotency"
	"github.com/amirasaad/tenantledger/pkg/repository"
	"github.com/google/uuid"
)

// DefaultPendingTTL is how long a pending reservation blocks its key before
// it is treated as abandoned.
const DefaultPendingTTL = 5 * time.Minute

// Ledger reserves, completes and releases idempotency keys.
type Ledger struct {
	uow        repository.UnitOfWork
	pendingTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPendingTTL overrides DefaultPendingTTL.
func WithPendingTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.pendingTTL = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(uow repository.UnitOfWork, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		uow:        uow,
		pendingTTL: DefaultPendingTTL,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("component", "idempotency"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve claims key for businessID. The reservation is committed on its own
// so that concurrent requests observe it while the operation is running.
func (l *Ledger) Reserve(
	ctx context.Context,
	businessID uuid.UUID,
	key string,
) (idempotency.Reservation, error) {
	repo, err := l.uow.IdempotencyRepository()
	if err != nil {
		return idempotency.Reservation{}, err
	}
	now := l.now()
	res, err := repo.Reserve(ctx, businessID, key, now, now.Add(-l.pendingTTL))
	if err != nil {
		return idempotency.Reservation{}, fmt.Errorf("reserve idempotency key: %w", err)
	}
	l.logger.Debug("Idempotency key reserved",
		"business_id", businessID,
		"key", key,
		"outcome", res.Outcome.String(),
	)
	return res, nil
}

// Complete stores body under key. uow must be the unit of work carrying the
// operation's mutations.
func (l *Ledger) Complete(
	ctx context.Context,
	uow repository.UnitOfWork,
	businessID uuid.UUID,
	key string,
	body []byte,
) error {
	repo, err := uow.IdempotencyRepository()
	if err != nil {
		return err
	}
	if err := repo.Complete(ctx, businessID, key, body, l.now()); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release makes key reusable after the operation was rejected or failed.
// Errors are logged and swallowed: an unreleased key expires after the
// pending TTL anyway.
func (l *Ledger) Release(ctx context.Context, businessID uuid.UUID, key string) {
	repo, err := l.uow.IdempotencyRepository()
	if err == nil {
		err = repo.Release(ctx, businessID, key, l.now())
	}
	if err != nil {
		l.logger.Warn("Failed to release idempotency key",
			"business_id", businessID,
			"key", key,
			"error", err,
		)
	}
}
