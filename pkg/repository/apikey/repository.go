package apikey

import (
	"context"

	"github.com/amirasaad/tenantledger/pkg/domain/apikey"
)

type Repository interface {
	Create(ctx context.Context, k *apikey.APIKey) error
	// GetActiveByHash returns the active key with the given hash, or domain.ErrNotFound.
	GetActiveByHash(ctx context.Context, hash string) (*apikey.APIKey, error)
}
