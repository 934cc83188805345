package business

import (
	"context"

	"github.com/amirasaad/tenantledger/pkg/domain/business"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, b *business.Business) error
	Get(ctx context.Context, id uuid.UUID) (*business.Business, error)
}
