package repository

import (
	"context"

	"github.com/amirasaad/tenantledger/pkg/domain/business"
	repobusiness "github.com/amirasaad/tenantledger/pkg/repository/business"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type businessRepository struct {
	db *gorm.DB
}

func NewBusinessRepository(db *gorm.DB) repobusiness.Repository {
	return &businessRepository{db: db}
}

func (r *businessRepository) Create(ctx context.Context, b *business.Business) error {
	m := Business{ID: b.ID, Name: b.Name, Email: b.Email, CreatedAt: b.CreatedAt}
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *businessRepository) Get(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	var m Business
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return &business.Business{ID: m.ID, Name: m.Name, Email: m.Email, CreatedAt: m.CreatedAt}, nil
}
