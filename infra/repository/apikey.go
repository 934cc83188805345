package repository

import (
	"context"

	"github.com/amirasaad/tenantledger/pkg/domain/apikey"
	repoapikey "github.com/amirasaad/tenantledger/pkg/repository/apikey"
	"gorm.io/gorm"
)

type apiKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) repoapikey.Repository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) Create(ctx context.Context, k *apikey.APIKey) error {
	m := APIKey{
		ID:         k.ID,
		BusinessID: k.BusinessID,
		KeyHash:    k.KeyHash,
		IsActive:   k.IsActive,
		CreatedAt:  k.CreatedAt,
	}
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *apiKeyRepository) GetActiveByHash(ctx context.Context, hash string) (*apikey.APIKey, error) {
	var m APIKey
	err := r.db.WithContext(ctx).
		Where("key_hash = ? AND is_active = ?", hash, true).
		First(&m).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return &apikey.APIKey{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		KeyHash:    m.KeyHash,
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt,
	}, nil
}
