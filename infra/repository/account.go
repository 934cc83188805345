package repository

import (
	"bytes"
	"context"
	"slices"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/account"
	repoaccount "github.com/amirasaad/tenantledger/pkg/repository/account"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates an account repository on db.
func NewAccountRepository(db *gorm.DB) repoaccount.Repository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, a *account.Account) error {
	m := Account{
		ID:         a.ID,
		BusinessID: a.BusinessID,
		Balance:    a.Balance,
		Currency:   a.Currency,
		CreatedAt:  a.CreatedAt,
	}
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	var m Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return toAccount(&m), nil
}

func (r *accountRepository) LockForUpdate(
	ctx context.Context,
	ids ...uuid.UUID,
) (map[uuid.UUID]*account.Account, error) {
	ordered := slices.Clone(ids)
	slices.SortFunc(ordered, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	ordered = slices.Compact(ordered)

	locked := make(map[uuid.UUID]*account.Account, len(ordered))
	for _, id := range ordered {
		var rows []Account
		err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Find(&rows).Error
		if err != nil {
			return nil, MapGormErrorToDomain(err)
		}
		if len(rows) == 0 {
			continue
		}
		locked[id] = toAccount(&rows[0])
	}
	return locked, nil
}

func (r *accountRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ? AND balance + ? >= 0", id, delta).
		Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return 0, MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := r.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		return 0, domain.InsufficientBalance(current.Balance, -delta)
	}

	var balance int64
	if err := r.db.WithContext(ctx).
		Model(&Account{}).
		Select("balance").
		Where("id = ?", id).
		Scan(&balance).Error; err != nil {
		return 0, MapGormErrorToDomain(err)
	}
	return balance, nil
}

func (r *accountRepository) ListByBusiness(
	ctx context.Context,
	businessID uuid.UUID,
	currency string,
) ([]*account.Account, error) {
	q := r.db.WithContext(ctx).Where("business_id = ?", businessID)
	if currency != "" {
		q = q.Where("currency = ?", currency)
	}
	var rows []Account
	if err := q.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	result := make([]*account.Account, 0, len(rows))
	for i := range rows {
		result = append(result, toAccount(&rows[i]))
	}
	return result, nil
}

func toAccount(m *Account) *account.Account {
	return &account.Account{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		Balance:    m.Balance,
		Currency:   m.Currency,
		CreatedAt:  m.CreatedAt,
	}
}
