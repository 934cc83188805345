package repository

import (
	"context"

	"github.com/amirasaad/tenantledger/pkg/domain/transaction"
	repotransaction "github.com/amirasaad/tenantledger/pkg/repository/transaction"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) repotransaction.Repository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	m := Transaction{
		ID:             t.ID,
		BusinessID:     t.BusinessID,
		FromAccountID:  t.FromAccountID,
		ToAccountID:    t.ToAccountID,
		Amount:         t.Amount,
		Type:           string(t.Type),
		Status:         string(t.Status),
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt,
	}
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	var m Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return toTransaction(&m), nil
}

func (r *transactionRepository) ListByAccount(
	ctx context.Context,
	accountID uuid.UUID,
	limit int,
) ([]*transaction.Transaction, error) {
	var rows []Transaction
	q := r.db.WithContext(ctx).
		Where("from_account_id = ? OR to_account_id = ?", accountID, accountID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	result := make([]*transaction.Transaction, 0, len(rows))
	for i := range rows {
		result = append(result, toTransaction(&rows[i]))
	}
	return result, nil
}

func toTransaction(m *Transaction) *transaction.Transaction {
	return &transaction.Transaction{
		ID:             m.ID,
		BusinessID:     m.BusinessID,
		FromAccountID:  m.FromAccountID,
		ToAccountID:    m.ToAccountID,
		Amount:         m.Amount,
		Type:           transaction.Type(m.Type),
		Status:         transaction.Status(m.Status),
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt,
	}
}
