package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/idempotency"
	repoidempotency "github.com/amirasaad/tenantledger/pkg/repository/idempotency"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type idempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) repoidempotency.Repository {
	return &idempotencyRepository{db: db}
}

// Reserve relies on the (business_id, key) primary key: the insert either
// creates the row, takes over a reusable one through the conditional
// DO UPDATE, or affects nothing because a live row is already there.
func (r *idempotencyRepository) Reserve(
	ctx context.Context,
	businessID uuid.UUID,
	key string,
	now, staleBefore time.Time,
) (idempotency.Reservation, error) {
	m := IdempotencyKey{
		BusinessID: businessID,
		Key:        key,
		Status:     string(idempotency.StatusPending),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "business_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":        string(idempotency.StatusPending),
			"response_body": nil,
			"created_at":    now,
			"updated_at":    now,
		}),
		Where: clause.Where{Exprs: []clause.Expression{clause.Expr{
			SQL: "idempotency_keys.status = ? OR (idempotency_keys.status = ? AND idempotency_keys.created_at < ?)",
			Vars: []any{
				string(idempotency.StatusFailed),
				string(idempotency.StatusPending),
				staleBefore,
			},
		}}},
	}).Create(&m)
	if res.Error != nil {
		return idempotency.Reservation{}, MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected > 0 {
		return idempotency.Reservation{Outcome: idempotency.Fresh}, nil
	}

	existing, err := r.Get(ctx, businessID, key)
	if errors.Is(err, domain.ErrNotFound) {
		return idempotency.Reservation{Outcome: idempotency.Conflict}, nil
	}
	if err != nil {
		return idempotency.Reservation{}, err
	}
	if existing.Status == idempotency.StatusSuccess {
		return idempotency.Reservation{
			Outcome:  idempotency.Duplicate,
			Response: existing.ResponseBody,
		}, nil
	}
	// pending and live, or released between our insert and read
	return idempotency.Reservation{Outcome: idempotency.Conflict}, nil
}

func (r *idempotencyRepository) Complete(
	ctx context.Context,
	businessID uuid.UUID,
	key string,
	body []byte,
	now time.Time,
) error {
	return r.transition(ctx, businessID, key, map[string]any{
		"status":        string(idempotency.StatusSuccess),
		"response_body": string(body),
		"updated_at":    now,
	})
}

func (r *idempotencyRepository) Release(
	ctx context.Context,
	businessID uuid.UUID,
	key string,
	now time.Time,
) error {
	return r.transition(ctx, businessID, key, map[string]any{
		"status":     string(idempotency.StatusFailed),
		"updated_at": now,
	})
}

// transition updates a row that is still pending.
func (r *idempotencyRepository) transition(
	ctx context.Context,
	businessID uuid.UUID,
	key string,
	updates map[string]any,
) error {
	res := r.db.WithContext(ctx).
		Model(&IdempotencyKey{}).
		Where(map[string]any{
			"business_id": businessID,
			"key":         key,
			"status":      string(idempotency.StatusPending),
		}).
		Updates(updates)
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *idempotencyRepository) Get(
	ctx context.Context,
	businessID uuid.UUID,
	key string,
) (*idempotency.Record, error) {
	var m IdempotencyKey
	err := r.db.WithContext(ctx).
		Where(map[string]any{"business_id": businessID, "key": key}).
		Take(&m).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	rec := &idempotency.Record{
		BusinessID: m.BusinessID,
		Key:        m.Key,
		Status:     idempotency.Status(m.Status),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.ResponseBody != nil {
		rec.ResponseBody = []byte(*m.ResponseBody)
	}
	return rec, nil
}
