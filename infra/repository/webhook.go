package repository

import (
	"context"
	"time"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	repowebhook "github.com/amirasaad/tenantledger/pkg/repository/webhook"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEndpointRepository struct {
	db *gorm.DB
}

func NewWebhookEndpointRepository(db *gorm.DB) repowebhook.EndpointRepository {
	return &webhookEndpointRepository{db: db}
}

func (r *webhookEndpointRepository) Create(ctx context.Context, e *webhook.Endpoint) error {
	m := WebhookEndpoint{
		ID:         e.ID,
		BusinessID: e.BusinessID,
		URL:        e.URL,
		Secret:     e.Secret,
		IsActive:   e.IsActive,
		CreatedAt:  e.CreatedAt,
	}
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *webhookEndpointRepository) Get(ctx context.Context, id uuid.UUID) (*webhook.Endpoint, error) {
	var m WebhookEndpoint
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return toEndpoint(&m), nil
}

func (r *webhookEndpointRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*webhook.Endpoint, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("business_id = ?", businessID))
}

func (r *webhookEndpointRepository) ListActiveByBusiness(ctx context.Context, businessID uuid.UUID) ([]*webhook.Endpoint, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("business_id = ? AND is_active = ?", businessID, true))
}

func (r *webhookEndpointRepository) list(_ context.Context, q *gorm.DB) ([]*webhook.Endpoint, error) {
	var rows []WebhookEndpoint
	if err := q.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	result := make([]*webhook.Endpoint, 0, len(rows))
	for i := range rows {
		result = append(result, toEndpoint(&rows[i]))
	}
	return result, nil
}

func toEndpoint(m *WebhookEndpoint) *webhook.Endpoint {
	return &webhook.Endpoint{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		URL:        m.URL,
		Secret:     m.Secret,
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt,
	}
}

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) repowebhook.EventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, events ...*webhook.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]WebhookEvent, 0, len(events))
	for _, e := range events {
		rows = append(rows, WebhookEvent{
			ID:                e.ID,
			WebhookEndpointID: e.EndpointID,
			EventType:         string(e.Type),
			Payload:           string(e.Payload),
			Status:            string(e.Status),
			Attempts:          e.Attempts,
			LastAttemptAt:     e.LastAttemptAt,
			NextAttemptAt:     e.NextAttemptAt,
			LastError:         e.LastError,
			CreatedAt:         e.CreatedAt,
		})
	}
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&rows).Error
	})
}

func (r *webhookEventRepository) ClaimDue(
	ctx context.Context,
	now, leaseUntil time.Time,
	limit int,
) ([]*webhook.Event, error) {
	var rows []WebhookEvent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)", string(webhook.StatusPending), now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
	}
	lease := uuid.New()
	if err := r.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"next_attempt_at": leaseUntil,
			"lease_id":        lease,
		}).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}

	result := make([]*webhook.Event, 0, len(rows))
	for i := range rows {
		rows[i].NextAttemptAt = &leaseUntil
		rows[i].LeaseID = &lease
		result = append(result, toEvent(&rows[i]))
	}
	return result, nil
}

func (r *webhookEventRepository) Renew(ctx context.Context, id, lease uuid.UUID, now, until time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("id = ? AND status = ? AND lease_id = ? AND next_attempt_at > ?",
			id, string(webhook.StatusPending), lease, now).
		Update("next_attempt_at", until)
	return affected(res)
}

func (r *webhookEventRepository) MarkDelivered(
	ctx context.Context,
	id, lease uuid.UUID,
	attempts int,
	at time.Time,
) error {
	return r.settle(ctx, id, lease, map[string]any{
		"status":          string(webhook.StatusDelivered),
		"attempts":        attempts,
		"last_attempt_at": at,
		"next_attempt_at": nil,
		"last_error":      nil,
	})
}

func (r *webhookEventRepository) MarkFailed(
	ctx context.Context,
	id, lease uuid.UUID,
	attempts int,
	at time.Time,
	lastErr string,
) error {
	return r.settle(ctx, id, lease, map[string]any{
		"status":          string(webhook.StatusFailed),
		"attempts":        attempts,
		"last_attempt_at": at,
		"next_attempt_at": nil,
		"last_error":      lastErr,
	})
}

func (r *webhookEventRepository) ScheduleRetry(
	ctx context.Context,
	id, lease uuid.UUID,
	attempts int,
	at, next time.Time,
	lastErr string,
) error {
	return r.settle(ctx, id, lease, map[string]any{
		"attempts":        attempts,
		"last_attempt_at": at,
		"next_attempt_at": next,
		"last_error":      lastErr,
	})
}

func (r *webhookEventRepository) Release(ctx context.Context, id, lease uuid.UUID, next time.Time) error {
	return r.settle(ctx, id, lease, map[string]any{"next_attempt_at": next})
}

// settle applies updates to a pending event held by lease and ends the
// lease. Settled events are terminal and never touched again.
func (r *webhookEventRepository) settle(
	ctx context.Context,
	id, lease uuid.UUID,
	updates map[string]any,
) error {
	updates["lease_id"] = nil
	res := r.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("id = ? AND status = ? AND lease_id = ?", id, string(webhook.StatusPending), lease).
		Updates(updates)
	return affected(res)
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *webhookEventRepository) Get(ctx context.Context, id uuid.UUID) (*webhook.Event, error) {
	var m WebhookEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return toEvent(&m), nil
}

func (r *webhookEventRepository) ListByBusiness(
	ctx context.Context,
	businessID uuid.UUID,
	status webhook.EventStatus,
	limit int,
) ([]*webhook.Event, error) {
	q := r.db.WithContext(ctx).
		Select("webhook_events.*").
		Joins("JOIN webhook_endpoints ON webhook_endpoints.id = webhook_events.webhook_endpoint_id").
		Where("webhook_endpoints.business_id = ?", businessID)
	if status != "" {
		q = q.Where("webhook_events.status = ?", string(status))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []WebhookEvent
	if err := q.Order("webhook_events.created_at DESC").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	result := make([]*webhook.Event, 0, len(rows))
	for i := range rows {
		result = append(result, toEvent(&rows[i]))
	}
	return result, nil
}

func toEvent(m *WebhookEvent) *webhook.Event {
	return &webhook.Event{
		ID:            m.ID,
		EndpointID:    m.WebhookEndpointID,
		Type:          webhook.EventType(m.EventType),
		Payload:       []byte(m.Payload),
		Status:        webhook.EventStatus(m.Status),
		Attempts:      m.Attempts,
		LastAttemptAt: m.LastAttemptAt,
		NextAttemptAt: m.NextAttemptAt,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt,
		LeaseID:       leaseOf(m),
	}
}

func leaseOf(m *WebhookEvent) uuid.UUID {
	if m.LeaseID == nil {
		return uuid.Nil
	}
	return *m.LeaseID
}
