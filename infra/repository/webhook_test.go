package repository_test

import (
	"context"
	"testing"
	"time"

	infrarepo "github.com/amirasaad/tenantledger/infra/repository"
	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	"github.com/amirasaad/tenantledger/pkg/repository"
	"github.com/amirasaad/tenantledger/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookEventRepository_ClaimDue(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := testutils.NewTestDB(t)
	fx := testutils.NewFixtures(t, db)
	biz := fx.Business()
	ep := fx.Endpoint(biz.ID, "https://example.com/hook", "s")
	repo := infrarepo.NewWebhookEventRepository(db)

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	due := webhook.NewEvent(ep.ID, webhook.EventTransferCreated, []byte(`{"n":1}`), now.Add(-time.Minute))
	later := now.Add(time.Minute)
	notYet := webhook.NewEvent(ep.ID, webhook.EventTransferCreated, []byte(`{"n":2}`), now.Add(-2*time.Minute))
	notYet.NextAttemptAt = &later
	settled := webhook.NewEvent(ep.ID, webhook.EventTransferCreated, []byte(`{"n":3}`), now.Add(-3*time.Minute))
	settled.Status = webhook.StatusDelivered
	require.NoError(repo.Create(ctx, due, notYet, settled))

	uow := infrarepo.NewUoW(db)
	lease := now.Add(time.Minute)
	var claimed []*webhook.Event
	err := uow.Do(ctx, func(tx repository.UnitOfWork) error {
		events, err := tx.WebhookEventRepository()
		if err != nil {
			return err
		}
		claimed, err = events.ClaimDue(ctx, now, lease, 10)
		return err
	})
	require.NoError(err)
	require.Len(claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.JSONEq(t, `{"n":1}`, string(claimed[0].Payload))

	// the lease hides the event from an immediate second claim
	err = uow.Do(ctx, func(tx repository.UnitOfWork) error {
		events, _ := tx.WebhookEventRepository()
		again, err := events.ClaimDue(ctx, now, lease, 10)
		assert.Empty(t, again)
		return err
	})
	require.NoError(err)

	stored, err := repo.Get(ctx, due.ID)
	require.NoError(err)
	require.NotNil(stored.NextAttemptAt)
	assert.True(t, stored.NextAttemptAt.Equal(lease))
	assert.Equal(t, claimed[0].LeaseID, stored.LeaseID)
}

func claim(t *testing.T, uow repository.UnitOfWork, now, leaseUntil time.Time) []*webhook.Event {
	t.Helper()
	var claimed []*webhook.Event
	err := uow.Do(context.Background(), func(tx repository.UnitOfWork) error {
		events, err := tx.WebhookEventRepository()
		if err != nil {
			return err
		}
		claimed, err = events.ClaimDue(context.Background(), now, leaseUntil, 10)
		return err
	})
	require.NoError(t, err)
	return claimed
}

func TestWebhookEventRepository_SettleTransitions(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := testutils.NewTestDB(t)
	fx := testutils.NewFixtures(t, db)
	biz := fx.Business()
	ep := fx.Endpoint(biz.ID, "https://example.com/hook", "s")
	repo := infrarepo.NewWebhookEventRepository(db)
	uow := infrarepo.NewUoW(db)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ev := webhook.NewEvent(ep.ID, webhook.EventCreditCreated, []byte(`{}`), now)
	require.NoError(repo.Create(ctx, ev))

	claimed := claim(t, uow, now, now.Add(time.Minute))
	require.Len(claimed, 1)
	lease := claimed[0].LeaseID
	require.NotEqual(uuid.Nil, lease)

	next := now.Add(10 * time.Second)
	require.NoError(repo.ScheduleRetry(ctx, ev.ID, lease, 1, now, next, "status 500"))
	got, err := repo.Get(ctx, ev.ID)
	require.NoError(err)
	assert.Equal(t, webhook.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(got.LastError)
	assert.Equal(t, "status 500", *got.LastError)
	assert.True(t, got.NextAttemptAt.Equal(next))
	assert.Equal(t, uuid.Nil, got.LeaseID, "settling ends the lease")

	// the retry ended the lease, so it cannot settle again
	assert.ErrorIs(t, repo.MarkFailed(ctx, ev.ID, lease, 5, now, "status 503"), domain.ErrNotFound)

	claimed = claim(t, uow, next, next.Add(time.Minute))
	require.Len(claimed, 1)
	require.NotEqual(lease, claimed[0].LeaseID)
	lease = claimed[0].LeaseID
	require.NoError(repo.MarkFailed(ctx, ev.ID, lease, 5, next, "status 503"))
	got, err = repo.Get(ctx, ev.ID)
	require.NoError(err)
	assert.Equal(t, webhook.StatusFailed, got.Status)
	assert.Equal(t, 5, got.Attempts)

	// failed is terminal
	assert.ErrorIs(t, repo.MarkDelivered(ctx, ev.ID, lease, 6, now), domain.ErrNotFound)
}

func TestWebhookEventRepository_LeaseOwnership(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := testutils.NewTestDB(t)
	fx := testutils.NewFixtures(t, db)
	biz := fx.Business()
	ep := fx.Endpoint(biz.ID, "https://example.com/hook", "s")
	repo := infrarepo.NewWebhookEventRepository(db)
	uow := infrarepo.NewUoW(db)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ev := webhook.NewEvent(ep.ID, webhook.EventTransferCreated, []byte(`{}`), now)
	require.NoError(repo.Create(ctx, ev))

	first := claim(t, uow, now, now.Add(time.Minute))
	require.Len(first, 1)
	stale := first[0].LeaseID

	// a live lease can be renewed by its holder only
	require.NoError(repo.Renew(ctx, ev.ID, stale, now.Add(30*time.Second), now.Add(90*time.Second)))
	assert.ErrorIs(t, repo.Renew(ctx, ev.ID, uuid.New(), now, now.Add(time.Minute)), domain.ErrNotFound)

	// once expired it can no longer be renewed, and another claim takes it
	expired := now.Add(2 * time.Minute)
	assert.ErrorIs(t, repo.Renew(ctx, ev.ID, stale, expired, expired.Add(time.Minute)), domain.ErrNotFound)
	second := claim(t, uow, expired, expired.Add(time.Minute))
	require.Len(second, 1)
	current := second[0].LeaseID

	for name, err := range map[string]error{
		"delivered": repo.MarkDelivered(ctx, ev.ID, stale, 1, expired),
		"failed":    repo.MarkFailed(ctx, ev.ID, stale, 1, expired, "x"),
		"retry":     repo.ScheduleRetry(ctx, ev.ID, stale, 1, expired, expired.Add(time.Minute), "x"),
		"release":   repo.Release(ctx, ev.ID, stale, expired),
	} {
		assert.ErrorIs(t, err, domain.ErrNotFound, name)
	}

	require.NoError(repo.MarkDelivered(ctx, ev.ID, current, 1, expired))
	got, err := repo.Get(ctx, ev.ID)
	require.NoError(err)
	assert.Equal(t, webhook.StatusDelivered, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestWebhookEventRepository_ListByBusiness(t *testing.T) {
	ctx := context.Background()
	db := testutils.NewTestDB(t)
	fx := testutils.NewFixtures(t, db)
	mine, theirs := fx.Business(), fx.Business()
	myEp := fx.Endpoint(mine.ID, "https://mine.example.com", "s")
	theirEp := fx.Endpoint(theirs.ID, "https://theirs.example.com", "s")
	repo := infrarepo.NewWebhookEventRepository(db)
	now := time.Now().UTC()

	delivered := webhook.NewEvent(myEp.ID, webhook.EventDebitCreated, []byte(`{}`), now)
	delivered.Status = webhook.StatusDelivered
	require.NoError(t, repo.Create(ctx,
		webhook.NewEvent(myEp.ID, webhook.EventDebitCreated, []byte(`{}`), now),
		delivered,
		webhook.NewEvent(theirEp.ID, webhook.EventDebitCreated, []byte(`{}`), now),
	))

	all, err := repo.ListByBusiness(ctx, mine.ID, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyDelivered, err := repo.ListByBusiness(ctx, mine.ID, webhook.StatusDelivered, 10)
	require.NoError(t, err)
	require.Len(t, onlyDelivered, 1)
	assert.Equal(t, delivered.ID, onlyDelivered[0].ID)
}

func TestWebhookEndpointRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	db := testutils.NewTestDB(t)
	fx := testutils.NewFixtures(t, db)
	biz := fx.Business()
	active := fx.Endpoint(biz.ID, "https://a.example.com", "s")
	fx.InactiveEndpoint(biz.ID, "https://b.example.com")
	repo := infrarepo.NewWebhookEndpointRepository(db)

	all, err := repo.ListByBusiness(ctx, biz.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyActive, err := repo.ListActiveByBusiness(ctx, biz.ID)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active.ID, onlyActive[0].ID)
}
