package account_test

import (
	"context"
	"testing"
	"time"

	infrarepo "github.com/amirasaad/tenantledger/infra/repository"
	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/account"
	"github.com/amirasaad/tenantledger/pkg/domain/transaction"
	accountsvc "github.com/amirasaad/tenantledger/pkg/service/account"
	"github.com/amirasaad/tenantledger/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*accountsvc.Service, *testutils.Fixtures) {
	t.Helper()
	db := testutils.NewTestDB(t)
	return accountsvc.New(infrarepo.NewUoW(db), testutils.DiscardLogger()), testutils.NewFixtures(t, db)
}

func TestService_Create(t *testing.T) {
	svc, fx := newService(t)
	biz := fx.Business()

	acc, err := svc.Create(context.Background(), biz.ID, "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", acc.Currency)
	assert.Equal(t, int64(0), acc.Balance)
	assert.Equal(t, biz.ID, acc.BusinessID)
	assert.Equal(t, int64(0), fx.Balance(acc.ID))

	acc, err = svc.Create(context.Background(), biz.ID, "")
	require.NoError(t, err)
	assert.Equal(t, account.DefaultCurrency, acc.Currency)
}

func TestService_CreateRejections(t *testing.T) {
	svc, fx := newService(t)
	biz := fx.Business()

	tests := []struct {
		name       string
		businessID uuid.UUID
		currency   string
		wantErr    error
	}{
		{"bad currency", biz.ID, "DOLLARS", account.ErrInvalidCurrencyCode},
		{"digits", biz.ID, "U5D", account.ErrInvalidCurrencyCode},
		{"unknown business", uuid.New(), "USD", domain.ErrBusinessNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.businessID, tc.currency)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Zero(t, fx.Count(&infrarepo.Account{}))
}

func TestService_List(t *testing.T) {
	svc, fx := newService(t)
	biz, other := fx.Business(), fx.Business()
	usd := fx.Account(biz.ID, "USD", 100)
	eur := fx.Account(biz.ID, "EUR", 200)
	fx.Account(other.ID, "USD", 300)

	owner, accounts, err := svc.List(context.Background(), biz.ID, "")
	require.NoError(t, err)
	assert.Equal(t, biz.Name, owner.Name)
	require.Len(t, accounts, 2)
	assert.ElementsMatch(t, []uuid.UUID{usd.ID, eur.ID}, []uuid.UUID{accounts[0].ID, accounts[1].ID})

	_, accounts, err = svc.List(context.Background(), biz.ID, "eur")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, eur.ID, accounts[0].ID)

	_, _, err = svc.List(context.Background(), biz.ID, "euro")
	assert.ErrorIs(t, err, account.ErrInvalidCurrencyCode)

	_, _, err = svc.List(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, domain.ErrBusinessNotFound)
}

func TestService_Transactions(t *testing.T) {
	ctx := context.Background()
	db := testutils.NewTestDB(t)
	fx := testutils.NewFixtures(t, db)
	svc := accountsvc.New(infrarepo.NewUoW(db), testutils.DiscardLogger())
	biz, other := fx.Business(), fx.Business()
	mine := fx.Account(biz.ID, "USD", 1_000)
	peer := fx.Account(biz.ID, "USD", 0)
	foreign := fx.Account(other.ID, "USD", 0)

	txns := infrarepo.NewTransactionRepository(db)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	credit := transaction.NewSingleAccount(biz.ID, mine.ID, transaction.TypeCredit, 1_000, "c1", base)
	transfer := transaction.NewTransfer(biz.ID, mine.ID, peer.ID, 250, "t1", base.Add(time.Minute))
	unrelated := transaction.NewSingleAccount(other.ID, foreign.ID, transaction.TypeCredit, 10, "", base)
	for _, txn := range []*transaction.Transaction{credit, transfer, unrelated} {
		require.NoError(t, txns.Create(ctx, txn))
	}

	history, err := svc.Transactions(ctx, biz.ID, mine.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, transfer.ID, history[0].ID, "newest first")
	assert.Equal(t, credit.ID, history[1].ID)

	history, err = svc.Transactions(ctx, biz.ID, peer.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, transfer.ID, history[0].ID)

	history, err = svc.Transactions(ctx, biz.ID, mine.ID, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	tests := []struct {
		name       string
		businessID uuid.UUID
		accountID  uuid.UUID
		wantErr    error
	}{
		{"foreign account", biz.ID, foreign.ID, domain.ErrNotOwner},
		{"unknown account", biz.ID, uuid.New(), domain.ErrAccountNotFound},
		{"unknown business", uuid.New(), mine.ID, domain.ErrBusinessNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Transactions(ctx, tc.businessID, tc.accountID, 0)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
