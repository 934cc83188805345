package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	infrarepo "github.com/amirasaad/tenantledger/infra/repository"
	"github.com/amirasaad/tenantledger/pkg/config"
	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/apikey"
	"github.com/amirasaad/tenantledger/pkg/repository"
	repoapikey "github.com/amirasaad/tenantledger/pkg/repository/apikey"
	authsvc "github.com/amirasaad/tenantledger/pkg/service/auth"
	"github.com/amirasaad/tenantledger/pkg/testutils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStrategy struct {
	mock.Mock
}

func (m *mockStrategy) Authenticate(ctx context.Context, credential string) (uuid.UUID, error) {
	args := m.Called(ctx, credential)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func TestService_StripsBearerPrefix(t *testing.T) {
	t.Parallel()
	businessID := uuid.New()
	strategy := &mockStrategy{}
	strategy.On("Authenticate", mock.Anything, "sk_live_123").Return(businessID, nil).Twice()
	svc := authsvc.New(strategy, testutils.DiscardLogger())

	got, err := svc.Authenticate(context.Background(), "Bearer sk_live_123")
	require.NoError(t, err)
	assert.Equal(t, businessID, got)

	got, err = svc.Authenticate(context.Background(), "sk_live_123")
	require.NoError(t, err)
	assert.Equal(t, businessID, got)
	strategy.AssertExpectations(t)
}

func TestService_EmptyCredential(t *testing.T) {
	t.Parallel()
	strategy := &mockStrategy{}
	svc := authsvc.New(strategy, testutils.DiscardLogger())

	for _, header := range []string{"", "   ", "Bearer ", "bearer", "Bearer    "} {
		_, err := svc.Authenticate(context.Background(), header)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated, "header %q", header)
	}
	strategy.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestService_PropagatesStoreErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("db down")
	strategy := &mockStrategy{}
	strategy.On("Authenticate", mock.Anything, "k").Return(uuid.Nil, boom).Once()
	svc := authsvc.New(strategy, testutils.DiscardLogger())

	_, err := svc.Authenticate(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
}

// slowKeys blocks every lookup until release is closed, then answers
// according to the lookup's own context.
type slowKeys struct {
	businessID uuid.UUID
	lookups    atomic.Int32
	once       sync.Once
	started    chan struct{}
	release    chan struct{}
}

func (k *slowKeys) Create(context.Context, *apikey.APIKey) error { return nil }

func (k *slowKeys) GetActiveByHash(ctx context.Context, _ string) (*apikey.APIKey, error) {
	k.lookups.Add(1)
	k.once.Do(func() { close(k.started) })
	<-k.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &apikey.APIKey{BusinessID: k.businessID}, nil
}

type keysOnlyUoW struct {
	repository.UnitOfWork
	keys repoapikey.Repository
}

func (u keysOnlyUoW) APIKeyRepository() (repoapikey.Repository, error) { return u.keys, nil }

func TestAPIKeyStrategy_CallerCancellationDoesNotFailSharedLookup(t *testing.T) {
	keys := &slowKeys{businessID: uuid.New(), started: make(chan struct{}), release: make(chan struct{})}
	strategy := authsvc.NewAPIKeyStrategy(keysOnlyUoW{keys: keys}, testutils.DiscardLogger())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := strategy.Authenticate(firstCtx, "sk_shared")
		firstErr <- err
	}()
	select {
	case <-keys.started:
	case <-time.After(5 * time.Second):
		t.Fatal("lookup never started")
	}

	type result struct {
		id  uuid.UUID
		err error
	}
	second := make(chan result, 1)
	go func() {
		id, err := strategy.Authenticate(context.Background(), "sk_shared")
		second <- result{id, err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(keys.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, keys.businessID, res.id)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.LessOrEqual(t, keys.lookups.Load(), int32(2))
}

func TestAPIKeyStrategy(t *testing.T) {
	db := testutils.NewTestDB(t)
	fx := testutils.NewFixtures(t, db)
	biz := fx.Business()
	fx.APIKey(biz.ID, "sk_test_valid")
	svc := authsvc.NewWithAPIKey(infrarepo.NewUoW(db), testutils.DiscardLogger())

	got, err := svc.Authenticate(context.Background(), "Bearer sk_test_valid")
	require.NoError(t, err)
	assert.Equal(t, biz.ID, got)

	_, err = svc.Authenticate(context.Background(), "Bearer sk_test_unknown")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestJWTStrategy(t *testing.T) {
	db := testutils.NewTestDB(t)
	fx := testutils.NewFixtures(t, db)
	biz := fx.Business()
	cfg := &config.Jwt{Secret: "test-secret", Issuer: "tenantledger", Expiry: time.Hour}
	uow := infrarepo.NewUoW(db)
	strategy := authsvc.NewJWTStrategy(uow, cfg, testutils.DiscardLogger())
	svc := authsvc.New(strategy, testutils.DiscardLogger())

	token, err := strategy.GenerateToken(biz.ID)
	require.NoError(t, err)
	got, err := svc.Authenticate(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, biz.ID, got)

	sign := func(secret string, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign("other", jwt.MapClaims{"business_id": biz.ID.String(), "iss": "tenantledger"})},
		{"expired", sign("test-secret", jwt.MapClaims{
			"business_id": biz.ID.String(), "iss": "tenantledger", "exp": time.Now().Add(-time.Minute).Unix(),
		})},
		{"wrong issuer", sign("test-secret", jwt.MapClaims{"business_id": biz.ID.String(), "iss": "someone"})},
		{"missing claim", sign("test-secret", jwt.MapClaims{"iss": "tenantledger"})},
		{"unknown business", sign("test-secret", jwt.MapClaims{"business_id": uuid.NewString(), "iss": "tenantledger"})},
		{"garbage", "not.a.jwt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), "Bearer "+tc.token)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}
