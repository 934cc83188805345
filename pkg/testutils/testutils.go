package testutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	infrarepo "github.com/amirasaad/tenantledger/infra/repository"
	"github.com/amirasaad/tenantledger/pkg/domain/account"
	"github.com/amirasaad/tenantledger/pkg/domain/apikey"
	"github.com/amirasaad/tenantledger/pkg/domain/business"
	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestDB opens a private in-memory SQLite database with the full schema.
// A single connection is used, so transactions serialize the same way row
// locks would serialize them on Postgres.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infrarepo.AutoMigrate(db))
	return db
}

// Fixtures seeds rows through the real repositories.
type Fixtures struct {
	t  testing.TB
	db *gorm.DB
}

func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) Business() *business.Business {
	f.t.Helper()
	b := business.New("Acme "+uuid.NewString()[:8], uuid.NewString()[:8]+"@example.com")
	require.NoError(f.t, infrarepo.NewBusinessRepository(f.db).Create(context.Background(), b))
	return b
}

func (f *Fixtures) Account(businessID uuid.UUID, currency string, balance int64) *account.Account {
	f.t.Helper()
	a, err := account.New().
		WithBusinessID(businessID).
		WithCurrency(currency).
		WithBalance(balance).
		Build()
	require.NoError(f.t, err)
	require.NoError(f.t, infrarepo.NewAccountRepository(f.db).Create(context.Background(), a))
	return a
}

func (f *Fixtures) Endpoint(businessID uuid.UUID, url, secret string) *webhook.Endpoint {
	f.t.Helper()
	e, err := webhook.NewEndpoint(businessID, url, secret)
	require.NoError(f.t, err)
	require.NoError(f.t, infrarepo.NewWebhookEndpointRepository(f.db).Create(context.Background(), e))
	return e
}

func (f *Fixtures) InactiveEndpoint(businessID uuid.UUID, url string) *webhook.Endpoint {
	f.t.Helper()
	e := f.Endpoint(businessID, url, "secret")
	require.NoError(f.t, f.db.Model(&infrarepo.WebhookEndpoint{}).
		Where("id = ?", e.ID).
		Update("is_active", false).Error)
	e.IsActive = false
	return e
}

// APIKey stores the hash of raw for businessID.
func (f *Fixtures) APIKey(businessID uuid.UUID, raw string) *apikey.APIKey {
	f.t.Helper()
	k := &apikey.APIKey{
		ID:         uuid.New(),
		BusinessID: businessID,
		KeyHash:    apikey.Hash(raw),
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(f.t, infrarepo.NewAPIKeyRepository(f.db).Create(context.Background(), k))
	return k
}

// Balance reads the current balance straight from the table.
func (f *Fixtures) Balance(id uuid.UUID) int64 {
	f.t.Helper()
	a, err := infrarepo.NewAccountRepository(f.db).Get(context.Background(), id)
	require.NoError(f.t, err)
	return a.Balance
}

// Count returns the number of rows in model's table matching the optional condition.
func (f *Fixtures) Count(model any, query ...any) int64 {
	f.t.Helper()
	var n int64
	q := f.db.Model(model)
	if len(query) > 0 {
		q = q.Where(query[0], query[1:]...)
	}
	require.NoError(f.t, q.Count(&n).Error)
	return n
}

// MakeRequest is a helper for making HTTP requests against a fiber app in tests.
func MakeRequest(app *fiber.App, method, path, body, token string) *http.Response {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		panic(err)
	}
	return resp
}
