package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	infrarepo "github.com/amirasaad/tenantledger/infra/repository"
	"github.com/amirasaad/tenantledger/pkg/app"
	"github.com/amirasaad/tenantledger/pkg/config"
	whsvc "github.com/amirasaad/tenantledger/pkg/service/webhook"
	"github.com/amirasaad/tenantledger/pkg/testutils"
	"github.com/amirasaad/tenantledger/webapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okSender struct{}

func (okSender) Send(context.Context, whsvc.Delivery) (int, error) { return http.StatusOK, nil }

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	db := testutils.NewTestDB(t)
	cfg := &config.App{
		Env:         "test",
		Auth:        &config.Auth{Strategy: "apikey", Jwt: &config.Jwt{}},
		RateLimit:   &config.RateLimit{MaxRequests: 100, Window: time.Minute},
		Idempotency: &config.Idempotency{PendingTTL: time.Minute},
		Webhook: &config.Webhook{
			Enabled:      true,
			PollInterval: 10 * time.Millisecond,
			BatchSize:    10,
			MaxAttempts:  5,
			BackoffStep:  time.Second,
			ClaimLease:   time.Minute,
		},
	}
	a := app.New(&app.Deps{
		DB:     db,
		Uow:    infrarepo.NewUoW(db),
		Sender: okSender{},
		Logger: testutils.DiscardLogger(),
	}, cfg)
	fiberApp, err := webapi.SetupApp(a)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addr := freeAddr(t)
	done := make(chan error, 1)
	go func() { done <- serve(ctx, a, fiberApp, addr, 5*time.Second) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.ErrorIs(t, a.Worker.Start(context.Background()), whsvc.ErrWorkerRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	require.NoError(t, a.Worker.Start(context.Background()), "worker can be restarted after shutdown")
	require.NoError(t, a.Worker.Stop(context.Background()))
}
