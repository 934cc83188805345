package ratelimit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirasaad/tenantledger/infra/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T, prefix string) (*ratelimit.RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := ratelimit.NewRedisStorage(client, prefix)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStorage_GetSetDelete(t *testing.T) {
	t.Parallel()
	s, mr := newStorage(t, "")

	val, err := s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, s.Set("k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("ratelimit:k"))

	val, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, s.Delete("k"))
	val, err = s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedisStorage_Expiry(t *testing.T) {
	t.Parallel()
	s, mr := newStorage(t, "rl:")

	require.NoError(t, s.Set("k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	val, err := s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedisStorage_EmptyKeyOrValueIgnored(t *testing.T) {
	t.Parallel()
	s, mr := newStorage(t, "")

	require.NoError(t, s.Set("", []byte("v"), 0))
	require.NoError(t, s.Set("k", nil, 0))
	assert.Empty(t, mr.Keys())
}

func TestRedisStorage_ResetOnlyTouchesPrefix(t *testing.T) {
	t.Parallel()
	s, mr := newStorage(t, "rl:")

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(k, []byte("1"), 0))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, s.Reset())
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestNewRedisStorageFromURL(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	s, err := ratelimit.NewRedisStorageFromURL(context.Background(), "redis://"+mr.Addr(), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = ratelimit.NewRedisStorageFromURL(context.Background(), "not a url", "")
	assert.Error(t, err)
}

func TestRedisStorage_BacksFiberLimiter(t *testing.T) {
	t.Parallel()
	s, _ := newStorage(t, "")

	app := fiber.New()
	app.Use(limiter.New(limiter.Config{
		Max:        2,
		Expiration: time.Minute,
		Storage:    s,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Get(fiber.HeaderAuthorization)
		},
	}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(fiber.HeaderAuthorization, key)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, do("a"))
	assert.Equal(t, fiber.StatusOK, do("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, do("a"))
	assert.Equal(t, fiber.StatusOK, do("b"), "limits are per key")
}
