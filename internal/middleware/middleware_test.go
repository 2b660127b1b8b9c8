package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/media-service/internal/auth"
	utils "github.com/fathima-sithara/media-service/internal/utis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "middleware-secret"

func newApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return utils.JSONAppError(c, err, false)
		},
	})
}

func whoami(c *fiber.Ctx) error {
	return c.SendString(UserID(c))
}

func TestJWTAuth(t *testing.T) {
	v, err := auth.NewJWTVerifier("", testSecret)
	require.NoError(t, err)
	app := newApp()
	app.Get("/me", JWTAuth(v), whoami)

	good, err := auth.IssueToken(testSecret, "alice", time.Minute)
	require.NoError(t, err)
	expired, err := auth.IssueToken(testSecret, "alice", -time.Minute)
	require.NoError(t, err)
	forged, err := auth.IssueToken("other-secret", "alice", time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + good, fiber.StatusOK, "alice"},
		{"missing", "", fiber.StatusUnauthorized, "Not authenticated"},
		{"wrong scheme", "Basic " + good, fiber.StatusUnauthorized, "Could not validate credentials"},
		{"expired", "Bearer " + expired, fiber.StatusUnauthorized, "Token has expired"},
		{"bad signature", "Bearer " + forged, fiber.StatusUnauthorized, "Could not validate credentials"},
		{"garbage", "Bearer not.a.jwt", fiber.StatusUnauthorized, "Could not validate credentials"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(body), tc.body)
			if tc.status == fiber.StatusUnauthorized {
				assert.Contains(t, string(body), `"code":"UNAUTHORIZED"`)
				assert.Equal(t, "Bearer", resp.Header.Get(fiber.HeaderWWWAuthenticate))
			}
		})
	}
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRedisRateLimiter(rdb, "rl:test", 2, time.Minute)
	app := newApp()
	app.Get("/", rl.Handler(func(c *fiber.Ctx) string { return c.Get("X-User") }), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	do := func(user string) *http.Response {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}
	assert.Equal(t, fiber.StatusNoContent, do("alice").StatusCode)
	assert.Equal(t, fiber.StatusNoContent, do("alice").StatusCode)
	limited := do("alice")
	assert.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	assert.Equal(t, "60", limited.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, "2", limited.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, fiber.StatusNoContent, do("bob").StatusCode)

	ttl := mr.TTL("rl:test:alice")
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, fiber.StatusNoContent, do("alice").StatusCode)
}

func TestRedisRateLimiterUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	app := newApp()
	app.Get("/", NewRedisRateLimiter(rdb, "rl", 1, time.Minute).Handler(ByUserOrIP), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestIPRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewIPRateLimiter(ctx, 60, 2, zap.NewNop().Sugar())
	app := newApp()
	app.Get("/", l.Handler(ByUserOrIP), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{fiber.StatusNoContent, fiber.StatusNoContent, fiber.StatusTooManyRequests}, codes)
}

func TestIPRateLimiterConcurrentVisitors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewIPRateLimiter(ctx, 60, 5, zap.NewNop().Sugar())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				l.getLimiter("user:a")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			l.evictIdle(time.Now().Add(-time.Hour))
		}
	}()
	wg.Wait()

	first := l.getLimiter("user:a")
	assert.Same(t, first, l.getLimiter("user:a"))

	l.evictIdle(time.Now().Add(time.Second))
	_, ok := l.visitors.Load("user:a")
	assert.False(t, ok, "idle visitor is evicted")
}

func TestByUserOrIP(t *testing.T) {
	app := fiber.New()
	app.Get("/anon", func(c *fiber.Ctx) error { return c.SendString(ByUserOrIP(c)) })
	app.Get("/user", func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, "alice")
		return c.SendString(ByUserOrIP(c))
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/user", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "user:alice", string(body))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/anon", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "ip:")
}

func TestRecovery(t *testing.T) {
	app := newApp()
	app.Use(Recovery(zap.NewNop().Sugar()))
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"code":"INTERNAL_SERVER_ERROR"`)
	assert.NotContains(t, string(body), "boom")
}

func TestRequestLoggerPassesErrorsThrough(t *testing.T) {
	app := newApp()
	app.Use(RequestLogger(zap.NewNop().Sugar()))
	app.Get("/missing", func(c *fiber.Ctx) error { return utils.NewNotFoundError("Media not found") })
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, fiber.StatusTooManyRequests, errorStatus(errRateLimited))
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, errorStatus(fiber.ErrRequestEntityTooLarge))
	assert.Equal(t, fiber.StatusInternalServerError, errorStatus(errors.New("x")))
}
