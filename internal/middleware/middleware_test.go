package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"instapilot/internal/redis"
	"instapilot/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestClassify(t *testing.T) {
	cases := map[string]redis.RouteClass{
		"/webhooks/instagram":  redis.RouteExempt,
		"/health":              redis.RouteExempt,
		"/ping":                redis.RouteExempt,
		"/v1/auth/token":       redis.RouteAuth,
		"/v1/automations":      redis.RouteGeneral,
		"/v1/logs":             redis.RouteGeneral,
		"/v1/accounts/abc":     redis.RouteGeneral,
		"/unknown":             redis.RouteGeneral,
	}
	for path, want := range cases {
		if got := classify(path); got != want {
			t.Errorf("classify(%q) = %q, want %q", path, got, want)
		}
	}
}

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authRouter(secret string, captured *uuid.UUID, tier *string) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(secret))
	r.GET("/v1/me", func(c *gin.Context) {
		if id, ok := services.UserIDFromContext(c.Request.Context()); ok {
			*captured = id
		}
		*tier = services.TierFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"
	userID := uuid.New()

	var gotID uuid.UUID
	var gotTier string
	r := authRouter(secret, &gotID, &gotTier)

	token := signToken(t, secret, accessClaims{
		UserID: userID.String(),
		Tier:   "pro",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	if gotID != userID {
		t.Errorf("user id = %s", gotID)
	}
	if gotTier != "pro" {
		t.Errorf("tier = %q", gotTier)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	const secret = "test-secret"
	var gotID uuid.UUID
	var gotTier string
	r := authRouter(secret, &gotID, &gotTier)

	expired := signToken(t, secret, accessClaims{
		UserID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := signToken(t, "other-secret", accessClaims{
		UserID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage":        "Bearer not-a-jwt",
		"expired":        "Bearer " + expired,
		"wrong key":      "Bearer " + wrongKey,
	}
	for name, header := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d", name, w.Code)
		}
	}
}

type windowLimiter struct {
	limit int
	seen  int
}

func (w *windowLimiter) Allow(ctx context.Context, clientIP string, class redis.RouteClass) (*redis.RateLimitResult, error) {
	w.seen++
	if w.seen <= w.limit {
		return &redis.RateLimitResult{
			Allowed:   true,
			Remaining: w.limit - w.seen,
			ResetIn:   30 * time.Second,
			Limit:     w.limit,
		}, nil
	}
	return &redis.RateLimitResult{
		Allowed:   false,
		Remaining: 0,
		ResetIn:   30 * time.Second,
		Limit:     w.limit,
	}, nil
}

func TestRateLimitOverLimitReturns429(t *testing.T) {
	const limit = 3
	r := gin.New()
	r.Use(RateLimitMiddleware(&windowLimiter{limit: limit}, nil))
	r.GET("/v1/logs", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < limit; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/logs", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}

	// Request limit+1 in the window is refused with retry guidance.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/logs", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "31" {
		t.Errorf("Retry-After = %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Errorf("X-RateLimit-Limit = %q", got)
	}
}

func TestRateLimitFailOpen(t *testing.T) {
	// Limiter backed by a Redis nobody is listening on. Requests must still
	// be admitted.
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	limiter := redis.NewRateLimiter(client, redis.DefaultRateLimitConfig())

	r := gin.New()
	r.Use(RateLimitMiddleware(limiter, nil))
	r.GET("/v1/logs", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/logs", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRateLimitExemptSkipsRedis(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	limiter := redis.NewRateLimiter(client, redis.DefaultRateLimitConfig())

	r := gin.New()
	r.Use(RateLimitMiddleware(limiter, nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("exempt route should not carry rate limit headers")
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/v1/logs", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/v1/logs", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing allow-origin header")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("no request id generated")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "caller-supplied")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "caller-supplied" {
		t.Errorf("request id = %q", got)
	}
}
