package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"instapilot/internal/redis"
	"instapilot/internal/transport/httpdto"
	"instapilot/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Limiter is the admission check the middleware consults per request.
// *redis.RateLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, clientIP string, class redis.RouteClass) (*redis.RateLimitResult, error)
}

// RateLimitMiddleware applies per-IP sliding-window admission control. Redis
// being down fails open: a degraded limiter must not take the API with it.
func RateLimitMiddleware(limiter Limiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		class := classify(c.Request.URL.Path)
		if class == redis.RouteExempt {
			c.Next()
			return
		}

		result, err := limiter.Allow(c.Request.Context(), c.ClientIP(), class)
		if err != nil {
			if l != nil {
				l.Errorf("rate limit check failed, admitting request: %v", err)
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(result.ResetIn.Seconds())+1, 10))
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// classify maps a request path to its admission bucket. Webhook delivery and
// health probes are never throttled; auth endpoints get the strict cap.
func classify(path string) redis.RouteClass {
	switch {
	case strings.HasPrefix(path, "/webhooks"), path == "/health", path == "/ping":
		return redis.RouteExempt
	case strings.HasPrefix(path, "/v1/auth/"):
		return redis.RouteAuth
	default:
		return redis.RouteGeneral
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
