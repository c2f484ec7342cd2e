package middleware

import (
	"context"
	"net/http"
	"strconv"

	"medbridge/internal/redis"
	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"
	"medbridge/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLimiter throttles pairing request creation per user.
type RequestLimiter interface {
	AllowRequest(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

// RequestRateLimitMiddleware limits how often a user may send pairing
// requests. Apply it after AuthMiddleware. A Redis failure lets the request
// through.
func RequestRateLimitMiddleware(limiter RequestLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		result, err := limiter.AllowRequest(c.Request.Context(), userID)
		if err != nil {
			if l != nil {
				l.Warn(c.Request.Context(), "rate limit check failed", zap.Error(err))
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("request rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
