package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"
	"medbridge/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware accepts bearer tokens from the identity provider and puts
// the subject on the request context. Expired tokens answer TOKEN_EXPIRED so
// clients refresh rather than sign in again.
func AuthMiddleware(service *services.AuthService, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		claims, err := service.ParseAccessToken(token)
		if err != nil {
			code := "UNAUTHORIZED"
			if errors.Is(err, services.ErrTokenExpired) {
				code = "TOKEN_EXPIRED"
			}
			if l != nil && token != "" {
				l.Warn(c.Request.Context(), "access token rejected",
					zap.String("path", c.FullPath()),
					zap.String("reason", code),
				)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", code))
			return
		}

		userID := strings.TrimSpace(claims.UserID)
		ctx := services.WithUserContext(c.Request.Context(), userID)
		ctx = context.WithValue(ctx, logger.UserIdKey, userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// BearerToken reads "Authorization: Bearer <token>", falling back to the
// token query parameter on websocket upgrades, where browsers cannot set
// headers.
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if websocketUpgrade(c.Request) {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}

func websocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
