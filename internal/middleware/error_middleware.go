package middleware

import (
	"net/http"

	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"
	medbridge_errors "medbridge/pkg/errors"
	"medbridge/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached with c.Error, mapping domain
// error kinds to status codes. Handlers that already wrote a body are left
// alone.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		if l != nil && status == http.StatusInternalServerError {
			l.Error(c.Request.Context(), "request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(status, httpdto.NewErrorResponse(services.Message(err), medbridge_errors.Code(err)))
	}
}
