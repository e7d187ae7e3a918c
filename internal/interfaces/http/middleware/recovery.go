package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// Recovery returns middleware that converts panics into 500 responses with
// the standard error envelope. The stack trace goes to the log, never to the
// client.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				fields := []logging.Field{
					logging.Any("panic", r),
					logging.String("method", c.Request.Method),
					logging.String("path", c.Request.URL.Path),
					logging.String("stack", string(debug.Stack())),
				}
				if id := GetRequestID(c); id != "" {
					fields = append(fields, logging.String("request_id", id))
				}
				logger.Error("panic recovered", fields...)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    string(apperrors.ErrCodeInternal),
					"message": apperrors.DefaultMessageForCode(apperrors.ErrCodeInternal),
				})
			}
		}()

		c.Next()
	}
}
