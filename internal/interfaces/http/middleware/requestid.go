package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
)

// HeaderRequestID is the header used to propagate request IDs.
const HeaderRequestID = "X-Request-ID"

// contextKeyRequestID is the gin context key under which the request ID is stored.
const contextKeyRequestID = "request_id"

// RequestID returns middleware that ensures every request carries a request ID.
// An incoming X-Request-ID header is honoured so IDs survive proxy hops;
// otherwise a fresh UUID is generated. The ID is echoed in the response header
// and injected into the request context for log correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Set(contextKeyRequestID, id)
		c.Writer.Header().Set(HeaderRequestID, id)

		ctx := logging.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID extracts the request ID assigned by the RequestID middleware.
// Returns an empty string when the middleware did not run.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(contextKeyRequestID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
