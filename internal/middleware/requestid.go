package middleware

import (
	"noticenter/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID injects a unique request ID into every request context and
// response header. The envelope in common echoes it back in the body.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(common.RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the request ID set by the RequestID middleware, or
// an empty string when the middleware did not run.
func GetRequestID(c *gin.Context) string {
	return c.GetString(common.RequestIDKey)
}
