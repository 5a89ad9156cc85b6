package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wafiPortal/internal/backend"
)

const correlationIDKey = "correlationID"

const maxCorrelationIDLen = 64

// CorrelationIDMiddleware makes sure every request carries a correlation id
// and that backend calls made while serving it forward the same id.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" || len(id) > maxCorrelationIDLen {
			id = uuid.NewString()
		}

		c.Set(correlationIDKey, id)
		c.Header("X-Correlation-ID", id)
		c.Request = c.Request.WithContext(backend.WithCorrelationID(c.Request.Context(), id))

		c.Next()
	}
}

// GetCorrelationID returns the request's correlation id.
func GetCorrelationID(c *gin.Context) string {
	if value, ok := c.Get(correlationIDKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
