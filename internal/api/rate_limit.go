package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wafiPortal/internal/api/middleware"
)

// rateLimit caps POSTs per client IP and scope within a fixed window. Counter
// failures let the request through.
func rateLimit(p pages, counter redisRateCounter, scope string, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		secs := int64(window / time.Second)
		if secs < 1 {
			secs = 1
		}
		bucket := time.Now().Unix() / secs
		key := "wafi:rate:" + scope + ":" + c.ClientIP() + ":" + strconv.FormatInt(bucket, 10)
		count, err := hit(c.Request.Context(), counter, key, window)
		if err != nil {
			middleware.LoggerFromContext(c).Warn("rate counter unavailable", slog.Any("error", err))
			c.Next()
			return
		}
		if count > limit {
			c.Header("Retry-After", strconv.FormatInt(secs, 10))
			showMessage(p, c, http.StatusTooManyRequests, "محاولات كثيرة", msgRateLimited, c.Request.URL.Path, "العودة")
			c.Abort()
			return
		}
		c.Next()
	}
}
