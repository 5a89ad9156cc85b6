package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wafiPortal/internal/session"
)

const sessionIDKey = "sessionID"

// SessionMiddleware resolves the browser session from its signed cookie,
// starting a new session when the cookie is missing, expired or forged.
func SessionMiddleware(signer *session.CookieSigner, cookieName string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sid string
		if raw, err := c.Cookie(cookieName); err == nil && raw != "" {
			parsed, err := signer.Parse(raw)
			if err != nil {
				LoggerFromContext(c).Info("discarding session cookie", slog.Any("error", err))
			} else {
				sid = parsed
			}
		}

		if sid == "" {
			sid = session.NewID()
			token, err := signer.Issue(sid)
			if err != nil {
				LoggerFromContext(c).Error("issue session cookie failed", slog.Any("error", err))
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, token, int(signer.TTL().Seconds()), "/", "", secure, true)
		}

		c.Set(sessionIDKey, sid)
		c.Next()
	}
}

// GetSessionID returns the browser session id set by SessionMiddleware.
func GetSessionID(c *gin.Context) string {
	if value, ok := c.Get(sessionIDKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
