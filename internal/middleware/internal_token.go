package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kutable/internal/pkg/response"
)

// InternalTokenAuth protects service-to-service endpoints with a static bearer token
// (the Supabase service-role key).
func InternalTokenAuth(expected string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			logAuthFailure(log, c, http.StatusInternalServerError, "token_not_configured")
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal token is not configured")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logAuthFailure(log, c, http.StatusUnauthorized, "missing_auth")
			response.Error(c, http.StatusUnauthorized, "AUTH_MISSING", "Authorization header is required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logAuthFailure(log, c, http.StatusUnauthorized, "invalid_auth_format")
			response.Error(c, http.StatusUnauthorized, "AUTH_INVALID", "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), []byte(expected)) != 1 {
			logAuthFailure(log, c, http.StatusUnauthorized, "invalid_token")
			response.Error(c, http.StatusUnauthorized, "AUTH_INVALID", "Invalid internal token")
			c.Abort()
			return
		}

		c.Next()
	}
}

func logAuthFailure(log zerolog.Logger, c *gin.Context, status int, reason string) {
	log.Warn().
		Int("status", status).
		Str("path", c.Request.URL.Path).
		Str("request_id", c.GetString(requestIDKey)).
		Str("reason", reason).
		Msg("internal auth rejected")
}
