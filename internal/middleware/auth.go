package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	jwtsvc "kutable/internal/pkg/jwt"
	"kutable/internal/pkg/response"
)

// JWTAuth requires a valid Supabase access token and stores the caller in the context.
func JWTAuth(j *jwtsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid Authorization header")
			c.Abort()
			return
		}

		claims, err := j.ValidateToken(tokenStr)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			c.Abort()
			return
		}

		setCaller(c, claims)
		c.Next()
	}
}

// OptionalJWTAuth identifies the caller when a valid token is present and lets anonymous requests through.
func OptionalJWTAuth(j *jwtsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearerToken(c); ok {
			if claims, err := j.ValidateToken(tokenStr); err == nil {
				setCaller(c, claims)
			}
		}
		c.Next()
	}
}

func setCaller(c *gin.Context, claims *jwtsvc.Claims) {
	c.Set("user_id", claims.Subject)
	c.Set("email", claims.Email)
	c.Set("role", claims.Role)
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tokenStr, tokenStr != ""
}
