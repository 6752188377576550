package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kutable/internal/pkg/response"
)

const requestIDKey = "request_id"

// RequestID propagates X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs one line per request, at a level chosen by status code.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}

		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("client_ip", c.ClientIP()).
			Str("user_id", c.GetString("user_id")).
			Str("request_id", c.GetString(requestIDKey)).
			Dur("latency", time.Since(start)).
			Msg("request processed")
	}
}

// ErrorLogger recovers from panics and logs them with the stack. Clients only get a generic 500.
func ErrorLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error().
					Err(fmt.Errorf("%v", recovered)).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("request_id", c.GetString(requestIDKey)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", response.GenericMessage)
				c.Abort()
			}
		}()

		c.Next()
	}
}
