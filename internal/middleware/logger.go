package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger logs every request and recovers from panics with a 500.
func RequestLogger(log *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := requestID(c)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(requestIDHeader, reqID)

		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error().
					Str("request_id", reqID).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("error", fmt.Sprintf("%v", recovered)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_ERROR",
						"message": "internal server error",
					},
				})
			}

			status := c.Writer.Status()
			var ev *zerolog.Event
			switch {
			case status >= http.StatusInternalServerError:
				ev = log.Error()
			case status >= http.StatusBadRequest:
				ev = log.Warn()
			default:
				ev = log.Info()
			}
			ev.Str("request_id", reqID).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("client_ip", c.ClientIP()).
				Str("staff_id", c.GetString("staff_id"))
			if len(c.Errors) > 0 {
				ev.Str("errors", c.Errors.String())
			}
			ev.Msg("request")
		}()

		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if id := c.GetHeader(requestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}
