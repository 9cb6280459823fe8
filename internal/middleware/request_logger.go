package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"battle-chat/internal/observability"
)

// RequestLogger emits one structured log line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		log.Info().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", c.Writer.Status()).
			Str("ip", observability.IPFromRequest(c.Request)).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
