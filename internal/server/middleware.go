package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// rateLimit counts the request against the client's per-minute and per-hour limits
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		_, limits := s.settings()
		if limits.RequestsPerMinute == 0 && limits.RequestsPerHour == 0 {
			c.Next()
			return
		}

		result, err := s.limiter.CheckRequests(c.Request.Context(), c.ClientIP(), limits)
		if err != nil {
			// Redis trouble should not take the endpoint down
			s.logger.Error().Err(err).Msg("Rate limit check failed")
			c.Next()
			return
		}
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(result.SecondsToReset))
			abortWithError(c, http.StatusTooManyRequests, "rate_limit_exceeded",
				"request limit per "+result.LimitType+" exceeded")
			return
		}

		c.Next()
	}
}
