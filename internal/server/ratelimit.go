package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/inventory/internal/observability/logger"
	"go.uber.org/zap"
)

// IngestRateLimit throttles batch uploads per identity account. Redis
// failures let the request through.
func (s *Server) IngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.ingestLimiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := rateLimitEndpoint(c)
		res, err := s.ingestLimiter.AllowAccount(ctx, accountFrom(c))
		if err != nil {
			logger.FromContext(ctx).Warn("ingest rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
		s.obsMetrics.RecordRateLimit(ctx, endpoint, res.Allowed)
		if !res.Allowed {
			logger.FromContext(ctx).Warn("ingest rate limit exceeded", zap.String("endpoint", endpoint))
			seconds := int(math.Ceil(res.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(seconds, 1)))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func rateLimitEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
