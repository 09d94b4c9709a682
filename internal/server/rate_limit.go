package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sprintline/sprintline/internal/observability/logger"
)

const rateLimitEndpoint = "generation"

// CheckRateLimit consumes one unit of the caller's generation quota.
// A failed limiter backend is a hard 503, never a silent allow.
func (s *Server) CheckRateLimit(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	result, err := s.limiter.Check(ctx, resolved.ID.String())
	if err != nil {
		logger.FromContext(ctx).Warn("rate limit check failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if !result.Allowed {
		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimitDenied(ctx, rateLimitEndpoint, "quota")
		}
		retryAfter := int(result.ResetAt.Sub(s.clock.Now()).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, result)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordRateLimitAllowed(ctx, rateLimitEndpoint)
	}
	c.JSON(http.StatusOK, result)
}

// GetRateLimitStatus reports the caller's window without consuming
// quota.
func (s *Server) GetRateLimitStatus(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	result, err := s.limiter.Status(ctx, resolved.ID.String())
	if err != nil {
		logger.FromContext(ctx).Warn("rate limit status failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, result)
}
