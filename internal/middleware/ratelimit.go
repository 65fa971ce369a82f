package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/baggao-mto/citation-api/internal/models"
	"github.com/baggao-mto/citation-api/internal/service"
	appErrors "github.com/baggao-mto/citation-api/pkg/errors"
	"github.com/baggao-mto/citation-api/pkg/response"
)

// RateLimit throttles an action to max requests per actor within a
// fixed window. The actor is the authenticated user when present and
// the client IP otherwise. When Redis is unavailable the limiter fails
// open: throttling here is advisory, not a security boundary.
func RateLimit(cache *service.CacheService, logger *zap.Logger, action string, max int64, window time.Duration) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if cache == nil || !cache.Enabled() || max <= 0 {
			c.Next()
			return
		}

		actor := c.ClientIP()
		if claims, ok := c.Get(ContextUserKey); ok {
			actor = claims.(*models.JWTClaims).UserID
		}

		key := fmt.Sprintf("ratelimit:%s:%s", action, actor)
		count, err := cache.IncrementWindow(c.Request.Context(), key, window)
		if err != nil {
			logger.Warn("rate limit check failed, allowing request",
				zap.String("action", action), zap.Error(err))
			c.Next()
			return
		}

		if count > max {
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited,
				fmt.Sprintf("too many %s attempts, try again later", action)))
			c.Abort()
			return
		}

		c.Next()
	}
}
