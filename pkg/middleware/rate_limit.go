package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/scamshield/pkg/common"
	"github.com/richxcame/scamshield/pkg/logger"
	"github.com/richxcame/scamshield/pkg/ratelimit"
	"go.uber.org/zap"
)

// RateLimit rejects requests from a client IP that exceeded a sliding window,
// before any handler work runs. Limiter faults fail open.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("rate limiter unavailable, allowing request",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if res.Remaining >= 0 {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}

		if !res.Allowed {
			secs := int((res.RetryAfter + time.Second - 1) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			logger.WithContext(c.Request.Context()).Info("request rate limited",
				zap.String("key", key),
				zap.String("window", res.Window),
			)
			common.AppErrorResponse(c, common.NewTooManyRequestsError(res.Reason, nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
