package middleware

import (
	"fmt"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/scamshield/pkg/common"
	"github.com/richxcame/scamshield/pkg/logger"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500 envelope. The panic is logged
// with its stack and reported to Sentry when a hub is attached; the client
// only sees the request id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.WithContext(c.Request.Context()).Error("handler panicked",
				zap.Any("panic", rec),
				zap.String("route", c.FullPath()),
				zap.Stack("stack"),
			)
			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				hub.CaptureException(fmt.Errorf("panic in %s: %v", c.FullPath(), rec))
			}

			msg := "internal server error"
			if id := GetCorrelationID(c); id != "" {
				msg += " (request " + id + ")"
			}
			common.ErrorResponse(c, http.StatusInternalServerError, msg)
			c.Abort()
		}()

		c.Next()
	}
}
