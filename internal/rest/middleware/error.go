package middleware

import (
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/sentry"
	sentrygo "github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler attached with c.Error. Server
// side failures are logged and reported to Sentry.
func ErrorHandler(log *logger.Logger, sentryService *sentry.Service, exposeInternal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := ierr.HTTPStatusFromErr(err)
		if status >= 500 {
			log.Errorw("request failed", "path", c.Request.URL.Path, "error", err)

			ctx := c.Request.Context()
			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				ctx = sentrygo.SetHubOnContext(ctx, hub)
			}
			sentryService.CaptureException(ctx, err)
		}
		c.JSON(status, ierr.NewErrorResponse(err, exposeInternal))
	}
}
