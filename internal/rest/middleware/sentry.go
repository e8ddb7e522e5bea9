package middleware

import (
	"time"

	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/types"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// SentryMiddleware puts a request scoped Sentry hub on the context and recovers
// panics into Sentry before re-panicking.
func SentryMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.Sentry.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// SentryRequestTagsMiddleware tags the request hub with the request and agency ids.
func SentryRequestTagsMiddleware(c *gin.Context) {
	hub := sentrygin.GetHubFromContext(c)
	if hub == nil {
		c.Next()
		return
	}
	ctx := c.Request.Context()
	if requestID := types.GetRequestID(ctx); requestID != "" {
		hub.Scope().SetTag("request_id", requestID)
	}
	if agencyID := types.GetAgencyID(ctx); agencyID != "" {
		hub.Scope().SetTag("agency_id", agencyID)
	}
	c.Next()
}
