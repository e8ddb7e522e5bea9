package middleware

import (
	"github.com/flexprice/collections/internal/types"
	"github.com/gin-gonic/gin"
)

// RequestContextMiddleware puts the request id, agency and actor headers on the
// request context. A request id is generated when the caller sends none.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(types.HeaderRequestID)
		if requestID == "" {
			requestID = types.GenerateUUID()
		}
		c.Header(types.HeaderRequestID, requestID)

		ctx := types.SetRequestID(c.Request.Context(), requestID)
		if agencyID := c.GetHeader(types.HeaderAgencyID); agencyID != "" {
			ctx = types.SetAgencyID(ctx, agencyID)
		}
		if actor := c.GetHeader(types.HeaderActor); actor != "" {
			ctx = types.SetUserID(ctx, actor)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
