package cron

import (
	"net/http"
	"time"

	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/service"
	"github.com/flexprice/collections/internal/types"
	"github.com/gin-gonic/gin"
)

// CollectionsCronHandler exposes the periodic fallback and fiscal sweeps for
// deployments driven by an external scheduler instead of temporal schedules.
type CollectionsCronHandler struct {
	fallbackService service.FallbackService
	fiscalService   service.FiscalService
	logger          *logger.Logger
}

// NewCollectionsCronHandler creates a new collections cron handler
func NewCollectionsCronHandler(
	fallbackService service.FallbackService,
	fiscalService service.FiscalService,
	logger *logger.Logger,
) *CollectionsCronHandler {
	return &CollectionsCronHandler{
		fallbackService: fallbackService,
		fiscalService:   fiscalService,
		logger:          logger,
	}
}

// PollFallbackIntents opens the intents due today and refreshes the pending ones
func (h *CollectionsCronHandler) PollFallbackIntents(c *gin.Context) {
	now := time.Now().UTC()
	h.logger.Infow("starting fallback poll cron job", "time", now.Format(time.RFC3339))
	ctx := c.Request.Context()

	opened, err := h.fallbackService.OpenScheduledIntents(ctx, types.DateOf(now))
	if err != nil {
		h.logger.Errorw("failed to open scheduled fallback intents", "error", err)
		c.Error(err)
		return
	}

	polled, err := h.fallbackService.PollPendingIntents(ctx)
	if err != nil {
		h.logger.Errorw("failed to poll fallback intents", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed fallback poll cron job",
		"opened", opened.Opened,
		"paid", polled.Paid,
		"expired", polled.Expired)
	c.JSON(http.StatusOK, gin.H{"status": "success", "opened": opened, "polled": polled})
}

// AutorunFiscal issues documents for paid charges that have none yet
func (h *CollectionsCronHandler) AutorunFiscal(c *gin.Context) {
	h.logger.Infow("starting fiscal autorun cron job", "time", time.Now().UTC().Format(time.RFC3339))

	summary, err := h.fiscalService.AutorunPending(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to run fiscal autorun", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed fiscal autorun cron job", "issued", summary.Issued, "failed", summary.Failed)
	c.JSON(http.StatusOK, gin.H{"status": "success", "fiscal": summary})
}
