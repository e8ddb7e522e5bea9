package v1

import (
	"net/http"

	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/service"
	"github.com/gin-gonic/gin"
)

type FallbackHandler struct {
	fallbackService service.FallbackService
	log             *logger.Logger
}

func NewFallbackHandler(fallbackService service.FallbackService, log *logger.Logger) *FallbackHandler {
	return &FallbackHandler{
		fallbackService: fallbackService,
		log:             log,
	}
}

// CreateIntent godoc
// POST /v1/charges/:id/fallback-intents
func (h *FallbackHandler) CreateIntent(c *gin.Context) {
	intent, err := h.fallbackService.CreateIntentForCharge(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

// GetIntent godoc
// GET /v1/fallback-intents/:id
func (h *FallbackHandler) GetIntent(c *gin.Context) {
	intent, err := h.fallbackService.GetIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

// RefreshIntent godoc
// POST /v1/fallback-intents/:id/refresh
func (h *FallbackHandler) RefreshIntent(c *gin.Context) {
	intent, err := h.fallbackService.RefreshIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

// CancelIntent godoc
// POST /v1/fallback-intents/:id/cancel
func (h *FallbackHandler) CancelIntent(c *gin.Context) {
	intent, err := h.fallbackService.CancelIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, intent)
}
