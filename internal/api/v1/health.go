package v1

import (
	"net/http"

	"github.com/flexprice/collections/internal/api/dto"
	"github.com/flexprice/collections/internal/config"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	cfg *config.Configuration
}

func NewHealthHandler(cfg *config.Configuration) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok", Mode: string(h.cfg.Deployment.Mode)})
}
