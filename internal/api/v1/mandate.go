package v1

import (
	"net/http"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/service"
	"github.com/gin-gonic/gin"
)

type MandateHandler struct {
	mandateService service.MandateService
	log            *logger.Logger
}

func NewMandateHandler(mandateService service.MandateService, log *logger.Logger) *MandateHandler {
	return &MandateHandler{
		mandateService: mandateService,
		log:            log,
	}
}

// GetMandate godoc
// GET /v1/mandates/:id
func (h *MandateHandler) GetMandate(c *gin.Context) {
	m, err := h.mandateService.GetMandate(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// TransitionMandate godoc
// POST /v1/mandates/:id/transitions
func (h *MandateHandler) TransitionMandate(c *gin.Context) {
	var req service.TransitionMandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	req.MandateID = c.Param("id")

	m, err := h.mandateService.TransitionMandate(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}
