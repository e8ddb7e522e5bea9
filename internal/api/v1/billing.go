package v1

import (
	"net/http"
	"time"

	"github.com/flexprice/collections/internal/api/dto"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/service"
	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	anchorCycleService service.AnchorCycleService
	log                *logger.Logger
}

func NewBillingHandler(anchorCycleService service.AnchorCycleService, log *logger.Logger) *BillingHandler {
	return &BillingHandler{
		anchorCycleService: anchorCycleService,
		log:                log,
	}
}

// RunAnchorCycles godoc
// POST /v1/billing/anchor-runs
func (h *BillingHandler) RunAnchorCycles(c *gin.Context) {
	var req dto.AnchorRunRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	summary, err := h.anchorCycleService.RunAnchorCycles(c.Request.Context(), req.RunAt(time.Now()))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// bindOptionalJSON binds the body when one was sent. An empty body keeps the
// zero request.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}
