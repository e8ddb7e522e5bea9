package v1

import (
	"net/http"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/service"
	"github.com/gin-gonic/gin"
)

type FiscalHandler struct {
	fiscalService service.FiscalService
	log           *logger.Logger
}

func NewFiscalHandler(fiscalService service.FiscalService, log *logger.Logger) *FiscalHandler {
	return &FiscalHandler{
		fiscalService: fiscalService,
		log:           log,
	}
}

// IssueFiscalDocument godoc
// POST /v1/charges/:id/fiscal-documents
// Issuer failures are reported in the body with ok=false.
func (h *FiscalHandler) IssueFiscalDocument(c *gin.Context) {
	var req service.IssueFiscalRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	req.ChargeID = c.Param("id")

	result, err := h.fiscalService.IssueFiscalForCharge(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
