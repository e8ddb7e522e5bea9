package v1

import (
	"io"
	"net/http"
	"time"

	"github.com/flexprice/collections/internal/api/dto"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/service"
	"github.com/gin-gonic/gin"
)

// maxBankFileSize bounds inbound uploads
const maxBankFileSize = 32 << 20

type BankBatchHandler struct {
	bankBatchService service.BankBatchService
	log              *logger.Logger
}

func NewBankBatchHandler(bankBatchService service.BankBatchService, log *logger.Logger) *BankBatchHandler {
	return &BankBatchHandler{
		bankBatchService: bankBatchService,
		log:              log,
	}
}

// BuildPresentment godoc
// POST /v1/bank-batches/outbound
func (h *BankBatchHandler) BuildPresentment(c *gin.Context) {
	var req dto.OutboundBatchRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.bankBatchService.BuildPresentment(c.Request.Context(), req.Date(time.Now()))
	if err != nil {
		c.Error(err)
		return
	}
	if result.Batch == nil {
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ReconcileInbound godoc
// POST /v1/bank-batches/inbound?file_name=...
// The request body is the raw bank response file.
func (h *BankBatchHandler) ReconcileInbound(c *gin.Context) {
	var query dto.InboundBatchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if err := query.Validate(); err != nil {
		c.Error(err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBankFileSize))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Could not read the uploaded file").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.bankBatchService.ReconcileInbound(c.Request.Context(), query.FileName, data)
	if err != nil {
		c.Error(err)
		return
	}

	h.log.Infow("bank response file reconciled",
		"file_name", query.FileName,
		"applied", result.Applied,
		"duplicates", result.Duplicates,
		"unmatched", result.Unmatched)
	c.JSON(http.StatusOK, result)
}
