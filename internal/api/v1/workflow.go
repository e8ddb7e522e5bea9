package v1

import (
	"net/http"

	"github.com/flexprice/collections/internal/api/dto"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	temporalservice "github.com/flexprice/collections/internal/temporal/service"
	"github.com/flexprice/collections/internal/types"
	"github.com/gin-gonic/gin"
)

// defaultWorkflowKey is used when the caller sends no dedupe key
const defaultWorkflowKey = "manual"

type WorkflowHandler struct {
	temporalService temporalservice.TemporalService
	log             *logger.Logger
}

func NewWorkflowHandler(temporalService temporalservice.TemporalService, log *logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		temporalService: temporalService,
		log:             log,
	}
}

// StartWorkflow godoc
// POST /v1/workflows/:workflow_type/runs
func (h *WorkflowHandler) StartWorkflow(c *gin.Context) {
	workflowType := types.TemporalWorkflowType(c.Param("workflow_type"))
	if err := workflowType.Validate(); err != nil {
		c.Error(err)
		return
	}

	var req dto.StartWorkflowRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	input, err := req.DecodeInput(workflowType)
	if err != nil {
		c.Error(err)
		return
	}

	key := req.Key
	if key == "" {
		key = defaultWorkflowKey
	}

	run, err := h.temporalService.ExecuteWorkflow(c.Request.Context(), workflowType, key, input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, dto.StartWorkflowResponse{
		WorkflowID:   run.GetID(),
		RunID:        run.GetRunID(),
		WorkflowType: workflowType.String(),
	})
}
