package dto

import (
	"encoding/json"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/temporal/models"
	"github.com/flexprice/collections/internal/types"
)

// StartWorkflowRequest starts one of the collections workflows out of schedule.
// Input is decoded into the workflow's own input type.
type StartWorkflowRequest struct {
	// Key dedupes concurrent starts: a run already in progress for the same key
	// is returned instead of a new one
	Key   string          `json:"key,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// DecodeInput returns the typed, validated input for the workflow type.
func (r *StartWorkflowRequest) DecodeInput(workflowType types.TemporalWorkflowType) (interface{}, error) {
	var input interface {
		Validate() error
	}
	switch workflowType {
	case types.TemporalAnchorCycleRunWorkflow:
		input = &models.AnchorCycleRunWorkflowInput{}
	case types.TemporalBankPresentmentWorkflow:
		input = &models.BankPresentmentWorkflowInput{}
	case types.TemporalBankReconciliationWorkflow:
		input = &models.BankReconciliationWorkflowInput{}
	case types.TemporalFiscalAutorunWorkflow:
		input = &models.FiscalAutorunWorkflowInput{}
	case types.TemporalFallbackPollWorkflow:
		input = &models.FallbackPollWorkflowInput{}
	default:
		return nil, workflowType.Validate()
	}

	if len(r.Input) > 0 {
		if err := json.Unmarshal(r.Input, input); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Invalid input for %s", workflowType).
				Mark(ierr.ErrValidation)
		}
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return input, nil
}

// StartWorkflowResponse identifies the started (or already running) execution
type StartWorkflowResponse struct {
	WorkflowID   string `json:"workflow_id"`
	RunID        string `json:"run_id"`
	WorkflowType string `json:"workflow_type"`
}
