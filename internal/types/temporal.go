package types

import (
	"fmt"
	"strings"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/samber/lo"
)

// TemporalWorkflowType represents the type of workflow
type TemporalWorkflowType string

const (
	TemporalAnchorCycleRunWorkflow     TemporalWorkflowType = "AnchorCycleRunWorkflow"
	TemporalBankPresentmentWorkflow    TemporalWorkflowType = "BankPresentmentWorkflow"
	TemporalBankReconciliationWorkflow TemporalWorkflowType = "BankReconciliationWorkflow"
	TemporalFiscalAutorunWorkflow      TemporalWorkflowType = "FiscalAutorunWorkflow"
	TemporalFallbackPollWorkflow       TemporalWorkflowType = "FallbackPollWorkflow"
)

var allowedWorkflows = []TemporalWorkflowType{
	TemporalAnchorCycleRunWorkflow,
	TemporalBankPresentmentWorkflow,
	TemporalBankReconciliationWorkflow,
	TemporalFiscalAutorunWorkflow,
	TemporalFallbackPollWorkflow,
}

// String returns the string representation of the workflow type
func (w TemporalWorkflowType) String() string {
	return string(w)
}

// Validate validates the workflow type
func (w TemporalWorkflowType) Validate() error {
	if lo.Contains(allowedWorkflows, w) {
		return nil
	}

	return ierr.NewError("invalid workflow type").
		WithHint(fmt.Sprintf("Workflow type must be one of: %s", strings.Join(lo.Map(allowedWorkflows, func(w TemporalWorkflowType, _ int) string { return string(w) }), ", "))).
		Mark(ierr.ErrValidation)
}

// WorkflowID returns the workflow ID for the workflow with given identifier. Using a
// deterministic id lets temporal reject a second run for the same identifier.
func (w TemporalWorkflowType) WorkflowID(identifier string) string {
	return string(w) + "-" + identifier
}
