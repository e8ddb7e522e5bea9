package models

import (
	"time"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/service"
	"github.com/flexprice/collections/internal/types"
)

// ===================== Anchor Cycle Run =====================

// AnchorCycleRunWorkflowInput represents the input for the anchor cycle run workflow
type AnchorCycleRunWorkflowInput struct {
	// RunAt defaults to the workflow start time
	RunAt *time.Time `json:"run_at,omitempty"`
}

func (i *AnchorCycleRunWorkflowInput) Validate() error {
	if i.RunAt != nil && i.RunAt.IsZero() {
		return ierr.NewError("run_at must not be zero").
			WithHint("Omit run_at to bill at the workflow start time").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ===================== Bank Presentment =====================

// BankPresentmentWorkflowInput represents the input for the bank presentment workflow
type BankPresentmentWorkflowInput struct {
	// BusinessDate defaults to the UTC date of the workflow start
	BusinessDate *types.Date `json:"business_date,omitempty"`
}

func (i *BankPresentmentWorkflowInput) Validate() error {
	return nil
}

// ===================== Bank Reconciliation =====================

// BankReconciliationWorkflowInput represents the input for the bank reconciliation workflow
type BankReconciliationWorkflowInput struct {
	// StorageKey is the response file already uploaded to the file store
	StorageKey string `json:"storage_key"`
}

func (i *BankReconciliationWorkflowInput) Validate() error {
	if i.StorageKey == "" {
		return ierr.NewError("storage_key is required").
			WithHint("Storage key of the bank response file is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BankReconciliationWorkflowResult represents the result of the bank reconciliation workflow
type BankReconciliationWorkflowResult struct {
	Reconcile *service.ReconcileResult      `json:"reconcile"`
	Fiscal    *service.FiscalAutorunSummary `json:"fiscal,omitempty"`
}

// ===================== Fiscal Autorun =====================

// FiscalAutorunWorkflowInput represents the input for the fiscal autorun workflow
type FiscalAutorunWorkflowInput struct {
	// ChargeIDs limits the run to these charges. Empty runs over every paid charge
	// without an issued document.
	ChargeIDs []string `json:"charge_ids,omitempty"`
}

func (i *FiscalAutorunWorkflowInput) Validate() error {
	for _, id := range i.ChargeIDs {
		if id == "" {
			return ierr.NewError("charge_ids must not contain empty ids").
				WithHint("Please provide valid charge IDs").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// ===================== Fallback Poll =====================

// FallbackPollWorkflowInput represents the input for the fallback poll workflow
type FallbackPollWorkflowInput struct {
	// AsOf bounds the fallback attempts opened in this run, defaults to today (UTC)
	AsOf *types.Date `json:"as_of,omitempty"`
}

func (i *FallbackPollWorkflowInput) Validate() error {
	return nil
}

// FallbackPollWorkflowResult represents the result of the fallback poll workflow
type FallbackPollWorkflowResult struct {
	Opened *service.FallbackRunSummary `json:"opened"`
	Polled *service.FallbackRunSummary `json:"polled"`
}

// OpenFallbackIntentsInput is the input of the activity opening scheduled intents
type OpenFallbackIntentsInput struct {
	AsOf types.Date `json:"as_of"`
}
