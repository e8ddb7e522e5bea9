package workflows

import (
	"time"

	"github.com/flexprice/collections/internal/service"
	"github.com/flexprice/collections/internal/temporal/activities"
	"github.com/flexprice/collections/internal/temporal/models"
	"github.com/flexprice/collections/internal/types"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow names - must match the function names
const (
	WorkflowAnchorCycleRun     = "AnchorCycleRunWorkflow"
	WorkflowBankPresentment    = "BankPresentmentWorkflow"
	WorkflowBankReconciliation = "BankReconciliationWorkflow"
	WorkflowFiscalAutorun      = "FiscalAutorunWorkflow"
	WorkflowFallbackPoll       = "FallbackPollWorkflow"
)

// batchActivityOptions fit runs that walk every subscription or every pending item.
func batchActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second * 10,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute * 10,
			MaximumAttempts:    3,
		},
	})
}

// AnchorCycleRunWorkflow bills every subscription whose anchor is due.
func AnchorCycleRunWorkflow(ctx workflow.Context, input models.AnchorCycleRunWorkflowInput) (*service.AnchorRunSummary, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	logger := workflow.GetLogger(ctx)
	ctx = batchActivityOptions(ctx)

	runAt := workflow.Now(ctx).UTC()
	if input.RunAt != nil {
		runAt = input.RunAt.UTC()
	}

	var summary service.AnchorRunSummary
	if err := workflow.ExecuteActivity(ctx, activities.ActivityRunAnchorCycles, runAt).Get(ctx, &summary); err != nil {
		logger.Error("Anchor cycle run workflow failed", "error", err)
		return nil, err
	}
	return &summary, nil
}

// BankPresentmentWorkflow sends the direct debits due on the business date to the bank.
func BankPresentmentWorkflow(ctx workflow.Context, input models.BankPresentmentWorkflowInput) (*service.PresentmentResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	logger := workflow.GetLogger(ctx)
	ctx = batchActivityOptions(ctx)

	businessDate := types.DateOf(workflow.Now(ctx).UTC())
	if input.BusinessDate != nil {
		businessDate = *input.BusinessDate
	}

	var result service.PresentmentResult
	if err := workflow.ExecuteActivity(ctx, activities.ActivityBuildPresentment, businessDate).Get(ctx, &result); err != nil {
		logger.Error("Bank presentment workflow failed", "business_date", businessDate.String(), "error", err)
		return nil, err
	}
	return &result, nil
}

// BankReconciliationWorkflow applies a stored bank response file and then issues the
// fiscal documents that could not be issued while reconciling.
func BankReconciliationWorkflow(ctx workflow.Context, input models.BankReconciliationWorkflowInput) (*models.BankReconciliationWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	logger := workflow.GetLogger(ctx)
	ctx = batchActivityOptions(ctx)

	result := &models.BankReconciliationWorkflowResult{}
	if err := workflow.ExecuteActivity(ctx, activities.ActivityReconcileStored, input).Get(ctx, &result.Reconcile); err != nil {
		logger.Error("Bank reconciliation workflow failed", "storage_key", input.StorageKey, "error", err)
		return nil, err
	}

	if len(result.Reconcile.PaidChargeIDs) == 0 {
		return result, nil
	}
	fiscalInput := models.FiscalAutorunWorkflowInput{ChargeIDs: result.Reconcile.PaidChargeIDs}
	if err := workflow.ExecuteActivity(ctx, activities.ActivityAutorunFiscal, fiscalInput).Get(ctx, &result.Fiscal); err != nil {
		// documents left unissued are picked up by the next fiscal autorun
		logger.Warn("Fiscal autorun after reconciliation failed", "error", err)
	}
	return result, nil
}

// FiscalAutorunWorkflow issues fiscal documents for paid charges.
func FiscalAutorunWorkflow(ctx workflow.Context, input models.FiscalAutorunWorkflowInput) (*service.FiscalAutorunSummary, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	logger := workflow.GetLogger(ctx)
	ctx = batchActivityOptions(ctx)

	var summary service.FiscalAutorunSummary
	if err := workflow.ExecuteActivity(ctx, activities.ActivityAutorunFiscal, input).Get(ctx, &summary); err != nil {
		logger.Error("Fiscal autorun workflow failed", "error", err)
		return nil, err
	}
	return &summary, nil
}

// FallbackPollWorkflow opens intents for due fallback attempts and refreshes the
// pending ones.
func FallbackPollWorkflow(ctx workflow.Context, input models.FallbackPollWorkflowInput) (*models.FallbackPollWorkflowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	logger := workflow.GetLogger(ctx)
	ctx = batchActivityOptions(ctx)

	asOf := types.DateOf(workflow.Now(ctx).UTC())
	if input.AsOf != nil {
		asOf = *input.AsOf
	}

	result := &models.FallbackPollWorkflowResult{}
	err := workflow.ExecuteActivity(ctx, activities.ActivityOpenFallbackIntents, models.OpenFallbackIntentsInput{AsOf: asOf}).
		Get(ctx, &result.Opened)
	if err != nil {
		logger.Error("Opening fallback intents failed", "as_of", asOf.String(), "error", err)
		return nil, err
	}

	if err := workflow.ExecuteActivity(ctx, activities.ActivityPollFallbackIntents).Get(ctx, &result.Polled); err != nil {
		logger.Error("Polling fallback intents failed", "error", err)
		return nil, err
	}
	return result, nil
}
