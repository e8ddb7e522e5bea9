package activities

import (
	"context"
	"time"

	"github.com/flexprice/collections/internal/service"
	"github.com/flexprice/collections/internal/temporal/models"
	"github.com/flexprice/collections/internal/types"
	"go.temporal.io/sdk/activity"
)

// Activity names - must match the registered method names
const (
	ActivityRunAnchorCycles     = "RunAnchorCyclesActivity"
	ActivityBuildPresentment    = "BuildPresentmentActivity"
	ActivityReconcileStored     = "ReconcileStoredActivity"
	ActivityAutorunFiscal       = "AutorunFiscalActivity"
	ActivityOpenFallbackIntents = "OpenFallbackIntentsActivity"
	ActivityPollFallbackIntents = "PollFallbackIntentsActivity"
)

// workerActor is recorded as the actor of events emitted by scheduled runs
const workerActor = "temporal_worker"

// CollectionsActivities wraps the collection services for the temporal worker.
type CollectionsActivities struct {
	anchorCycleService service.AnchorCycleService
	bankBatchService   service.BankBatchService
	fiscalService      service.FiscalService
	fallbackService    service.FallbackService
}

func NewCollectionsActivities(
	anchorCycleService service.AnchorCycleService,
	bankBatchService service.BankBatchService,
	fiscalService service.FiscalService,
	fallbackService service.FallbackService,
) *CollectionsActivities {
	return &CollectionsActivities{
		anchorCycleService: anchorCycleService,
		bankBatchService:   bankBatchService,
		fiscalService:      fiscalService,
		fallbackService:    fallbackService,
	}
}

func withActor(ctx context.Context) context.Context {
	if types.GetUserID(ctx) != "" {
		return ctx
	}
	return types.SetUserID(ctx, workerActor)
}

func (a *CollectionsActivities) RunAnchorCyclesActivity(ctx context.Context, runAt time.Time) (*service.AnchorRunSummary, error) {
	logger := activity.GetLogger(ctx)

	summary, err := a.anchorCycleService.RunAnchorCycles(withActor(ctx), runAt)
	if err != nil {
		logger.Error("Anchor cycle run failed", "run_at", runAt, "error", err)
		return nil, err
	}

	logger.Info("Anchor cycle run completed",
		"processed", summary.Processed,
		"created", summary.Created,
		"failed", summary.Failed)
	return summary, nil
}

func (a *CollectionsActivities) BuildPresentmentActivity(ctx context.Context, businessDate types.Date) (*service.PresentmentResult, error) {
	logger := activity.GetLogger(ctx)

	result, err := a.bankBatchService.BuildPresentment(withActor(ctx), businessDate)
	if err != nil {
		logger.Error("Bank presentment failed", "business_date", businessDate.String(), "error", err)
		return nil, err
	}
	return result, nil
}

func (a *CollectionsActivities) ReconcileStoredActivity(ctx context.Context, input models.BankReconciliationWorkflowInput) (*service.ReconcileResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	logger := activity.GetLogger(ctx)

	result, err := a.bankBatchService.ReconcileStored(withActor(ctx), input.StorageKey)
	if err != nil {
		logger.Error("Bank reconciliation failed", "storage_key", input.StorageKey, "error", err)
		return nil, err
	}

	logger.Info("Bank reconciliation completed",
		"storage_key", input.StorageKey,
		"applied", result.Applied,
		"unmatched", result.Unmatched,
		"status", result.Batch.Status)
	return result, nil
}

func (a *CollectionsActivities) AutorunFiscalActivity(ctx context.Context, input models.FiscalAutorunWorkflowInput) (*service.FiscalAutorunSummary, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx = withActor(ctx)
	if len(input.ChargeIDs) == 0 {
		return a.fiscalService.AutorunPending(ctx)
	}
	return a.fiscalService.AutorunFiscalForCharges(ctx, input.ChargeIDs)
}

func (a *CollectionsActivities) OpenFallbackIntentsActivity(ctx context.Context, input models.OpenFallbackIntentsInput) (*service.FallbackRunSummary, error) {
	return a.fallbackService.OpenScheduledIntents(withActor(ctx), input.AsOf)
}

func (a *CollectionsActivities) PollFallbackIntentsActivity(ctx context.Context) (*service.FallbackRunSummary, error) {
	return a.fallbackService.PollPendingIntents(withActor(ctx))
}
