package worker

import (
	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/sentry"
	"github.com/flexprice/collections/internal/temporal/activities"
	"github.com/flexprice/collections/internal/temporal/interceptor"
	"github.com/flexprice/collections/internal/temporal/workflows"
	"go.temporal.io/sdk/client"
	sdkinterceptor "go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// NewCollectionsWorker creates the worker of the collections task queue with every
// workflow and activity registered. The caller starts and stops it.
func NewCollectionsWorker(
	c client.Client,
	cfg *config.Configuration,
	log *logger.Logger,
	sentryService *sentry.Service,
	acts *activities.CollectionsActivities,
) worker.Worker {
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		Interceptors: Interceptors(log, sentryService),
	})
	Register(w, acts)
	return w
}

// Interceptors returns the logging interceptor, followed by the Sentry
// interceptor when Sentry is enabled.
func Interceptors(log *logger.Logger, sentryService *sentry.Service) []sdkinterceptor.WorkerInterceptor {
	out := []sdkinterceptor.WorkerInterceptor{interceptor.NewLoggingInterceptor(log)}
	if sentryService.IsEnabled() {
		out = append(out, interceptor.NewSentryInterceptor(sentryService))
	}
	return out
}

// Register adds the collections workflows and activities to a registry.
func Register(r worker.Registry, acts *activities.CollectionsActivities) {
	for name, fn := range map[string]interface{}{
		workflows.WorkflowAnchorCycleRun:     workflows.AnchorCycleRunWorkflow,
		workflows.WorkflowBankPresentment:    workflows.BankPresentmentWorkflow,
		workflows.WorkflowBankReconciliation: workflows.BankReconciliationWorkflow,
		workflows.WorkflowFiscalAutorun:      workflows.FiscalAutorunWorkflow,
		workflows.WorkflowFallbackPoll:       workflows.FallbackPollWorkflow,
	} {
		r.RegisterWorkflowWithOptions(fn, workflow.RegisterOptions{Name: name})
	}
	r.RegisterActivity(acts)
}
