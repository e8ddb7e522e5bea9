package interceptor

import (
	"context"
	"fmt"

	"github.com/flexprice/collections/internal/sentry"
	sentrygo "github.com/getsentry/sentry-go"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/workflow"
)

// SentryInterceptor reports failed workflows and activities to Sentry and wraps
// every activity in a monitoring span.
type SentryInterceptor struct {
	interceptor.WorkerInterceptorBase
	sentry *sentry.Service
}

func NewSentryInterceptor(sentryService *sentry.Service) *SentryInterceptor {
	return &SentryInterceptor{sentry: sentryService}
}

func (s *SentryInterceptor) InterceptWorkflow(ctx workflow.Context, next interceptor.WorkflowInboundInterceptor) interceptor.WorkflowInboundInterceptor {
	return &sentryWorkflowInboundInterceptor{
		WorkflowInboundInterceptorBase: interceptor.WorkflowInboundInterceptorBase{
			Next: next,
		},
		sentry: s.sentry,
	}
}

func (s *SentryInterceptor) InterceptActivity(ctx context.Context, next interceptor.ActivityInboundInterceptor) interceptor.ActivityInboundInterceptor {
	return &sentryActivityInboundInterceptor{
		ActivityInboundInterceptorBase: interceptor.ActivityInboundInterceptorBase{
			Next: next,
		},
		sentry: s.sentry,
	}
}

type sentryWorkflowInboundInterceptor struct {
	interceptor.WorkflowInboundInterceptorBase
	sentry *sentry.Service
}

func (w *sentryWorkflowInboundInterceptor) ExecuteWorkflow(ctx workflow.Context, in *interceptor.ExecuteWorkflowInput) (interface{}, error) {
	result, err := w.Next.ExecuteWorkflow(ctx, in)

	// a replayed failure was already reported by the first execution
	if err != nil && !workflow.IsReplaying(ctx) {
		info := workflow.GetInfo(ctx)
		w.sentry.CaptureException(context.Background(), fmt.Errorf("temporal workflow failed: %s (ID: %s) - %w",
			info.WorkflowType.Name,
			info.WorkflowExecution.ID,
			err,
		))
	}
	return result, err
}

type sentryActivityInboundInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	sentry *sentry.Service
}

func (a *sentryActivityInboundInterceptor) ExecuteActivity(ctx context.Context, in *interceptor.ExecuteActivityInput) (interface{}, error) {
	if !a.sentry.IsEnabled() {
		return a.Next.ExecuteActivity(ctx, in)
	}

	info := activity.GetInfo(ctx)
	span, spanCtx := a.sentry.StartMonitoringSpan(ctx, "temporal.activity."+info.ActivityType.Name, map[string]interface{}{
		"activity_type": info.ActivityType.Name,
		"activity_id":   info.ActivityID,
		"workflow_type": info.WorkflowType.Name,
		"workflow_id":   info.WorkflowExecution.ID,
		"run_id":        info.WorkflowExecution.RunID,
		"task_queue":    info.TaskQueue,
		"attempt":       info.Attempt,
	})

	result, err := a.Next.ExecuteActivity(spanCtx, in)

	if span != nil {
		if err != nil {
			span.Status = sentrygo.SpanStatusInternalError
			span.SetData("error", err.Error())
		}
		span.Finish()
	}
	if err != nil {
		a.sentry.CaptureException(spanCtx, fmt.Errorf("temporal activity failed: %s - %w", info.ActivityType.Name, err))
	}
	return result, err
}
