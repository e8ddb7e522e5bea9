package interceptor

import (
	"context"
	"time"

	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/types"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/workflow"
)

// LoggingInterceptor logs workflow failures and every activity run with its
// duration. Activities get the workflow id as request id so service logs and
// billing events of one run can be correlated.
type LoggingInterceptor struct {
	interceptor.WorkerInterceptorBase
	logger *logger.Logger
}

func NewLoggingInterceptor(log *logger.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{logger: log}
}

func (l *LoggingInterceptor) InterceptWorkflow(ctx workflow.Context, next interceptor.WorkflowInboundInterceptor) interceptor.WorkflowInboundInterceptor {
	return &workflowInboundInterceptor{
		WorkflowInboundInterceptorBase: interceptor.WorkflowInboundInterceptorBase{
			Next: next,
		},
	}
}

func (l *LoggingInterceptor) InterceptActivity(ctx context.Context, next interceptor.ActivityInboundInterceptor) interceptor.ActivityInboundInterceptor {
	return &activityInboundInterceptor{
		ActivityInboundInterceptorBase: interceptor.ActivityInboundInterceptorBase{
			Next: next,
		},
		logger: l.logger,
	}
}

type workflowInboundInterceptor struct {
	interceptor.WorkflowInboundInterceptorBase
}

// ExecuteWorkflow uses the replay-safe workflow logger only.
func (w *workflowInboundInterceptor) ExecuteWorkflow(ctx workflow.Context, in *interceptor.ExecuteWorkflowInput) (interface{}, error) {
	info := workflow.GetInfo(ctx)
	log := workflow.GetLogger(ctx)

	result, err := w.Next.ExecuteWorkflow(ctx, in)
	if err != nil {
		log.Error("workflow execution failed",
			"workflow_type", info.WorkflowType.Name,
			"workflow_id", info.WorkflowExecution.ID,
			"run_id", info.WorkflowExecution.RunID,
			"error", err,
		)
	}
	return result, err
}

type activityInboundInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	logger *logger.Logger
}

func (a *activityInboundInterceptor) ExecuteActivity(ctx context.Context, in *interceptor.ExecuteActivityInput) (interface{}, error) {
	info := activity.GetInfo(ctx)
	if types.GetRequestID(ctx) == "" {
		ctx = types.SetRequestID(ctx, info.WorkflowExecution.ID)
	}

	start := time.Now()
	result, err := a.Next.ExecuteActivity(ctx, in)

	fields := []interface{}{
		"activity_type", info.ActivityType.Name,
		"workflow_type", info.WorkflowType.Name,
		"workflow_id", info.WorkflowExecution.ID,
		"attempt", info.Attempt,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		a.logger.Errorw("activity failed", append(fields, "error", err)...)
		return result, err
	}
	a.logger.Infow("activity completed", fields...)
	return result, err
}
