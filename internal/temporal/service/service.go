package service

import (
	"context"
	"errors"

	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/temporal/models"
	"github.com/flexprice/collections/internal/types"
	enums "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
)

// TemporalService starts and schedules the collections workflows
type TemporalService interface {
	// ExecuteWorkflow starts the workflow with a deterministic id derived from
	// identifier. A run already in progress for the same id is returned as is.
	ExecuteWorkflow(ctx context.Context, workflowType types.TemporalWorkflowType, identifier string, input interface{}) (client.WorkflowRun, error)

	// EnsureSchedules creates the recurring workflow schedules that do not exist yet
	EnsureSchedules(ctx context.Context) error
}

type temporalService struct {
	client client.Client
	config *config.Configuration
	logger *logger.Logger
}

// NewTemporalService creates a new temporal service instance
func NewTemporalService(c client.Client, cfg *config.Configuration, log *logger.Logger) TemporalService {
	return &temporalService{client: c, config: cfg, logger: log}
}

func (s *temporalService) ExecuteWorkflow(ctx context.Context, workflowType types.TemporalWorkflowType, identifier string, input interface{}) (client.WorkflowRun, error) {
	if err := workflowType.Validate(); err != nil {
		return nil, err
	}
	if identifier == "" {
		return nil, ierr.NewError("workflow identifier is required").
			WithHint("Workflow identifier cannot be empty").
			Mark(ierr.ErrValidation)
	}

	opts := client.StartWorkflowOptions{
		ID:                    workflowType.WorkflowID(identifier),
		TaskQueue:             s.config.Temporal.TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, workflowType.String(), input)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to start workflow %s", workflowType).
			WithReportableDetails(map[string]interface{}{"workflow_id": opts.ID}).
			Mark(ierr.ErrSystem)
	}

	s.logger.Infow("started workflow",
		"workflow_type", workflowType,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return run, nil
}

type scheduleDef struct {
	workflowType types.TemporalWorkflowType
	cron         string
	input        interface{}
}

func (s *temporalService) schedules() []scheduleDef {
	sc := s.config.Temporal.Schedules
	return []scheduleDef{
		{types.TemporalAnchorCycleRunWorkflow, sc.AnchorCycleRun, models.AnchorCycleRunWorkflowInput{}},
		{types.TemporalBankPresentmentWorkflow, sc.BankPresentment, models.BankPresentmentWorkflowInput{}},
		{types.TemporalFiscalAutorunWorkflow, sc.FiscalAutorun, models.FiscalAutorunWorkflowInput{}},
		{types.TemporalFallbackPollWorkflow, sc.FallbackPoll, models.FallbackPollWorkflowInput{}},
	}
}

func (s *temporalService) EnsureSchedules(ctx context.Context) error {
	for _, def := range s.schedules() {
		if def.cron == "" {
			continue
		}
		id := def.workflowType.WorkflowID("schedule")
		_, err := s.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID: id,
			Spec: client.ScheduleSpec{
				CronExpressions: []string{def.cron},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        def.workflowType.WorkflowID("scheduled"),
				Workflow:  def.workflowType.String(),
				TaskQueue: s.config.Temporal.TaskQueue,
				Args:      []interface{}{def.input},
			},
		})
		if err != nil {
			if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
				s.logger.Debugw("workflow schedule already exists", "schedule_id", id)
				continue
			}
			return ierr.WithError(err).
				WithHintf("Failed to create schedule %s", id).
				Mark(ierr.ErrSystem)
		}
		s.logger.Infow("created workflow schedule", "schedule_id", id, "cron", def.cron)
	}
	return nil
}
