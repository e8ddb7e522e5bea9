package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flexprice/collections/internal/service"
	"github.com/flexprice/collections/internal/temporal/activities"
	"github.com/flexprice/collections/internal/temporal/models"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
)

type CollectionsWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env  *testsuite.TestWorkflowEnvironment
	acts *activities.CollectionsActivities
}

func TestCollectionsWorkflows(t *testing.T) {
	suite.Run(t, new(CollectionsWorkflowSuite))
}

func (s *CollectionsWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.acts = &activities.CollectionsActivities{}
	s.env.RegisterActivity(s.acts)
}

func (s *CollectionsWorkflowSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func (s *CollectionsWorkflowSuite) TestAnchorCycleRunWorkflow_UsesInputRunAt() {
	runAt := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	s.env.OnActivity(s.acts.RunAnchorCyclesActivity, mock.Anything, runAt).
		Return(&service.AnchorRunSummary{RunAt: runAt, Processed: 3, Created: 2, Skipped: 1}, nil).Once()

	s.env.ExecuteWorkflow(AnchorCycleRunWorkflow, models.AnchorCycleRunWorkflowInput{RunAt: &runAt})
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var summary service.AnchorRunSummary
	s.NoError(s.env.GetWorkflowResult(&summary))
	s.Equal(2, summary.Created)
}

func (s *CollectionsWorkflowSuite) TestBankPresentmentWorkflow_DefaultsToToday() {
	s.env.OnActivity(s.acts.BuildPresentmentActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, businessDate types.Date) (*service.PresentmentResult, error) {
			s.False(businessDate.IsZero())
			return &service.PresentmentResult{AttemptIDs: []string{"att_1"}}, nil
		}).Once()

	s.env.ExecuteWorkflow(BankPresentmentWorkflow, models.BankPresentmentWorkflowInput{})
	s.NoError(s.env.GetWorkflowError())

	var result service.PresentmentResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal([]string{"att_1"}, result.AttemptIDs)
}

func (s *CollectionsWorkflowSuite) TestBankPresentmentWorkflow_Error() {
	s.env.OnActivity(s.acts.BuildPresentmentActivity, mock.Anything, types.MustParseDate("2026-03-10")).
		Return(nil, errors.New("file store unavailable"))

	s.env.ExecuteWorkflow(BankPresentmentWorkflow, models.BankPresentmentWorkflowInput{
		BusinessDate: lo.ToPtr(types.MustParseDate("2026-03-10")),
	})
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *CollectionsWorkflowSuite) TestBankReconciliationWorkflow_IssuesFiscalForPaid() {
	input := models.BankReconciliationWorkflowInput{StorageKey: "bank-files/INBOUND/2026-03-11/RESP.txt"}
	s.env.OnActivity(s.acts.ReconcileStoredActivity, mock.Anything, input).
		Return(&service.ReconcileResult{Applied: 2, PaidChargeIDs: []string{"chg_1", "chg_2"}}, nil).Once()
	s.env.OnActivity(s.acts.AutorunFiscalActivity, mock.Anything, models.FiscalAutorunWorkflowInput{ChargeIDs: []string{"chg_1", "chg_2"}}).
		Return(&service.FiscalAutorunSummary{Enabled: true, Issued: 2}, nil).Once()

	s.env.ExecuteWorkflow(BankReconciliationWorkflow, input)
	s.NoError(s.env.GetWorkflowError())

	var result models.BankReconciliationWorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(2, result.Reconcile.Applied)
	s.Require().NotNil(result.Fiscal)
	s.Equal(2, result.Fiscal.Issued)
}

func (s *CollectionsWorkflowSuite) TestBankReconciliationWorkflow_NothingPaid() {
	input := models.BankReconciliationWorkflowInput{StorageKey: "bank-files/INBOUND/2026-03-11/RESP.txt"}
	s.env.OnActivity(s.acts.ReconcileStoredActivity, mock.Anything, input).
		Return(&service.ReconcileResult{Unmatched: 1}, nil).Once()

	s.env.ExecuteWorkflow(BankReconciliationWorkflow, input)
	s.NoError(s.env.GetWorkflowError())

	var result models.BankReconciliationWorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Nil(result.Fiscal)
}

func (s *CollectionsWorkflowSuite) TestBankReconciliationWorkflow_RequiresStorageKey() {
	s.env.ExecuteWorkflow(BankReconciliationWorkflow, models.BankReconciliationWorkflowInput{})
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *CollectionsWorkflowSuite) TestFiscalAutorunWorkflow() {
	s.env.OnActivity(s.acts.AutorunFiscalActivity, mock.Anything, models.FiscalAutorunWorkflowInput{}).
		Return(&service.FiscalAutorunSummary{Enabled: true, Issued: 4, Failed: 1}, nil).Once()

	s.env.ExecuteWorkflow(FiscalAutorunWorkflow, models.FiscalAutorunWorkflowInput{})
	s.NoError(s.env.GetWorkflowError())

	var summary service.FiscalAutorunSummary
	s.NoError(s.env.GetWorkflowResult(&summary))
	s.Equal(4, summary.Issued)
	s.Equal(1, summary.Failed)
}

func (s *CollectionsWorkflowSuite) TestFallbackPollWorkflow() {
	asOf := types.MustParseDate("2026-03-11")
	s.env.OnActivity(s.acts.OpenFallbackIntentsActivity, mock.Anything, models.OpenFallbackIntentsInput{AsOf: asOf}).
		Return(&service.FallbackRunSummary{Processed: 1, Opened: 1}, nil).Once()
	s.env.OnActivity(s.acts.PollFallbackIntentsActivity, mock.Anything).
		Return(&service.FallbackRunSummary{Processed: 3, Paid: 1, Expired: 1}, nil).Once()

	s.env.ExecuteWorkflow(FallbackPollWorkflow, models.FallbackPollWorkflowInput{AsOf: &asOf})
	s.NoError(s.env.GetWorkflowError())

	var result models.FallbackPollWorkflowResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(1, result.Opened.Opened)
	s.Equal(1, result.Polled.Paid)
	s.Equal(1, result.Polled.Expired)
}
