package service

import (
	"testing"
	"time"

	"github.com/flexprice/collections/internal/domain/charge"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/testutil"
	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type AnchorCycleServiceSuite struct {
	testutil.BaseServiceTestSuite
	service AnchorCycleService
	params  ServiceParams
	runAt   time.Time
}

func TestAnchorCycleService(t *testing.T) {
	suite.Run(t, new(AnchorCycleServiceSuite))
}

func (s *AnchorCycleServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newTestParams(&s.BaseServiceTestSuite)
	s.service = NewAnchorCycleService(s.params)
	// noon in Buenos Aires on the anchor day
	s.runAt = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	seedPricing(&s.BaseServiceTestSuite)
}

func (s *AnchorCycleServiceSuite) chargeOf(result *SubscriptionRunResult) *charge.Charge {
	ch, err := s.GetStores().ChargeRepo.Get(s.GetContext(), result.ChargeID)
	s.Require().NoError(err)
	return ch
}

func (s *AnchorCycleServiceSuite) TestRunAnchorCycles_CreatesCycleChargeAndAttempt() {
	ctx := s.GetContext()
	seedSubscription(&s.BaseServiceTestSuite, "sub_dd")

	summary, err := s.service.RunAnchorCycles(ctx, s.runAt)
	s.Require().NoError(err)
	s.Equal(1, summary.Processed)
	s.Equal(1, summary.Created)
	s.Equal(0, summary.Failed)
	s.Require().Len(summary.Results, 1)

	result := summary.Results[0]
	s.True(result.Due)
	s.Equal(types.MustParseDate("2026-03-10"), result.AnchorDate)
	s.Equal(types.MustParseDate("2026-04-10"), result.NextAnchorDate)

	cycle, err := s.GetStores().CycleRepo.Get(ctx, result.CycleID)
	s.Require().NoError(err)
	s.Equal(types.MustParseDate("2026-03-10"), cycle.PeriodStart)
	s.Equal(types.MustParseDate("2026-04-09"), cycle.PeriodEnd)
	s.Require().NotNil(cycle.Snapshot)

	ch := s.chargeOf(result)
	s.Equal(types.ChargeStatusPending, ch.Status)
	s.True(decimal.RequireFromString("28314.00").Equal(ch.Amount), "amount %s", ch.Amount)
	s.True(decimal.RequireFromString("21.78").Equal(ch.BaseAmount))
	s.Equal(types.RecurringChargeIdempotencyKey("sub_dd", types.MustParseDate("2026-03-10")), ch.IdempotencyKey)

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 1)
	s.Equal(1, attempts[0].AttemptNo)
	s.Equal(types.CollectionChannelDirectDebit, attempts[0].Channel)
	s.Equal(types.AttemptStatusScheduled, attempts[0].Status)
	s.Equal(AttemptReference(ch.ID, 1), attempts[0].ExternalReference)
	s.Equal(types.MustParseDate("2026-03-10"), attempts[0].ScheduledOn)

	sub, err := s.GetStores().SubscriptionRepo.Get(ctx, "sub_dd")
	s.Require().NoError(err)
	s.Require().NotNil(sub.NextAnchorDate)
	s.Equal(types.MustParseDate("2026-04-10"), *sub.NextAnchorDate)

	s.Equal([]types.BillingEventType{
		types.BillingEventCycleCreated,
		types.BillingEventChargeCreated,
		types.BillingEventAttemptCreated,
		types.BillingEventSubscriptionAdvanced,
	}, s.GetPublisher().Types())
	s.Contains(s.GetDB().Locks(), postgres.SubscriptionLockKey("sub_dd"))
}

func (s *AnchorCycleServiceSuite) TestRunAnchorCycles_Idempotent() {
	ctx := s.GetContext()
	seedSubscription(&s.BaseServiceTestSuite, "sub_dd")

	first, err := s.service.RunAnchorCycles(ctx, s.runAt)
	s.Require().NoError(err)
	s.Equal(1, first.Created)

	second, err := s.service.RunAnchorCycles(ctx, s.runAt)
	s.Require().NoError(err)
	s.Equal(0, second.Created)
	s.Equal(1, second.Skipped)
	s.False(second.Results[0].Due)

	// a crash between the cycle insert and the anchor update leaves the old anchor
	s.Require().NoError(s.GetStores().SubscriptionRepo.UpdateNextAnchorDate(ctx, "sub_dd", types.MustParseDate("2026-03-10")))
	s.GetPublisher().Clear()

	third, err := s.service.RunAnchorCycles(ctx, s.runAt)
	s.Require().NoError(err)
	s.Equal(0, third.Created)
	s.Equal(first.Results[0].CycleID, third.Results[0].CycleID)
	s.Equal([]types.BillingEventType{types.BillingEventSubscriptionAdvanced}, s.GetPublisher().Types())

	charges, err := s.GetStores().ChargeRepo.List(ctx, &charge.ChargeFilter{})
	s.Require().NoError(err)
	s.Len(charges, 1)
	s.Len(attemptsOf(&s.BaseServiceTestSuite, charges[0].ID), 1)
}

func (s *AnchorCycleServiceSuite) TestRunAnchorCycles_FallbackWithoutMandate() {
	tests := []struct {
		name string
		opts []subscriptionOption
	}{
		{"no mandate", []subscriptionOption{withoutMandate()}},
		{"pending mandate", []subscriptionOption{withMandateStatus(types.MandateStatusPendingBank)}},
	}
	for i, tt := range tests {
		s.Run(tt.name, func() {
			id := []string{"sub_fb_a", "sub_fb_b"}[i]
			seedSubscription(&s.BaseServiceTestSuite, id, tt.opts...)

			result, err := s.service.RunForSubscription(s.GetContext(), id, s.runAt)
			s.Require().NoError(err)
			s.True(result.Created)

			ch := s.chargeOf(result)
			// no direct debit discount
			s.True(decimal.RequireFromString("31460.00").Equal(ch.Amount), "amount %s", ch.Amount)
			attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
			s.Require().Len(attempts, 1)
			s.Equal(types.CollectionChannelFallback, attempts[0].Channel)
		})
	}
}

func (s *AnchorCycleServiceSuite) TestRunAnchorCycles_NotDue() {
	seedSubscription(&s.BaseServiceTestSuite, "sub_later", withNextAnchor("2026-04-10"))

	result, err := s.service.RunForSubscription(s.GetContext(), "sub_later", s.runAt)
	s.Require().NoError(err)
	s.False(result.Due)
	s.False(result.Created)
	s.Equal(types.MustParseDate("2026-04-10"), result.NextAnchorDate)
	s.Empty(s.GetPublisher().Events())
}

func (s *AnchorCycleServiceSuite) TestRunAnchorCycles_UsesSubscriptionTimezone() {
	seedSubscription(&s.BaseServiceTestSuite, "sub_tz")

	// 01:00 UTC on the 10th is still the 9th in Buenos Aires
	result, err := s.service.RunForSubscription(s.GetContext(), "sub_tz", time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.True(result.Due)
	s.Equal(types.MustParseDate("2026-02-10"), result.AnchorDate)
	s.Equal(types.MustParseDate("2026-03-10"), result.NextAnchorDate)
}

func (s *AnchorCycleServiceSuite) TestRunAnchorCycles_CatchUpBillsLatestAnchor() {
	seedSubscription(&s.BaseServiceTestSuite, "sub_behind", withNextAnchor("2026-01-10"))

	result, err := s.service.RunForSubscription(s.GetContext(), "sub_behind", s.runAt)
	s.Require().NoError(err)
	s.True(result.Created)
	s.Equal(types.MustParseDate("2026-03-10"), result.AnchorDate)
	s.Equal([]types.Date{
		types.MustParseDate("2026-01-10"),
		types.MustParseDate("2026-02-10"),
	}, result.MissedAnchors)
}

func (s *AnchorCycleServiceSuite) TestRunAnchorCycles_FullyDiscountedIsPaid() {
	seedSubscription(&s.BaseServiceTestSuite, "sub_free", withDiscount(100))

	result, err := s.service.RunForSubscription(s.GetContext(), "sub_free", s.runAt)
	s.Require().NoError(err)

	ch := s.chargeOf(result)
	s.Equal(types.ChargeStatusPaid, ch.Status)
	s.Empty(result.AttemptID)
	s.Empty(attemptsOf(&s.BaseServiceTestSuite, ch.ID))
	s.Contains(s.GetPublisher().Types(), types.BillingEventChargePaid)
}

func (s *AnchorCycleServiceSuite) TestRunAnchorCycles_FailureDoesNotStopRun() {
	ctx := s.GetContext()
	seedSubscription(&s.BaseServiceTestSuite, "sub_a_broken", withPlanKey("unknown"))
	seedSubscription(&s.BaseServiceTestSuite, "sub_b_ok")
	seedSubscription(&s.BaseServiceTestSuite, "sub_c_paused", withStatus(types.SubscriptionStatusPaused))

	summary, err := s.service.RunAnchorCycles(ctx, s.runAt)
	s.Require().NoError(err)
	s.Equal(2, summary.Processed)
	s.Equal(1, summary.Created)
	s.Equal(1, summary.Failed)
	s.Require().Len(summary.Errors, 1)
	s.Equal("sub_a_broken", summary.Errors[0].SubscriptionID)
}

func (s *AnchorCycleServiceSuite) TestRunAnchorCycles_Pages() {
	s.params.Config.Billing.BatchSize = 2
	svc := NewAnchorCycleService(s.params)
	for _, id := range []string{"sub_1", "sub_2", "sub_3", "sub_4", "sub_5"} {
		seedSubscription(&s.BaseServiceTestSuite, id)
	}

	summary, err := svc.RunAnchorCycles(s.GetContext(), s.runAt)
	s.Require().NoError(err)
	s.Equal(5, summary.Processed)
	s.Equal(5, summary.Created)
}
