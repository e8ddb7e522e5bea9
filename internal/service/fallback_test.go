package service

import (
	"testing"
	"time"

	"github.com/flexprice/collections/internal/domain/attempt"
	"github.com/flexprice/collections/internal/domain/charge"
	"github.com/flexprice/collections/internal/domain/fallback"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/testutil"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type FallbackServiceSuite struct {
	testutil.BaseServiceTestSuite
	service FallbackService
	params  ServiceParams
	sub     *subscriptionFixture
}

func TestFallbackService(t *testing.T) {
	suite.Run(t, new(FallbackServiceSuite))
}

func (s *FallbackServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newTestParams(&s.BaseServiceTestSuite)
	s.service = NewFallbackService(s.params)
	s.sub = seedSubscription(&s.BaseServiceTestSuite, "sub_qr", withoutMandate())
}

// pendingCharge seeds a pending charge with a first attempt on the channel.
func (s *FallbackServiceSuite) pendingCharge(channel types.CollectionChannel) (*charge.Charge, *attempt.Attempt) {
	ch := seedCharge(&s.BaseServiceTestSuite, s.sub, "31460.00", types.ChargeStatusPending)
	a, created, err := s.params.findOrCreateAttempt(s.GetContext(), ch, 1, channel, s.sub.PM.ID, types.MustParseDate("2026-03-10"))
	s.Require().NoError(err)
	s.Require().True(created)
	return ch, a
}

func (s *FallbackServiceSuite) charge(id string) *charge.Charge {
	ch, err := s.GetStores().ChargeRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return ch
}

func (s *FallbackServiceSuite) TestCreateIntentForCharge_UsesOpenFallbackAttempt() {
	ctx := s.GetContext()
	ch, a := s.pendingCharge(types.CollectionChannelFallback)

	intent, err := s.service.CreateIntentForCharge(ctx, ch.ID)
	s.Require().NoError(err)
	s.Equal(a.ID, intent.AttemptID)
	s.Equal(types.FallbackIntentStatusPending, intent.Status)
	s.Equal("qr_000001", intent.ProviderReference)
	s.Contains(intent.PaymentURL, "ref="+intent.ID)
	s.Contains(intent.QRPayload, "|"+intent.ID+"|")
	s.Require().NotNil(intent.ExpiresAt)
	s.True(intent.Amount.Equal(ch.Amount))

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 1)
	s.Equal(types.AttemptStatusPresented, attempts[0].Status)
	s.NotNil(attempts[0].PresentedAt)
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventFallbackIntentCreated))

	again, err := s.service.CreateIntentForCharge(ctx, ch.ID)
	s.Require().NoError(err)
	s.Equal(intent.ID, again.ID)
	s.Equal(intent.ProviderReference, again.ProviderReference)
	s.Equal(1, s.GetFallbackProvider().CreateCalls())
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventFallbackIntentCreated))
}

func (s *FallbackServiceSuite) TestCreateIntentForCharge_ReplacesScheduledDirectDebit() {
	ch, dd := s.pendingCharge(types.CollectionChannelDirectDebit)

	intent, err := s.service.CreateIntentForCharge(s.GetContext(), ch.ID)
	s.Require().NoError(err)
	s.NotEqual(dd.ID, intent.AttemptID)

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 2)
	s.Equal(types.AttemptStatusCanceled, attempts[0].Status)
	s.Equal("replaced by fallback intent", attempts[0].ReasonMessage)
	s.Equal(2, attempts[1].AttemptNo)
	s.Equal(types.CollectionChannelFallback, attempts[1].Channel)
	s.Equal(AttemptReference(ch.ID, 2), attempts[1].ExternalReference)
	s.Equal(intent.AttemptID, attempts[1].ID)
}

func (s *FallbackServiceSuite) TestCreateIntentForCharge_FallbackAttemptCreatedConcurrently() {
	ch, _ := s.pendingCharge(types.CollectionChannelDirectDebit)
	s.params.AttemptRepo = &racingAttemptRepo{
		Repository: s.GetStores().AttemptRepo,
		winner:     concurrentAttempt(ch, 2, types.CollectionChannelFallback, "2026-03-10"),
	}
	s.service = NewFallbackService(s.params)
	before := s.GetPublisher().CountOf(types.BillingEventAttemptCreated)

	intent, err := s.service.CreateIntentForCharge(s.GetContext(), ch.ID)
	s.Require().NoError(err)
	s.Equal("att_concurrent", intent.AttemptID)

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 2)
	s.Equal("att_concurrent", attempts[1].ID)
	s.Equal(types.AttemptStatusPresented, attempts[1].Status)
	s.Equal(before, s.GetPublisher().CountOf(types.BillingEventAttemptCreated))
}

func (s *FallbackServiceSuite) TestCreateIntentForCharge_RejectsPresentedDirectDebit() {
	ctx := s.GetContext()
	ch, dd := s.pendingCharge(types.CollectionChannelDirectDebit)
	dd.Status = types.AttemptStatusPresented
	s.Require().NoError(s.GetStores().AttemptRepo.Update(ctx, dd))

	_, err := s.service.CreateIntentForCharge(ctx, ch.ID)
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
	s.Equal(0, s.GetFallbackProvider().CreateCalls())
}

func (s *FallbackServiceSuite) TestCreateIntentForCharge_RequiresPendingCharge() {
	ch := seedCharge(&s.BaseServiceTestSuite, s.sub, "100.00", types.ChargeStatusPaid)

	_, err := s.service.CreateIntentForCharge(s.GetContext(), ch.ID)
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.service.CreateIntentForCharge(s.GetContext(), "chg_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *FallbackServiceSuite) TestRefreshIntent_Paid() {
	ctx := s.GetContext()
	ch, _ := s.pendingCharge(types.CollectionChannelFallback)
	intent, err := s.service.CreateIntentForCharge(ctx, ch.ID)
	s.Require().NoError(err)

	unchanged, err := s.service.RefreshIntent(ctx, intent.ID)
	s.Require().NoError(err)
	s.Equal(types.FallbackIntentStatusPending, unchanged.Status)
	s.Equal(0, s.GetPublisher().CountOf(types.BillingEventFallbackIntentUpdated))

	s.Require().NoError(s.GetFallbackProvider().MarkPaid(intent.ProviderReference))
	paid, err := s.service.RefreshIntent(ctx, intent.ID)
	s.Require().NoError(err)
	s.Equal(types.FallbackIntentStatusPaid, paid.Status)
	s.NotNil(paid.PaidAt)

	s.Equal(types.ChargeStatusPaid, s.charge(ch.ID).Status)
	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Equal(types.AttemptStatusPaid, attempts[0].Status)
	s.True(s.GetStores().FiscalRepo.HasIssued(ch.ID))

	// a final intent is not polled again
	again, err := s.service.RefreshIntent(ctx, intent.ID)
	s.Require().NoError(err)
	s.Equal(types.FallbackIntentStatusPaid, again.Status)
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventFallbackIntentUpdated))
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventChargePaid))
}

func (s *FallbackServiceSuite) TestRefreshIntent_Expired() {
	ctx := s.GetContext()
	ch, _ := s.pendingCharge(types.CollectionChannelFallback)
	intent, err := s.service.CreateIntentForCharge(ctx, ch.ID)
	s.Require().NoError(err)

	s.GetFallbackProvider().SetClock(func() time.Time { return time.Now().Add(100 * time.Hour) })
	expired, err := s.service.RefreshIntent(ctx, intent.ID)
	s.Require().NoError(err)
	s.Equal(types.FallbackIntentStatusExpired, expired.Status)

	s.Equal(types.ChargeStatusFailed, s.charge(ch.ID).Status)
	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Equal(types.AttemptStatusError, attempts[0].Status)
	s.Equal("payment intent expired", attempts[0].ReasonMessage)
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventChargeFailed))
}

func (s *FallbackServiceSuite) TestCancelIntent() {
	ctx := s.GetContext()
	ch, _ := s.pendingCharge(types.CollectionChannelFallback)
	intent, err := s.service.CreateIntentForCharge(ctx, ch.ID)
	s.Require().NoError(err)

	canceled, err := s.service.CancelIntent(ctx, intent.ID)
	s.Require().NoError(err)
	s.Equal(types.FallbackIntentStatusCanceled, canceled.Status)
	s.Equal(types.ChargeStatusPending, s.charge(ch.ID).Status)
	s.Equal(types.AttemptStatusCanceled, attemptsOf(&s.BaseServiceTestSuite, ch.ID)[0].Status)

	again, err := s.service.CancelIntent(ctx, intent.ID)
	s.Require().NoError(err)
	s.Equal(types.FallbackIntentStatusCanceled, again.Status)
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventFallbackIntentUpdated))
}

func (s *FallbackServiceSuite) TestCancelIntent_AlreadyPaidStaysPaid() {
	ctx := s.GetContext()
	ch, _ := s.pendingCharge(types.CollectionChannelFallback)
	intent, err := s.service.CreateIntentForCharge(ctx, ch.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.GetFallbackProvider().MarkPaid(intent.ProviderReference))

	result, err := s.service.CancelIntent(ctx, intent.ID)
	s.Require().NoError(err)
	s.Equal(types.FallbackIntentStatusPaid, result.Status)
	s.Equal(types.ChargeStatusPaid, s.charge(ch.ID).Status)
}

func (s *FallbackServiceSuite) TestOpenScheduledIntents() {
	ctx := s.GetContext()
	due, _ := s.pendingCharge(types.CollectionChannelFallback)

	later := seedCharge(&s.BaseServiceTestSuite, s.sub, "500.00", types.ChargeStatusPending)
	_, _, err := s.params.findOrCreateAttempt(ctx, later, 1, types.CollectionChannelFallback, s.sub.PM.ID, types.MustParseDate("2026-03-20"))
	s.Require().NoError(err)

	summary, err := s.service.OpenScheduledIntents(ctx, types.MustParseDate("2026-03-11"))
	s.Require().NoError(err)
	s.Equal(1, summary.Processed)
	s.Equal(1, summary.Opened)
	s.Equal(0, summary.Failed)

	intents, err := s.GetStores().FallbackRepo.List(ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(intents, 1)
	s.Equal(due.ID, intents[0].ChargeID)

	// the attempt is PRESENTED now and is not picked up again
	summary, err = s.service.OpenScheduledIntents(ctx, types.MustParseDate("2026-03-11"))
	s.Require().NoError(err)
	s.Equal(0, summary.Processed)
}

func (s *FallbackServiceSuite) TestPollPendingIntents() {
	ctx := s.GetContext()
	first, _ := s.pendingCharge(types.CollectionChannelFallback)
	second, _ := s.pendingCharge(types.CollectionChannelFallback)

	paid, err := s.service.CreateIntentForCharge(ctx, first.ID)
	s.Require().NoError(err)
	_, err = s.service.CreateIntentForCharge(ctx, second.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.GetFallbackProvider().MarkPaid(paid.ProviderReference))

	summary, err := s.service.PollPendingIntents(ctx)
	s.Require().NoError(err)
	s.Equal(2, summary.Processed)
	s.Equal(1, summary.Paid)
	s.Equal(0, summary.Expired)
	s.Equal(0, summary.Failed)

	pending, err := s.GetStores().FallbackRepo.List(ctx, nil)
	s.Require().NoError(err)
	s.Equal(1, lo.CountBy(pending, func(i *fallback.Intent) bool { return i.Status == types.FallbackIntentStatusPending }))
}
