package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/flexprice/collections/internal/domain/attempt"
	"github.com/flexprice/collections/internal/domain/charge"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/storage"
	"github.com/flexprice/collections/internal/testutil"
	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BankBatchServiceSuite struct {
	testutil.BaseServiceTestSuite
	service      BankBatchService
	params       ServiceParams
	sub          *subscriptionFixture
	businessDate types.Date
}

func TestBankBatchService(t *testing.T) {
	suite.Run(t, new(BankBatchServiceSuite))
}

func (s *BankBatchServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newTestParams(&s.BaseServiceTestSuite)
	s.service = NewBankBatchService(s.params)
	s.sub = seedSubscription(&s.BaseServiceTestSuite, "sub_bank")
	s.businessDate = types.MustParseDate("2026-03-10")
}

// scheduledDebit seeds a pending charge with a direct debit attempt due on the date.
func (s *BankBatchServiceSuite) scheduledDebit(f *subscriptionFixture, amount string, on string) (*charge.Charge, *attempt.Attempt) {
	ch := seedCharge(&s.BaseServiceTestSuite, f, amount, types.ChargeStatusPending)
	a, _, err := s.params.findOrCreateAttempt(s.GetContext(), ch, 1, types.CollectionChannelDirectDebit, f.PM.ID, types.MustParseDate(on))
	s.Require().NoError(err)
	return ch, a
}

// presented seeds a direct debit and presents it.
func (s *BankBatchServiceSuite) presented(amount string) (*charge.Charge, *attempt.Attempt) {
	ch, a := s.scheduledDebit(s.sub, amount, "2026-03-10")
	_, err := s.service.BuildPresentment(s.GetContext(), s.businessDate)
	s.Require().NoError(err)
	return ch, s.attempt(a.ID)
}

func (s *BankBatchServiceSuite) attempt(id string) *attempt.Attempt {
	a, err := s.GetStores().AttemptRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return a
}

func (s *BankBatchServiceSuite) charge(id string) *charge.Charge {
	ch, err := s.GetStores().ChargeRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return ch
}

func (s *BankBatchServiceSuite) respond(lines ...responseLine) *ReconcileResult {
	result, err := s.service.ReconcileInbound(s.GetContext(), "RESP_20260311.txt", pipeResponseFile(types.MustParseDate("2026-03-11"), lines...))
	s.Require().NoError(err)
	return result
}

func (s *BankBatchServiceSuite) TestBuildPresentment() {
	ctx := s.GetContext()
	_, first := s.scheduledDebit(s.sub, "28314.00", "2026-03-10")
	_, second := s.scheduledDebit(s.sub, "1500.50", "2026-03-09")
	_, later := s.scheduledDebit(s.sub, "900.00", "2026-03-12")

	result, err := s.service.BuildPresentment(ctx, s.businessDate)
	s.Require().NoError(err)
	s.Require().NotNil(result.Batch)
	s.ElementsMatch([]string{first.ID, second.ID}, result.AttemptIDs)
	s.Empty(result.Diverted)

	batch := result.Batch
	s.Equal(types.BankBatchDirectionOutbound, batch.Direction)
	s.Equal(types.BankBatchStatusGenerated, batch.Status)
	s.Equal("DD_0001_20260310_001.txt", batch.FileName)
	s.Equal(2, batch.RecordCount)
	s.True(decimal.RequireFromString("29814.50").Equal(batch.AmountTotal), "total %s", batch.AmountTotal)
	s.Equal("bank-files/OUTBOUND/2026-03-10/DD_0001_20260310_001.txt", batch.StorageKey)

	content, err := s.GetFileStore().Get(ctx, batch.StorageKey)
	s.Require().NoError(err)
	s.Contains(string(content), first.ExternalReference)
	s.NotContains(string(content), later.ExternalReference)

	for _, id := range result.AttemptIDs {
		a := s.attempt(id)
		s.Equal(types.AttemptStatusPresented, a.Status)
		s.Require().NotNil(a.BatchID)
		s.Equal(batch.ID, *a.BatchID)
		s.NotNil(a.PresentedAt)
	}
	s.Equal(types.AttemptStatusScheduled, s.attempt(later.ID).Status)
	s.Equal(2, s.GetPublisher().CountOf(types.BillingEventAttemptPresented))
	s.Contains(s.GetDB().Locks(), presentmentLockKey)

	// nothing left to present for the date
	empty, err := s.service.BuildPresentment(ctx, s.businessDate)
	s.Require().NoError(err)
	s.Nil(empty.Batch)
	s.Empty(empty.AttemptIDs)

	// a second file on the same date takes the next sequence
	s.scheduledDebit(s.sub, "100.00", "2026-03-10")
	next, err := s.service.BuildPresentment(ctx, s.businessDate)
	s.Require().NoError(err)
	s.Require().NotNil(next.Batch)
	s.Equal("DD_0001_20260310_002.txt", next.Batch.FileName)
}

func (s *BankBatchServiceSuite) TestBuildPresentment_SkipsSettledCharges() {
	ctx := s.GetContext()
	ch, a := s.scheduledDebit(s.sub, "500.00", "2026-03-10")
	ch.Status = types.ChargeStatusPaid
	s.Require().NoError(s.GetStores().ChargeRepo.Update(ctx, ch))

	result, err := s.service.BuildPresentment(ctx, s.businessDate)
	s.Require().NoError(err)
	s.Nil(result.Batch)
	s.Equal(types.AttemptStatusCanceled, s.attempt(a.ID).Status)
}

func (s *BankBatchServiceSuite) TestBuildPresentment_DivertsInactiveMandate() {
	ctx := s.GetContext()
	revoked := seedSubscription(&s.BaseServiceTestSuite, "sub_revoked", withMandateStatus(types.MandateStatusRevoked))
	ch, a := s.scheduledDebit(revoked, "28314.00", "2026-03-10")

	result, err := s.service.BuildPresentment(ctx, s.businessDate)
	s.Require().NoError(err)
	s.Nil(result.Batch)
	s.Equal([]string{a.ID}, result.Diverted)

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 2)
	s.Equal(types.AttemptStatusCanceled, attempts[0].Status)
	s.Equal(types.BankReasonMandateInvalid, attempts[0].ReasonCode)
	s.Equal(types.CollectionChannelFallback, attempts[1].Channel)
	s.Equal(types.AttemptStatusPresented, attempts[1].Status)

	intents, err := s.GetStores().FallbackRepo.List(ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(intents, 1)
	s.Equal(ch.ID, intents[0].ChargeID)
	s.Equal(attempts[1].ID, intents[0].AttemptID)
}

func (s *BankBatchServiceSuite) TestReconcileInbound_Paid() {
	ch, a := s.presented("28314.00")

	result := s.respond(responseLine{ref: a.ExternalReference, amount: a.Amount, code: "00", message: "APROBADO"})
	s.Equal(1, result.Applied)
	s.Equal(types.BankBatchStatusReconciled, result.Batch.Status)
	s.Equal(types.BankBatchDirectionInbound, result.Batch.Direction)
	s.Equal("bank-files/INBOUND/2026-03-11/RESP_20260311.txt", result.Batch.StorageKey)
	s.Equal([]string{ch.ID}, result.PaidChargeIDs)

	paid := s.attempt(a.ID)
	s.Equal(types.AttemptStatusPaid, paid.Status)
	s.Require().NotNil(paid.SettledAt)
	s.Equal(types.MustParseDate("2026-03-12"), types.DateOf(*paid.SettledAt))

	s.Equal(types.ChargeStatusPaid, s.charge(ch.ID).Status)
	s.True(s.GetStores().FiscalRepo.HasIssued(ch.ID))
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventAttemptResult))
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventChargePaid))
}

func (s *BankBatchServiceSuite) TestReconcileInbound_ReprocessingIsNoop() {
	_, a := s.presented("28314.00")
	line := responseLine{ref: a.ExternalReference, amount: a.Amount, code: "00", message: "APROBADO"}

	s.Equal(1, s.respond(line).Applied)
	again := s.respond(line)
	s.Equal(0, again.Applied)
	s.Equal(1, again.Duplicates)
	s.Equal(types.BankBatchStatusReconciled, again.Batch.Status)

	s.Equal(1, s.GetStores().BankBatchRepo.ResponseRowCount())
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventChargePaid))
	s.Equal(1, s.GetFiscalIssuer().Calls())
}

func (s *BankBatchServiceSuite) TestReconcileInbound_RetryableRejection() {
	ch, a := s.presented("28314.00")

	result := s.respond(responseLine{ref: a.ExternalReference, amount: a.Amount, code: "51", message: "FONDOS INSUFICIENTES"})
	s.Equal(1, result.Applied)
	s.Empty(result.FallbackChargeIDs)

	rejected := s.attempt(a.ID)
	s.Equal(types.AttemptStatusRejected, rejected.Status)
	s.Equal(types.BankReasonInsufficientFunds, rejected.ReasonCode)

	pending := s.charge(ch.ID)
	s.Equal(types.ChargeStatusPending, pending.Status)
	s.Equal(1, pending.RetryCount)
	s.Require().NotNil(pending.NextRetryOn)
	// settled on the 12th, first retry three days later
	s.Equal(types.MustParseDate("2026-03-15"), *pending.NextRetryOn)

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 2)
	s.Equal(2, attempts[1].AttemptNo)
	s.Equal(types.CollectionChannelDirectDebit, attempts[1].Channel)
	s.Equal(types.AttemptStatusScheduled, attempts[1].Status)
	s.Equal(types.MustParseDate("2026-03-15"), attempts[1].ScheduledOn)
}

func (s *BankBatchServiceSuite) TestReconcileInbound_RetryAttemptAlreadyExists() {
	ch, a := s.presented("28314.00")
	seeded, created, err := s.GetStores().AttemptRepo.CreateIfAbsent(s.GetContext(),
		concurrentAttempt(ch, 2, types.CollectionChannelDirectDebit, "2026-03-15"))
	s.Require().NoError(err)
	s.Require().True(created)
	before := s.GetPublisher().CountOf(types.BillingEventAttemptCreated)

	result := s.respond(responseLine{ref: a.ExternalReference, amount: a.Amount, code: "51", message: "FONDOS INSUFICIENTES"})
	s.Equal(1, result.Applied)

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 2)
	s.Equal(seeded.ID, attempts[1].ID)
	s.Equal(before, s.GetPublisher().CountOf(types.BillingEventAttemptCreated))
}

func (s *BankBatchServiceSuite) TestReconcileInbound_RetryAttemptCreatedConcurrently() {
	ch, a := s.presented("28314.00")
	s.params.AttemptRepo = &racingAttemptRepo{
		Repository: s.GetStores().AttemptRepo,
		winner:     concurrentAttempt(ch, 2, types.CollectionChannelDirectDebit, "2026-03-15"),
	}
	s.service = NewBankBatchService(s.params)
	before := s.GetPublisher().CountOf(types.BillingEventAttemptCreated)

	result := s.respond(responseLine{ref: a.ExternalReference, amount: a.Amount, code: "51", message: "FONDOS INSUFICIENTES"})
	s.Equal(1, result.Applied)
	s.Zero(result.Failed)

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 2)
	s.Equal("att_concurrent", attempts[1].ID)
	s.Equal(types.AttemptStatusScheduled, attempts[1].Status)
	s.Equal(before, s.GetPublisher().CountOf(types.BillingEventAttemptCreated))
}

func (s *BankBatchServiceSuite) TestReconcileInbound_RetriesExhausted() {
	ctx := s.GetContext()
	ch, a := s.presented("28314.00")
	stored := s.charge(ch.ID)
	stored.RetryCount = len(s.GetConfig().Billing.RetryDays)
	s.Require().NoError(s.GetStores().ChargeRepo.Update(ctx, stored))

	result := s.respond(responseLine{ref: a.ExternalReference, amount: a.Amount, code: "51", message: "FONDOS INSUFICIENTES"})
	s.Equal([]string{ch.ID}, result.FallbackChargeIDs)

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 2)
	s.Equal(types.CollectionChannelFallback, attempts[1].Channel)

	intents, err := s.GetStores().FallbackRepo.List(ctx, nil)
	s.Require().NoError(err)
	s.Len(intents, 1)

	// insufficient funds does not touch the mandate
	m, err := s.GetStores().MandateRepo.Get(ctx, s.sub.Mandate.ID)
	s.Require().NoError(err)
	s.Equal(types.MandateStatusActive, m.Status)
}

func (s *BankBatchServiceSuite) TestReconcileInbound_AccountClosedRejectsMandate() {
	ctx := s.GetContext()
	ch, a := s.presented("28314.00")

	result := s.respond(responseLine{ref: a.ExternalReference, amount: a.Amount, code: "54", message: "CUENTA CERRADA"})
	s.Equal(1, result.Applied)
	s.Equal([]string{ch.ID}, result.FallbackChargeIDs)

	s.Equal(types.BankReasonAccountClosed, s.attempt(a.ID).ReasonCode)
	s.Equal(0, s.charge(ch.ID).RetryCount)

	m, err := s.GetStores().MandateRepo.Get(ctx, s.sub.Mandate.ID)
	s.Require().NoError(err)
	s.Equal(types.MandateStatusRejected, m.Status)
	s.Equal(string(types.BankReasonAccountClosed), m.RejectionCode)

	attempts := attemptsOf(&s.BaseServiceTestSuite, ch.ID)
	s.Require().Len(attempts, 2)
	s.Equal(types.CollectionChannelFallback, attempts[1].Channel)
	s.Equal(types.AttemptStatusPresented, attempts[1].Status)
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventMandateRejected))
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventFallbackIntentCreated))
}

func (s *BankBatchServiceSuite) TestReconcileInbound_UnmatchedNeedsReview() {
	_, a := s.presented("28314.00")

	result := s.respond(
		responseLine{ref: a.ExternalReference, amount: a.Amount, code: "00", message: "APROBADO"},
		responseLine{ref: "chg_unknown-A01", amount: decimal.NewFromInt(10), code: "00", message: "APROBADO"},
	)
	s.Equal(1, result.Applied)
	s.Equal(1, result.Unmatched)
	s.Equal(types.BankBatchStatusNeedsReview, result.Batch.Status)
	s.Require().Len(result.Warnings, 1)
	s.Contains(result.Warnings[0], "chg_unknown-A01")
}

func (s *BankBatchServiceSuite) TestReconcileInbound_ResultForUnpresentedAttempt() {
	_, a := s.scheduledDebit(s.sub, "700.00", "2026-03-20")

	result := s.respond(responseLine{ref: a.ExternalReference, amount: a.Amount, code: "00", message: "APROBADO"})
	s.Equal(1, result.Review)
	s.Equal(types.BankBatchStatusNeedsReview, result.Batch.Status)
	s.Equal(types.AttemptStatusScheduled, s.attempt(a.ID).Status)
}

func (s *BankBatchServiceSuite) TestReconcileInbound_ControlTotalMismatch() {
	ch, a := s.presented("28314.00")
	data := pipeResponseFile(types.MustParseDate("2026-03-11"),
		responseLine{ref: a.ExternalReference, amount: a.Amount, code: "00", message: "APROBADO"})
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[len(lines)-1] = "T|1|1.00|0000"

	result, err := s.service.ReconcileInbound(s.GetContext(), "RESP_BAD.txt", []byte(strings.Join(lines, "\n")))
	s.Require().NoError(err)
	s.NotEmpty(result.Mismatches)
	s.Equal(types.BankBatchStatusNeedsReview, result.Batch.Status)
	// rows are still applied
	s.Equal(1, result.Applied)
	s.Equal(types.ChargeStatusPaid, s.charge(ch.ID).Status)
}

func (s *BankBatchServiceSuite) TestReconcileInbound_AmountDifferenceWarns() {
	_, a := s.presented("28314.00")

	result := s.respond(responseLine{ref: a.ExternalReference, amount: decimal.RequireFromString("28000.00"), code: "00", message: "APROBADO"})
	s.Equal(1, result.Applied)
	s.Equal(types.BankBatchStatusReconciled, result.Batch.Status)
	s.Require().Len(result.Warnings, 1)
	s.Contains(result.Warnings[0], "differs")
}

func (s *BankBatchServiceSuite) TestReconcileStored() {
	ctx := s.GetContext()
	ch, a := s.presented("28314.00")
	key := storage.BankFileKey(types.BankBatchDirectionInbound, types.MustParseDate("2026-03-11"), "RESP_STORED.txt")
	s.Require().NoError(s.GetFileStore().Put(ctx, key,
		pipeResponseFile(types.MustParseDate("2026-03-11"), responseLine{ref: a.ExternalReference, amount: a.Amount, code: "00", message: "OK"}),
		"text/plain"))

	result, err := s.service.ReconcileStored(ctx, key)
	s.Require().NoError(err)
	s.Equal("RESP_STORED.txt", result.Batch.FileName)
	s.Equal(types.ChargeStatusPaid, s.charge(ch.ID).Status)
}

func (s *BankBatchServiceSuite) TestReconcileInbound_Invalid() {
	_, err := s.service.ReconcileInbound(s.GetContext(), "", []byte("x"))
	s.True(ierr.IsValidation(err))

	_, err = s.service.ReconcileInbound(s.GetContext(), "RESP.txt", []byte("not a bank file\n"))
	s.True(ierr.IsValidation(err))
}

func (s *BankBatchServiceSuite) TestPublisherFailureDoesNotFailPresentment() {
	ctx := s.GetContext()
	s.scheduledDebit(s.sub, "28314.00", "2026-03-10")
	s.GetPublisher().FailWith(errors.New("broker unavailable"))

	result, err := s.service.BuildPresentment(ctx, s.businessDate)
	s.Require().NoError(err)
	s.NotNil(result.Batch)
	s.Equal(1, s.GetStores().EventRepo.CountOf(ctx, types.BillingEventAttemptPresented))
}
