package service

import (
	"errors"
	"testing"
	"time"

	"github.com/flexprice/collections/internal/domain/fiscal"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/testutil"
	"github.com/flexprice/collections/internal/types"
	"github.com/stretchr/testify/suite"
)

type FiscalServiceSuite struct {
	testutil.BaseServiceTestSuite
	service FiscalService
	params  ServiceParams
	sub     *subscriptionFixture
}

func TestFiscalService(t *testing.T) {
	suite.Run(t, new(FiscalServiceSuite))
}

func (s *FiscalServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = newTestParams(&s.BaseServiceTestSuite)
	s.service = NewFiscalService(s.params)
	s.sub = seedSubscription(&s.BaseServiceTestSuite, "sub_fiscal")
}

func (s *FiscalServiceSuite) document(chargeID string) *fiscal.Document {
	doc, err := s.GetStores().FiscalRepo.GetByCharge(s.GetContext(), chargeID, types.FiscalDocumentTypeInvoiceB)
	s.Require().NoError(err)
	return doc
}

func (s *FiscalServiceSuite) TestIssueFiscalForCharge_IssuesOnce() {
	ctx := s.GetContext()
	ch := seedCharge(&s.BaseServiceTestSuite, s.sub, "28314.00", types.ChargeStatusPaid)

	res, err := s.service.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: ch.ID})
	s.Require().NoError(err)
	s.True(res.OK)
	s.Equal(types.FiscalDocumentStatusIssued, res.Status)
	s.Require().NotNil(res.Document.DocumentNumber)
	s.Equal(int64(1), *res.Document.DocumentNumber)
	s.NotEmpty(res.Document.CAE)
	s.Equal(types.FiscalDocumentTypeInvoiceB, res.Document.DocumentType)
	s.Equal(FiscalIdempotencyKey(ch.ID, types.FiscalDocumentTypeInvoiceB), res.Document.Payload["idempotency_key"])

	again, err := s.service.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: ch.ID})
	s.Require().NoError(err)
	s.True(again.OK)
	s.Equal(res.Document.ID, again.Document.ID)
	s.Equal(1, s.GetFiscalIssuer().Calls())
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventFiscalDocumentIssued))
}

func (s *FiscalServiceSuite) TestIssueFiscalForCharge_SplitsVATFromSnapshot() {
	ctx := s.GetContext()
	seedPricing(&s.BaseServiceTestSuite)
	result, err := NewAnchorCycleService(s.params).RunForSubscription(ctx, s.sub.Sub.ID, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	ch, err := s.GetStores().ChargeRepo.Get(ctx, result.ChargeID)
	s.Require().NoError(err)
	_, err = s.params.markChargePaid(ctx, ch, nil, time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	res, err := s.service.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: ch.ID})
	s.Require().NoError(err)
	s.True(res.OK)
	s.Equal("4914", res.Document.Payload["vat_amount"])
	s.Equal("23400", res.Document.Payload["net_amount"])
	s.Equal("2026-03-11", res.Document.Payload["issue_date"])
	s.Equal("30712345678", res.Document.Payload["holder_tax_id"])
	s.Equal(types.MustParseDate("2026-03-21"), *res.Document.CAEDueDate)
}

func (s *FiscalServiceSuite) TestIssueFiscalForCharge_RequiresPaidCharge() {
	ch := seedCharge(&s.BaseServiceTestSuite, s.sub, "1000.00", types.ChargeStatusPending)

	_, err := s.service.IssueFiscalForCharge(s.GetContext(), &IssueFiscalRequest{ChargeID: ch.ID})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
	s.Equal(0, s.GetFiscalIssuer().Calls())
}

func (s *FiscalServiceSuite) TestIssueFiscalForCharge_FailureThenRetry() {
	ctx := s.GetContext()
	ch := seedCharge(&s.BaseServiceTestSuite, s.sub, "28314.00", types.ChargeStatusPaid)
	s.GetFiscalIssuer().FailCharge(ch.ID, errors.New("gateway timeout"))

	res, err := s.service.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: ch.ID})
	s.Require().NoError(err)
	s.False(res.OK)
	s.Equal(types.FiscalDocumentStatusFailed, res.Status)
	s.Contains(res.Message, "gateway timeout")
	s.Equal(types.FiscalDocumentStatusFailed, s.document(ch.ID).Status)
	s.Equal(1, s.GetPublisher().CountOf(types.BillingEventFiscalDocumentFailed))

	s.GetFiscalIssuer().FailCharge(ch.ID, nil)
	res, err = s.service.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: ch.ID})
	s.Require().NoError(err)
	s.True(res.OK)

	doc := s.document(ch.ID)
	s.Equal(types.FiscalDocumentStatusIssued, doc.Status)
	s.Equal(1, doc.RetryCount)
	s.Empty(doc.ErrorMessage)
}

func (s *FiscalServiceSuite) TestIssueFiscalForCharge_ForceRetryReusesIdempotencyKey() {
	ctx := s.GetContext()
	ch := seedCharge(&s.BaseServiceTestSuite, s.sub, "28314.00", types.ChargeStatusPaid)

	first, err := s.service.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: ch.ID})
	s.Require().NoError(err)

	forced, err := s.service.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: ch.ID, ForceRetry: true})
	s.Require().NoError(err)
	s.True(forced.OK)
	s.Equal(2, s.GetFiscalIssuer().Calls())
	s.Equal(*first.Document.DocumentNumber, *forced.Document.DocumentNumber)
	s.Equal(1, s.document(ch.ID).RetryCount)
}

func (s *FiscalServiceSuite) TestIssueFiscalForCharge_PendingDocumentIsNotReissued() {
	ctx := s.GetContext()
	ch := seedCharge(&s.BaseServiceTestSuite, s.sub, "28314.00", types.ChargeStatusPaid)
	now := time.Now().UTC()
	_, created, err := s.GetStores().FiscalRepo.CreateIfAbsent(ctx, &fiscal.Document{
		ID:           "fdoc_inflight",
		AgencyID:     ch.AgencyID,
		ChargeID:     ch.ID,
		DocumentType: types.FiscalDocumentTypeInvoiceB,
		Status:       types.FiscalDocumentStatusPending,
		PointOfSale:  1,
		Amount:       ch.Amount,
		Currency:     ch.Currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	s.Require().NoError(err)
	s.Require().True(created)

	res, err := s.service.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: ch.ID})
	s.Require().NoError(err)
	s.False(res.OK)
	s.Equal(types.FiscalDocumentStatusPending, res.Status)
	s.Equal("fdoc_inflight", res.Document.ID)
	s.Equal(0, s.GetFiscalIssuer().Calls())

	doc := s.document(ch.ID)
	s.Equal(types.FiscalDocumentStatusPending, doc.Status)
	s.Equal(0, doc.RetryCount)

	summary, err := s.service.AutorunFiscalForCharges(ctx, []string{ch.ID})
	s.Require().NoError(err)
	s.Equal(1, summary.Skipped)
	s.Zero(summary.Failed)
	s.Equal(0, s.GetFiscalIssuer().Calls())

	forced, err := s.service.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: ch.ID, ForceRetry: true})
	s.Require().NoError(err)
	s.True(forced.OK)
	s.Equal(1, s.GetFiscalIssuer().Calls())
	s.Equal(1, s.document(ch.ID).RetryCount)
}

func (s *FiscalServiceSuite) TestIssueFiscalForCharge_Validation() {
	_, err := s.service.IssueFiscalForCharge(s.GetContext(), &IssueFiscalRequest{})
	s.True(ierr.IsValidation(err))

	_, err = s.service.IssueFiscalForCharge(s.GetContext(), &IssueFiscalRequest{ChargeID: "chg_x", DocumentType: "RECEIPT"})
	s.True(ierr.IsValidation(err))
}

func (s *FiscalServiceSuite) TestAutorunFiscalForCharges() {
	ctx := s.GetContext()
	paid := []string{
		seedCharge(&s.BaseServiceTestSuite, s.sub, "100.00", types.ChargeStatusPaid).ID,
		seedCharge(&s.BaseServiceTestSuite, s.sub, "200.00", types.ChargeStatusPaid).ID,
		seedCharge(&s.BaseServiceTestSuite, s.sub, "300.00", types.ChargeStatusPaid).ID,
	}
	pending := seedCharge(&s.BaseServiceTestSuite, s.sub, "400.00", types.ChargeStatusPending).ID
	s.GetFiscalIssuer().FailCharge(paid[2], errors.New("rejected"))

	summary, err := s.service.AutorunFiscalForCharges(ctx, append(paid, pending, paid[0]))
	s.Require().NoError(err)
	s.True(summary.Enabled)
	s.Equal(2, summary.Issued)
	s.Equal(1, summary.Failed)
	s.Equal(1, summary.Skipped)
	s.Len(summary.Failures, 1)

	// only the charge whose document failed is still without one
	s.GetFiscalIssuer().FailCharge(paid[2], nil)
	pendingSummary, err := s.service.AutorunPending(ctx)
	s.Require().NoError(err)
	s.Equal(1, pendingSummary.Issued)
}

func (s *FiscalServiceSuite) TestAutorunFiscalForCharges_Disabled() {
	s.params.Config.Fiscal.AutorunEnabled = false
	ch := seedCharge(&s.BaseServiceTestSuite, s.sub, "100.00", types.ChargeStatusPaid)

	summary, err := NewFiscalService(s.params).AutorunFiscalForCharges(s.GetContext(), []string{ch.ID})
	s.Require().NoError(err)
	s.False(summary.Enabled)
	s.Equal(1, summary.Skipped)
	s.Equal(0, s.GetFiscalIssuer().Calls())
}
