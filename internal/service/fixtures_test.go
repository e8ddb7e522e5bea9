package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/collections/internal/bankfile"
	"github.com/flexprice/collections/internal/domain/attempt"
	"github.com/flexprice/collections/internal/domain/charge"
	"github.com/flexprice/collections/internal/domain/fxrate"
	"github.com/flexprice/collections/internal/domain/mandate"
	"github.com/flexprice/collections/internal/domain/plan"
	"github.com/flexprice/collections/internal/domain/subscription"
	"github.com/flexprice/collections/internal/testutil"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	testAgencyID = "agency_sur"
	testPlanKey  = "pro"
)

func newTestParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	cfg := s.GetConfig()
	cfg.Bank.Adapter = bankfile.PipeAdapterName
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           cfg,
		DB:               s.GetDB(),
		SubRepo:          stores.SubscriptionRepo,
		PlanRepo:         stores.PlanRepo,
		FXRateRepo:       stores.FXRateRepo,
		CycleRepo:        stores.CycleRepo,
		ChargeRepo:       stores.ChargeRepo,
		AttemptRepo:      stores.AttemptRepo,
		MandateRepo:      stores.MandateRepo,
		FiscalRepo:       stores.FiscalRepo,
		FallbackRepo:     stores.FallbackRepo,
		EventRepo:        stores.EventRepo,
		BankBatchRepo:    stores.BankBatchRepo,
		EventPublisher:   s.GetPublisher(),
		BankRegistry:     s.GetBankRegistry(),
		FileStore:        s.GetFileStore(),
		FiscalIssuer:     s.GetFiscalIssuer(),
		FallbackProvider: s.GetFallbackProvider(),
		FXCache:          s.GetFXCache(),
	}
}

// seedPricing prices plan "pro" at 20 USD with 5 users included and an
// exchange rate of 1300 ARS per USD from 2026-01-01.
func seedPricing(s *testutil.BaseServiceTestSuite) {
	ctx := s.GetContext()
	stores := s.GetStores()
	s.Require().NoError(stores.PlanRepo.AddPlanPrice(ctx, &plan.PlanPrice{
		PlanKey:        testPlanKey,
		BasePrice:      decimal.NewFromInt(20),
		IncludedUsers:  5,
		ExtraUserPrice: decimal.NewFromInt(4),
		Currency:       "USD",
	}))
	s.Require().NoError(stores.FXRateRepo.Create(ctx, &fxrate.Rate{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FX_RATE),
		Base:          "USD",
		Quote:         "ARS",
		Rate:          decimal.NewFromInt(1300),
		EffectiveDate: types.MustParseDate("2026-01-01"),
		Source:        "test",
		CreatedAt:     time.Now().UTC(),
	}))
}

type subscriptionFixture struct {
	Sub     *subscription.Subscription
	PM      *subscription.PaymentMethod
	Mandate *mandate.Mandate
}

type subscriptionOption func(*subscriptionFixture)

func withDiscount(percent int64) subscriptionOption {
	return func(f *subscriptionFixture) { f.Sub.DiscountPercent = decimal.NewFromInt(percent) }
}

func withPlanKey(key string) subscriptionOption {
	return func(f *subscriptionFixture) { f.Sub.PlanKey = key }
}

func withStatus(status types.SubscriptionStatus) subscriptionOption {
	return func(f *subscriptionFixture) { f.Sub.Status = status }
}

func withMandateStatus(status types.MandateStatus) subscriptionOption {
	return func(f *subscriptionFixture) { f.Mandate.Status = status }
}

func withoutMandate() subscriptionOption {
	return func(f *subscriptionFixture) {
		f.Mandate = nil
		f.PM.Type = types.PaymentMethodTypeFallbackQR
	}
}

func withNextAnchor(d string) subscriptionOption {
	return func(f *subscriptionFixture) { f.Sub.NextAnchorDate = lo.ToPtr(types.MustParseDate(d)) }
}

// seedSubscription creates a subscription billed on the 10th with a direct debit
// payment method and an ACTIVE mandate.
func seedSubscription(s *testutil.BaseServiceTestSuite, id string, opts ...subscriptionOption) *subscriptionFixture {
	ctx := s.GetContext()
	stores := s.GetStores()
	now := time.Now().UTC()

	f := &subscriptionFixture{
		Sub: &subscription.Subscription{
			ID:              id,
			AgencyID:        testAgencyID,
			Status:          types.SubscriptionStatusActive,
			PlanKey:         testPlanKey,
			AnchorDay:       10,
			Timezone:        "America/Argentina/Buenos_Aires",
			BillingUsers:    3,
			DiscountPercent: decimal.Zero,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		PM: &subscription.PaymentMethod{
			ID:             "pm_" + id,
			SubscriptionID: id,
			AgencyID:       testAgencyID,
			Type:           types.PaymentMethodTypeDirectDebit,
			Status:         types.PaymentMethodStatusActive,
			IsDefault:      true,
			HolderName:     "Viajes Sur SRL",
			HolderTaxID:    "30712345678",
			AccountLast4:   "4321",
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		Mandate: &mandate.Mandate{
			ID:              "mdt_" + id,
			AgencyID:        testAgencyID,
			SubscriptionID:  id,
			PaymentMethodID: "pm_" + id,
			Status:          types.MandateStatusActive,
			BankReference:   "ADH-" + strings.ToUpper(id),
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
	for _, opt := range opts {
		opt(f)
	}

	s.Require().NoError(stores.SubscriptionRepo.AddSubscription(ctx, f.Sub))
	s.Require().NoError(stores.SubscriptionRepo.AddPaymentMethod(ctx, f.PM))
	if f.Mandate != nil {
		s.Require().NoError(stores.MandateRepo.Create(ctx, f.Mandate))
		s.Require().NoError(stores.SubscriptionRepo.SetPaymentMethodMandate(ctx, f.PM.ID, f.Mandate.ID))
		f.PM.MandateID = lo.ToPtr(f.Mandate.ID)
	}
	return f
}

// seedCharge creates an ad hoc charge with no cycle.
func seedCharge(s *testutil.BaseServiceTestSuite, f *subscriptionFixture, amount string, status types.ChargeStatus) *charge.Charge {
	now := time.Now().UTC()
	due := types.MustParseDate("2026-03-10")
	id := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE)
	ch := &charge.Charge{
		ID:             id,
		AgencyID:       f.Sub.AgencyID,
		SubscriptionID: f.Sub.ID,
		Purpose:        types.ChargePurposeAdHoc,
		Status:         status,
		Amount:         decimal.RequireFromString(amount),
		Currency:       "ARS",
		BaseAmount:     decimal.RequireFromString(amount).Div(decimal.NewFromInt(1300)).Round(2),
		BaseCurrency:   "USD",
		IdempotencyKey: "adhoc_" + id,
		DueDate:        due,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == types.ChargeStatusPaid {
		ch.PaidAt = lo.ToPtr(now)
	}
	stored, _, err := s.GetStores().ChargeRepo.CreateIfAbsent(s.GetContext(), ch)
	s.Require().NoError(err)
	return stored
}

func attemptsOf(s *testutil.BaseServiceTestSuite, chargeID string) []*attempt.Attempt {
	attempts, err := s.GetStores().AttemptRepo.ListByCharge(s.GetContext(), chargeID)
	s.Require().NoError(err)
	return attempts
}

// racingAttemptRepo stores winner right before the next insert, the way a
// concurrent writer commits between our read and our write.
type racingAttemptRepo struct {
	attempt.Repository
	winner *attempt.Attempt
}

func (r *racingAttemptRepo) CreateIfAbsent(ctx context.Context, a *attempt.Attempt) (*attempt.Attempt, bool, error) {
	if r.winner != nil {
		w := r.winner
		r.winner = nil
		if _, _, err := r.Repository.CreateIfAbsent(ctx, w); err != nil {
			return nil, false, err
		}
	}
	return r.Repository.CreateIfAbsent(ctx, a)
}

// concurrentAttempt builds the attempt another worker already stored.
func concurrentAttempt(ch *charge.Charge, no int, channel types.CollectionChannel, on string) *attempt.Attempt {
	now := time.Now().UTC()
	return &attempt.Attempt{
		ID:                "att_concurrent",
		ChargeID:          ch.ID,
		AgencyID:          ch.AgencyID,
		AttemptNo:         no,
		Channel:           channel,
		Status:            types.AttemptStatusScheduled,
		Amount:            ch.Amount,
		Currency:          ch.Currency,
		ExternalReference: AttemptReference(ch.ID, no),
		ScheduledOn:       types.MustParseDate(on),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

type responseLine struct {
	ref     string
	amount  decimal.Decimal
	code    string
	message string
}

// pipeResponseFile renders a pipe response file for the business date.
func pipeResponseFile(businessDate types.Date, lines ...responseLine) []byte {
	totals := bankfile.ComputeOutboundTotals(lo.Map(lines, func(l responseLine, _ int) bankfile.OutboundLine {
		return bankfile.OutboundLine{ExternalReference: l.ref, Amount: l.amount}
	}))

	var b strings.Builder
	fmt.Fprintf(&b, "H|DDPIPE|1|0001|COLLECT|%s|%d|%s|%s\n",
		businessDate.Compact(), totals.RecordCount, totals.AmountTotal.StringFixed(2), totals.Checksum)
	for i, l := range lines {
		fmt.Fprintf(&b, "D|%d|%s|%s|%s|%s|%s|TR%d|OP%d\n",
			i+1, l.ref, l.amount.StringFixed(2), l.code, l.message, businessDate.AddDays(1).Compact(), i+1, i+1)
	}
	fmt.Fprintf(&b, "T|%d|%s|%s\n", totals.RecordCount, totals.AmountTotal.StringFixed(2), totals.Checksum)
	return []byte(b.String())
}
