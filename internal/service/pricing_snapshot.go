package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/collections/internal/cache"
	"github.com/flexprice/collections/internal/domain/billingcycle"
	"github.com/flexprice/collections/internal/domain/fxrate"
	"github.com/flexprice/collections/internal/domain/plan"
	"github.com/flexprice/collections/internal/domain/subscription"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line item codes of a pricing snapshot
const (
	LineItemPlan       = "plan"
	LineItemExtraUsers = "extra_users"
	LineItemDiscount   = "discount"
	LineItemVAT        = "vat"
)

// PricingSnapshotService prices a subscription for one billing cycle.
type PricingSnapshotService interface {
	BuildSnapshot(ctx context.Context, req *SnapshotRequest) (*billingcycle.PricingSnapshot, error)
}

// SnapshotRequest is what a cycle is priced from.
type SnapshotRequest struct {
	SubscriptionID  string
	PlanKey         string
	BillingUsers    int
	DiscountPercent decimal.Decimal
	// DirectDebit is set when the charge will be debited against an active mandate.
	// The configured direct debit discount applies when no other discount does.
	DirectDebit bool
	CycleDate   types.Date
}

func NewSnapshotRequest(sub *subscription.Subscription, cycleDate types.Date, directDebit bool) *SnapshotRequest {
	return &SnapshotRequest{
		SubscriptionID:  sub.ID,
		PlanKey:         sub.PlanKey,
		BillingUsers:    sub.BillingUsers,
		DiscountPercent: sub.DiscountPercent,
		DirectDebit:     directDebit,
		CycleDate:       cycleDate,
	}
}

func (r *SnapshotRequest) Validate() error {
	if r.PlanKey == "" {
		return ierr.NewError("plan key is required").
			WithHint("Subscription has no plan").
			WithReportableDetails(map[string]interface{}{"subscription_id": r.SubscriptionID}).
			Mark(ierr.ErrValidation)
	}
	if r.BillingUsers < 0 {
		return ierr.NewError("billing users must not be negative").
			WithHint("Billing user count must be zero or more").
			Mark(ierr.ErrValidation)
	}
	if r.DiscountPercent.IsNegative() || r.DiscountPercent.GreaterThan(hundred) {
		return ierr.NewError("discount percent out of range").
			WithHint("Discount percent must be between 0 and 100").
			Mark(ierr.ErrValidation)
	}
	if r.CycleDate.IsZero() {
		return ierr.NewError("cycle date is required").
			WithHint("Cycle date is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type pricingSnapshotService struct {
	ServiceParams
	now func() time.Time
}

func NewPricingSnapshotService(params ServiceParams) PricingSnapshotService {
	return &pricingSnapshotService{ServiceParams: params, now: time.Now}
}

func (s *pricingSnapshotService) BuildSnapshot(ctx context.Context, req *SnapshotRequest) (*billingcycle.PricingSnapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	price, err := s.PlanRepo.GetPlanPrice(ctx, req.PlanKey)
	if err != nil {
		return nil, err
	}
	if price.Currency != "" && price.Currency != s.Config.Billing.BaseCurrency {
		return nil, ierr.NewErrorf("plan %s is priced in %s", price.PlanKey, price.Currency).
			WithHintf("Plan prices must be in %s", s.Config.Billing.BaseCurrency).
			Mark(ierr.ErrValidation)
	}

	adjustments, err := s.PlanRepo.ListAdjustments(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	active := lo.Filter(adjustments, func(a *plan.Adjustment, _ int) bool {
		return a.IsActiveOn(req.CycleDate)
	})

	rate, stale, err := s.resolveFXRate(ctx, req.CycleDate)
	if err != nil {
		return nil, err
	}

	snapshot := computeSnapshot(snapshotInputs{
		request:             req,
		price:               price,
		adjustments:         active,
		rate:                rate,
		staleRate:           stale,
		vatRate:             s.Config.Billing.VATRate,
		directDebitDiscount: s.Config.Billing.DirectDebitDiscount,
		baseCurrency:        s.Config.Billing.BaseCurrency,
		localCurrency:       s.Config.Billing.LocalCurrency,
		generatedAt:         s.now().UTC(),
	})

	s.Logger.Debugw("built pricing snapshot",
		"subscription_id", req.SubscriptionID,
		"cycle_date", req.CycleDate.String(),
		"total", snapshot.Total.String(),
		"local_total", snapshot.LocalTotal.String(),
		"stale_fx_rate", snapshot.StaleFXRate,
	)
	return snapshot, nil
}

// resolveFXRate returns the rate effective on the date. When none exists and stale
// rates are allowed, the latest known rate is returned with stale set.
func (s *pricingSnapshotService) resolveFXRate(ctx context.Context, on types.Date) (*fxrate.Rate, bool, error) {
	base, quote := s.Config.Billing.BaseCurrency, s.Config.Billing.LocalCurrency
	key := cache.GenerateKey("fx_rate", base, quote, on.String())

	if s.FXCache != nil {
		if v, ok := s.FXCache.Get(ctx, key); ok {
			if rate, ok := v.(*fxrate.Rate); ok {
				return rate, false, nil
			}
		}
	}

	rate, err := s.FXRateRepo.GetEffective(ctx, base, quote, on)
	if err == nil {
		if s.FXCache != nil {
			ttl := s.Config.Billing.FXCacheTTL
			if ttl <= 0 {
				ttl = cache.ExpiryFXRate
			}
			s.FXCache.Set(ctx, key, rate, ttl)
		}
		return rate, false, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, false, err
	}

	if !s.Config.Billing.AllowStaleFXRate {
		return nil, false, ierr.WithError(err).
			WithHintf("No %s/%s exchange rate effective on or before %s", quote, base, on.String()).
			WithReportableDetails(map[string]interface{}{
				"base":       base,
				"quote":      quote,
				"cycle_date": on.String(),
			}).
			Mark(ierr.ErrNotFound)
	}

	latest, err := s.FXRateRepo.GetLatest(ctx, base, quote)
	if err != nil {
		return nil, false, ierr.WithError(err).
			WithHintf("No %s/%s exchange rate on record", quote, base).
			Mark(ierr.ErrNotFound)
	}
	s.Logger.Warnw("using stale exchange rate",
		"cycle_date", on.String(),
		"rate_date", latest.EffectiveDate.String(),
		"rate", latest.Rate.String(),
	)
	return latest, true, nil
}

type snapshotInputs struct {
	request             *SnapshotRequest
	price               *plan.PlanPrice
	adjustments         []*plan.Adjustment
	rate                *fxrate.Rate
	staleRate           bool
	vatRate             decimal.Decimal
	directDebitDiscount decimal.Decimal
	baseCurrency        string
	localCurrency       string
	generatedAt         time.Time
}

// computeSnapshot does the pricing arithmetic. Every money value is rounded to cents;
// local line items are converted one by one and the rounding remainder against the
// local total goes to the last line.
func computeSnapshot(in snapshotInputs) *billingcycle.PricingSnapshot {
	req, price := in.request, in.price

	var lines []billingcycle.LineItem
	lines = append(lines, billingcycle.LineItem{
		Code:        LineItemPlan,
		Description: fmt.Sprintf("Plan %s", price.PlanKey),
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   price.BasePrice,
		Amount:      types.RoundMoney(price.BasePrice),
	})

	extraUsers := price.ExtraUsers(req.BillingUsers)
	if extraUsers > 0 && price.ExtraUserPrice.IsPositive() {
		qty := decimal.NewFromInt(int64(extraUsers))
		lines = append(lines, billingcycle.LineItem{
			Code:        LineItemExtraUsers,
			Description: fmt.Sprintf("%d additional users", extraUsers),
			Quantity:    qty,
			UnitPrice:   price.ExtraUserPrice,
			Amount:      types.RoundMoney(price.ExtraUserPrice.Mul(qty)),
		})
	}
	basePrice := decimal.Zero
	for _, li := range lines {
		basePrice = basePrice.Add(li.Amount)
	}

	addonsTotal := decimal.Zero
	discountPercent := req.DiscountPercent
	for _, adj := range in.adjustments {
		switch adj.Kind {
		case types.AdjustmentKindAddon:
			amount := types.RoundMoney(adj.Amount)
			addonsTotal = addonsTotal.Add(amount)
			lines = append(lines, billingcycle.LineItem{
				Code:        adj.Code,
				Description: adj.Description,
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   adj.Amount,
				Amount:      amount,
			})
		case types.AdjustmentKindDiscount:
			discountPercent = discountPercent.Add(adj.Percent)
		}
	}
	if discountPercent.IsZero() && req.DirectDebit {
		discountPercent = in.directDebitDiscount
	}
	discountPercent = decimal.Min(discountPercent, hundred)

	net := basePrice.Add(addonsTotal)
	discountAmount := types.RoundMoney(net.Mul(discountPercent).Div(hundred))
	if discountAmount.IsPositive() {
		lines = append(lines, billingcycle.LineItem{
			Code:        LineItemDiscount,
			Description: fmt.Sprintf("Discount %s%%", discountPercent.String()),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   discountAmount.Neg(),
			Amount:      discountAmount.Neg(),
		})
	}

	subtotal := net.Sub(discountAmount)
	vatAmount := types.RoundMoney(subtotal.Mul(in.vatRate))
	lines = append(lines, billingcycle.LineItem{
		Code:        LineItemVAT,
		Description: fmt.Sprintf("VAT %s%%", in.vatRate.Mul(hundred).String()),
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   vatAmount,
		Amount:      vatAmount,
	})
	total := subtotal.Add(vatAmount)

	fx := in.rate.Rate
	localTotal := types.RoundMoney(total.Mul(fx))
	localSum := decimal.Zero
	for i := range lines {
		lines[i].LocalAmount = types.RoundMoney(lines[i].Amount.Mul(fx))
		localSum = localSum.Add(lines[i].LocalAmount)
	}
	last := len(lines) - 1
	lines[last].LocalAmount = lines[last].LocalAmount.Add(localTotal.Sub(localSum))

	return &billingcycle.PricingSnapshot{
		PlanKey:         price.PlanKey,
		BillingUsers:    req.BillingUsers,
		BaseCurrency:    in.baseCurrency,
		LocalCurrency:   in.localCurrency,
		BasePrice:       basePrice,
		AddonsTotal:     addonsTotal,
		PreDiscountNet:  net,
		DiscountPercent: discountPercent,
		DiscountAmount:  discountAmount,
		Subtotal:        subtotal,
		VATRate:         in.vatRate,
		VATAmount:       vatAmount,
		Total:           total,
		FXRate:          fx,
		FXRateDate:      in.rate.EffectiveDate,
		FXSource:        in.rate.Source,
		StaleFXRate:     in.staleRate,
		LocalTotal:      localTotal,
		LineItems:       lines,
		GeneratedAt:     in.generatedAt,
	}
}
