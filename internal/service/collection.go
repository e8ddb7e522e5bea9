package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/collections/internal/domain/attempt"
	"github.com/flexprice/collections/internal/domain/charge"
	"github.com/flexprice/collections/internal/domain/subscription"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

// AttemptReference is the external reference of a charge's nth attempt. It is what
// the bank echoes back and what the fallback intent is correlated by.
func AttemptReference(chargeID string, attemptNo int) string {
	return fmt.Sprintf("%s-A%02d", chargeID, attemptNo)
}

// resolveCollectionChannel returns the subscription's default active payment method
// and the channel it is collected through. Direct debit needs an ACTIVE mandate,
// anything else falls back to the payment intent provider.
func (p ServiceParams) resolveCollectionChannel(ctx context.Context, subscriptionID string) (*subscription.PaymentMethod, types.CollectionChannel, error) {
	pm, err := p.SubRepo.GetDefaultPaymentMethod(ctx, subscriptionID)
	if err != nil {
		return nil, "", err
	}
	if pm.Type != types.PaymentMethodTypeDirectDebit || pm.MandateID == nil {
		return pm, types.CollectionChannelFallback, nil
	}

	m, err := p.MandateRepo.Get(ctx, *pm.MandateID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return pm, types.CollectionChannelFallback, nil
		}
		return nil, "", err
	}
	if !m.IsUsable() {
		return pm, types.CollectionChannelFallback, nil
	}
	return pm, types.CollectionChannelDirectDebit, nil
}

// findOrCreateAttempt returns the attempt (charge_id, attemptNo), creating it
// SCHEDULED when absent. created reports whether this call inserted it.
func (p ServiceParams) findOrCreateAttempt(
	ctx context.Context,
	ch *charge.Charge,
	attemptNo int,
	channel types.CollectionChannel,
	paymentMethodID string,
	scheduledOn types.Date,
) (*attempt.Attempt, bool, error) {
	existing, err := p.AttemptRepo.ListByCharge(ctx, ch.ID)
	if err != nil {
		return nil, false, err
	}
	if a, ok := lo.Find(existing, func(a *attempt.Attempt) bool { return a.AttemptNo == attemptNo }); ok {
		return a, false, nil
	}

	now := time.Now().UTC()
	a := &attempt.Attempt{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ATTEMPT),
		ChargeID:          ch.ID,
		AgencyID:          ch.AgencyID,
		AttemptNo:         attemptNo,
		Channel:           channel,
		Status:            types.AttemptStatusScheduled,
		Amount:            ch.Amount,
		Currency:          ch.Currency,
		ExternalReference: AttemptReference(ch.ID, attemptNo),
		PaymentMethodID:   paymentMethodID,
		ScheduledOn:       scheduledOn,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	stored, created, err := p.AttemptRepo.CreateIfAbsent(ctx, a)
	if err != nil {
		return nil, false, err
	}
	if !created {
		// a concurrent caller created the same attempt number first
		return stored, false, nil
	}

	if err := p.recordEvent(ctx, ch.AgencyID, ch.SubscriptionID, types.BillingEventAttemptCreated, map[string]interface{}{
		"charge_id":          ch.ID,
		"attempt_id":         a.ID,
		"attempt_no":         a.AttemptNo,
		"channel":            a.Channel,
		"scheduled_on":       a.ScheduledOn.String(),
		"external_reference": a.ExternalReference,
	}); err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// markChargePaid settles the charge and cancels its attempts that were not
// presented yet, so a charge paid through one channel is never collected again.
// It returns false when the charge was already paid.
func (p ServiceParams) markChargePaid(ctx context.Context, ch *charge.Charge, paidBy *attempt.Attempt, paidAt time.Time) (bool, error) {
	if ch.IsPaid() {
		return false, nil
	}

	ch.Status = types.ChargeStatusPaid
	ch.PaidAt = lo.ToPtr(paidAt)
	ch.NextRetryOn = nil
	if err := p.ChargeRepo.Update(ctx, ch); err != nil {
		return false, err
	}

	attempts, err := p.AttemptRepo.ListByCharge(ctx, ch.ID)
	if err != nil {
		return false, err
	}
	for _, a := range attempts {
		if a.Status != types.AttemptStatusScheduled || (paidBy != nil && a.ID == paidBy.ID) {
			continue
		}
		a.Status = types.AttemptStatusCanceled
		a.ReasonMessage = "charge already paid"
		a.UpdatedAt = time.Now().UTC()
		if err := p.AttemptRepo.Update(ctx, a); err != nil {
			return false, err
		}
	}

	payload := map[string]interface{}{
		"charge_id": ch.ID,
		"amount":    ch.Amount.String(),
		"currency":  ch.Currency,
		"paid_at":   paidAt,
	}
	if paidBy != nil {
		payload["attempt_id"] = paidBy.ID
		payload["channel"] = paidBy.Channel
	}
	if err := p.recordEvent(ctx, ch.AgencyID, ch.SubscriptionID, types.BillingEventChargePaid, payload); err != nil {
		return false, err
	}
	return true, nil
}

// failCharge gives up on collecting the charge.
func (p ServiceParams) failCharge(ctx context.Context, ch *charge.Charge, reason string) error {
	if ch.Status.IsFinal() {
		return nil
	}
	ch.Status = types.ChargeStatusFailed
	ch.NextRetryOn = nil
	if err := p.ChargeRepo.Update(ctx, ch); err != nil {
		return err
	}
	return p.recordEvent(ctx, ch.AgencyID, ch.SubscriptionID, types.BillingEventChargeFailed, map[string]interface{}{
		"charge_id":   ch.ID,
		"reason":      reason,
		"retry_count": ch.RetryCount,
	})
}

// dunningOutcome is what happened to a charge after a failed direct debit.
type dunningOutcome struct {
	// RetryAttempt is the next direct debit attempt, nil when none was scheduled
	RetryAttempt *attempt.Attempt
	// FallbackAttempt is set when the charge moved to the fallback provider
	FallbackAttempt *attempt.Attempt
}

// scheduleRetry applies the retry schedule after a failed direct debit. A retryable
// reason gets another attempt retry_days[n] days after the result while the schedule
// lasts. Otherwise the charge moves to a fallback attempt, and reasons that
// invalidate the mandate also reject it.
func (p ServiceParams) scheduleRetry(
	ctx context.Context,
	ch *charge.Charge,
	failed *attempt.Attempt,
	reason types.BankReasonCode,
	resultDate types.Date,
) (*dunningOutcome, error) {
	out := &dunningOutcome{}
	if ch.Status != types.ChargeStatusPending {
		return out, nil
	}

	var pm *subscription.PaymentMethod
	if failed.PaymentMethodID != "" {
		found, err := p.SubRepo.GetPaymentMethod(ctx, failed.PaymentMethodID)
		if err != nil && !ierr.IsNotFound(err) {
			return nil, err
		}
		pm = found
	}

	if reason.InvalidatesMandate() && pm != nil && pm.MandateID != nil {
		_, err := NewMandateService(p).TransitionMandate(ctx, &TransitionMandateRequest{
			MandateID:       *pm.MandateID,
			Status:          types.MandateStatusRejected,
			RejectionReason: failed.ReasonMessage,
			RejectionCode:   string(reason),
		})
		if err != nil && !ierr.IsInvalidOperation(err) {
			return nil, err
		}
	}

	retryDays := p.Config.Billing.RetryDays
	if reason.IsRetryable() && ch.RetryCount < len(retryDays) {
		next := resultDate.AddDays(retryDays[ch.RetryCount])
		ch.RetryCount++
		ch.NextRetryOn = lo.ToPtr(next)
		if err := p.ChargeRepo.Update(ctx, ch); err != nil {
			return nil, err
		}

		pmID := failed.PaymentMethodID
		retry, _, err := p.findOrCreateAttempt(ctx, ch, failed.AttemptNo+1, types.CollectionChannelDirectDebit, pmID, next)
		if err != nil {
			return nil, err
		}
		out.RetryAttempt = retry
		return out, nil
	}

	ch.NextRetryOn = nil
	if err := p.ChargeRepo.Update(ctx, ch); err != nil {
		return nil, err
	}
	fallbackAttempt, _, err := p.findOrCreateAttempt(ctx, ch, failed.AttemptNo+1, types.CollectionChannelFallback, failed.PaymentMethodID, resultDate)
	if err != nil {
		return nil, err
	}

	p.Logger.Infow("charge moved to fallback collection",
		"charge_id", ch.ID,
		"reason", reason,
		"retry_count", ch.RetryCount,
	)
	out.FallbackAttempt = fallbackAttempt
	return out, nil
}
