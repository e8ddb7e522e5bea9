package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/collections/internal/domain/attempt"
	"github.com/flexprice/collections/internal/domain/charge"
	"github.com/flexprice/collections/internal/domain/fallback"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/integration/qrpay"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

const defaultFallbackIntentTTL = 72 * time.Hour

// FallbackService collects charges through payment intents when direct debit is
// not possible.
type FallbackService interface {
	CreateIntentForCharge(ctx context.Context, chargeID string) (*fallback.Intent, error)
	GetIntent(ctx context.Context, id string) (*fallback.Intent, error)
	RefreshIntent(ctx context.Context, id string) (*fallback.Intent, error)
	// RefreshIntentFromProvider is RefreshIntent for webhook notifications
	RefreshIntentFromProvider(ctx context.Context, id string) error
	CancelIntent(ctx context.Context, id string) (*fallback.Intent, error)

	// OpenScheduledIntents creates intents for fallback attempts due by asOf
	OpenScheduledIntents(ctx context.Context, asOf types.Date) (*FallbackRunSummary, error)
	// PollPendingIntents refreshes every pending intent
	PollPendingIntents(ctx context.Context) (*FallbackRunSummary, error)
}

type FallbackRunSummary struct {
	Processed int      `json:"processed"`
	Paid      int      `json:"paid"`
	Expired   int      `json:"expired"`
	Opened    int      `json:"opened"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

type fallbackService struct {
	ServiceParams
	now func() time.Time
}

func NewFallbackService(params ServiceParams) FallbackService {
	return &fallbackService{ServiceParams: params, now: time.Now}
}

// FallbackIntentIdempotencyKey identifies the intent of a charge attempt.
func FallbackIntentIdempotencyKey(chargeID string, attemptNo int) string {
	return types.GenerateIdempotencyKey(types.IdempotencyScopeFallbackIntent, map[string]interface{}{
		"charge_id":  chargeID,
		"attempt_no": attemptNo,
	})
}

func (s *fallbackService) GetIntent(ctx context.Context, id string) (*fallback.Intent, error) {
	return s.FallbackRepo.Get(ctx, id)
}

// CreateIntentForCharge opens a payment intent for the charge. The latest attempt is
// reused when it is an open fallback attempt, otherwise a new fallback attempt is
// added. Repeated calls return the same intent.
func (s *fallbackService) CreateIntentForCharge(ctx context.Context, chargeID string) (*fallback.Intent, error) {
	var intent *fallback.Intent
	var ch *charge.Charge
	err := s.withTx(ctx, func(ctx context.Context) error {
		var err error
		ch, err = s.ChargeRepo.Get(ctx, chargeID)
		if err != nil {
			return err
		}
		if ch.Status != types.ChargeStatusPending {
			return ierr.NewErrorf("charge %s is %s", ch.ID, ch.Status).
				WithHint("Payment intents are created for pending charges only").
				WithReportableDetails(map[string]interface{}{"charge_id": ch.ID, "status": ch.Status}).
				Mark(ierr.ErrInvalidOperation)
		}

		attempts, err := s.AttemptRepo.ListByCharge(ctx, ch.ID)
		if err != nil {
			return err
		}
		a, err := s.fallbackAttempt(ctx, ch, attempts)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		stored, created, err := s.FallbackRepo.CreateIfAbsent(ctx, &fallback.Intent{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FALLBACK_INTENT),
			AgencyID:       ch.AgencyID,
			ChargeID:       ch.ID,
			AttemptID:      a.ID,
			IdempotencyKey: FallbackIntentIdempotencyKey(ch.ID, a.AttemptNo),
			Status:         types.FallbackIntentStatusPending,
			Amount:         a.Amount,
			Currency:       a.Currency,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return err
		}
		intent = stored
		if created {
			s.Logger.Debugw("recorded fallback intent", "intent_id", stored.ID, "charge_id", ch.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if intent.ProviderReference != "" {
		return intent, nil
	}

	ttl := s.Config.Billing.FallbackIntentTTL
	if ttl <= 0 {
		ttl = defaultFallbackIntentTTL
	}
	pi, err := s.FallbackProvider.CreatePaymentIntent(ctx, &qrpay.CreateIntentRequest{
		IdempotencyKey:    intent.IdempotencyKey,
		AgencyID:          intent.AgencyID,
		ExternalReference: intent.ID,
		Amount:            intent.Amount,
		Currency:          intent.Currency,
		Description:       fmt.Sprintf("Charge %s", ch.ID),
		ExpiresAt:         s.now().UTC().Add(ttl),
		Metadata: map[string]string{
			"charge_id":  ch.ID,
			"attempt_id": intent.AttemptID,
		},
	})
	if err != nil {
		s.Logger.Errorw("failed to create payment intent",
			"intent_id", intent.ID,
			"charge_id", ch.ID,
			"error", err,
		)
		s.Sentry.CaptureException(ctx, err)
		return nil, err
	}

	err = s.withTx(ctx, func(ctx context.Context) error {
		intent.ProviderReference = pi.Reference
		intent.ProviderStatus = pi.ProviderStatus
		intent.PaymentURL = pi.PaymentURL
		intent.QRPayload = pi.QRPayload
		intent.ExpiresAt = pi.ExpiresAt
		intent.UpdatedAt = s.now().UTC()
		if err := s.FallbackRepo.Update(ctx, intent); err != nil {
			return err
		}

		a, err := s.AttemptRepo.Get(ctx, intent.AttemptID)
		if err != nil {
			return err
		}
		if a.Status == types.AttemptStatusScheduled {
			a.Status = types.AttemptStatusPresented
			a.PresentedAt = lo.ToPtr(s.now().UTC())
			a.UpdatedAt = s.now().UTC()
			if err := s.AttemptRepo.Update(ctx, a); err != nil {
				return err
			}
		}

		return s.recordEvent(ctx, ch.AgencyID, ch.SubscriptionID, types.BillingEventFallbackIntentCreated, map[string]interface{}{
			"intent_id":          intent.ID,
			"charge_id":          ch.ID,
			"attempt_id":         intent.AttemptID,
			"provider_reference": intent.ProviderReference,
			"amount":             intent.Amount.String(),
			"currency":           intent.Currency,
			"expires_at":         intent.ExpiresAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created fallback payment intent",
		"intent_id", intent.ID,
		"charge_id", ch.ID,
		"provider_reference", intent.ProviderReference,
	)
	return intent, nil
}

// fallbackAttempt returns the open fallback attempt of the charge or schedules one.
func (s *fallbackService) fallbackAttempt(ctx context.Context, ch *charge.Charge, attempts []*attempt.Attempt) (*attempt.Attempt, error) {
	nextNo := 1
	if last, ok := lo.Last(attempts); ok {
		nextNo = last.AttemptNo + 1
		if last.Channel == types.CollectionChannelFallback && !last.Status.IsFinal() {
			return last, nil
		}
		if last.Channel == types.CollectionChannelDirectDebit && last.Status == types.AttemptStatusPresented {
			return nil, ierr.NewErrorf("attempt %s is awaiting the bank", last.ID).
				WithHint("The charge has a direct debit in progress").
				Mark(ierr.ErrInvalidOperation)
		}
		if last.Channel == types.CollectionChannelDirectDebit && last.Status == types.AttemptStatusScheduled {
			last.Status = types.AttemptStatusCanceled
			last.ReasonMessage = "replaced by fallback intent"
			last.UpdatedAt = s.now().UTC()
			if err := s.AttemptRepo.Update(ctx, last); err != nil {
				return nil, err
			}
		}
	}

	pmID := ""
	if pm, err := s.SubRepo.GetDefaultPaymentMethod(ctx, ch.SubscriptionID); err == nil {
		pmID = pm.ID
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	a, _, err := s.findOrCreateAttempt(ctx, ch, nextNo, types.CollectionChannelFallback, pmID, types.DateOf(s.now().UTC()))
	return a, err
}

func (s *fallbackService) RefreshIntent(ctx context.Context, id string) (*fallback.Intent, error) {
	intent, err := s.FallbackRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent.Status.IsFinal() || intent.ProviderReference == "" {
		return intent, nil
	}

	pi, err := s.FallbackProvider.GetPaymentStatus(ctx, intent.ProviderReference)
	if err != nil {
		return nil, err
	}
	return s.applyProviderStatus(ctx, intent.ID, pi)
}

func (s *fallbackService) RefreshIntentFromProvider(ctx context.Context, id string) error {
	_, err := s.RefreshIntent(ctx, id)
	return err
}

// CancelIntent cancels a pending intent. An intent the payer already paid stays PAID.
func (s *fallbackService) CancelIntent(ctx context.Context, id string) (*fallback.Intent, error) {
	intent, err := s.FallbackRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent.Status.IsFinal() {
		return intent, nil
	}

	if intent.ProviderReference == "" {
		return s.applyProviderStatus(ctx, intent.ID, &qrpay.PaymentIntent{Status: types.FallbackIntentStatusCanceled})
	}

	pi, err := s.FallbackProvider.CancelPaymentIntent(ctx, intent.ProviderReference)
	if err != nil {
		return nil, err
	}
	return s.applyProviderStatus(ctx, intent.ID, pi)
}

// applyProviderStatus moves the intent, its attempt and its charge to what the
// provider reports. Final intents are never changed again.
func (s *fallbackService) applyProviderStatus(ctx context.Context, intentID string, pi *qrpay.PaymentIntent) (*fallback.Intent, error) {
	var intent *fallback.Intent
	var paidChargeID string
	err := s.withTx(ctx, func(ctx context.Context) error {
		var err error
		intent, err = s.FallbackRepo.Get(ctx, intentID)
		if err != nil {
			return err
		}
		if intent.Status.IsFinal() {
			return nil
		}

		now := s.now().UTC()
		prev := intent.Status
		if pi.ProviderStatus != "" {
			intent.ProviderStatus = pi.ProviderStatus
		}
		intent.Status = pi.Status
		intent.UpdatedAt = now
		if pi.Status == types.FallbackIntentStatusPaid {
			intent.PaidAt = lo.ToPtr(lo.FromPtrOr(pi.PaidAt, now))
		}
		if err := s.FallbackRepo.Update(ctx, intent); err != nil {
			return err
		}
		if prev == intent.Status {
			return nil
		}

		ch, err := s.ChargeRepo.Get(ctx, intent.ChargeID)
		if err != nil {
			return err
		}
		a, err := s.AttemptRepo.Get(ctx, intent.AttemptID)
		if err != nil {
			return err
		}

		a.UpdatedAt = now
		switch intent.Status {
		case types.FallbackIntentStatusPaid:
			a.Status = types.AttemptStatusPaid
			a.SettledAt = intent.PaidAt
			if err := s.AttemptRepo.Update(ctx, a); err != nil {
				return err
			}
			paid, err := s.markChargePaid(ctx, ch, a, *intent.PaidAt)
			if err != nil {
				return err
			}
			if paid {
				paidChargeID = ch.ID
			}
		case types.FallbackIntentStatusExpired:
			a.Status = types.AttemptStatusError
			a.ReasonMessage = "payment intent expired"
			if err := s.AttemptRepo.Update(ctx, a); err != nil {
				return err
			}
			if err := s.failCharge(ctx, ch, "payment intent expired"); err != nil {
				return err
			}
		case types.FallbackIntentStatusCanceled:
			a.Status = types.AttemptStatusCanceled
			a.ReasonMessage = "payment intent canceled"
			if err := s.AttemptRepo.Update(ctx, a); err != nil {
				return err
			}
		}

		return s.recordEvent(ctx, ch.AgencyID, ch.SubscriptionID, types.BillingEventFallbackIntentUpdated, map[string]interface{}{
			"intent_id":       intent.ID,
			"charge_id":       ch.ID,
			"from":            prev,
			"to":              intent.Status,
			"provider_status": intent.ProviderStatus,
		})
	})
	if err != nil {
		return nil, err
	}

	if paidChargeID != "" {
		s.autorunFiscal(ctx, []string{paidChargeID})
	}
	return intent, nil
}

func (s *fallbackService) OpenScheduledIntents(ctx context.Context, asOf types.Date) (*FallbackRunSummary, error) {
	attempts, err := s.AttemptRepo.List(ctx, &attempt.AttemptFilter{
		QueryFilter:         &types.QueryFilter{Limit: lo.ToPtr(types.FILTER_MAX_LIMIT)},
		Channel:             types.CollectionChannelFallback,
		Statuses:            []types.AttemptStatus{types.AttemptStatusScheduled},
		ScheduledOnOrBefore: lo.ToPtr(asOf),
	})
	if err != nil {
		return nil, err
	}

	summary := &FallbackRunSummary{}
	for _, a := range attempts {
		summary.Processed++
		if _, err := s.CreateIntentForCharge(ctx, a.ChargeID); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", a.ChargeID, err))
			continue
		}
		summary.Opened++
	}
	return summary, nil
}

func (s *fallbackService) PollPendingIntents(ctx context.Context) (*FallbackRunSummary, error) {
	intents, err := s.FallbackRepo.List(ctx, &fallback.IntentFilter{
		QueryFilter: &types.QueryFilter{Limit: lo.ToPtr(types.FILTER_MAX_LIMIT)},
		Statuses:    []types.FallbackIntentStatus{types.FallbackIntentStatusPending},
	})
	if err != nil {
		return nil, err
	}

	summary := &FallbackRunSummary{}
	for _, intent := range intents {
		summary.Processed++
		refreshed, err := s.RefreshIntent(ctx, intent.ID)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", intent.ID, err))
			s.Logger.Warnw("failed to refresh payment intent", "intent_id", intent.ID, "error", err)
			continue
		}
		switch refreshed.Status {
		case types.FallbackIntentStatusPaid:
			summary.Paid++
		case types.FallbackIntentStatusExpired:
			summary.Expired++
		}
	}
	return summary, nil
}
