package types

import (
	"fmt"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/samber/lo"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusPaused    SubscriptionStatus = "PAUSED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

// IsBillable reports whether the anchor cycle runner creates cycles for the status.
func (s SubscriptionStatus) IsBillable() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusPastDue
}

type ChargeStatus string

const (
	ChargeStatusPending  ChargeStatus = "PENDING"
	ChargeStatusPaid     ChargeStatus = "PAID"
	ChargeStatusFailed   ChargeStatus = "FAILED"
	ChargeStatusCanceled ChargeStatus = "CANCELED"
)

func (s ChargeStatus) IsFinal() bool {
	return s == ChargeStatusPaid || s == ChargeStatusFailed || s == ChargeStatusCanceled
}

// ChargePurpose is part of the charge idempotency key.
type ChargePurpose string

const (
	ChargePurposeRecurring ChargePurpose = "recurring"
	ChargePurposeAdHoc     ChargePurpose = "adhoc"
)

type AttemptStatus string

const (
	// AttemptStatusScheduled waits for the next presentment (direct debit) or for the
	// fallback intent to be created
	AttemptStatusScheduled AttemptStatus = "SCHEDULED"
	// AttemptStatusPresented was sent to the bank or the fallback provider
	AttemptStatusPresented AttemptStatus = "PRESENTED"
	AttemptStatusPaid      AttemptStatus = "PAID"
	AttemptStatusRejected  AttemptStatus = "REJECTED"
	AttemptStatusError     AttemptStatus = "ERROR"
	AttemptStatusCanceled  AttemptStatus = "CANCELED"
)

func (s AttemptStatus) IsFinal() bool {
	return lo.Contains([]AttemptStatus{
		AttemptStatusPaid,
		AttemptStatusRejected,
		AttemptStatusError,
		AttemptStatusCanceled,
	}, s)
}

type CollectionChannel string

const (
	CollectionChannelDirectDebit CollectionChannel = "DIRECT_DEBIT"
	CollectionChannelFallback    CollectionChannel = "FALLBACK"
)

type PaymentMethodType string

const (
	PaymentMethodTypeDirectDebit PaymentMethodType = "DIRECT_DEBIT"
	PaymentMethodTypeFallbackQR  PaymentMethodType = "FALLBACK_QR"
)

type PaymentMethodStatus string

const (
	PaymentMethodStatusActive   PaymentMethodStatus = "ACTIVE"
	PaymentMethodStatusDisabled PaymentMethodStatus = "DISABLED"
)

type AdjustmentKind string

const (
	AdjustmentKindAddon    AdjustmentKind = "ADDON"
	AdjustmentKindDiscount AdjustmentKind = "DISCOUNT"
)

func (k AdjustmentKind) Validate() error {
	allowed := []AdjustmentKind{AdjustmentKindAddon, AdjustmentKindDiscount}
	if lo.Contains(allowed, k) {
		return nil
	}
	return ierr.NewError(fmt.Sprintf("invalid adjustment kind %q", k)).
		WithHint("Adjustment kind must be ADDON or DISCOUNT").
		Mark(ierr.ErrValidation)
}
