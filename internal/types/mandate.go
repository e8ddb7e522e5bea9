package types

import (
	"fmt"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/samber/lo"
)

type MandateStatus string

const (
	MandateStatusPending     MandateStatus = "PENDING"
	MandateStatusPendingBank MandateStatus = "PENDING_BANK"
	MandateStatusActive      MandateStatus = "ACTIVE"
	MandateStatusRejected    MandateStatus = "REJECTED"
	MandateStatusRevoked     MandateStatus = "REVOKED"
)

var mandateTransitions = map[MandateStatus][]MandateStatus{
	MandateStatusPending:     {MandateStatusPendingBank, MandateStatusRejected, MandateStatusRevoked},
	MandateStatusPendingBank: {MandateStatusActive, MandateStatusRejected, MandateStatusRevoked},
	MandateStatusActive:      {MandateStatusRejected, MandateStatusRevoked},
	// a rejected mandate goes back to the bank through a new authorization
	MandateStatusRejected: {MandateStatusPendingBank, MandateStatusRevoked},
	MandateStatusRevoked:  {},
}

func (s MandateStatus) Validate() error {
	if _, ok := mandateTransitions[s]; ok {
		return nil
	}
	return ierr.NewError(fmt.Sprintf("invalid mandate status %q", s)).
		WithHint("Mandate status must be one of PENDING, PENDING_BANK, ACTIVE, REJECTED, REVOKED").
		Mark(ierr.ErrValidation)
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Staying in the same status is always allowed.
func (s MandateStatus) CanTransitionTo(next MandateStatus) bool {
	if s == next {
		return true
	}
	return lo.Contains(mandateTransitions[s], next)
}
