package service

import (
	"context"
	"time"

	"github.com/flexprice/collections/internal/domain/mandate"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/flexprice/collections/internal/validator"
	"github.com/samber/lo"
)

// MandateService moves mandates through their lifecycle.
type MandateService interface {
	TransitionMandate(ctx context.Context, req *TransitionMandateRequest) (*mandate.Mandate, error)
	GetMandate(ctx context.Context, id string) (*mandate.Mandate, error)
}

type TransitionMandateRequest struct {
	MandateID string              `json:"-"`
	Status    types.MandateStatus `json:"status" validate:"required"`
	// BankReference replaces the stored reference when set
	BankReference   *string `json:"bank_reference,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty" validate:"max=500"`
	RejectionCode   string  `json:"rejection_code,omitempty" validate:"max=64"`
	// Actor overrides the actor recorded on events
	Actor string `json:"actor,omitempty"`
}

func (r *TransitionMandateRequest) Validate() error {
	if r.MandateID == "" {
		return ierr.NewError("mandate id is required").
			WithHint("Please provide a valid mandate ID").
			Mark(ierr.ErrValidation)
	}
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Status.Validate()
}

type mandateService struct {
	ServiceParams
}

func NewMandateService(params ServiceParams) MandateService {
	return &mandateService{ServiceParams: params}
}

func (s *mandateService) GetMandate(ctx context.Context, id string) (*mandate.Mandate, error) {
	return s.MandateRepo.Get(ctx, id)
}

// TransitionMandate applies a status change. Repeating the current status only
// refreshes last_status_check_at and the bank reference.
func (s *mandateService) TransitionMandate(ctx context.Context, req *TransitionMandateRequest) (*mandate.Mandate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Actor != "" {
		ctx = types.SetUserID(ctx, req.Actor)
	}

	var result *mandate.Mandate
	err := s.withTx(ctx, func(ctx context.Context) error {
		m, err := s.MandateRepo.GetForUpdate(ctx, req.MandateID)
		if err != nil {
			return err
		}
		sub, err := s.SubRepo.Get(ctx, m.SubscriptionID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		m.LastStatusCheckAt = lo.ToPtr(now)
		if req.BankReference != nil {
			m.BankReference = *req.BankReference
		}

		prev := m.Status
		if prev == req.Status {
			result = m
			return s.MandateRepo.Update(ctx, m)
		}
		if !prev.CanTransitionTo(req.Status) {
			return ierr.NewErrorf("mandate cannot move from %s to %s", prev, req.Status).
				WithHintf("Mandate in %s cannot be moved to %s", prev, req.Status).
				WithReportableDetails(map[string]interface{}{
					"mandate_id": m.ID,
					"from":       prev,
					"to":         req.Status,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		m.Status = req.Status
		switch req.Status {
		case types.MandateStatusActive:
			if m.ActivatedAt == nil {
				m.ActivatedAt = lo.ToPtr(now)
			}
		case types.MandateStatusRevoked:
			if m.RevokedAt == nil {
				m.RevokedAt = lo.ToPtr(now)
			}
		}
		if req.Status == types.MandateStatusRejected {
			m.RejectionReason = req.RejectionReason
			m.RejectionCode = req.RejectionCode
		} else {
			m.RejectionReason = ""
			m.RejectionCode = ""
		}

		if err := s.MandateRepo.Update(ctx, m); err != nil {
			return err
		}

		payload := map[string]interface{}{
			"mandate_id":     m.ID,
			"from":           prev,
			"to":             m.Status,
			"bank_reference": m.BankReference,
		}
		if err := s.recordEvent(ctx, sub.AgencyID, sub.ID, types.BillingEventMandateStatusChanged, payload); err != nil {
			return err
		}

		switch m.Status {
		case types.MandateStatusRejected:
			err = s.recordEvent(ctx, sub.AgencyID, sub.ID, types.BillingEventMandateRejected, map[string]interface{}{
				"mandate_id":       m.ID,
				"rejection_reason": m.RejectionReason,
				"rejection_code":   m.RejectionCode,
			})
		case types.MandateStatusRevoked:
			err = s.recordEvent(ctx, sub.AgencyID, sub.ID, types.BillingEventMandateRevoked, map[string]interface{}{
				"mandate_id": m.ID,
				"revoked_at": m.RevokedAt,
			})
		}
		if err != nil {
			return err
		}

		s.Logger.Infow("mandate status changed",
			"mandate_id", m.ID,
			"subscription_id", sub.ID,
			"from", prev,
			"to", m.Status,
		)
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
