package service

import (
	"context"
	"time"

	"github.com/flexprice/collections/internal/domain/billingcycle"
	"github.com/flexprice/collections/internal/domain/charge"
	"github.com/flexprice/collections/internal/domain/subscription"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

// AnchorCycleService creates the billing cycle, charge and first attempt of every
// subscription whose anchor date has come.
type AnchorCycleService interface {
	RunAnchorCycles(ctx context.Context, runAt time.Time) (*AnchorRunSummary, error)
	RunForSubscription(ctx context.Context, subscriptionID string, runAt time.Time) (*SubscriptionRunResult, error)
}

// AnchorRunSummary reports one run over all billable subscriptions.
type AnchorRunSummary struct {
	RunAt     time.Time                `json:"run_at"`
	Processed int                      `json:"processed"`
	Created   int                      `json:"created"`
	Skipped   int                      `json:"skipped"`
	Failed    int                      `json:"failed"`
	Errors    []SubscriptionRunError   `json:"errors,omitempty"`
	Results   []*SubscriptionRunResult `json:"-"`
}

type SubscriptionRunError struct {
	SubscriptionID string `json:"subscription_id"`
	Error          string `json:"error"`
}

// SubscriptionRunResult is the outcome for one subscription.
type SubscriptionRunResult struct {
	SubscriptionID string     `json:"subscription_id"`
	Due            bool       `json:"due"`
	AnchorDate     types.Date `json:"anchor_date"`
	// Created is set when this run created the cycle
	Created        bool       `json:"created"`
	CycleID        string     `json:"cycle_id,omitempty"`
	ChargeID       string     `json:"charge_id,omitempty"`
	AttemptID      string     `json:"attempt_id,omitempty"`
	NextAnchorDate types.Date `json:"next_anchor_date"`
	// MissedAnchors lists earlier anchors a catch-up run did not bill
	MissedAnchors []types.Date `json:"missed_anchors,omitempty"`
}

type anchorCycleService struct {
	ServiceParams
	snapshots PricingSnapshotService
}

func NewAnchorCycleService(params ServiceParams) AnchorCycleService {
	return &anchorCycleService{
		ServiceParams: params,
		snapshots:     NewPricingSnapshotService(params),
	}
}

// RunAnchorCycles walks billable subscriptions a page at a time. A failing
// subscription is reported in the summary and never stops the run.
func (s *anchorCycleService) RunAnchorCycles(ctx context.Context, runAt time.Time) (*AnchorRunSummary, error) {
	summary := &AnchorRunSummary{RunAt: runAt}
	limit := s.Config.Billing.BatchSize
	if limit <= 0 {
		limit = types.FILTER_DEFAULT_LIMIT
	}

	s.Logger.Infow("starting anchor cycle run", "run_at", runAt, "batch_size", limit)

	offset := 0
	for {
		subs, err := s.SubRepo.ListBillable(ctx, &types.QueryFilter{
			Limit:  lo.ToPtr(limit),
			Offset: lo.ToPtr(offset),
		})
		if err != nil {
			return summary, err
		}

		for _, sub := range subs {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			result, err := s.runSubscription(ctx, sub, runAt)
			summary.Processed++
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, SubscriptionRunError{
					SubscriptionID: sub.ID,
					Error:          err.Error(),
				})
				s.Logger.Errorw("anchor cycle failed for subscription",
					"subscription_id", sub.ID,
					"agency_id", sub.AgencyID,
					"error", err,
				)
				s.Sentry.CaptureException(ctx, err)
				continue
			}

			summary.Results = append(summary.Results, result)
			if result.Created {
				summary.Created++
			} else {
				summary.Skipped++
			}
		}

		if len(subs) < limit {
			break
		}
		offset += len(subs)
	}

	s.Logger.Infow("completed anchor cycle run",
		"run_at", runAt,
		"processed", summary.Processed,
		"created", summary.Created,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (s *anchorCycleService) RunForSubscription(ctx context.Context, subscriptionID string, runAt time.Time) (*SubscriptionRunResult, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.runSubscription(ctx, sub, runAt)
}

// runSubscription bills the latest anchor on or before the run date in the
// subscription's timezone. Cycle, charge, attempt and the next anchor date are
// written in one transaction.
func (s *anchorCycleService) runSubscription(ctx context.Context, sub *subscription.Subscription, runAt time.Time) (*SubscriptionRunResult, error) {
	loc, err := sub.Location()
	if err != nil {
		return nil, err
	}
	local := types.DateIn(runAt, loc)
	result := &SubscriptionRunResult{SubscriptionID: sub.ID}
	if !sub.IsDueOn(local) {
		if sub.NextAnchorDate != nil {
			result.NextAnchorDate = *sub.NextAnchorDate
		}
		return result, nil
	}

	anchor := types.AnchorOnOrBefore(local, sub.AnchorDay)
	next := types.NextAnchorAfter(anchor, sub.AnchorDay)
	result.Due = true
	result.AnchorDate = anchor
	result.NextAnchorDate = next
	if sub.NextAnchorDate != nil && sub.NextAnchorDate.Before(anchor) {
		result.MissedAnchors = lo.Filter(
			types.AnchorsBetween(sub.NextAnchorDate.AddDays(-1), anchor, sub.AnchorDay),
			func(d types.Date, _ int) bool { return d.Before(anchor) },
		)
		if len(result.MissedAnchors) > 0 {
			s.Logger.Warnw("catch-up run bills the latest anchor only",
				"subscription_id", sub.ID,
				"anchor_date", anchor.String(),
				"missed_anchors", len(result.MissedAnchors),
			)
		}
	}

	err = s.withTx(ctx, func(ctx context.Context) error {
		if err := s.DB.LockKey(ctx, postgres.LockRequest{Key: postgres.SubscriptionLockKey(sub.ID)}); err != nil {
			return err
		}

		existing, err := s.CycleRepo.GetByAnchor(ctx, sub.ID, anchor)
		if err == nil {
			result.CycleID = existing.ID
			return s.advanceAnchor(ctx, sub, next)
		}
		if !ierr.IsNotFound(err) {
			return err
		}

		pm, channel, err := s.resolveCollectionChannel(ctx, sub.ID)
		if err != nil {
			return err
		}

		snapshot, err := s.snapshots.BuildSnapshot(ctx, NewSnapshotRequest(sub, anchor, channel == types.CollectionChannelDirectDebit))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		cycle, created, err := s.CycleRepo.CreateIfAbsent(ctx, &billingcycle.BillingCycle{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_CYCLE),
			SubscriptionID: sub.ID,
			AgencyID:       sub.AgencyID,
			AnchorDate:     anchor,
			PeriodStart:    anchor,
			PeriodEnd:      next.AddDays(-1),
			Snapshot:       snapshot,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		result.CycleID = cycle.ID
		if !created {
			return s.advanceAnchor(ctx, sub, next)
		}
		result.Created = true

		if err := s.recordEvent(ctx, sub.AgencyID, sub.ID, types.BillingEventCycleCreated, map[string]interface{}{
			"cycle_id":     cycle.ID,
			"anchor_date":  anchor.String(),
			"period_start": cycle.PeriodStart.String(),
			"period_end":   cycle.PeriodEnd.String(),
			"total":        snapshot.Total.String(),
			"local_total":  snapshot.LocalTotal.String(),
		}); err != nil {
			return err
		}

		ch, chargeCreated, err := s.ChargeRepo.CreateIfAbsent(ctx, &charge.Charge{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE),
			AgencyID:       sub.AgencyID,
			SubscriptionID: sub.ID,
			CycleID:        lo.ToPtr(cycle.ID),
			Purpose:        types.ChargePurposeRecurring,
			Status:         types.ChargeStatusPending,
			Amount:         snapshot.LocalTotal,
			Currency:       snapshot.LocalCurrency,
			BaseAmount:     snapshot.Total,
			BaseCurrency:   snapshot.BaseCurrency,
			IdempotencyKey: types.RecurringChargeIdempotencyKey(sub.ID, anchor),
			DueDate:        anchor,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return err
		}
		result.ChargeID = ch.ID

		if chargeCreated {
			if err := s.recordEvent(ctx, sub.AgencyID, sub.ID, types.BillingEventChargeCreated, map[string]interface{}{
				"charge_id":       ch.ID,
				"cycle_id":        cycle.ID,
				"amount":          ch.Amount.String(),
				"currency":        ch.Currency,
				"base_amount":     ch.BaseAmount.String(),
				"idempotency_key": ch.IdempotencyKey,
			}); err != nil {
				return err
			}
		}

		// nothing to collect on a fully discounted cycle
		if !ch.Amount.IsPositive() {
			if _, err := s.markChargePaid(ctx, ch, nil, now); err != nil {
				return err
			}
			return s.advanceAnchor(ctx, sub, next)
		}

		a, _, err := s.findOrCreateAttempt(ctx, ch, 1, channel, pm.ID, anchor)
		if err != nil {
			return err
		}
		result.AttemptID = a.ID

		return s.advanceAnchor(ctx, sub, next)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// advanceAnchor moves next_anchor_date forward. It never moves it back, so a late
// rerun of an old anchor is harmless.
func (s *anchorCycleService) advanceAnchor(ctx context.Context, sub *subscription.Subscription, next types.Date) error {
	if sub.NextAnchorDate != nil && !sub.NextAnchorDate.Before(next) {
		return nil
	}
	if err := s.SubRepo.UpdateNextAnchorDate(ctx, sub.ID, next); err != nil {
		return err
	}

	payload := map[string]interface{}{"next_anchor_date": next.String()}
	if sub.NextAnchorDate != nil {
		payload["previous_anchor_date"] = sub.NextAnchorDate.String()
	}
	if err := s.recordEvent(ctx, sub.AgencyID, sub.ID, types.BillingEventSubscriptionAdvanced, payload); err != nil {
		return err
	}
	sub.NextAnchorDate = lo.ToPtr(next)
	return nil
}
