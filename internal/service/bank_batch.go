package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/flexprice/collections/internal/bankfile"
	"github.com/flexprice/collections/internal/domain/attempt"
	"github.com/flexprice/collections/internal/domain/bankbatch"
	"github.com/flexprice/collections/internal/domain/charge"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/storage"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
)

const presentmentLockKey = "bank:presentment"

// BankBatchService exchanges direct debit files with the bank.
type BankBatchService interface {
	// BuildPresentment sends every scheduled direct debit due by the business date
	// in one outbound file. It returns an empty result when nothing is due.
	BuildPresentment(ctx context.Context, businessDate types.Date) (*PresentmentResult, error)

	// ReconcileInbound applies a bank response file. Reprocessing a file is safe.
	ReconcileInbound(ctx context.Context, fileName string, data []byte) (*ReconcileResult, error)

	// ReconcileStored reconciles a response file already in the file store.
	ReconcileStored(ctx context.Context, key string) (*ReconcileResult, error)
}

type PresentmentResult struct {
	Batch      *bankbatch.Batch `json:"batch,omitempty"`
	AttemptIDs []string         `json:"attempt_ids"`
	// Diverted lists attempts sent to fallback collection because their mandate
	// was no longer active
	Diverted []string `json:"diverted,omitempty"`
}

type ReconcileResult struct {
	Batch      *bankbatch.Batch `json:"batch"`
	Applied    int              `json:"applied"`
	Duplicates int              `json:"duplicates"`
	Unmatched  int              `json:"unmatched"`
	Review     int              `json:"review"`
	Failed     int              `json:"failed"`
	Mismatches []string         `json:"mismatches,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
	// PaidChargeIDs are the charges this file settled
	PaidChargeIDs []string `json:"paid_charge_ids,omitempty"`
	// FallbackChargeIDs are the charges moved to fallback collection
	FallbackChargeIDs []string `json:"fallback_charge_ids,omitempty"`
}

type bankBatchService struct {
	ServiceParams
}

func NewBankBatchService(params ServiceParams) BankBatchService {
	return &bankBatchService{ServiceParams: params}
}

func (s *bankBatchService) adapter() (bankfile.Adapter, error) {
	return s.BankRegistry.Get(s.Config.Bank.Adapter)
}

func (s *bankBatchService) BuildPresentment(ctx context.Context, businessDate types.Date) (*PresentmentResult, error) {
	adapter, err := s.adapter()
	if err != nil {
		return nil, err
	}

	result := &PresentmentResult{}
	var fallbackCharges []string
	err = s.withTx(ctx, func(ctx context.Context) error {
		if err := s.DB.LockKey(ctx, postgres.LockRequest{Key: presentmentLockKey}); err != nil {
			return err
		}

		due, err := s.AttemptRepo.List(ctx, &attempt.AttemptFilter{
			QueryFilter:         &types.QueryFilter{Limit: lo.ToPtr(types.FILTER_MAX_LIMIT)},
			Channel:             types.CollectionChannelDirectDebit,
			Statuses:            []types.AttemptStatus{types.AttemptStatusScheduled},
			ScheduledOnOrBefore: lo.ToPtr(businessDate),
		})
		if err != nil {
			return err
		}

		var lines []bankfile.OutboundLine
		var presented []*attempt.Attempt
		charges := make(map[string]*charge.Charge)
		for _, a := range due {
			ch, err := s.ChargeRepo.Get(ctx, a.ChargeID)
			if err != nil {
				return err
			}
			if ch.Status != types.ChargeStatusPending {
				a.Status = types.AttemptStatusCanceled
				a.ReasonMessage = fmt.Sprintf("charge is %s", ch.Status)
				a.UpdatedAt = time.Now().UTC()
				if err := s.AttemptRepo.Update(ctx, a); err != nil {
					return err
				}
				continue
			}

			line, usable, err := s.outboundLine(ctx, a)
			if err != nil {
				return err
			}
			if !usable {
				if err := s.divertToFallback(ctx, ch, a, businessDate); err != nil {
					return err
				}
				result.Diverted = append(result.Diverted, a.ID)
				fallbackCharges = append(fallbackCharges, ch.ID)
				continue
			}

			lines = append(lines, *line)
			presented = append(presented, a)
			charges[a.ID] = ch
		}

		if len(lines) == 0 {
			return nil
		}

		seq, err := s.BankBatchRepo.CountByBusinessDate(ctx, types.BankBatchDirectionOutbound, businessDate)
		if err != nil {
			return err
		}
		file, err := adapter.BuildOutboundFile(bankfile.BatchInfo{
			EntityID:     s.Config.Bank.EntityID,
			ServiceID:    s.Config.Bank.ServiceID,
			BusinessDate: businessDate,
			Sequence:     seq + 1,
		}, lines)
		if err != nil {
			return err
		}

		key := storage.BankFileKey(types.BankBatchDirectionOutbound, businessDate, file.FileName)
		if err := s.FileStore.Put(ctx, key, file.Content, "text/plain"); err != nil {
			return err
		}

		now := time.Now().UTC()
		batch := &bankbatch.Batch{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BANK_BATCH),
			Adapter:      adapter.Name(),
			Direction:    types.BankBatchDirectionOutbound,
			FileName:     file.FileName,
			BusinessDate: businessDate,
			RecordCount:  file.Totals.RecordCount,
			AmountTotal:  file.Totals.AmountTotal,
			Checksum:     file.Totals.Checksum,
			StorageKey:   key,
			Status:       types.BankBatchStatusGenerated,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.BankBatchRepo.Create(ctx, batch); err != nil {
			return err
		}

		for _, a := range presented {
			a.Status = types.AttemptStatusPresented
			a.BatchID = lo.ToPtr(batch.ID)
			a.PresentedAt = lo.ToPtr(now)
			a.UpdatedAt = now
			if err := s.AttemptRepo.Update(ctx, a); err != nil {
				return err
			}
			ch := charges[a.ID]
			if err := s.recordEvent(ctx, ch.AgencyID, ch.SubscriptionID, types.BillingEventAttemptPresented, map[string]interface{}{
				"attempt_id":         a.ID,
				"charge_id":          a.ChargeID,
				"batch_id":           batch.ID,
				"external_reference": a.ExternalReference,
				"amount":             a.Amount.String(),
			}); err != nil {
				return err
			}
			result.AttemptIDs = append(result.AttemptIDs, a.ID)
		}
		result.Batch = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Batch != nil {
		s.Logger.Infow("generated bank presentment",
			"batch_id", result.Batch.ID,
			"file_name", result.Batch.FileName,
			"business_date", businessDate.String(),
			"record_count", result.Batch.RecordCount,
			"amount_total", result.Batch.AmountTotal.String(),
		)
	}
	s.openFallbackIntents(ctx, fallbackCharges)
	return result, nil
}

// outboundLine renders the debit instruction of an attempt. usable is false when the
// payment method can no longer be debited.
func (s *bankBatchService) outboundLine(ctx context.Context, a *attempt.Attempt) (*bankfile.OutboundLine, bool, error) {
	pm, err := s.SubRepo.GetPaymentMethod(ctx, a.PaymentMethodID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !pm.IsActive() || pm.MandateID == nil {
		return nil, false, nil
	}
	m, err := s.MandateRepo.Get(ctx, *pm.MandateID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !m.IsUsable() {
		return nil, false, nil
	}

	return &bankfile.OutboundLine{
		ExternalReference: a.ExternalReference,
		Amount:            a.Amount,
		ScheduledDate:     a.ScheduledOn,
		HolderName:        pm.HolderName,
		HolderTaxID:       pm.HolderTaxID,
		AccountLast4:      pm.AccountLast4,
	}, true, nil
}

// divertToFallback cancels a direct debit that can no longer be presented and
// schedules the fallback attempt in its place.
func (s *bankBatchService) divertToFallback(ctx context.Context, ch *charge.Charge, a *attempt.Attempt, on types.Date) error {
	a.Status = types.AttemptStatusCanceled
	a.ReasonCode = types.BankReasonMandateInvalid
	a.ReasonMessage = "mandate not active at presentment"
	a.UpdatedAt = time.Now().UTC()
	if err := s.AttemptRepo.Update(ctx, a); err != nil {
		return err
	}
	_, _, err := s.findOrCreateAttempt(ctx, ch, a.AttemptNo+1, types.CollectionChannelFallback, a.PaymentMethodID, on)
	return err
}

func (s *bankBatchService) ReconcileStored(ctx context.Context, key string) (*ReconcileResult, error) {
	data, err := s.FileStore.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.ReconcileInbound(ctx, path.Base(key), data)
}

func (s *bankBatchService) ReconcileInbound(ctx context.Context, fileName string, data []byte) (*ReconcileResult, error) {
	if fileName == "" {
		return nil, ierr.NewError("file name is required").
			WithHint("Please provide the response file name").
			Mark(ierr.ErrValidation)
	}
	adapter, err := s.adapter()
	if err != nil {
		return nil, err
	}

	parsed, err := adapter.ParseInboundFile(data)
	if err != nil {
		return nil, err
	}
	mismatches := bankfile.ValidateInboundFile(parsed)
	if len(mismatches) > 0 {
		s.Logger.Warnw("bank response control totals do not match",
			"file_name", fileName,
			"mismatches", mismatches,
		)
	}

	key := storage.BankFileKey(types.BankBatchDirectionInbound, parsed.BusinessDate, fileName)
	if err := s.FileStore.Put(ctx, key, data, "text/plain"); err != nil {
		return nil, err
	}

	computed := bankfile.ComputeInboundTotals(parsed.Rows)
	now := time.Now().UTC()
	batch := &bankbatch.Batch{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BANK_BATCH),
		Adapter:      adapter.Name(),
		Direction:    types.BankBatchDirectionInbound,
		FileName:     fileName,
		BusinessDate: parsed.BusinessDate,
		RecordCount:  computed.RecordCount,
		AmountTotal:  computed.AmountTotal,
		Checksum:     computed.Checksum,
		StorageKey:   key,
		Status:       types.BankBatchStatusGenerated,
		Mismatches:   mismatches,
		Warnings:     append([]string(nil), parsed.Warnings...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.BankBatchRepo.Create(ctx, batch); err != nil {
		return nil, err
	}

	result := &ReconcileResult{Batch: batch, Mismatches: mismatches}
	for _, row := range parsed.Rows {
		outcome, err := s.applyRow(ctx, batch, row, parsed.BusinessDate)
		if err != nil {
			result.Failed++
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("line %d: %v", row.LineNo, err))
			s.Logger.Errorw("failed to apply bank response row",
				"batch_id", batch.ID,
				"line_no", row.LineNo,
				"external_reference", row.ExternalReference,
				"error", err,
			)
			s.Sentry.CaptureException(ctx, err)
			continue
		}

		switch outcome.kind {
		case rowApplied:
			result.Applied++
		case rowDuplicate:
			result.Duplicates++
		case rowUnmatched:
			result.Unmatched++
		case rowReview:
			result.Review++
		}
		if outcome.warning != "" {
			batch.Warnings = append(batch.Warnings, outcome.warning)
		}
		if outcome.paidChargeID != "" {
			result.PaidChargeIDs = append(result.PaidChargeIDs, outcome.paidChargeID)
		}
		if outcome.fallbackChargeID != "" {
			result.FallbackChargeIDs = append(result.FallbackChargeIDs, outcome.fallbackChargeID)
		}
	}

	batch.Status = types.BankBatchStatusReconciled
	if len(mismatches) > 0 || result.Unmatched > 0 || result.Review > 0 || result.Failed > 0 {
		batch.Status = types.BankBatchStatusNeedsReview
	}
	if err := s.BankBatchRepo.Update(ctx, batch); err != nil {
		return nil, err
	}
	result.Warnings = batch.Warnings

	s.Logger.Infow("reconciled bank response file",
		"batch_id", batch.ID,
		"file_name", fileName,
		"applied", result.Applied,
		"duplicates", result.Duplicates,
		"unmatched", result.Unmatched,
		"review", result.Review,
		"failed", result.Failed,
		"status", batch.Status,
	)

	s.autorunFiscal(ctx, result.PaidChargeIDs)
	s.openFallbackIntents(ctx, result.FallbackChargeIDs)
	return result, nil
}

type rowOutcomeKind int

const (
	rowApplied rowOutcomeKind = iota
	rowDuplicate
	rowUnmatched
	rowReview
)

type rowOutcome struct {
	kind             rowOutcomeKind
	warning          string
	paidChargeID     string
	fallbackChargeID string
}

// applyRow applies one response line in its own transaction. The response row
// insert on (attempt_id, line_hash) makes a reprocessed line a no-op.
func (s *bankBatchService) applyRow(ctx context.Context, batch *bankbatch.Batch, row bankfile.InboundRow, businessDate types.Date) (*rowOutcome, error) {
	out := &rowOutcome{kind: rowApplied}
	err := s.withTx(ctx, func(ctx context.Context) error {
		a, err := s.AttemptRepo.GetByExternalReference(ctx, row.ExternalReference)
		if err != nil {
			if ierr.IsNotFound(err) {
				out.kind = rowUnmatched
				out.warning = fmt.Sprintf("line %d: no attempt for reference %s", row.LineNo, row.ExternalReference)
				return nil
			}
			return err
		}

		inserted, err := s.BankBatchRepo.CreateResponseRowIfAbsent(ctx, &bankbatch.ResponseRow{
			ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BANK_RESPONSE),
			BatchID:           batch.ID,
			AttemptID:         a.ID,
			LineHash:          row.LineHash,
			ExternalReference: row.ExternalReference,
			RawCode:           row.RawCode,
			RawMessage:        row.RawMessage,
			Status:            row.Status,
			Reason:            row.Reason,
			Amount:            row.Amount,
			SettledAt:         row.SettledAt,
			TraceID:           row.TraceID,
			OperationID:       row.OperationID,
			CreatedAt:         time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			out.kind = rowDuplicate
			return nil
		}

		if a.Status != types.AttemptStatusPresented {
			out.kind = rowReview
			out.warning = fmt.Sprintf("line %d: attempt %s is %s, result %s not applied", row.LineNo, a.ID, a.Status, row.Status)
			return nil
		}

		ch, err := s.ChargeRepo.Get(ctx, a.ChargeID)
		if err != nil {
			return err
		}
		if !row.Amount.Equal(a.Amount) {
			out.warning = fmt.Sprintf("line %d: amount %s differs from attempt amount %s", row.LineNo, row.Amount.String(), a.Amount.String())
		}

		now := time.Now().UTC()
		a.UpdatedAt = now
		a.ReasonCode = row.Reason
		a.ReasonMessage = row.RawMessage

		switch row.Status {
		case types.BankResultStatusPaid:
			a.Status = types.AttemptStatusPaid
			a.SettledAt = lo.ToPtr(lo.FromPtrOr(row.SettledAt, now))
		case types.BankResultStatusRejected:
			a.Status = types.AttemptStatusRejected
		case types.BankResultStatusError:
			a.Status = types.AttemptStatusError
		default:
			out.kind = rowReview
			out.warning = fmt.Sprintf("line %d: unrecognized bank code %q for %s", row.LineNo, row.RawCode, row.ExternalReference)
		}
		if err := s.AttemptRepo.Update(ctx, a); err != nil {
			return err
		}

		if err := s.recordEvent(ctx, ch.AgencyID, ch.SubscriptionID, types.BillingEventAttemptResult, map[string]interface{}{
			"attempt_id":    a.ID,
			"charge_id":     ch.ID,
			"batch_id":      batch.ID,
			"raw_code":      row.RawCode,
			"result":        row.Status,
			"reason":        row.Reason,
			"needs_review":  out.kind == rowReview,
			"trace_id":      row.TraceID,
			"operation_id":  row.OperationID,
			"attempt_state": a.Status,
		}); err != nil {
			return err
		}

		switch a.Status {
		case types.AttemptStatusPaid:
			paid, err := s.markChargePaid(ctx, ch, a, *a.SettledAt)
			if err != nil {
				return err
			}
			if paid {
				out.paidChargeID = ch.ID
			}
		case types.AttemptStatusRejected, types.AttemptStatusError:
			resultDate := businessDate
			if row.SettledAt != nil {
				resultDate = types.DateOf(row.SettledAt.UTC())
			}
			dunning, err := s.scheduleRetry(ctx, ch, a, row.Reason, resultDate)
			if err != nil {
				return err
			}
			if dunning.FallbackAttempt != nil {
				out.fallbackChargeID = ch.ID
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// openFallbackIntents creates the payment intents of charges that just moved to
// fallback collection. Failures are left for the scheduled dispatch to retry.
func (p ServiceParams) openFallbackIntents(ctx context.Context, chargeIDs []string) {
	if len(chargeIDs) == 0 || p.FallbackProvider == nil {
		return
	}
	svc := NewFallbackService(p)
	for _, id := range lo.Uniq(chargeIDs) {
		if _, err := svc.CreateIntentForCharge(ctx, id); err != nil {
			p.Logger.Warnw("failed to open fallback intent", "charge_id", id, "error", err)
		}
	}
}
