package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flexprice/collections/internal/domain/charge"
	fiscaldoc "github.com/flexprice/collections/internal/domain/fiscal"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/fiscal"
	"github.com/flexprice/collections/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

const defaultAutorunConcurrency = 4

// FiscalService issues tax authority documents for paid charges.
type FiscalService interface {
	IssueFiscalForCharge(ctx context.Context, req *IssueFiscalRequest) (*IssueFiscalResult, error)
	AutorunFiscalForCharges(ctx context.Context, chargeIDs []string) (*FiscalAutorunSummary, error)
	// AutorunPending issues documents for paid charges that have none yet
	AutorunPending(ctx context.Context) (*FiscalAutorunSummary, error)
}

type IssueFiscalRequest struct {
	ChargeID     string                   `json:"-"`
	DocumentType types.FiscalDocumentType `json:"document_type,omitempty"`
	ForceRetry   bool                     `json:"force_retry,omitempty"`
}

// IssueFiscalResult is returned for issuer failures too: OK is false, Status is
// FAILED and Message carries the issuer error.
type IssueFiscalResult struct {
	OK       bool                       `json:"ok"`
	Status   types.FiscalDocumentStatus `json:"status"`
	Message  string                     `json:"message,omitempty"`
	Document *fiscaldoc.Document        `json:"document"`
}

type FiscalAutorunSummary struct {
	Enabled  bool     `json:"enabled"`
	Issued   int      `json:"issued"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	Failures []string `json:"failures,omitempty"`
}

type fiscalService struct {
	ServiceParams
}

func NewFiscalService(params ServiceParams) FiscalService {
	return &fiscalService{ServiceParams: params}
}

// FiscalIdempotencyKey is sent to the issuer so a retried request is authorized once.
func FiscalIdempotencyKey(chargeID string, documentType types.FiscalDocumentType) string {
	return fmt.Sprintf("fiscal_%s_%s", chargeID, documentType)
}

func (s *fiscalService) IssueFiscalForCharge(ctx context.Context, req *IssueFiscalRequest) (*IssueFiscalResult, error) {
	if req.ChargeID == "" {
		return nil, ierr.NewError("charge id is required").
			WithHint("Please provide a valid charge ID").
			Mark(ierr.ErrValidation)
	}
	docType := req.DocumentType
	if docType == "" {
		docType = types.FiscalDocumentType(s.Config.Fiscal.DefaultDocumentType)
	}
	if err := docType.Validate(); err != nil {
		return nil, err
	}

	ch, err := s.ChargeRepo.Get(ctx, req.ChargeID)
	if err != nil {
		return nil, err
	}
	if !ch.IsPaid() {
		return nil, ierr.NewErrorf("charge %s is %s", ch.ID, ch.Status).
			WithHint("Fiscal documents are issued for paid charges only").
			WithReportableDetails(map[string]interface{}{"charge_id": ch.ID, "status": ch.Status}).
			Mark(ierr.ErrInvalidOperation)
	}

	issueReq, err := s.buildIssueRequest(ctx, ch, docType)
	if err != nil {
		return nil, err
	}

	var doc *fiscaldoc.Document
	var existingIssued, inFlight bool
	err = s.withTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		stored, created, err := s.FiscalRepo.CreateIfAbsent(ctx, &fiscaldoc.Document{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FISCAL_DOCUMENT),
			AgencyID:     ch.AgencyID,
			ChargeID:     ch.ID,
			DocumentType: docType,
			Status:       types.FiscalDocumentStatusPending,
			PointOfSale:  issueReq.PointOfSale,
			Amount:       ch.Amount,
			Currency:     ch.Currency,
			Payload:      issuePayload(issueReq),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return err
		}
		doc = stored
		if created {
			return nil
		}

		// concurrent retries of the same document queue on the row lock
		doc, err = s.FiscalRepo.GetByChargeForUpdate(ctx, ch.ID, docType)
		if err != nil {
			return err
		}
		switch {
		case doc.IsIssued() && !req.ForceRetry:
			existingIssued = true
			return nil
		case doc.Status == types.FiscalDocumentStatusFailed || req.ForceRetry:
			doc.Status = types.FiscalDocumentStatusPending
			doc.RetryCount++
			doc.ErrorMessage = ""
			doc.Payload = issuePayload(issueReq)
			return s.FiscalRepo.Update(ctx, doc)
		default:
			// another caller holds the PENDING document and is talking to the issuer
			inFlight = true
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	if existingIssued {
		return &IssueFiscalResult{OK: true, Status: doc.Status, Document: doc}, nil
	}
	if inFlight {
		return &IssueFiscalResult{
			OK:       false,
			Status:   doc.Status,
			Message:  "fiscal document issuance already in progress",
			Document: doc,
		}, nil
	}

	issued, issueErr := s.FiscalIssuer.Issue(ctx, issueReq)

	err = s.withTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		doc.UpdatedAt = now
		if issueErr != nil {
			doc.Status = types.FiscalDocumentStatusFailed
			doc.ErrorMessage = issuerMessage(issueErr)
			if err := s.FiscalRepo.Update(ctx, doc); err != nil {
				return err
			}
			return s.recordEvent(ctx, ch.AgencyID, ch.SubscriptionID, types.BillingEventFiscalDocumentFailed, map[string]interface{}{
				"charge_id":     ch.ID,
				"document_id":   doc.ID,
				"document_type": doc.DocumentType,
				"retry_count":   doc.RetryCount,
				"error":         doc.ErrorMessage,
			})
		}

		doc.Status = types.FiscalDocumentStatusIssued
		doc.DocumentNumber = lo.ToPtr(issued.DocumentNumber)
		doc.ExternalReference = issued.ExternalReference
		doc.CAE = issued.CAE
		if !issued.CAEDueDate.IsZero() {
			doc.CAEDueDate = lo.ToPtr(issued.CAEDueDate)
		}
		doc.IssuedAt = lo.ToPtr(issued.IssuedAt)
		if err := s.FiscalRepo.Update(ctx, doc); err != nil {
			return err
		}
		return s.recordEvent(ctx, ch.AgencyID, ch.SubscriptionID, types.BillingEventFiscalDocumentIssued, map[string]interface{}{
			"charge_id":          ch.ID,
			"document_id":        doc.ID,
			"document_type":      doc.DocumentType,
			"document_number":    issued.DocumentNumber,
			"external_reference": issued.ExternalReference,
			"cae":                issued.CAE,
		})
	})
	if err != nil {
		return nil, err
	}

	if issueErr != nil {
		s.Logger.Warnw("fiscal document issuance failed",
			"charge_id", ch.ID,
			"document_type", docType,
			"retry_count", doc.RetryCount,
			"error", issueErr,
		)
		return &IssueFiscalResult{
			OK:       false,
			Status:   types.FiscalDocumentStatusFailed,
			Message:  doc.ErrorMessage,
			Document: doc,
		}, nil
	}

	s.Logger.Infow("fiscal document issued",
		"charge_id", ch.ID,
		"document_type", docType,
		"document_number", issued.DocumentNumber,
	)
	return &IssueFiscalResult{OK: true, Status: doc.Status, Document: doc}, nil
}

// buildIssueRequest splits the charge into net and VAT in the local currency. The
// VAT comes from the cycle snapshot when there is one.
func (s *fiscalService) buildIssueRequest(ctx context.Context, ch *charge.Charge, docType types.FiscalDocumentType) (*fiscal.IssueRequest, error) {
	vat := decimal.Zero
	fxRate := decimal.NewFromInt(1)
	concept := "Subscription charge"
	issueDate := types.DateOf(time.Now().UTC())
	if ch.PaidAt != nil {
		issueDate = types.DateOf(ch.PaidAt.UTC())
	}

	if ch.CycleID != nil {
		cycle, err := s.CycleRepo.Get(ctx, *ch.CycleID)
		if err != nil {
			return nil, err
		}
		if snap := cycle.Snapshot; snap != nil {
			fxRate = snap.FXRate
			for _, li := range snap.LineItems {
				if li.Code == LineItemVAT {
					vat = li.LocalAmount
				}
			}
		}
		concept = fmt.Sprintf("Subscription %s to %s", cycle.PeriodStart.String(), cycle.PeriodEnd.String())
	} else {
		rate := decimal.NewFromInt(1).Add(s.Config.Billing.VATRate)
		vat = ch.Amount.Sub(types.RoundMoney(ch.Amount.Div(rate)))
	}

	req := &fiscal.IssueRequest{
		IdempotencyKey: FiscalIdempotencyKey(ch.ID, docType),
		AgencyID:       ch.AgencyID,
		ChargeID:       ch.ID,
		DocumentType:   docType,
		PointOfSale:    s.Config.Fiscal.PointOfSale,
		IssueDate:      issueDate,
		Amount:         ch.Amount,
		NetAmount:      ch.Amount.Sub(vat),
		VATAmount:      vat,
		Currency:       ch.Currency,
		FXRate:         fxRate,
		Concept:        concept,
	}

	pm, err := s.SubRepo.GetDefaultPaymentMethod(ctx, ch.SubscriptionID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if pm != nil {
		req.HolderName = pm.HolderName
		req.HolderTaxID = pm.HolderTaxID
	}
	return req, nil
}

func issuePayload(req *fiscal.IssueRequest) map[string]interface{} {
	return map[string]interface{}{
		"idempotency_key": req.IdempotencyKey,
		"document_type":   req.DocumentType,
		"point_of_sale":   req.PointOfSale,
		"issue_date":      req.IssueDate.String(),
		"amount":          req.Amount.String(),
		"net_amount":      req.NetAmount.String(),
		"vat_amount":      req.VATAmount.String(),
		"currency":        req.Currency,
		"fx_rate":         req.FXRate.String(),
		"holder_tax_id":   req.HolderTaxID,
	}
}

// issuerMessage prefers the user facing hint of an issuer error.
func issuerMessage(err error) string {
	if hint := ierr.Hint(err); hint != "" {
		return fmt.Sprintf("%s: %s", hint, err.Error())
	}
	return err.Error()
}

// AutorunFiscalForCharges issues the default document for each charge with bounded
// concurrency. Failures are counted, never returned.
func (s *fiscalService) AutorunFiscalForCharges(ctx context.Context, chargeIDs []string) (*FiscalAutorunSummary, error) {
	summary := &FiscalAutorunSummary{Enabled: s.Config.Fiscal.AutorunEnabled}
	if !summary.Enabled {
		summary.Skipped = len(chargeIDs)
		return summary, nil
	}

	concurrency := s.Config.Fiscal.AutorunConcurrency
	if concurrency <= 0 {
		concurrency = defaultAutorunConcurrency
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(concurrency)
	for _, id := range lo.Uniq(chargeIDs) {
		id := id
		p.Go(func() {
			res, err := s.IssueFiscalForCharge(ctx, &IssueFiscalRequest{ChargeID: id})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && ierr.IsInvalidOperation(err):
				summary.Skipped++
			case err != nil:
				summary.Failed++
				summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", id, err))
				s.Logger.Errorw("fiscal autorun failed for charge", "charge_id", id, "error", err)
				s.Sentry.CaptureException(ctx, err)
			case res.Status == types.FiscalDocumentStatusPending:
				summary.Skipped++
			case !res.OK:
				summary.Failed++
				summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %s", id, res.Message))
			default:
				summary.Issued++
			}
		})
	}
	p.Wait()

	s.Logger.Infow("fiscal autorun completed",
		"charges", len(chargeIDs),
		"issued", summary.Issued,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func (s *fiscalService) AutorunPending(ctx context.Context) (*FiscalAutorunSummary, error) {
	filter := &charge.ChargeFilter{
		QueryFilter:           &types.QueryFilter{Limit: lo.ToPtr(types.FILTER_MAX_LIMIT)},
		Statuses:              []types.ChargeStatus{types.ChargeStatusPaid},
		WithoutFiscalDocument: true,
	}
	charges, err := s.ChargeRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.AutorunFiscalForCharges(ctx, lo.Map(charges, func(c *charge.Charge, _ int) string { return c.ID }))
}

// autorunFiscal is called once charges are committed as paid.
func (p ServiceParams) autorunFiscal(ctx context.Context, chargeIDs []string) {
	if len(chargeIDs) == 0 || !p.Config.Fiscal.AutorunEnabled {
		return
	}
	if _, err := NewFiscalService(p).AutorunFiscalForCharges(ctx, chargeIDs); err != nil {
		p.Logger.Errorw("fiscal autorun failed", "charges", len(chargeIDs), "error", err)
	}
}
