package dto

import (
	"time"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
	"github.com/flexprice/collections/internal/validator"
)

// AnchorRunRequest starts an anchor cycle run. RunDate defaults to today.
type AnchorRunRequest struct {
	RunDate *types.Date `json:"run_date,omitempty"`
}

// RunAt is noon UTC of the run date, which falls on the same calendar day in
// every supported subscription timezone.
func (r *AnchorRunRequest) RunAt(now time.Time) time.Time {
	if r.RunDate == nil || r.RunDate.IsZero() {
		return now.UTC()
	}
	d := r.RunDate.Time()
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.UTC)
}

// OutboundBatchRequest builds the presentment file for a business date,
// today when omitted.
type OutboundBatchRequest struct {
	BusinessDate *types.Date `json:"business_date,omitempty"`
}

func (r *OutboundBatchRequest) Date(now time.Time) types.Date {
	if r.BusinessDate == nil || r.BusinessDate.IsZero() {
		return types.DateOf(now.UTC())
	}
	return *r.BusinessDate
}

// InboundBatchQuery names the uploaded response file.
type InboundBatchQuery struct {
	FileName string `form:"file_name" validate:"max=255,excludesall=/\\"`
}

func (q *InboundBatchQuery) Validate() error {
	if q.FileName == "" {
		return ierr.NewError("file_name is required").
			WithHint("Please pass the bank file name in the file_name query parameter").
			Mark(ierr.ErrValidation)
	}
	return validator.ValidateRequest(q)
}

type HealthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}
