package fiscal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/types"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
)

// HTTPIssuer sends documents to an authorization gateway. Busy and 5xx answers are
// retried with exponential backoff, rejections are not.
type HTTPIssuer struct {
	endpoint   string
	apiKey     string
	maxRetries uint64
	httpClient *retryablehttp.Client
	logger     *logger.Logger
	newBackOff func() backoff.BackOff
}

func NewHTTPIssuer(cfg config.FiscalConfig, log *logger.Logger) *HTTPIssuer {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 1
	httpClient.Logger = log.GetRetryableHTTPLogger()
	if cfg.Timeout > 0 {
		httpClient.HTTPClient.Timeout = cfg.Timeout
	}

	return &HTTPIssuer{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		httpClient: httpClient,
		logger:     log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
	}
}

type issuePayload struct {
	IdempotencyKey string          `json:"idempotency_key"`
	VoucherType    int             `json:"voucher_type"`
	PointOfSale    int             `json:"point_of_sale"`
	IssueDate      string          `json:"issue_date"`
	Total          decimal.Decimal `json:"total"`
	Net            decimal.Decimal `json:"net"`
	VAT            decimal.Decimal `json:"vat"`
	Currency       string          `json:"currency"`
	FXRate         decimal.Decimal `json:"fx_rate"`
	HolderName     string          `json:"holder_name"`
	HolderTaxID    string          `json:"holder_tax_id"`
	Concept        string          `json:"concept"`
}

type issueResponse struct {
	// Result is A (approved), R (rejected) or P (processing, retry later)
	Result         string   `json:"result"`
	VoucherNumber  int64    `json:"voucher_number"`
	CAE            string   `json:"cae"`
	CAEDueDate     string   `json:"cae_due_date"`
	Reference      string   `json:"reference"`
	Observations   []string `json:"observations"`
	ErrorMessage   string   `json:"error"`
	ProcessedAtUTC string   `json:"processed_at"`
}

func (h *HTTPIssuer) Issue(ctx context.Context, req *IssueRequest) (*IssueResult, error) {
	body, err := json.Marshal(issuePayload{
		IdempotencyKey: req.IdempotencyKey,
		VoucherType:    req.DocumentType.Code(),
		PointOfSale:    req.PointOfSale,
		IssueDate:      req.IssueDate.Compact(),
		Total:          req.Amount,
		Net:            req.NetAmount,
		VAT:            req.VATAmount,
		Currency:       req.Currency,
		FXRate:         req.FXRate,
		HolderName:     req.HolderName,
		HolderTaxID:    req.HolderTaxID,
		Concept:        req.Concept,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode fiscal document").
			Mark(ierr.ErrInternal)
	}

	var resp *issueResponse
	attempt := 0
	operation := func() error {
		attempt++
		r, err := h.send(ctx, body)
		if err != nil {
			if ierr.IsValidation(err) {
				return backoff.Permanent(err)
			}
			h.logger.Warnw("fiscal issuance attempt failed",
				"charge_id", req.ChargeID,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		resp = r
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(h.newBackOff(), h.maxRetries), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}

	caeDue, err := types.ParseCompactDate(resp.CAEDueDate)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Fiscal gateway returned an invalid CAE due date").
			Mark(ierr.ErrHTTPClient)
	}

	return &IssueResult{
		ExternalReference: resp.Reference,
		DocumentNumber:    resp.VoucherNumber,
		CAE:               resp.CAE,
		CAEDueDate:        caeDue,
		IssuedAt:          time.Now().UTC(),
		Raw: map[string]interface{}{
			"result":       resp.Result,
			"observations": resp.Observations,
			"processed_at": resp.ProcessedAtUTC,
		},
	}, nil
}

// send posts one request. Rejections are ErrValidation so they are not retried.
func (h *HTTPIssuer) send(ctx context.Context, body []byte) (*issueResponse, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/v1/vouchers", bytes.NewReader(body))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create fiscal gateway request").
			Mark(ierr.ErrInternal)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)

	httpResp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unable to reach the fiscal gateway").
			Mark(ierr.ErrHTTPClient)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read fiscal gateway response").
			Mark(ierr.ErrHTTPClient)
	}

	if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
		return nil, ierr.NewErrorf("fiscal gateway returned HTTP %d", httpResp.StatusCode).
			WithHint("Fiscal gateway is busy").
			Mark(ierr.ErrHTTPClient)
	}

	var resp issueResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to parse fiscal gateway response").
			Mark(ierr.ErrHTTPClient)
	}

	if httpResp.StatusCode >= 400 || resp.Result == "R" {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = strings.Join(resp.Observations, "; ")
		}
		return nil, ierr.NewErrorf("fiscal document rejected: %s", msg).
			WithHint(msg).
			WithReportableDetails(map[string]interface{}{"status_code": httpResp.StatusCode}).
			Mark(ierr.ErrValidation)
	}
	if resp.Result == "P" {
		return nil, ierr.NewError("fiscal document still processing").
			WithHint("Fiscal gateway is still processing the document").
			Mark(ierr.ErrHTTPClient)
	}
	return &resp, nil
}
