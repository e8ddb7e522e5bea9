package qrpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Provider creates and tracks fallback payment intents.
type Provider interface {
	CreatePaymentIntent(ctx context.Context, req *CreateIntentRequest) (*PaymentIntent, error)
	GetPaymentStatus(ctx context.Context, reference string) (*PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, reference string) (*PaymentIntent, error)
}

// Client talks to the QR payment intent API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	now        func() time.Time
}

// NewProvider picks the provider from fallback.mode.
func NewProvider(cfg *config.Configuration, log *logger.Logger) Provider {
	if cfg.Fallback.Mode == "http" {
		return NewClient(cfg.Fallback, log)
	}
	return NewMockProvider()
}

// NewClient builds the HTTP provider from fallback config.
func NewClient(cfg config.FallbackConfig, log *logger.Logger) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.RetryWaitMin = 200 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.Logger = log.GetRetryableHTTPLogger()
	if cfg.Timeout > 0 {
		httpClient.HTTPClient.Timeout = cfg.Timeout
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     log,
		now:        time.Now,
	}
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req *CreateIntentRequest) (*PaymentIntent, error) {
	if req.IdempotencyKey == "" {
		return nil, ierr.NewError("idempotency key is required").
			WithHint("Payment intents are created with an idempotency key").
			Mark(ierr.ErrValidation)
	}

	body := intentPayload{
		Amount:            toCents(req.Amount),
		Currency:          req.Currency,
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
		Metadata:          req.Metadata,
	}
	if !req.ExpiresAt.IsZero() {
		expires := req.ExpiresAt.UTC()
		body.ExpiresAt = &expires
	}

	var out intentPayload
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", req.IdempotencyKey, body, &out); err != nil {
		return nil, err
	}

	c.logger.Infow("created fallback payment intent",
		"reference", out.ID,
		"external_reference", req.ExternalReference,
		"status", out.Status,
	)
	return out.toIntent(c.now()), nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, reference string) (*PaymentIntent, error) {
	var out intentPayload
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(reference), "", nil, &out); err != nil {
		return nil, err
	}
	return out.toIntent(c.now()), nil
}

// CancelPaymentIntent cancels a pending intent. A paid intent is returned unchanged.
func (c *Client) CancelPaymentIntent(ctx context.Context, reference string) (*PaymentIntent, error) {
	current, err := c.GetPaymentStatus(ctx, reference)
	if err != nil {
		return nil, err
	}
	if current.Status.IsFinal() {
		return current, nil
	}

	var out intentPayload
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(reference)+"/cancel", "", nil, &out); err != nil {
		return nil, err
	}
	c.logger.Infow("canceled fallback payment intent", "reference", reference, "status", out.Status)
	return out.toIntent(c.now()), nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Payment provider request was not sent").
			Mark(ierr.ErrHTTPClient)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to encode payment provider request").
				Mark(ierr.ErrInternal)
		}
		body = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create payment provider request").
			Mark(ierr.ErrInternal)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Errorw("payment provider request failed", "method", method, "path", path, "error", err)
		return ierr.WithError(err).
			WithHint("Unable to reach the payment provider").
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read payment provider response").
			Mark(ierr.ErrHTTPClient)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorPayload
		_ = json.Unmarshal(respBody, &errResp)
		builder := ierr.NewError(fmt.Sprintf("payment provider returned HTTP %d", resp.StatusCode)).
			WithHintf("Payment provider error: %s", errResp.Message).
			WithReportableDetails(map[string]interface{}{
				"status_code": resp.StatusCode,
				"code":        errResp.Code,
			})
		if resp.StatusCode == http.StatusNotFound {
			return builder.Mark(ierr.ErrNotFound)
		}
		return builder.Mark(ierr.ErrHTTPClient)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to parse payment provider response").
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}
