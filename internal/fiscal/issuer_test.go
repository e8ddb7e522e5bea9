package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(chargeID string) *IssueRequest {
	return &IssueRequest{
		IdempotencyKey: "fiscal_" + chargeID,
		AgencyID:       "agency_1",
		ChargeID:       chargeID,
		DocumentType:   types.FiscalDocumentTypeInvoiceB,
		PointOfSale:    3,
		IssueDate:      types.MustParseDate("2026-03-11"),
		Amount:         decimal.RequireFromString("28314.00"),
		NetAmount:      decimal.RequireFromString("23400.00"),
		VATAmount:      decimal.RequireFromString("4914.00"),
		Currency:       "ARS",
		FXRate:         decimal.NewFromInt(1300),
		HolderName:     "Agencia Sur",
		HolderTaxID:    "30712345679",
		Concept:        "Suscripcion marzo 2026",
	}
}

func TestMockIssuer(t *testing.T) {
	ctx := context.Background()
	m := NewMockIssuer()

	first, err := m.Issue(ctx, testRequest("chg_1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.DocumentNumber)
	assert.Len(t, first.CAE, 14)
	assert.Equal(t, types.MustParseDate("2026-03-21"), first.CAEDueDate)

	again, err := m.Issue(ctx, testRequest("chg_1"))
	require.NoError(t, err)
	assert.Equal(t, first.DocumentNumber, again.DocumentNumber)
	assert.Equal(t, first.CAE, again.CAE)

	second, err := m.Issue(ctx, testRequest("chg_2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.DocumentNumber)
	assert.NotEqual(t, first.CAE, second.CAE)

	m.FailCharge("chg_3", errors.New("CUIT inexistente"))
	_, err = m.Issue(ctx, testRequest("chg_3"))
	require.Error(t, err)

	m.FailCharge("chg_3", nil)
	third, err := m.Issue(ctx, testRequest("chg_3"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.DocumentNumber)
	assert.Equal(t, 5, m.Calls())
}

func newTestHTTPIssuer(t *testing.T, handler http.HandlerFunc, maxRetries uint64) *HTTPIssuer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	h := NewHTTPIssuer(config.FiscalConfig{
		Mode:       "http",
		Endpoint:   server.URL,
		APIKey:     "key",
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
	}, logger.NewNopLogger())
	h.httpClient.RetryMax = 0
	h.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return h
}

func TestHTTPIssuer_Approved(t *testing.T) {
	var got issuePayload
	h := newTestHTTPIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/vouchers", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(issueResponse{
			Result:        "A",
			VoucherNumber: 1542,
			CAE:           "74123456789012",
			CAEDueDate:    "20260321",
			Reference:     "0003-00001542",
		})
	}, 2)

	res, err := h.Issue(context.Background(), testRequest("chg_1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1542), res.DocumentNumber)
	assert.Equal(t, "74123456789012", res.CAE)
	assert.Equal(t, types.MustParseDate("2026-03-21"), res.CAEDueDate)
	assert.Equal(t, 6, got.VoucherType)
	assert.Equal(t, "20260311", got.IssueDate)
	assert.True(t, decimal.RequireFromString("28314").Equal(got.Total))
}

func TestHTTPIssuer_RetriesBusyGateway(t *testing.T) {
	var calls int32
	h := newTestHTTPIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			_ = json.NewEncoder(w).Encode(issueResponse{Result: "P"})
		default:
			_ = json.NewEncoder(w).Encode(issueResponse{Result: "A", VoucherNumber: 7, CAE: "1", CAEDueDate: "20260321"})
		}
	}, 3)

	res, err := h.Issue(context.Background(), testRequest("chg_1"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.DocumentNumber)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPIssuer_RejectionIsNotRetried(t *testing.T) {
	var calls int32
	h := newTestHTTPIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(issueResponse{Result: "R", Observations: []string{"10015: documento invalido"}})
	}, 3)

	_, err := h.Issue(context.Background(), testRequest("chg_1"))
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
	assert.Contains(t, err.Error(), "documento invalido")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPIssuer_GivesUp(t *testing.T) {
	var calls int32
	h := newTestHTTPIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, 2)

	_, err := h.Issue(context.Background(), testRequest("chg_1"))
	require.Error(t, err)
	assert.True(t, ierr.IsHTTPClient(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
