package qrpay

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
)

// MockProvider is an in-memory provider used in local runs and tests.
type MockProvider struct {
	mu          sync.Mutex
	intents     map[string]*PaymentIntent
	byKey       map[string]string
	now         func() time.Time
	createCalls int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		intents: make(map[string]*PaymentIntent),
		byKey:   make(map[string]string),
		now:     time.Now,
	}
}

// SetClock overrides the time used to derive expiry.
func (m *MockProvider) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MockProvider) CreatePaymentIntent(_ context.Context, req *CreateIntentRequest) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if ref, ok := m.byKey[req.IdempotencyKey]; ok {
		return m.snapshot(m.intents[ref]), nil
	}

	ref := fmt.Sprintf("qr_%06d", len(m.intents)+1)
	intent := &PaymentIntent{
		Reference:      ref,
		Status:         types.FallbackIntentStatusPending,
		ProviderStatus: providerStatusPending,
		PaymentURL:     "https://pay.example.test/i/" + ref + "?ref=" + url.QueryEscape(req.ExternalReference),
		QRPayload:      fmt.Sprintf("QRPAY|%s|%s|%d|%s", ref, req.ExternalReference, toCents(req.Amount), req.Currency),
		Amount:         types.RoundMoney(req.Amount),
		Currency:       req.Currency,
	}
	if !req.ExpiresAt.IsZero() {
		expires := req.ExpiresAt.UTC()
		intent.ExpiresAt = &expires
	}
	m.intents[ref] = intent
	m.byKey[req.IdempotencyKey] = ref
	return m.snapshot(intent), nil
}

func (m *MockProvider) GetPaymentStatus(_ context.Context, reference string) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[reference]
	if !ok {
		return nil, ierr.NewError("payment intent not found").
			WithHintf("No payment intent %s", reference).
			Mark(ierr.ErrNotFound)
	}
	return m.snapshot(intent), nil
}

func (m *MockProvider) CancelPaymentIntent(_ context.Context, reference string) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[reference]
	if !ok {
		return nil, ierr.NewError("payment intent not found").
			WithHintf("No payment intent %s", reference).
			Mark(ierr.ErrNotFound)
	}
	if DeriveStatus(intent.ProviderStatus, intent.ExpiresAt, m.now()) == types.FallbackIntentStatusPending {
		intent.ProviderStatus = providerStatusCanceled
	}
	return m.snapshot(intent), nil
}

// MarkPaid simulates the payer completing the intent.
func (m *MockProvider) MarkPaid(reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[reference]
	if !ok {
		return ierr.NewError("payment intent not found").Mark(ierr.ErrNotFound)
	}
	now := m.now().UTC()
	intent.ProviderStatus = providerStatusPaid
	intent.PaidAt = &now
	return nil
}

// CreateCalls counts CreatePaymentIntent calls, including idempotent replays.
func (m *MockProvider) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// snapshot returns a copy with the status derived at the current time
func (m *MockProvider) snapshot(intent *PaymentIntent) *PaymentIntent {
	out := *intent
	out.Status = DeriveStatus(intent.ProviderStatus, intent.ExpiresAt, m.now())
	return &out
}
