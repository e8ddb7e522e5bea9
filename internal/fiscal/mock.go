package fiscal

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	ierr "github.com/flexprice/collections/internal/errors"
)

// caeValidityDays is how long an authorization code stays valid
const caeValidityDays = 10

// MockIssuer authorizes every document deterministically. Numbers are sequential
// per point of sale and document type, and repeating an idempotency key returns the
// first result.
type MockIssuer struct {
	mu       sync.Mutex
	next     map[string]int64
	results  map[string]*IssueResult
	failures map[string]error
	calls    int
}

func NewMockIssuer() *MockIssuer {
	return &MockIssuer{
		next:     make(map[string]int64),
		results:  make(map[string]*IssueResult),
		failures: make(map[string]error),
	}
}

// FailCharge makes every issuance for chargeID fail with err until cleared with nil.
func (m *MockIssuer) FailCharge(chargeID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, chargeID)
		return
	}
	m.failures[chargeID] = err
}

// Calls counts Issue invocations.
func (m *MockIssuer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockIssuer) Issue(_ context.Context, req *IssueRequest) (*IssueResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if err, ok := m.failures[req.ChargeID]; ok {
		return nil, ierr.WithError(err).
			WithHint("Tax authority rejected the document").
			Mark(ierr.ErrHTTPClient)
	}
	if res, ok := m.results[req.IdempotencyKey]; ok {
		out := *res
		return &out, nil
	}

	seq := fmt.Sprintf("%04d-%d", req.PointOfSale, req.DocumentType.Code())
	m.next[seq]++
	number := m.next[seq]

	sum := sha256.Sum256([]byte(req.IdempotencyKey))
	cae := fmt.Sprintf("%014d", binary.BigEndian.Uint64(sum[:8])%100000000000000)

	res := &IssueResult{
		ExternalReference: fmt.Sprintf("%s-%08d", seq, number),
		DocumentNumber:    number,
		CAE:               cae,
		CAEDueDate:        req.IssueDate.AddDays(caeValidityDays),
		IssuedAt:          time.Now().UTC(),
		Raw: map[string]interface{}{
			"result":        "A",
			"voucher_type":  req.DocumentType.Code(),
			"point_of_sale": req.PointOfSale,
		},
	}
	m.results[req.IdempotencyKey] = res
	out := *res
	return &out, nil
}
