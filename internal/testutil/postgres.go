package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/collections/internal/postgres"
)

type mockTxKey struct{}

// MockPostgresClient implements postgres.IClient for the in-memory stores. It
// counts transactions and locks but does not roll anything back.
type MockPostgresClient struct {
	mu      sync.Mutex
	txCount int
	locks   []string
}

func NewMockPostgresClient() *MockPostgresClient {
	return &MockPostgresClient{}
}

func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(mockTxKey{}) != nil {
		return fn(ctx)
	}
	c.mu.Lock()
	c.txCount++
	c.mu.Unlock()
	return fn(context.WithValue(ctx, mockTxKey{}, true))
}

// Querier is never used by the in-memory stores.
func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	panic("testutil: MockPostgresClient has no querier")
}

func (c *MockPostgresClient) TryLockKey(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locks = append(c.locks, key)
	return true, nil
}

func (c *MockPostgresClient) LockKey(ctx context.Context, req postgres.LockRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locks = append(c.locks, req.Key)
	return nil
}

// TxCount returns the number of outermost transactions run.
func (c *MockPostgresClient) TxCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txCount
}

// Locks returns the lock keys taken, in order.
func (c *MockPostgresClient) Locks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.locks...)
}
