package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/lib/pq"
)

const defaultLockTimeout = 30 * time.Second

// LockRequest names an advisory lock. A nil Timeout waits up to 30 seconds, zero or
// negative fails fast.
type LockRequest struct {
	Key     string
	Timeout *time.Duration
}

func (r LockRequest) GetTimeout() time.Duration {
	if r.Timeout == nil {
		return defaultLockTimeout
	}
	return *r.Timeout
}

// SubscriptionLockKey serializes billing work on one subscription across
// overlapping runs.
func SubscriptionLockKey(subscriptionID string) string {
	return "billing:subscription:" + subscriptionID
}

// LockKey acquires a transaction scoped advisory lock, released on commit or
// rollback. Must be called inside a transaction.
func (c *Client) LockKey(ctx context.Context, req LockRequest) error {
	tx := c.TxFromContext(ctx)
	if tx == nil {
		return ierr.NewError("lock requested outside transaction").
			WithHint("LockKey must be called inside a transaction").
			Mark(ierr.ErrInternal)
	}

	timeout := req.GetTimeout()
	if timeout <= 0 {
		ok, err := c.TryLockKey(ctx, req.Key)
		if err != nil {
			return err
		}
		if !ok {
			return ierr.NewError("lock already held").
				WithHintf("Another process holds %s", req.Key).
				Mark(ierr.ErrAlreadyExists)
		}
		return nil
	}

	// SET LOCAL is reset on commit or rollback
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", timeout.Milliseconds())); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to set lock timeout").
			Mark(ierr.ErrDatabase)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, req.Key); err != nil {
		if isLockTimeoutError(err) {
			return ierr.WithError(err).
				WithHintf("Failed to acquire lock within %v", timeout).
				WithReportableDetails(map[string]interface{}{"key": req.Key}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to acquire lock").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// isLockTimeoutError matches 55P03 lock_not_available.
func isLockTimeoutError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "55P03"
	}
	return false
}

// TryLockKey tries to acquire an advisory lock without waiting. ok is false when the
// lock is held elsewhere. Must be called inside a transaction.
func (c *Client) TryLockKey(ctx context.Context, key string) (bool, error) {
	tx := c.TxFromContext(ctx)
	if tx == nil {
		return false, ierr.NewError("lock requested outside transaction").
			WithHint("TryLockKey must be called inside a transaction").
			Mark(ierr.ErrInternal)
	}

	var ok bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, key).Scan(&ok); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to acquire lock").
			Mark(ierr.ErrDatabase)
	}
	return ok, nil
}
