package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/lib/pq"
)

type txKey struct{}

// Querier is the subset of *sql.DB and *sql.Tx repositories run statements on.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// IClient is the database handle services depend on.
type IClient interface {
	// WithTx runs fn inside a transaction. A transaction already present in ctx is
	// reused, so nested calls join the outer unit of work.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Querier returns the transaction carried by ctx, or the pool outside one.
	Querier(ctx context.Context) Querier

	// TryLockKey takes a transaction scoped advisory lock without waiting.
	TryLockKey(ctx context.Context, key string) (bool, error)
	LockKey(ctx context.Context, req LockRequest) error
}

type Client struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewDB opens the connection pool and verifies it with a ping.
func NewDB(cfg *config.Configuration, log *logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to open database connection").
			Mark(ierr.ErrDatabase)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetimeMinutes) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to reach the database").
			Mark(ierr.ErrDatabase)
	}

	log.Infow("connected to postgres",
		"host", cfg.Postgres.Host,
		"database", cfg.Postgres.DBName,
	)
	return db, nil
}

func NewClient(db *sql.DB, log *logger.Logger) IClient {
	return &Client{db: db, logger: log}
}

// TxFromContext returns the transaction carried by ctx, nil outside one.
func (c *Client) TxFromContext(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

func (c *Client) Querier(ctx context.Context) Querier {
	if tx := c.TxFromContext(ctx); tx != nil {
		return tx
	}
	return c.db
}

func (c *Client) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if c.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to start transaction").
			Mark(ierr.ErrDatabase)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				c.logger.Errorw("failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to commit transaction").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// IsUniqueViolation reports whether err is a postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// WrapError converts a driver error into a marked ierr error. sql.ErrNoRows becomes
// ErrNotFound with the given entity in the hint.
func WrapError(err error, entity string, details map[string]interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s not found", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	}
	if IsUniqueViolation(err) {
		return ierr.WithError(err).
			WithHintf("%s already exists", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithHint(fmt.Sprintf("Failed to access %s", entity)).
		WithReportableDetails(details).
		Mark(ierr.ErrDatabase)
}
