package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/postgres"
)

// psql builds postgres flavoured statements ($n placeholders).
var psql = entsql.Dialect(dialect.Postgres)

type scanner interface {
	Scan(dest ...interface{}) error
}

// queryBuilder is implemented by every ent sql builder.
type queryBuilder interface {
	Query() (string, []interface{})
}

func exec(ctx context.Context, client postgres.IClient, b queryBuilder) (sql.Result, error) {
	query, args := b.Query()
	return client.Querier(ctx).ExecContext(ctx, query, args...)
}

func queryRow(ctx context.Context, client postgres.IClient, b queryBuilder) *sql.Row {
	query, args := b.Query()
	return client.Querier(ctx).QueryRowContext(ctx, query, args...)
}

// queryAll runs the query and scans every row with scan.
func queryAll[T any](ctx context.Context, client postgres.IClient, b queryBuilder, scan func(scanner) (T, error)) ([]T, error) {
	query, args := b.Query()
	rows, err := client.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// affectedOne returns ErrNotFound when an update matched no row.
func affectedOne(res sql.Result, entity string, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to update %s", entity).
			Mark(ierr.ErrDatabase)
	}
	if n == 0 {
		return ierr.NewErrorf("%s %s not found", entity, id).
			WithHintf("%s not found", entity).
			WithReportableDetails(map[string]interface{}{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func toJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode json column").
			Mark(ierr.ErrInternal)
	}
	return b, nil
}

func fromJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to decode json column").
			Mark(ierr.ErrInternal)
	}
	return nil
}
