package pg

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/flexprice/collections/internal/domain/fxrate"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/postgres"
	"github.com/flexprice/collections/internal/types"
)

var fxRateColumns = []string{"id", "base", "quote", "rate", "effective_date", "source", "created_at"}

type fxRateRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewFXRateRepository(client postgres.IClient, logger *logger.Logger) fxrate.Repository {
	return &fxRateRepository{client: client, logger: logger}
}

func scanFXRate(row scanner) (*fxrate.Rate, error) {
	var f fxrate.Rate
	if err := row.Scan(&f.ID, &f.Base, &f.Quote, &f.Rate, &f.EffectiveDate, &f.Source, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fxRateRepository) Create(ctx context.Context, rate *fxrate.Rate) error {
	q := psql.Insert(types.TableNameFXRates.String()).
		Columns(fxRateColumns...).
		Values(rate.ID, rate.Base, rate.Quote, rate.Rate, rate.EffectiveDate, rate.Source, rate.CreatedAt)

	if _, err := exec(ctx, r.client, q); err != nil {
		return postgres.WrapError(err, "fx rate", map[string]interface{}{
			"base":           rate.Base,
			"quote":          rate.Quote,
			"effective_date": rate.EffectiveDate.String(),
		})
	}
	return nil
}

func (r *fxRateRepository) GetEffective(ctx context.Context, base, quote string, on types.Date) (*fxrate.Rate, error) {
	q := psql.Select(fxRateColumns...).
		From(entsql.Table(types.TableNameFXRates.String())).
		Where(entsql.And(
			entsql.EQ("base", base),
			entsql.EQ("quote", quote),
			entsql.LTE("effective_date", on),
		)).
		OrderBy(entsql.Desc("effective_date"), entsql.Desc("created_at")).
		Limit(1)

	rate, err := scanFXRate(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "fx rate", map[string]interface{}{
			"base":  base,
			"quote": quote,
			"on":    on.String(),
		})
	}
	return rate, nil
}

func (r *fxRateRepository) GetLatest(ctx context.Context, base, quote string) (*fxrate.Rate, error) {
	q := psql.Select(fxRateColumns...).
		From(entsql.Table(types.TableNameFXRates.String())).
		Where(entsql.And(entsql.EQ("base", base), entsql.EQ("quote", quote))).
		OrderBy(entsql.Desc("effective_date"), entsql.Desc("created_at")).
		Limit(1)

	rate, err := scanFXRate(queryRow(ctx, r.client, q))
	if err != nil {
		return nil, postgres.WrapError(err, "fx rate", map[string]interface{}{"base": base, "quote": quote})
	}
	return rate, nil
}
