package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
	"github.com/kpiforge/kpiforge/internal/platform/db"
)

// PostgresSchema creates the warehouse table. Shared with internal/loader so
// the export and load sides cannot drift apart.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS provider_kpi (
	clinic          TEXT NOT NULL,
	provider        TEXT NOT NULL,
	measure_name    TEXT NOT NULL,
	measure_date    DATE NOT NULL,
	lower_is_better SMALLINT NOT NULL,
	numerator       INTEGER NOT NULL,
	denominator     INTEGER NOT NULL,
	measure_value   DOUBLE PRECISION NOT NULL,
	benchmark       DOUBLE PRECISION NOT NULL,
	UNIQUE (clinic, provider, measure_name, measure_date)
)`

// KPIColumns is the COPY column order for the provider_kpi table.
var KPIColumns = []string{
	"clinic", "provider", "measure_name", "measure_date",
	"lower_is_better", "numerator", "denominator", "measure_value", "benchmark",
}

// Postgres bulk-loads the dataset into a provider_kpi table via COPY.
// Schema creation and the load run in one transaction, so a failed write
// leaves no partial table behind.
type Postgres struct {
	URL string
}

func (s Postgres) Write(ctx context.Context, ds *dataset.Dataset) error {
	pool, err := db.NewPool(ctx, s.URL, 4, 0)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("postgres: initialize schema: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{KPITable},
		KPIColumns,
		pgx.CopyFromSlice(len(ds.Rows), func(i int) ([]interface{}, error) {
			r := &ds.Rows[i]
			day, err := time.Parse("2006-01-02", r.MeasureDate)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse measure_date %q: %w", i, r.MeasureDate, err)
			}
			return []interface{}{
				r.Clinic, r.Provider, r.MeasureName, day,
				r.LowerIsBetter, r.Numerator, r.Denominator, r.MeasureValue, r.Benchmark,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres: copy rows: %w", err)
	}
	if copied != int64(len(ds.Rows)) {
		return fmt.Errorf("postgres: copied %d rows, expected %d", copied, len(ds.Rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}
