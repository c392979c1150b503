package loader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
	"github.com/kpiforge/kpiforge/internal/platform/db"
	"github.com/kpiforge/kpiforge/internal/sink"
)

const copyBatchSize = 8192

// LoadPostgres streams a KPI CSV export into the provider_kpi table and
// returns the number of rows loaded. The whole load runs in one transaction;
// a malformed row or a short COPY rolls everything back.
func LoadPostgres(ctx context.Context, csvPath, connStr string) (int64, error) {
	r, err := NewReader(csvPath)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	pool, err := db.NewPool(ctx, connStr, 4, 0)
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sink.PostgresSchema); err != nil {
		return 0, fmt.Errorf("initialize schema: %w", err)
	}

	var loaded int64
	batch := make([]dataset.WeeklyRecord, 0, copyBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{sink.KPITable},
			sink.KPIColumns,
			pgx.CopyFromSlice(len(batch), func(i int) ([]interface{}, error) {
				rec := &batch[i]
				day, err := time.Parse("2006-01-02", rec.MeasureDate)
				if err != nil {
					return nil, fmt.Errorf("parse measure_date %q: %w", rec.MeasureDate, err)
				}
				return []interface{}{
					rec.Clinic, rec.Provider, rec.MeasureName, day,
					rec.LowerIsBetter, rec.Numerator, rec.Denominator, rec.MeasureValue, rec.Benchmark,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy rows: %w", err)
		}
		loaded += copied
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		batch = append(batch, rec)
		if len(batch) >= copyBatchSize {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}

	if read := r.RowNum() - 1; loaded != read {
		return 0, fmt.Errorf("loaded %d rows but read %d from %s", loaded, read, csvPath)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return loaded, nil
}
