package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
)

// KPITable is the table name used by the SQLite and Postgres sinks.
const KPITable = "provider_kpi"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS provider_kpi (
	clinic          TEXT NOT NULL,
	provider        TEXT NOT NULL,
	measure_name    TEXT NOT NULL,
	measure_date    TEXT NOT NULL,
	lower_is_better INTEGER NOT NULL,
	numerator       INTEGER NOT NULL,
	denominator     INTEGER NOT NULL,
	measure_value   REAL NOT NULL,
	benchmark       REAL NOT NULL,
	UNIQUE (clinic, provider, measure_name, measure_date)
);
CREATE INDEX IF NOT EXISTS idx_provider_kpi_measure
	ON provider_kpi (measure_name, measure_date);
`

// SQLiteFile writes the dataset into a SQLite database at Path. The whole
// dataset is inserted in a single transaction.
type SQLiteFile struct {
	Path string
}

func (s SQLiteFile) Write(ctx context.Context, ds *dataset.Dataset) error {
	db, err := sql.Open("sqlite3", s.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("sqlite: open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite: initialize schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO provider_kpi (
			clinic, provider, measure_name, measure_date,
			lower_is_better, numerator, denominator, measure_value, benchmark
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}

	for i := range ds.Rows {
		r := &ds.Rows[i]
		if _, err := stmt.ExecContext(ctx,
			r.Clinic, r.Provider, r.MeasureName, r.MeasureDate,
			r.LowerIsBetter, r.Numerator, r.Denominator, r.MeasureValue, r.Benchmark,
		); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("sqlite: insert row %d: %w", i, err)
		}
	}

	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: close statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}
