// Package sink serializes generated datasets to their tabular destinations:
// CSV and NDJSON files, Parquet, SQLite, Postgres, and S3-compatible object
// stores. Sinks only ever see fully assembled datasets, so a sink error never
// leaves a partially generated table behind.
package sink

import (
	"context"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
)

// Sink writes one complete dataset to a destination.
type Sink interface {
	Write(ctx context.Context, ds *dataset.Dataset) error
}
