package sink

import (
	"context"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
)

// parquetBatchSize bounds memory spent staging rows for the writer.
const parquetBatchSize = 10000

// ParquetFile writes the dataset as a Parquet file with zstd compression and
// column statistics, suitable for direct loading into DuckDB or Spark.
type ParquetFile struct {
	Path string
}

func (s ParquetFile) Write(ctx context.Context, ds *dataset.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}

	w := parquet.NewGenericWriter[dataset.WeeklyRecord](f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("kpiforge", "1.0", ""),
	)

	for start := 0; start < len(ds.Rows); start += parquetBatchSize {
		end := start + parquetBatchSize
		if end > len(ds.Rows) {
			end = len(ds.Rows)
		}
		if _, err := w.Write(ds.Rows[start:end]); err != nil {
			w.Close()
			f.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}
