package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
)

// readParquet reads all WeeklyRecord rows from a parquet file.
func readParquet(t *testing.T, path string) []dataset.WeeklyRecord {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[dataset.WeeklyRecord](f)
	defer reader.Close()

	rows := make([]dataset.WeeklyRecord, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("read parquet: %v", err)
	}
	return rows[:n]
}

func TestParquetFile_RoundTrip(t *testing.T) {
	ds := smallDataset(t, 42)
	path := filepath.Join(t.TempDir(), "kpi.parquet")

	if err := (ParquetFile{Path: path}).Write(context.Background(), ds); err != nil {
		t.Fatalf("write parquet: %v", err)
	}

	rows := readParquet(t, path)
	if len(rows) != len(ds.Rows) {
		t.Fatalf("expected %d rows, got %d", len(ds.Rows), len(rows))
	}
	if rows[0] != ds.Rows[0] {
		t.Errorf("first row mismatch: got %+v, want %+v", rows[0], ds.Rows[0])
	}
	last := len(rows) - 1
	if rows[last] != ds.Rows[last] {
		t.Errorf("last row mismatch: got %+v, want %+v", rows[last], ds.Rows[last])
	}
}
