package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
)

// DefaultCSVName is the conventional output file name.
const DefaultCSVName = "provider_kpi_data.csv"

// WriteCSV streams the dataset as UTF-8 CSV: a header row followed by one
// row per record in generation order. Output bytes are identical across runs
// for a fixed seed.
func WriteCSV(w io.Writer, ds *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dataset.CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range ds.Rows {
		if err := cw.Write(ds.Rows[i].CSVRow()); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFile writes the dataset to a CSV file at Path.
type CSVFile struct {
	Path string
}

func (s CSVFile) Write(ctx context.Context, ds *dataset.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}

	bw := bufio.NewWriterSize(f, 256*1024)
	if err := WriteCSV(bw, ds); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv file: %w", err)
	}
	return f.Close()
}
