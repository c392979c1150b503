package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
)

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	ds := smallDataset(t, 42)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != len(ds.Rows)+1 {
		t.Fatalf("expected %d lines, got %d", len(ds.Rows)+1, len(records))
	}

	for i, col := range dataset.CSVHeader {
		if records[0][i] != col {
			t.Errorf("header column %d: expected %q, got %q", i, col, records[0][i])
		}
	}

	// Spot-check that the first data row round-trips.
	first := records[1]
	if first[0] != ds.Rows[0].Clinic || first[1] != ds.Rows[0].Provider {
		t.Errorf("first row identity wrong: %v", first[:2])
	}
	num, err := strconv.Atoi(first[5])
	if err != nil || num != ds.Rows[0].Numerator {
		t.Errorf("numerator column: got %q, want %d", first[5], ds.Rows[0].Numerator)
	}
	val, err := strconv.ParseFloat(first[7], 64)
	if err != nil || val != ds.Rows[0].MeasureValue {
		t.Errorf("value column: got %q, want %g", first[7], ds.Rows[0].MeasureValue)
	}
}

func TestWriteCSV_ByteIdenticalForFixedSeed(t *testing.T) {
	var a, b bytes.Buffer
	if err := WriteCSV(&a, smallDataset(t, 42)); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := WriteCSV(&b, smallDataset(t, 42)); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("same seed produced different CSV bytes")
	}

	var c bytes.Buffer
	if err := WriteCSV(&c, smallDataset(t, 7)); err != nil {
		t.Fatalf("write c: %v", err)
	}
	if bytes.Equal(a.Bytes(), c.Bytes()) {
		t.Fatal("different seeds produced identical CSV bytes")
	}
}

func TestCSVFile_Write(t *testing.T) {
	ds := smallDataset(t, 42)
	path := filepath.Join(t.TempDir(), DefaultCSVName)

	if err := (CSVFile{Path: path}).Write(context.Background(), ds); err != nil {
		t.Fatalf("write csv file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != len(ds.Rows)+1 {
		t.Errorf("expected %d lines, got %d", len(ds.Rows)+1, len(records))
	}
}
