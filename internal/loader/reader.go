// Package loader reads KPI CSV exports back from disk and bulk-loads them
// into a PostgreSQL warehouse. It is the consuming half of the pipeline the
// generator feeds: generate, export, load, then point analytics at the table.
package loader

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
)

// Reader streams WeeklyRecord rows from a provider_kpi_data.csv file.
type Reader struct {
	file   *os.File
	csv    *csv.Reader
	rowNum int64
}

// NewReader opens a KPI CSV export and validates its header row. The file
// may carry a UTF-8 BOM; some spreadsheet tools add one on re-save.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	buf := bufio.NewReaderSize(file, 256*1024)

	bom, err := buf.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		buf.Discard(3)
	}

	cr := csv.NewReader(buf)
	cr.FieldsPerRecord = len(dataset.CSVHeader)

	r := &Reader{file: file, csv: cr}
	if err := r.readHeader(); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	r.rowNum++

	header[0] = strings.TrimPrefix(header[0], "﻿")
	for i, want := range dataset.CSVHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("unexpected header column %d: got %q, want %q", i+1, header[i], want)
		}
	}
	return nil
}

// Next returns the next record. It returns io.EOF when the file is
// exhausted and a row-numbered error for anything malformed.
func (r *Reader) Next() (dataset.WeeklyRecord, error) {
	row, err := r.csv.Read()
	if err != nil {
		if err == io.EOF {
			return dataset.WeeklyRecord{}, io.EOF
		}
		return dataset.WeeklyRecord{}, fmt.Errorf("read row: %w", err)
	}
	r.rowNum++

	rec, err := parseRecord(row)
	if err != nil {
		return dataset.WeeklyRecord{}, fmt.Errorf("row %d: %w", r.rowNum, err)
	}
	return rec, nil
}

// RowNum returns the number of CSV rows consumed so far, header included.
func (r *Reader) RowNum() int64 {
	return r.rowNum
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll reads every record from path.
func ReadAll(path string) ([]dataset.WeeklyRecord, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var rows []dataset.WeeklyRecord
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}

func parseRecord(row []string) (dataset.WeeklyRecord, error) {
	rec := dataset.WeeklyRecord{
		Clinic:      strings.TrimSpace(row[0]),
		Provider:    strings.TrimSpace(row[1]),
		MeasureName: strings.TrimSpace(row[2]),
		MeasureDate: strings.TrimSpace(row[3]),
	}

	if rec.Clinic == "" || rec.Provider == "" || rec.MeasureName == "" {
		return rec, fmt.Errorf("empty identity column")
	}
	if _, err := time.Parse("2006-01-02", rec.MeasureDate); err != nil {
		return rec, fmt.Errorf("parse measure_date %q: %w", rec.MeasureDate, err)
	}

	var err error
	if rec.LowerIsBetter, err = strconv.Atoi(row[4]); err != nil {
		return rec, fmt.Errorf("parse lower_is_better %q: %w", row[4], err)
	}
	if rec.LowerIsBetter != 0 && rec.LowerIsBetter != 1 {
		return rec, fmt.Errorf("lower_is_better must be 0 or 1, got %d", rec.LowerIsBetter)
	}
	if rec.Numerator, err = strconv.Atoi(row[5]); err != nil {
		return rec, fmt.Errorf("parse numerator %q: %w", row[5], err)
	}
	if rec.Denominator, err = strconv.Atoi(row[6]); err != nil {
		return rec, fmt.Errorf("parse denominator %q: %w", row[6], err)
	}
	if rec.MeasureValue, err = strconv.ParseFloat(row[7], 64); err != nil {
		return rec, fmt.Errorf("parse measure_value %q: %w", row[7], err)
	}
	if rec.Benchmark, err = strconv.ParseFloat(row[8], 64); err != nil {
		return rec, fmt.Errorf("parse benchmark %q: %w", row[8], err)
	}

	if rec.Denominator <= 0 {
		return rec, fmt.Errorf("denominator must be positive, got %d", rec.Denominator)
	}
	if rec.Numerator < 0 || rec.Numerator > rec.Denominator {
		return rec, fmt.Errorf("numerator %d outside [0, %d]", rec.Numerator, rec.Denominator)
	}
	return rec, nil
}
