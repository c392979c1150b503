// Package dataset holds the emitted table model shared by the generator,
// the sinks, and the HTTP API.
package dataset

import (
	"strconv"
	"time"
)

// CSVHeader is the fixed column order of the emitted table.
var CSVHeader = []string{
	"Clinic",
	"Provider",
	"MeasureName",
	"MeasureDate",
	"LowerIsBetter",
	"Numerator",
	"Denominator",
	"MeasureValue",
	"Benchmark",
}

// WeeklyRecord is one emitted row: a provider's performance on one measure
// for one week. MeasureDate is an ISO date (YYYY-MM-DD); ISO dates sort
// lexicographically in chronological order.
type WeeklyRecord struct {
	Clinic        string  `json:"clinic" parquet:"clinic"`
	Provider      string  `json:"provider" parquet:"provider"`
	MeasureName   string  `json:"measure_name" parquet:"measure_name"`
	MeasureDate   string  `json:"measure_date" parquet:"measure_date"`
	LowerIsBetter int     `json:"lower_is_better" parquet:"lower_is_better"`
	Numerator     int     `json:"numerator" parquet:"numerator"`
	Denominator   int     `json:"denominator" parquet:"denominator"`
	MeasureValue  float64 `json:"measure_value" parquet:"measure_value"`
	Benchmark     float64 `json:"benchmark" parquet:"benchmark"`
}

// CSVRow renders the record in CSVHeader column order. Floats use the
// shortest representation that round-trips, so output bytes are stable for
// a given seed.
func (r WeeklyRecord) CSVRow() []string {
	return []string{
		r.Clinic,
		r.Provider,
		r.MeasureName,
		r.MeasureDate,
		strconv.Itoa(r.LowerIsBetter),
		strconv.Itoa(r.Numerator),
		strconv.Itoa(r.Denominator),
		strconv.FormatFloat(r.MeasureValue, 'f', -1, 64),
		strconv.FormatFloat(r.Benchmark, 'f', -1, 64),
	}
}

// Summary describes one generated dataset.
type Summary struct {
	Clinics       int           `json:"clinics"`
	Providers     int           `json:"providers"`
	Measures      int           `json:"measures"`
	Weeks         int           `json:"weeks"`
	Rows          int           `json:"rows"`
	LowPerformers int           `json:"lowPerformers"`
	Duration      time.Duration `json:"duration"`
}

// Dataset is a fully generated table plus its identifying metadata.
type Dataset struct {
	ID            string         `json:"id"`
	Seed          int64          `json:"seed"`
	ReferenceDate string         `json:"reference_date"`
	CreatedAt     time.Time      `json:"created_at"`
	Summary       Summary        `json:"summary"`
	Rows          []WeeklyRecord `json:"-"`
}
