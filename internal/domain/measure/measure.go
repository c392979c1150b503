// Package measure defines the quality measures the generator knows about.
package measure

import "fmt"

// Direction indicates whether higher or lower values represent better
// performance for a measure.
type Direction string

const (
	DirectionHigher Direction = "higher"
	DirectionLower  Direction = "lower"
)

// Trend is the qualitative drift applied across a measure's trajectory.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendFlat      Trend = "flat"
)

var validDirections = map[Direction]bool{
	DirectionHigher: true,
	DirectionLower:  true,
}

var validTrends = map[Trend]bool{
	TrendImproving: true,
	TrendDeclining: true,
	TrendFlat:      true,
}

// Measure is a named quality indicator with its benchmark, direction,
// trend tag, and weekly eligible-patient panel size.
type Measure struct {
	Name      string    `json:"name" yaml:"name"`
	Direction Direction `json:"direction" yaml:"direction"`
	Benchmark float64   `json:"benchmark" yaml:"benchmark"`
	Trend     Trend     `json:"trend" yaml:"trend"`
	BasePanel int       `json:"base_panel" yaml:"base_panel"`
}

// LowerIsBetter returns the 0/1 flag emitted with every record.
func (m Measure) LowerIsBetter() int {
	if m.Direction == DirectionLower {
		return 1
	}
	return 0
}

// Validate checks that all required attributes are present and in range.
func (m Measure) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("measure name is required")
	}
	if !validDirections[m.Direction] {
		return fmt.Errorf("measure %q: direction must be %q or %q, got %q",
			m.Name, DirectionHigher, DirectionLower, m.Direction)
	}
	if m.Benchmark < 0 || m.Benchmark > 1 {
		return fmt.Errorf("measure %q: benchmark must be within [0,1], got %g", m.Name, m.Benchmark)
	}
	if !validTrends[m.Trend] {
		return fmt.Errorf("measure %q: trend must be %q, %q, or %q, got %q",
			m.Name, TrendImproving, TrendDeclining, TrendFlat, m.Trend)
	}
	if m.BasePanel < 1 {
		return fmt.Errorf("measure %q: base panel must be at least 1, got %d", m.Name, m.BasePanel)
	}
	return nil
}

// BuiltinMeasures is the default catalog: twelve HEDIS/CMS-flavored ambulatory
// quality measures with industry-typical benchmarks.
var BuiltinMeasures = []Measure{
	{
		Name:      "Diabetes HbA1c Control",
		Direction: DirectionHigher,
		Benchmark: 0.72,
		Trend:     TrendImproving,
		BasePanel: 110,
	},
	{
		Name:      "Hypertension Blood Pressure Control",
		Direction: DirectionHigher,
		Benchmark: 0.68,
		Trend:     TrendImproving,
		BasePanel: 140,
	},
	{
		Name:      "Breast Cancer Screening",
		Direction: DirectionHigher,
		Benchmark: 0.74,
		Trend:     TrendFlat,
		BasePanel: 90,
	},
	{
		Name:      "Colorectal Cancer Screening",
		Direction: DirectionHigher,
		Benchmark: 0.70,
		Trend:     TrendImproving,
		BasePanel: 120,
	},
	{
		Name:      "Childhood Immunization Status",
		Direction: DirectionHigher,
		Benchmark: 0.82,
		Trend:     TrendFlat,
		BasePanel: 60,
	},
	{
		Name:      "Influenza Vaccination",
		Direction: DirectionHigher,
		Benchmark: 0.65,
		Trend:     TrendImproving,
		BasePanel: 150,
	},
	{
		Name:      "Statin Therapy Adherence",
		Direction: DirectionHigher,
		Benchmark: 0.78,
		Trend:     TrendFlat,
		BasePanel: 130,
	},
	{
		Name:      "Depression Screening and Follow-Up",
		Direction: DirectionHigher,
		Benchmark: 0.60,
		Trend:     TrendImproving,
		BasePanel: 100,
	},
	{
		Name:      "Well-Child Visits First 15 Months",
		Direction: DirectionHigher,
		Benchmark: 0.76,
		Trend:     TrendFlat,
		BasePanel: 50,
	},
	{
		Name:      "30-Day All-Cause Readmission",
		Direction: DirectionLower,
		Benchmark: 0.15,
		Trend:     TrendDeclining,
		BasePanel: 70,
	},
	{
		Name:      "Emergency Department Utilization",
		Direction: DirectionLower,
		Benchmark: 0.22,
		Trend:     TrendDeclining,
		BasePanel: 160,
	},
	{
		Name:      "High-Dose Opioid Prescribing",
		Direction: DirectionLower,
		Benchmark: 0.08,
		Trend:     TrendFlat,
		BasePanel: 80,
	},
}

// FindMeasure looks up a builtin measure by name.
func FindMeasure(name string) *Measure {
	for i := range BuiltinMeasures {
		if BuiltinMeasures[i].Name == name {
			return &BuiltinMeasures[i]
		}
	}
	return nil
}

// MeasureNames returns the builtin catalog names in declaration order.
func MeasureNames() []string {
	names := make([]string, len(BuiltinMeasures))
	for i, m := range BuiltinMeasures {
		names[i] = m.Name
	}
	return names
}
