package sink

import (
	"testing"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
	"github.com/kpiforge/kpiforge/internal/domain/measure"
	"github.com/kpiforge/kpiforge/internal/domain/roster"
	"github.com/kpiforge/kpiforge/internal/scenario"
	"github.com/kpiforge/kpiforge/internal/synth"
)

// smallDataset generates a compact two-provider dataset for sink tests.
func smallDataset(t *testing.T, seed int64) *dataset.Dataset {
	t.Helper()

	s := scenario.Default()
	s.Name = "sink-test"
	s.Seed = seed
	s.Weeks = 6
	s.ReferenceDate = "2025-06-01"
	s.Clinics = []roster.Clinic{
		{Name: "Test Clinic", Providers: []roster.Provider{
			{Name: "Dr. A"},
			{Name: "Dr. B", Tier: roster.TierLowPerformer},
		}},
	}
	s.Measures = []measure.Measure{
		{Name: "Sample Control", Direction: measure.DirectionHigher, Benchmark: 0.80, Trend: measure.TrendFlat, BasePanel: 80},
		{Name: "Sample Readmission", Direction: measure.DirectionLower, Benchmark: 0.15, Trend: measure.TrendDeclining, BasePanel: 60},
	}

	ds, err := synth.New(s).Generate()
	if err != nil {
		t.Fatalf("generate dataset: %v", err)
	}
	return ds
}
