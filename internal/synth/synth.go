// Package synth generates the weekly provider-quality table. It produces
// reproducible, statistically plausible numerator/denominator/rate rows for
// every (clinic, provider, measure, week) tuple in a scenario, suitable for
// exercising analytics pipelines, dashboards, and reporting systems.
package synth

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
	"github.com/kpiforge/kpiforge/internal/domain/measure"
	"github.com/kpiforge/kpiforge/internal/domain/roster"
	"github.com/kpiforge/kpiforge/internal/scenario"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrPanelCollapse reports a computed denominator below 1. It indicates a
// defect in panel or jitter configuration, not a retryable condition.
var ErrPanelCollapse = errors.New("computed patient panel is not positive")

// ---------------------------------------------------------------------------
// Drift slopes (per week, on the [0,1] rate scale)
// ---------------------------------------------------------------------------

const (
	// Improving and declining trends draw a slope from this band.
	trendSlopeMin = 0.0005
	trendSlopeMax = 0.0100

	// Flat trends wobble within this half-width.
	flatSlopeSpread = 0.0002

	// Low performers on non-declining measures drift mildly downward.
	lowDeclineMin = 0.0005
	lowDeclineMax = 0.0020
)

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

// Generator produces one dataset per Generate call. Trajectories are seeded
// per (clinic, provider, measure) pair, so a pair's series does not depend
// on where the pair sits in the iteration order.
type Generator struct {
	scenario *scenario.Scenario
	seed     int64
}

// New returns a generator for the given scenario. If the scenario's seed is
// 0 a time-based seed is chosen, matching the reproducibility contract: a
// fixed seed yields byte-identical output, an unset seed yields fresh data
// with identical structure.
func New(s *scenario.Scenario) *Generator {
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{scenario: s, seed: seed}
}

// Seed returns the effective master seed.
func (g *Generator) Seed() int64 { return g.seed }

// Generate validates the scenario and produces the full table in one
// synchronous pass. It either returns a complete dataset or an error before
// any row is handed to a sink.
func (g *Generator) Generate() (*dataset.Dataset, error) {
	if err := g.scenario.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	s := g.scenario
	ref := s.RefTime()

	rows := make([]dataset.WeeklyRecord, 0, s.ExpectedRows())
	lowPerformers := 0

	for _, clinic := range s.Clinics {
		for _, provider := range clinic.Providers {
			if clinic.TierOf(provider) == roster.TierLowPerformer {
				lowPerformers++
			}
			for _, m := range s.Measures {
				values, panels, err := g.pairSeries(clinic, provider, m)
				if err != nil {
					return nil, err
				}
				for i := 0; i < s.Weeks; i++ {
					den := panels[i]
					num := int(math.Round(values[i] * float64(den)))
					if num < 0 {
						num = 0
					}
					if num > den {
						num = den
					}
					weekEnd := ref.AddDate(0, 0, -7*(s.Weeks-1-i))
					rows = append(rows, dataset.WeeklyRecord{
						Clinic:        clinic.Name,
						Provider:      provider.Name,
						MeasureName:   m.Name,
						MeasureDate:   weekEnd.Format(scenario.DateLayout),
						LowerIsBetter: m.LowerIsBetter(),
						Numerator:     num,
						Denominator:   den,
						MeasureValue:  float64(num) / float64(den),
						Benchmark:     m.Benchmark,
					})
				}
			}
		}
	}

	return &dataset.Dataset{
		ID:            uuid.NewString(),
		Seed:          g.seed,
		ReferenceDate: ref.Format(scenario.DateLayout),
		CreatedAt:     time.Now().UTC(),
		Summary: dataset.Summary{
			Clinics:       len(s.Clinics),
			Providers:     roster.ProviderCount(s.Clinics),
			Measures:      len(s.Measures),
			Weeks:         s.Weeks,
			Rows:          len(rows),
			LowPerformers: lowPerformers,
			Duration:      time.Since(start),
		},
		Rows: rows,
	}, nil
}

// ---------------------------------------------------------------------------
// Per-pair trajectory
// ---------------------------------------------------------------------------

// pairRand derives a dedicated RNG for one (clinic, provider, measure) pair
// by folding a 128-bit hash of the pair key into the master seed.
func (g *Generator) pairRand(clinicName, providerName, measureName string) *rand.Rand {
	h := murmur3.New128()
	h.Write([]byte(clinicName))
	h.Write([]byte{'|'})
	h.Write([]byte(providerName))
	h.Write([]byte{'|'})
	h.Write([]byte(measureName))
	hi, _ := h.Sum128()
	return rand.New(rand.NewSource(g.seed ^ int64(hi)))
}

// pairSeries produces the week-ordered rate values and panel sizes for one
// (provider, measure) pair. Draw order is fixed: start offset, slope, the
// per-week noise terms, then the panel walk.
func (g *Generator) pairSeries(c roster.Clinic, p roster.Provider, m measure.Measure) ([]float64, []int, error) {
	rng := g.pairRand(c.Name, p.Name, m.Name)
	tier := c.TierOf(p)
	t := g.scenario.Tuning

	start := m.Benchmark * g.startFactor(rng, tier)
	slope := g.slope(rng, tier, m.Trend)

	values := make([]float64, g.scenario.Weeks)
	for i := range values {
		noise := (rng.Float64()*2 - 1) * t.ValueNoise
		values[i] = clip(start+float64(i)*slope+noise, 0, 1)
	}

	panels, err := panelWalk(rng, m.BasePanel, g.scenario.Weeks, t.PanelJitter)
	if err != nil {
		return nil, nil, err
	}
	return values, panels, nil
}

// startFactor is the benchmark multiplier for a provider's starting
// performance: well below for low performers, somewhat below for providers
// at an adjusted clinic, near 1 with an individual offset otherwise.
func (g *Generator) startFactor(rng *rand.Rand, tier roster.Tier) float64 {
	t := g.scenario.Tuning
	switch tier {
	case roster.TierLowPerformer:
		return t.LowStartFactor
	case roster.TierClinicAdjusted:
		return t.AdjustedStartFactor
	default:
		return 1 + (rng.Float64()*2-1)*t.NormalStartSpread
	}
}

// slope is the per-week drift increment. Low performers on non-declining
// measures override the nominal trend toward a mild decline.
func (g *Generator) slope(rng *rand.Rand, tier roster.Tier, trend measure.Trend) float64 {
	if tier == roster.TierLowPerformer && trend != measure.TrendDeclining {
		return -(lowDeclineMin + rng.Float64()*(lowDeclineMax-lowDeclineMin))
	}
	switch trend {
	case measure.TrendImproving:
		return trendSlopeMin + rng.Float64()*(trendSlopeMax-trendSlopeMin)
	case measure.TrendDeclining:
		return -(trendSlopeMin + rng.Float64()*(trendSlopeMax-trendSlopeMin))
	default:
		return (rng.Float64()*2 - 1) * flatSlopeSpread
	}
}

// panelWalk models a stable patient panel: an integer random walk that moves
// at most jitter×prior per week and stays within the jitter band around the
// base panel. Both bounds hold under integer rounding.
func panelWalk(rng *rand.Rand, base, weeks int, jitter float64) ([]int, error) {
	if base < 1 {
		return nil, ErrPanelCollapse
	}
	lo := int(math.Ceil(float64(base) * (1 - jitter)))
	if lo < 1 {
		lo = 1
	}
	hi := int(math.Floor(float64(base) * (1 + jitter)))
	if hi < lo {
		hi = lo
	}

	panels := make([]int, weeks)
	cur := base
	for i := 0; i < weeks; i++ {
		if i > 0 {
			step := int(float64(cur) * jitter)
			if step > 0 {
				cur += rng.Intn(2*step+1) - step
				if cur < lo {
					cur = lo
				}
				if cur > hi {
					cur = hi
				}
			}
		}
		if cur < 1 {
			return nil, ErrPanelCollapse
		}
		panels[i] = cur
	}
	return panels, nil
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
