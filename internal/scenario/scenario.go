// Package scenario resolves the generation plan: which measures, which
// clinics and providers, how many weeks, and the statistical knobs applied
// during synthesis. A scenario is immutable once validated; generation never
// mutates it.
package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kpiforge/kpiforge/internal/domain/measure"
	"github.com/kpiforge/kpiforge/internal/domain/roster"
)

// Default values applied when fields are absent from a scenario file.
const (
	DefaultWeeks = 52

	// DefaultValueNoise is the per-week bounded perturbation on the rate.
	DefaultValueNoise = 0.025
	// DefaultPanelJitter bounds week-over-week denominator movement.
	DefaultPanelJitter = 0.02
	// DefaultLowStartFactor places low performers ~15% below benchmark.
	DefaultLowStartFactor = 0.85
	// DefaultAdjustedStartFactor places adjusted-clinic providers ~5% below.
	DefaultAdjustedStartFactor = 0.95
	// DefaultNormalStartSpread bounds the individual offset of normal providers.
	DefaultNormalStartSpread = 0.03
)

// DateLayout is the ISO date format used throughout the emitted table.
const DateLayout = "2006-01-02"

// ConfigError reports an invalid or incomplete scenario. It is returned
// before any generation begins; no partial output is ever produced.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("scenario: %v", e.Err)
	}
	return fmt.Sprintf("scenario: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrf(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Tuning holds the statistical knobs of the generator. Zero values are
// replaced by defaults during Load; Validate rejects out-of-range settings.
type Tuning struct {
	// ValueNoise is the half-width of the uniform per-week rate perturbation.
	ValueNoise float64 `yaml:"value_noise"`

	// PanelJitter is the maximum week-over-week denominator change as a
	// fraction of the prior week's panel.
	PanelJitter float64 `yaml:"panel_jitter"`

	// LowStartFactor multiplies the benchmark for low-performer starts.
	LowStartFactor float64 `yaml:"low_start_factor"`

	// AdjustedStartFactor multiplies the benchmark for adjusted-clinic starts.
	AdjustedStartFactor float64 `yaml:"adjusted_start_factor"`

	// NormalStartSpread is the half-width of the individual start offset
	// applied to normal-tier providers.
	NormalStartSpread float64 `yaml:"normal_start_spread"`
}

// Scenario is the full generation plan.
type Scenario struct {
	// Name labels the scenario in logs and summaries.
	Name string `yaml:"name"`

	// Seed drives all randomness. 0 selects a time-based seed at generation.
	Seed int64 `yaml:"seed"`

	// Weeks is the trajectory length per (provider, measure) pair.
	Weeks int `yaml:"weeks"`

	// ReferenceDate (YYYY-MM-DD) anchors the final week. Empty means today.
	ReferenceDate string `yaml:"reference_date"`

	Clinics  []roster.Clinic   `yaml:"clinics"`
	Measures []measure.Measure `yaml:"measures"`

	Tuning Tuning `yaml:"tuning"`
}

// Default returns the builtin scenario: the full measure catalog, the
// builtin clinic network, and 52 weeks.
func Default() *Scenario {
	s := &Scenario{
		Name:     "default",
		Weeks:    DefaultWeeks,
		Clinics:  append([]roster.Clinic(nil), roster.BuiltinClinics...),
		Measures: append([]measure.Measure(nil), measure.BuiltinMeasures...),
	}
	s.Tuning = defaultTuning()
	return s
}

func defaultTuning() Tuning {
	return Tuning{
		ValueNoise:          DefaultValueNoise,
		PanelJitter:         DefaultPanelJitter,
		LowStartFactor:      DefaultLowStartFactor,
		AdjustedStartFactor: DefaultAdjustedStartFactor,
		NormalStartSpread:   DefaultNormalStartSpread,
	}
}

// Load reads a YAML scenario file, fills defaults, and validates. Lists in
// the file replace the builtin lists wholesale; omitted lists keep the
// builtin catalog and roster.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read file: %w", err)
	}

	s := Default()
	s.Name = ""
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("scenario: parse yaml: %w", err)
	}
	if s.Name == "" {
		s.Name = path
	}
	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scenario) applyDefaults() {
	if s.Weeks == 0 {
		s.Weeks = DefaultWeeks
	}
	d := defaultTuning()
	if s.Tuning.ValueNoise == 0 {
		s.Tuning.ValueNoise = d.ValueNoise
	}
	if s.Tuning.PanelJitter == 0 {
		s.Tuning.PanelJitter = d.PanelJitter
	}
	if s.Tuning.LowStartFactor == 0 {
		s.Tuning.LowStartFactor = d.LowStartFactor
	}
	if s.Tuning.AdjustedStartFactor == 0 {
		s.Tuning.AdjustedStartFactor = d.AdjustedStartFactor
	}
	if s.Tuning.NormalStartSpread == 0 {
		s.Tuning.NormalStartSpread = d.NormalStartSpread
	}
}

// Validate checks completeness and ranges. All violations are reported as
// *ConfigError so callers can distinguish bad input from generation defects.
func (s *Scenario) Validate() error {
	if s.Weeks < 1 {
		return configErrf("weeks", "must be at least 1, got %d", s.Weeks)
	}
	if s.ReferenceDate != "" {
		if _, err := time.Parse(DateLayout, s.ReferenceDate); err != nil {
			return configErrf("reference_date", "not a valid %s date: %q", DateLayout, s.ReferenceDate)
		}
	}

	if len(s.Measures) == 0 {
		return configErrf("measures", "at least one measure is required")
	}
	seen := map[string]bool{}
	for _, m := range s.Measures {
		if err := m.Validate(); err != nil {
			return &ConfigError{Field: "measures", Err: err}
		}
		if seen[m.Name] {
			return configErrf("measures", "duplicate measure %q", m.Name)
		}
		seen[m.Name] = true
	}

	if err := roster.Validate(s.Clinics); err != nil {
		return &ConfigError{Field: "clinics", Err: err}
	}

	t := s.Tuning
	if t.ValueNoise < 0 || t.ValueNoise > 0.25 {
		return configErrf("tuning.value_noise", "must be within [0, 0.25], got %g", t.ValueNoise)
	}
	if t.PanelJitter < 0 || t.PanelJitter > 0.5 {
		return configErrf("tuning.panel_jitter", "must be within [0, 0.5], got %g", t.PanelJitter)
	}
	if t.LowStartFactor <= 0 || t.LowStartFactor > 1 {
		return configErrf("tuning.low_start_factor", "must be within (0, 1], got %g", t.LowStartFactor)
	}
	if t.AdjustedStartFactor <= 0 || t.AdjustedStartFactor > 1 {
		return configErrf("tuning.adjusted_start_factor", "must be within (0, 1], got %g", t.AdjustedStartFactor)
	}
	if t.NormalStartSpread < 0 || t.NormalStartSpread > 0.25 {
		return configErrf("tuning.normal_start_spread", "must be within [0, 0.25], got %g", t.NormalStartSpread)
	}
	return nil
}

// RefTime returns the reference date anchoring the final generated week.
// An unset reference date resolves to today's UTC date.
func (s *Scenario) RefTime() time.Time {
	if s.ReferenceDate == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	t, err := time.Parse(DateLayout, s.ReferenceDate)
	if err != nil {
		// Validate rejects unparseable dates before generation starts.
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t
}

// ExpectedRows is the exact output row count for this scenario.
func (s *Scenario) ExpectedRows() int {
	return roster.ProviderCount(s.Clinics) * len(s.Measures) * s.Weeks
}
