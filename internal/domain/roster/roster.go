package roster

import "fmt"

// Tier classifies a provider's performance profile. It controls the starting
// offset and trend-slope modifiers applied during generation.
type Tier string

const (
	// TierNormal providers start near benchmark with a small individual offset.
	TierNormal Tier = "normal"
	// TierLowPerformer providers start well below benchmark and drift downward.
	TierLowPerformer Tier = "low-performer"
	// TierClinicAdjusted providers inherit their clinic's below-average start.
	TierClinicAdjusted Tier = "clinic-adjusted"
)

var validTiers = map[Tier]bool{
	TierNormal:         true,
	TierLowPerformer:   true,
	TierClinicAdjusted: true,
}

// Provider is a clinician on a clinic's panel. Tier may be left empty in
// configuration, in which case it resolves to normal or clinic-adjusted
// depending on the clinic flag.
type Provider struct {
	Name string `json:"name" yaml:"name"`
	Tier Tier   `json:"tier,omitempty" yaml:"tier,omitempty"`
}

// Clinic groups an ordered set of providers. Adjusted marks a clinic whose
// providers all start below the network average.
type Clinic struct {
	Name      string     `json:"name" yaml:"name"`
	Adjusted  bool       `json:"adjusted,omitempty" yaml:"adjusted,omitempty"`
	Providers []Provider `json:"providers" yaml:"providers"`
}

// TierOf resolves the effective tier for a provider at this clinic. An
// explicit low-performer tag wins over the clinic-wide adjustment.
func (c Clinic) TierOf(p Provider) Tier {
	if p.Tier == TierLowPerformer {
		return TierLowPerformer
	}
	if c.Adjusted {
		return TierClinicAdjusted
	}
	if p.Tier == "" {
		return TierNormal
	}
	return p.Tier
}

// Validate checks roster shape: named clinics, at least one provider each,
// no duplicate provider names within a clinic, and known tier values.
func Validate(clinics []Clinic) error {
	if len(clinics) == 0 {
		return fmt.Errorf("roster must contain at least one clinic")
	}
	for _, c := range clinics {
		if c.Name == "" {
			return fmt.Errorf("clinic name is required")
		}
		if len(c.Providers) == 0 {
			return fmt.Errorf("clinic %q: at least one provider is required", c.Name)
		}
		seen := map[string]bool{}
		for _, p := range c.Providers {
			if p.Name == "" {
				return fmt.Errorf("clinic %q: provider name is required", c.Name)
			}
			if seen[p.Name] {
				return fmt.Errorf("clinic %q: duplicate provider %q", c.Name, p.Name)
			}
			seen[p.Name] = true
			if p.Tier != "" && !validTiers[p.Tier] {
				return fmt.Errorf("clinic %q: provider %q: unknown tier %q", c.Name, p.Name, p.Tier)
			}
		}
	}
	return nil
}

// ProviderCount returns the total number of providers across all clinics.
func ProviderCount(clinics []Clinic) int {
	n := 0
	for _, c := range clinics {
		n += len(c.Providers)
	}
	return n
}

// BuiltinClinics is the default network: four clinics of six providers each.
// Lakeview carries the clinic-wide adjustment; three providers across the
// network are tagged low performers.
var BuiltinClinics = []Clinic{
	{
		Name: "Northside Family Practice",
		Providers: []Provider{
			{Name: "Dr. Emily Hartman"},
			{Name: "Dr. Rajesh Venkataraman"},
			{Name: "Dr. Olivia Grant", Tier: TierLowPerformer},
			{Name: "Dr. Samuel Okafor"},
			{Name: "Dr. Lena Fischer"},
			{Name: "Dr. Thomas Reyes"},
		},
	},
	{
		Name: "Riverbend Medical Group",
		Providers: []Provider{
			{Name: "Dr. Marcus Webb", Tier: TierLowPerformer},
			{Name: "Dr. Hannah Lindqvist"},
			{Name: "Dr. Priya Natarajan"},
			{Name: "Dr. Caleb Munoz"},
			{Name: "Dr. Grace Caldwell"},
			{Name: "Dr. Victor Osei"},
		},
	},
	{
		Name:     "Lakeview Community Health",
		Adjusted: true,
		Providers: []Provider{
			{Name: "Dr. Irene Vasquez"},
			{Name: "Dr. Noah Blumenthal"},
			{Name: "Dr. Sofia Marchetti"},
			{Name: "Dr. Daniel Kwon"},
			{Name: "Dr. Ruth Ellison"},
			{Name: "Dr. Peter Hale"},
		},
	},
	{
		Name: "Cedar Hill Primary Care",
		Providers: []Provider{
			{Name: "Dr. Dana Whitfield", Tier: TierLowPerformer},
			{Name: "Dr. Miguel Santana"},
			{Name: "Dr. Anika Chaudhary"},
			{Name: "Dr. Brian Foley"},
			{Name: "Dr. Celeste Tran"},
			{Name: "Dr. Jonah Pierce"},
		},
	},
}
