package entities

import "fmt"

// DoseUnit is the canonical short form of a recognized dose unit.
type DoseUnit string

const (
	UnitMg      DoseUnit = "mg"
	UnitMcg     DoseUnit = "mcg"
	UnitG       DoseUnit = "g"
	UnitMl      DoseUnit = "ml"
	UnitTablet  DoseUnit = "tablet"
	UnitCapsule DoseUnit = "capsule"
	UnitUnit    DoseUnit = "unit"
)

// ParsedDose is the canonical numeric form of a free-text dose string.
type ParsedDose struct {
	Value    float64  `json:"value"`
	Unit     DoseUnit `json:"unit"`
	Original string   `json:"original"`
}

// WeightBased reports whether the unit can be compared against mg ranges.
func (p ParsedDose) WeightBased() bool {
	return p.Unit == UnitMg || p.Unit == UnitMcg || p.Unit == UnitG
}

// Milligrams converts the dose value to mg. The second return value is false
// for units that have no fixed mg equivalent (ml, tablet, capsule, unit).
func (p ParsedDose) Milligrams() (float64, bool) {
	switch p.Unit {
	case UnitMg:
		return p.Value, true
	case UnitG:
		return p.Value * 1000, true
	case UnitMcg:
		return p.Value / 1000, true
	}
	return 0, false
}

// String renders the dose in the canonical "<value><unit>" form.
func (p ParsedDose) String() string {
	return fmt.Sprintf("%g%s", p.Value, p.Unit)
}

// Frequency is the interpreted form of a dosing frequency string. Valid is
// false when the text did not match the recognized vocabulary; Original is
// preserved either way so callers can surface it.
type Frequency struct {
	Valid         bool   `json:"valid"`
	Standardized  string `json:"standardized,omitempty"`
	TimesPerDay   int    `json:"times_per_day,omitempty"`
	IntervalHours int    `json:"interval_hours,omitempty"`
	Original      string `json:"original"`
	Reason        string `json:"reason,omitempty"`
}
