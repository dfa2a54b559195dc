package entities

// StandardRange is the unadjusted adult reference range for one drug, in mg.
type StandardRange struct {
	DrugKey    string  `json:"drug"`
	MinMg      float64 `json:"min_mg"`
	MaxMg      float64 `json:"max_mg"`
	MaxDailyMg float64 `json:"max_daily_mg"`
	Frequency  string  `json:"frequency"`
}

// AgeBand groups patient ages for dosage adjustment. Every age in [0,120]
// maps to exactly one band.
type AgeBand struct {
	Name         string  `json:"name"`
	MinAge       int     `json:"min_age"`
	MaxAge       int     `json:"max_age"`
	Factor       float64 `json:"factor"`
	SpecialRules bool    `json:"special_rules"`
}

// Age band names.
const (
	BandPediatric  = "pediatric"
	BandAdolescent = "adolescent"
	BandAdult      = "adult"
	BandElderly    = "elderly"
)

// DoseStatus classifies a mentioned dose against the age-adjusted range.
type DoseStatus string

const (
	DoseAppropriate DoseStatus = "appropriate"
	DoseTooLow      DoseStatus = "too_low"
	DoseTooHigh     DoseStatus = "too_high"
	DoseBorderline  DoseStatus = "borderline"
	DoseUnknown     DoseStatus = "unknown"
	DoseError       DoseStatus = "error"
)

// OverallStatus is the per-entity roll-up. Unknown dose statuses stay valid:
// missing reference data is not a detected problem.
type OverallStatus string

const (
	OverallValid       OverallStatus = "valid"
	OverallNeedsReview OverallStatus = "needs_review"
)

// SuggestedRange is the age-adjusted range attached to verdicts whose dose
// falls outside it.
type SuggestedRange struct {
	MinMg     float64 `json:"min_mg"`
	MaxMg     float64 `json:"max_mg"`
	Frequency string  `json:"frequency,omitempty"`
}

// DosageVerdict is the result of verifying one prescription line item.
// Created once per analysis run and never mutated afterwards.
type DosageVerdict struct {
	Drug           string          `json:"drug"`
	MentionedDose  string          `json:"mentioned_dose,omitempty"`
	Frequency      string          `json:"frequency,omitempty"`
	Code           string          `json:"code,omitempty"`
	AgeBand        string          `json:"age_band"`
	Status         DoseStatus      `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	SuggestedRange *SuggestedRange `json:"suggested_range,omitempty"`
	Considerations []string        `json:"considerations,omitempty"`
	Alternatives   []string        `json:"alternatives,omitempty"`
	Overall        OverallStatus   `json:"overall_status"`
}

// WarningRule attaches a special-population warning to any drug whose name
// contains Match (case-insensitive substring).
type WarningRule struct {
	Match   string `json:"match"`
	Warning string `json:"warning"`
}

// WeightRule is a pediatric mg/kg dosing guideline.
type WeightRule struct {
	Match     string  `json:"match"`
	DosePerKg float64 `json:"dose_per_kg"`
	Frequency string  `json:"frequency"`
	MaxPerKg  float64 `json:"max_per_kg"`
}

// SubstituteRule maps a drug-name substring to curated same-class
// substitution candidates.
type SubstituteRule struct {
	Match       string   `json:"match"`
	Substitutes []string `json:"substitutes"`
}
