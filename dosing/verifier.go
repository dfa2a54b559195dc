package dosing

import (
	"context"
	"fmt"
	"strings"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/refdata/entities"
)

// Zone multipliers separating gross dosing errors from mild range
// deviation. Given policy, reproduced exactly.
const (
	lowSeverityFactor  = 0.5
	highSeverityFactor = 1.5
)

// Patient ages accepted by the verifier. Ages outside this range are a
// caller bug, not a data problem.
const (
	MinAge = 0
	MaxAge = 120
)

// defaultAgeBands is used when the reference data carries no band table.
var defaultAgeBands = []entities.AgeBand{
	{Name: entities.BandPediatric, MinAge: 0, MaxAge: 12, Factor: 0.5, SpecialRules: true},
	{Name: entities.BandAdolescent, MinAge: 13, MaxAge: 17, Factor: 0.8, SpecialRules: true},
	{Name: entities.BandAdult, MinAge: 18, MaxAge: 64, Factor: 1.0, SpecialRules: false},
	{Name: entities.BandElderly, MinAge: 65, MaxAge: 120, Factor: 0.75, SpecialRules: true},
}

// Verifier checks mentioned doses against age-adjusted standard ranges and
// attaches special-population considerations and alternatives.
type Verifier struct {
	store     interfaces.DataStore
	suggester interfaces.AlternativeSuggester
}

// NewVerifier creates a verifier. The suggester may be nil, in which case
// verdicts carry no alternatives.
func NewVerifier(store interfaces.DataStore, suggester interfaces.AlternativeSuggester) *Verifier {
	return &Verifier{store: store, suggester: suggester}
}

// BandFor maps an age to its band using the loaded table.
func (v *Verifier) BandFor(age int) (entities.AgeBand, error) {
	if age < MinAge || age > MaxAge {
		return entities.AgeBand{}, fmt.Errorf("age %d outside supported range [%d,%d]", age, MinAge, MaxAge)
	}

	bands := v.store.GetAgeBands()
	if len(bands) == 0 {
		bands = defaultAgeBands
	}

	for _, band := range bands {
		if age >= band.MinAge && age <= band.MaxAge {
			return band, nil
		}
	}

	// The band table is total over [0,120]; reaching this means the loaded
	// table is malformed, so fall back to adult.
	logging.Warn("No age band matched, falling back to adult", "age", age)
	return entities.AgeBand{Name: entities.BandAdult, MinAge: 18, MaxAge: 64, Factor: 1.0}, nil
}

// Verify produces one verdict per entity with a non-empty drug name.
// Failures are absorbed per entity; the only error returned is an age
// outside the documented domain.
func (v *Verifier) Verify(ctx context.Context, items []entities.DrugEntity, age int) ([]entities.DosageVerdict, error) {
	band, err := v.BandFor(age)
	if err != nil {
		return nil, err
	}

	verdicts := make([]entities.DosageVerdict, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.DrugName) == "" {
			continue
		}
		verdicts = append(verdicts, v.verifyOne(ctx, item, age, band))
	}

	logging.Info("Checked dosages", "count", len(verdicts), "age_band", band.Name)
	return verdicts, nil
}

// verifyOne never lets a single entity abort the batch: panics from any
// collaborator degrade to a status=error verdict.
func (v *Verifier) verifyOne(ctx context.Context, item entities.DrugEntity, age int, band entities.AgeBand) (verdict entities.DosageVerdict) {
	verdict = entities.DosageVerdict{
		Drug:          item.DrugName,
		MentionedDose: item.DoseText,
		Frequency:     item.FrequencyText,
		Code:          item.Code,
		AgeBand:       band.Name,
		Status:        entities.DoseUnknown,
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Dosage verification failed", "drug", item.DrugName, "panic", r)
			verdict.Status = entities.DoseError
			verdict.Reason = fmt.Sprintf("Error during verification: %v", r)
			verdict.SuggestedRange = nil
			verdict.Overall = entities.OverallNeedsReview
		}
	}()

	rng, haveRange := v.store.GetStandardRange(item.DrugName)

	switch {
	case !haveRange:
		verdict.Status = entities.DoseUnknown
		verdict.Reason = "No standard dosage information available for this drug"

	default:
		parsed, parsedOK := ParseDose(item.DoseText)
		if !parsedOK {
			verdict.Status = entities.DoseUnknown
			verdict.Reason = "Cannot parse the mentioned dose"
			break
		}
		v.classifyDose(&verdict, parsed, rng, band.Factor)
	}

	verdict.Considerations = v.considerations(item.DrugName, age, band)

	if v.suggester != nil {
		verdict.Alternatives = v.suggester.Suggest(ctx, item.DrugName, item.Code)
	}

	// Unknown stays valid: missing reference data is not a detected problem
	switch verdict.Status {
	case entities.DoseAppropriate, entities.DoseUnknown:
		verdict.Overall = entities.OverallValid
	default:
		verdict.Overall = entities.OverallNeedsReview
	}

	return verdict
}

// classifyDose applies the three-zone policy over the age-adjusted bounds.
func (v *Verifier) classifyDose(verdict *entities.DosageVerdict, parsed entities.ParsedDose, rng entities.StandardRange, factor float64) {
	mg, weightBased := parsed.Milligrams()
	if !weightBased {
		verdict.Status = entities.DoseUnknown
		verdict.Reason = fmt.Sprintf("Cannot verify %s doses automatically", parsed.Unit)
		return
	}

	adjMin := rng.MinMg * factor
	adjMax := rng.MaxMg * factor

	suggested := &entities.SuggestedRange{MinMg: adjMin, MaxMg: adjMax, Frequency: rng.Frequency}

	switch {
	case mg < adjMin*lowSeverityFactor:
		verdict.Status = entities.DoseTooLow
		verdict.Reason = fmt.Sprintf("Dose may be too low (minimum recommended: %.1fmg)", adjMin)
		verdict.SuggestedRange = suggested

	case mg > adjMax*highSeverityFactor:
		verdict.Status = entities.DoseTooHigh
		verdict.Reason = fmt.Sprintf("Dose may be too high (maximum recommended: %.1fmg)", adjMax)
		verdict.SuggestedRange = suggested

	case adjMin <= mg && mg <= adjMax:
		verdict.Status = entities.DoseAppropriate
		verdict.Reason = "Dose is within recommended range"

	default:
		verdict.Status = entities.DoseBorderline
		verdict.Reason = fmt.Sprintf("Dose is outside typical range (%.1f-%.1fmg)", adjMin, adjMax)
		verdict.SuggestedRange = suggested
	}
}

// considerations collects special-population warnings for the entity.
func (v *Verifier) considerations(drugName string, age int, band entities.AgeBand) []string {
	var notes []string
	lower := strings.ToLower(drugName)

	if band.Name == entities.BandPediatric {
		if age < 2 {
			notes = append(notes, "Consult pediatrician for infants under 2 years")
		}
		for _, rule := range v.pediatricWarnings() {
			if strings.Contains(lower, rule.Match) {
				notes = append(notes, rule.Warning)
			}
		}
	} else if age < 16 {
		// The Reye's syndrome warning applies to any age under 16, even past
		// the pediatric band edge.
		for _, rule := range v.pediatricWarnings() {
			if rule.Match == "aspirin" && strings.Contains(lower, rule.Match) {
				notes = append(notes, rule.Warning)
			}
		}
	}

	if band.Name == entities.BandElderly {
		if age >= 80 {
			notes = append(notes, "Consider 'start low, go slow' approach for patients over 80")
		}
		for _, rule := range v.elderlyWarnings() {
			if strings.Contains(lower, rule.Match) {
				notes = append(notes, rule.Warning)
			}
		}
	}

	return notes
}

func (v *Verifier) pediatricWarnings() []entities.WarningRule {
	if rules := v.store.GetPediatricWarnings(); len(rules) > 0 {
		return rules
	}
	return defaultPediatricWarnings
}

func (v *Verifier) elderlyWarnings() []entities.WarningRule {
	if rules := v.store.GetElderlyWarnings(); len(rules) > 0 {
		return rules
	}
	return defaultElderlyWarnings
}

// Built-in warning rules, used when the reference data has none loaded.
var defaultPediatricWarnings = []entities.WarningRule{
	{Match: "aspirin", Warning: "Avoid in children under 16 due to Reye's syndrome risk"},
	{Match: "ibuprofen", Warning: "Not recommended for infants under 6 months"},
	{Match: "paracetamol", Warning: "Dose based on weight: 10-15mg/kg every 4-6 hours"},
	{Match: "acetaminophen", Warning: "Dose based on weight: 10-15mg/kg every 4-6 hours"},
	{Match: "codeine", Warning: "Contraindicated in children under 12 years"},
	{Match: "tramadol", Warning: "Not recommended for children under 12 years"},
}

var defaultElderlyWarnings = []entities.WarningRule{
	{Match: "digoxin", Warning: "Increased risk of toxicity; monitor levels closely"},
	{Match: "warfarin", Warning: "Higher bleeding risk; more frequent INR monitoring"},
	{Match: "benzodiazepine", Warning: "Increased fall risk; consider shorter-acting alternatives"},
	{Match: "anticholinergic", Warning: "May cause confusion; monitor cognitive function"},
	{Match: "nsaid", Warning: "Increased GI and cardiovascular risks"},
	{Match: "ibuprofen", Warning: "Monitor kidney function and blood pressure"},
	{Match: "diuretic", Warning: "Monitor for dehydration and electrolyte imbalances"},
}

// WeightBasedDose returns pediatric mg/kg dosing guidance for drugs with a
// weight rule. The boolean is false when no rule matches.
func (v *Verifier) WeightBasedDose(drugName string, weightKg float64) (string, bool) {
	if weightKg <= 0 {
		return "", false
	}

	rules := v.store.GetWeightRules()
	if len(rules) == 0 {
		rules = defaultWeightRules
	}

	lower := strings.ToLower(drugName)
	for _, rule := range rules {
		if strings.Contains(lower, rule.Match) {
			dose := weightKg * rule.DosePerKg
			maxDose := weightKg * rule.MaxPerKg
			return fmt.Sprintf("%.1fmg %s (max daily: %.1fmg)", dose, rule.Frequency, maxDose), true
		}
	}

	return "", false
}

var defaultWeightRules = []entities.WeightRule{
	{Match: "paracetamol", DosePerKg: 15, Frequency: "q6h", MaxPerKg: 60},
	{Match: "acetaminophen", DosePerKg: 15, Frequency: "q6h", MaxPerKg: 60},
	{Match: "ibuprofen", DosePerKg: 10, Frequency: "q6-8h", MaxPerKg: 40},
	{Match: "amoxicillin", DosePerKg: 25, Frequency: "q8h", MaxPerKg: 90},
}
