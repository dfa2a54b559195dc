// Package dosing implements dose string parsing and age-adjusted dosage
// verification for prescription line items.
package dosing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rxguard/prescription-api/refdata/entities"
)

// Dose patterns are tried in order; the first match in the text wins.
var dosePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mg|mcg|g|ml|units?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(milligrams?|micrograms?|grams?|milliliters?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(tablet|cap|capsule)s?`),
}

// unitAliases maps long and plural unit spellings to the canonical short form.
var unitAliases = map[string]entities.DoseUnit{
	"mg":          entities.UnitMg,
	"milligram":   entities.UnitMg,
	"milligrams":  entities.UnitMg,
	"mcg":         entities.UnitMcg,
	"microgram":   entities.UnitMcg,
	"micrograms":  entities.UnitMcg,
	"g":           entities.UnitG,
	"gram":        entities.UnitG,
	"grams":       entities.UnitG,
	"ml":          entities.UnitMl,
	"milliliter":  entities.UnitMl,
	"milliliters": entities.UnitMl,
	"unit":        entities.UnitUnit,
	"units":       entities.UnitUnit,
	"tablet":      entities.UnitTablet,
	"cap":         entities.UnitCapsule,
	"capsule":     entities.UnitCapsule,
}

// ParseDose extracts the first numeric value with a recognized unit token
// from a free-text dose string. The boolean is false when nothing matched;
// parsing never fails otherwise.
func ParseDose(text string) (entities.ParsedDose, bool) {
	if strings.TrimSpace(text) == "" {
		return entities.ParsedDose{}, false
	}

	for _, pattern := range dosePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}

		unit, ok := unitAliases[strings.ToLower(match[2])]
		if !ok {
			continue
		}

		return entities.ParsedDose{
			Value:    value,
			Unit:     unit,
			Original: text,
		}, true
	}

	return entities.ParsedDose{}, false
}

// frequencyEntry couples a recognized frequency pattern with its meaning.
// Patterns are matched as case-insensitive substrings in table order.
type frequencyEntry struct {
	pattern       string
	timesPerDay   int
	intervalHours int
}

var frequencyTable = []frequencyEntry{
	{"once daily", 1, 24},
	{"twice daily", 2, 12},
	{"three times daily", 3, 8},
	{"four times daily", 4, 6},
	{"bid", 2, 12},
	{"tid", 3, 8},
	{"qid", 4, 6},
	{"qd", 1, 24},
	{"q4h", 6, 4},
	{"q6h", 4, 6},
	{"q8h", 3, 8},
	{"q12h", 2, 12},
}

// ParseFrequency interprets a dosing frequency string against the fixed
// vocabulary. Unrecognized text yields Valid=false with the original text
// preserved; choosing a default for a missing frequency is the verifier's
// call, not the parser's.
func ParseFrequency(text string) entities.Frequency {
	if strings.TrimSpace(text) == "" {
		return entities.Frequency{
			Valid:    false,
			Original: text,
			Reason:   "No frequency specified",
		}
	}

	lower := strings.ToLower(strings.TrimSpace(text))

	for _, entry := range frequencyTable {
		if strings.Contains(lower, entry.pattern) {
			return entities.Frequency{
				Valid:         true,
				Standardized:  entry.pattern,
				TimesPerDay:   entry.timesPerDay,
				IntervalHours: entry.intervalHours,
				Original:      text,
			}
		}
	}

	return entities.Frequency{
		Valid:    false,
		Original: text,
		Reason:   "Unrecognized frequency pattern: " + text,
	}
}
