// Package validation guards the API boundary: user input sanitization and
// reference data integrity checks before a swap.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
)

// Pre-compiled patterns, compiled once at package initialization.
var (
	// Drug names: letters, digits, spaces and the punctuation that appears
	// in real product names ("ibuprofen (if no contraindications)",
	// "co-amoxiclav", "vitamin B12 0.5mg")
	drugNameRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+'/(),%]+$`)

	// Substring checks are much cheaper than regex for these
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection patterns
		"`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:",
	}
)

const (
	maxInputLength    = 10000
	maxDrugNameLength = 100
	minAge            = 0
	maxAge            = 120
)

// InputValidatorImpl implements the interfaces.InputValidator interface.
type InputValidatorImpl struct{}

func NewInputValidator() interfaces.InputValidator {
	return &InputValidatorImpl{}
}

// ValidateInput checks free prescription text. Length is bounded well
// above any realistic prescription; dangerous substrings are rejected.
func (v *InputValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) > maxInputLength {
		return fmt.Errorf("input too long: maximum %d characters", maxInputLength)
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateAge parses a patient age and checks the supported range.
func (v *InputValidatorImpl) ValidateAge(input string) (int, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return -1, fmt.Errorf("age cannot be empty")
	}

	age, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1, fmt.Errorf("age must be a whole number")
	}

	if age < minAge || age > maxAge {
		return -1, fmt.Errorf("age must be between %d and %d", minAge, maxAge)
	}

	return age, nil
}

// ValidateDrugName checks a single drug name field.
func (v *InputValidatorImpl) ValidateDrugName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("drug name cannot be empty")
	}

	if len(trimmed) > maxDrugNameLength {
		return fmt.Errorf("drug name too long: maximum %d characters", maxDrugNameLength)
	}

	lower := strings.ToLower(trimmed)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("drug name contains potentially dangerous content")
		}
	}

	if !drugNameRegex.MatchString(trimmed) {
		return fmt.Errorf("drug name contains invalid characters")
	}

	return nil
}

// ValidateReferenceSet performs integrity checks on a freshly loaded data
// generation before the container swaps it in.
func (v *InputValidatorImpl) ValidateReferenceSet(set *interfaces.ReferenceSet) error {
	if set == nil {
		return fmt.Errorf("reference set is nil")
	}

	if len(set.Interactions) == 0 {
		return fmt.Errorf("no interactions loaded")
	}
	if len(set.Dosages) == 0 {
		return fmt.Errorf("no dosage ranges loaded")
	}

	blankNames := 0
	missingSeverity := 0
	for _, row := range set.Interactions {
		if strings.TrimSpace(row.DrugAName) == "" || strings.TrimSpace(row.DrugBName) == "" {
			blankNames++
		}
		switch row.Severity {
		case "low", "medium", "high":
		default:
			missingSeverity++
		}
	}
	if blankNames > 0 {
		return fmt.Errorf("%d interaction rows have blank drug names", blankNames)
	}
	if missingSeverity > 0 {
		logging.Error("Interaction rows with unclassified severity after load",
			"count", missingSeverity)
		return fmt.Errorf("%d interaction rows have no valid severity", missingSeverity)
	}

	for key, rng := range set.Dosages {
		if rng.MinMg < 0 || rng.MaxMg <= 0 || rng.MinMg > rng.MaxMg {
			return fmt.Errorf("dosage range for %q is invalid: min %g, max %g", key, rng.MinMg, rng.MaxMg)
		}
		if rng.MaxDailyMg > 0 && rng.MaxDailyMg < rng.MaxMg {
			return fmt.Errorf("dosage range for %q has max daily %g below single-dose max %g", key, rng.MaxDailyMg, rng.MaxMg)
		}
	}

	if len(set.AgeBands) > 0 {
		if err := checkBandCoverage(set); err != nil {
			return err
		}
	}

	return nil
}

// checkBandCoverage verifies the band table is a partition of [0,120].
func checkBandCoverage(set *interfaces.ReferenceSet) error {
	covered := make([]bool, maxAge+1)
	for _, band := range set.AgeBands {
		if band.MinAge < minAge || band.MaxAge > maxAge || band.MinAge > band.MaxAge {
			return fmt.Errorf("age band %q has invalid range [%d,%d]", band.Name, band.MinAge, band.MaxAge)
		}
		if band.Factor <= 0 {
			return fmt.Errorf("age band %q has non-positive factor %g", band.Name, band.Factor)
		}
		for age := band.MinAge; age <= band.MaxAge; age++ {
			if covered[age] {
				return fmt.Errorf("age %d covered by multiple bands", age)
			}
			covered[age] = true
		}
	}
	for age, ok := range covered {
		if !ok {
			return fmt.Errorf("age %d not covered by any band", age)
		}
	}
	return nil
}

// hasExcessiveRepetition checks for potential DoS patterns with the same
// character repeated more than 10 times consecutively.
func hasExcessiveRepetition(input string) bool {
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
