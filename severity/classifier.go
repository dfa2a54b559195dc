// Package severity classifies free-text interaction descriptions into a
// three-level clinical risk using keyword counting and pattern escalation.
package severity

import (
	"regexp"
	"strings"

	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/refdata/entities"
)

// Built-in keyword vocabularies. Loaded rules data may override them via
// NewClassifierWithKeywords.
var (
	defaultHighKeywords = []string{
		"contraindicated", "dangerous", "fatal", "death", "life-threatening",
		"severe", "serious", "emergency", "hospitalization", "toxic",
		"poisoning", "overdose", "respiratory depression", "cardiac arrest",
		"serotonin syndrome", "bleeding", "hemorrhage", "stroke", "seizure",
	}

	defaultMediumKeywords = []string{
		"monitor", "caution", "adjust", "reduce", "increase", "modify",
		"careful", "watch", "observe", "check", "avoid", "consider",
		"may increase", "may decrease", "potential", "risk", "interaction",
	}

	defaultLowKeywords = []string{
		"minor", "minimal", "slight", "theoretical", "unlikely",
		"possible", "rare", "uncommon", "mild", "moderate interaction",
	}
)

// criticalPatterns escalate the high count by two per match; a single hit
// is enough to force a high classification on its own.
var criticalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:do not|never|avoid)\b.*\b(?:combine|use together|concurrent)\b`),
	regexp.MustCompile(`\bcontraindicated\b`),
	regexp.MustCompile(`\b(?:severe|serious|life-threatening)\b.*\b(?:reaction|effect|outcome)\b`),
	regexp.MustCompile(`\b(?:death|fatal|mortality)\b`),
	regexp.MustCompile(`\bemergency\b.*\brequired\b`),
}

// warningPatterns add one to the medium count per match.
var warningPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bmonitor\b.*\b(?:closely|carefully|frequently)\b`),
	regexp.MustCompile(`\b(?:adjust|reduce|modify)\b.*\bdose\b`),
	regexp.MustCompile(`\bmay (?:increase|decrease|affect)\b`),
	regexp.MustCompile(`\bcaution\b.*\brequired\b`),
}

// Classifier scores interaction descriptions against its keyword
// vocabularies. The zero value is not usable; construct with NewClassifier.
type Classifier struct {
	highKeywords   []string
	mediumKeywords []string
	lowKeywords    []string
}

// NewClassifier returns a classifier with the built-in vocabularies.
func NewClassifier() *Classifier {
	return &Classifier{
		highKeywords:   defaultHighKeywords,
		mediumKeywords: defaultMediumKeywords,
		lowKeywords:    defaultLowKeywords,
	}
}

// NewClassifierWithKeywords returns a classifier using the given
// vocabularies. Empty slices fall back to the built-in sets tier by tier.
func NewClassifierWithKeywords(high, medium, low []string) *Classifier {
	c := NewClassifier()
	if len(high) > 0 {
		c.highKeywords = high
	}
	if len(medium) > 0 {
		c.mediumKeywords = medium
	}
	if len(low) > 0 {
		c.lowKeywords = low
	}
	return c
}

// Classify maps a description to low, medium or high. Empty or blank input
// returns medium: an interaction known to exist but not described must not
// score below one merely phrased mildly.
func (c *Classifier) Classify(text string) entities.Severity {
	if strings.TrimSpace(text) == "" {
		return entities.SeverityMedium
	}

	lower := strings.ToLower(text)

	highCount := countKeywords(lower, c.highKeywords)
	mediumCount := countKeywords(lower, c.mediumKeywords)
	lowCount := countKeywords(lower, c.lowKeywords)

	for _, pattern := range criticalPatterns {
		if pattern.MatchString(lower) {
			highCount += 2
		}
	}
	for _, pattern := range warningPatterns {
		if pattern.MatchString(lower) {
			mediumCount++
		}
	}

	severity := decide(highCount, mediumCount, lowCount)
	logging.Debug("Classified interaction severity",
		"severity", severity, "high", highCount, "medium", mediumCount, "low", lowCount)
	return severity
}

// countKeywords counts vocabulary entries present as substrings; each
// keyword contributes at most one regardless of repetition.
func countKeywords(lower string, keywords []string) int {
	count := 0
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			count++
		}
	}
	return count
}

// decide applies the tier counts in strict precedence order. The branches
// are ordered, not disjoint; reordering them changes results.
func decide(highCount, mediumCount, lowCount int) entities.Severity {
	switch {
	case highCount >= 2:
		return entities.SeverityHigh
	case highCount == 1 && mediumCount >= 1:
		return entities.SeverityHigh
	case lowCount >= 2 && highCount == 0:
		return entities.SeverityLow
	case mediumCount >= 2:
		return entities.SeverityMedium
	case highCount >= 1:
		return entities.SeverityHigh
	default:
		return entities.SeverityMedium
	}
}

// ClassifyRows fills in the severity of rows that carry none. Rows with an
// explicit severity are left untouched.
func (c *Classifier) ClassifyRows(rows []entities.InteractionRow) int {
	filled := 0
	for i := range rows {
		if rows[i].Severity != "" {
			continue
		}
		rows[i].Severity = c.Classify(rows[i].Description)
		filled++
	}
	return filled
}
