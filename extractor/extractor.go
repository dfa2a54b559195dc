// Package extractor pulls drug mentions with their dose, frequency and
// route out of free prescription text using rule-based matching.
package extractor

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/refdata/entities"
)

// Entities closer than this many characters are grouped into one
// prescription line item.
const groupingDistance = 50

type label string

const (
	labelDrug      label = "drug"
	labelDose      label = "dose"
	labelFrequency label = "frequency"
	labelRoute     label = "route"
)

// span is one labeled match with its position in the source text.
type span struct {
	kind  label
	start int
	end   int
	text  string
}

var drugPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[A-Z][a-z]+(?:cillin|mycin|prazole|olol|pine|zole|statin|fenac|coxib)\b`),
	regexp.MustCompile(`(?i)\b(?:aspirin|ibuprofen|acetaminophen|paracetamol|morphine|codeine|tramadol)\b`),
	regexp.MustCompile(`(?i)\b(?:metformin|insulin|warfarin|heparin|digoxin|furosemide|lisinopril)\b`),
	regexp.MustCompile(`(?i)\b(?:amoxicillin|azithromycin|ciprofloxacin|doxycycline|penicillin)\b`),
}

// A capitalized word directly before a dose is very likely a drug name.
// The dose itself is matched by its own pattern, so only the first capture
// group contributes a span.
var drugBeforeDosePattern = regexp.MustCompile(`(?i)\b([A-Z][a-z]{3,15})\s+(?:\d+\s*mg|\d+\s*ml|\d+\s*tablets?)`)

var dosePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:mg|mcg|g|ml|cc|units?|iu)\b`),
	regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:milligram|microgram|gram|milliliter)s?\b`),
}

var frequencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:once|twice|thrice|\d+\s*times?)\s+(?:daily|a\s+day|per\s+day)\b`),
	regexp.MustCompile(`(?i)\b(?:bid|tid|qid|qd|qhs|prn|q\d+h)\b`),
	regexp.MustCompile(`(?i)\b(?:every|q)\s+\d+\s+(?:hours?|hrs?|h)\b`),
	regexp.MustCompile(`(?i)\b(?:morning|evening|night|bedtime)\b`),
}

var routePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:oral|po|by\s+mouth)\b`),
	regexp.MustCompile(`(?i)\b(?:iv|intravenous|intravenously)\b`),
	regexp.MustCompile(`(?i)\b(?:im|intramuscular|intramuscularly)\b`),
	regexp.MustCompile(`(?i)\b(?:topical|topically|applied)\b`),
	regexp.MustCompile(`(?i)\b(?:sublingual|sl|under\s+tongue)\b`),
}

// Extractor is a stateless rule-based entity source.
type Extractor struct{}

var _ interfaces.EntitySource = (*Extractor)(nil)

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns one entity per detected prescription line item. Spans are
// grouped by proximity; the first drug, dose and frequency of a group win,
// the last route wins and defaults to oral.
func (e *Extractor) Extract(text string) []entities.DrugEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	spans := collectSpans(text)
	if len(spans) == 0 {
		return nil
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var items []entities.DrugEntity
	for _, group := range groupSpans(spans) {
		item := entities.DrugEntity{Route: entities.DefaultRoute}
		for _, s := range group {
			value := strings.TrimSpace(s.text)
			switch s.kind {
			case labelDrug:
				if item.DrugName == "" {
					item.DrugName = cleanDrugName(value)
				}
			case labelDose:
				if item.DoseText == "" {
					item.DoseText = normalizeDose(value)
				}
			case labelFrequency:
				if item.FrequencyText == "" {
					item.FrequencyText = normalizeFrequency(value)
				}
			case labelRoute:
				item.Route = strings.ToLower(value)
			}
		}
		if item.DrugName != "" {
			items = append(items, item)
		}
	}

	logging.Info("Extracted prescription entities", "count", len(items))
	return items
}

func collectSpans(text string) []span {
	var spans []span

	appendMatches := func(kind label, patterns []*regexp.Regexp) {
		for _, pattern := range patterns {
			for _, loc := range pattern.FindAllStringIndex(text, -1) {
				spans = append(spans, span{kind: kind, start: loc[0], end: loc[1], text: text[loc[0]:loc[1]]})
			}
		}
	}

	appendMatches(labelDrug, drugPatterns)
	for _, loc := range drugBeforeDosePattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		spans = append(spans, span{kind: labelDrug, start: start, end: end, text: text[start:end]})
	}
	appendMatches(labelDose, dosePatterns)
	appendMatches(labelFrequency, frequencyPatterns)
	appendMatches(labelRoute, routePatterns)

	return spans
}

func groupSpans(spans []span) [][]span {
	var groups [][]span
	var current []span

	for _, s := range spans {
		if len(current) > 0 && s.start-current[len(current)-1].end > groupingDistance {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, s)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}

var (
	formPrefixPattern = regexp.MustCompile(`(?i)^(?:tab|tablet|cap|capsule|inj|injection)\s+`)
	formSuffixPattern = regexp.MustCompile(`(?i)\s+(?:tab|tablet|cap|capsule|inj|injection)$`)
	parentheticalPat  = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	unitTokenPattern  = regexp.MustCompile(`(?i)\b(?:mg|mcg|g|ml)\b`)

	titleCaser = cases.Title(language.English)
)

// cleanDrugName strips formulation words and parentheticals and title-cases
// the remainder.
func cleanDrugName(name string) string {
	name = formPrefixPattern.ReplaceAllString(name, "")
	name = formSuffixPattern.ReplaceAllString(name, "")
	name = parentheticalPat.ReplaceAllString(name, "")
	return titleCaser.String(strings.TrimSpace(name))
}

// normalizeDose lowercases unit tokens so "500MG" and "500mg" read the same
// downstream.
func normalizeDose(dose string) string {
	dose = unitTokenPattern.ReplaceAllStringFunc(dose, strings.ToLower)
	return strings.TrimSpace(dose)
}

// frequencyExpansions maps dosing shorthand to its spoken form. Checked in
// order as substrings of the lowered input.
var frequencyExpansions = []struct {
	abbrev string
	full   string
}{
	{"bid", "twice daily"},
	{"tid", "three times daily"},
	{"qid", "four times daily"},
	{"qd", "once daily"},
	{"qhs", "at bedtime"},
	{"prn", "as needed"},
}

func normalizeFrequency(frequency string) string {
	lower := strings.ToLower(strings.TrimSpace(frequency))
	for _, expansion := range frequencyExpansions {
		if strings.Contains(lower, expansion.abbrev) {
			return expansion.full
		}
	}
	return strings.TrimSpace(frequency)
}
