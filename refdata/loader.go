// Package refdata loads the clinical reference data set: the interaction
// knowledge base, standard dosage ranges and age adjustment rules.
package refdata

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/refdata/entities"
	"github.com/rxguard/prescription-api/severity"
)

const (
	interactionsFile = "interactions.csv"
	dosagesFile      = "dosages.json"
	rulesFile        = "rules.json"

	interactionColumns = 7
)

// Loader reads the reference data set from a directory. Missing files are
// bootstrapped with the built-in samples so a fresh checkout serves real
// responses immediately.
type Loader struct {
	dataDir    string
	classifier *severity.Classifier
}

var _ interfaces.ReferenceLoader = (*Loader)(nil)

func NewLoader(dataDir string, classifier *severity.Classifier) *Loader {
	if classifier == nil {
		classifier = severity.NewClassifier()
	}
	return &Loader{dataDir: dataDir, classifier: classifier}
}

// LoadAll reads every reference file and assembles the full set. The rules
// file is optional; interactions and dosages are bootstrapped when absent.
func (l *Loader) LoadAll() (*interfaces.ReferenceSet, error) {
	if err := l.bootstrapMissing(); err != nil {
		return nil, err
	}

	interactions, err := l.loadInteractions()
	if err != nil {
		return nil, fmt.Errorf("loading interactions: %w", err)
	}

	dosages, err := l.loadDosages()
	if err != nil {
		return nil, fmt.Errorf("loading dosages: %w", err)
	}

	rules, err := l.loadRules()
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	set := &interfaces.ReferenceSet{
		Interactions: interactions,
		Dosages:      dosages,
		AgeBands:     rules.AgeBands,
		Pediatric:    rules.PediatricWarnings,
		Elderly:      rules.ElderlyWarnings,
		WeightRules:  rules.WeightRules,
		Substitutes:  rules.Substitutes,
	}

	logging.Info("Reference data loaded",
		"interactions", len(set.Interactions),
		"dosages", len(set.Dosages),
		"age_bands", len(set.AgeBands))
	return set, nil
}

// bootstrapMissing writes the built-in sample files for anything absent.
func (l *Loader) bootstrapMissing() error {
	if err := os.MkdirAll(l.dataDir, 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(l.dataDir, interactionsFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.Warn("Interactions file missing, writing sample data", "path", path)
		if err := writeSampleInteractions(path); err != nil {
			return err
		}
	}

	path = filepath.Join(l.dataDir, dosagesFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.Warn("Dosages file missing, writing sample data", "path", path)
		if err := writeSampleDosages(path); err != nil {
			return err
		}
	}

	return nil
}

// loadInteractions parses the knowledge-base CSV. The expected columns are
// drug_a_name, drug_a_code, drug_b_name, drug_b_code, description,
// severity, sources. Malformed rows are counted and skipped, never fatal.
func (l *Loader) loadInteractions() ([]entities.InteractionRow, error) {
	path := filepath.Join(l.dataDir, interactionsFile)
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	// Upstream interaction exports are sometimes Latin-1 encoded
	var reader io.Reader
	if utf8.Valid(raw) {
		reader = bytes.NewReader(raw)
	} else {
		reader = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(raw))
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Tolerate a header row by detecting the drug_a_name column label
	start := 0
	if strings.EqualFold(strings.TrimSpace(records[0][0]), "drug_a_name") {
		start = 1
	}

	var rows []entities.InteractionRow
	skippedMissingColumns := 0
	skippedBlankNames := 0

	for _, record := range records[start:] {
		if len(record) < interactionColumns {
			skippedMissingColumns++
			continue
		}

		row := entities.InteractionRow{
			DrugAName:   strings.TrimSpace(record[0]),
			DrugACode:   strings.TrimSpace(record[1]),
			DrugBName:   strings.TrimSpace(record[2]),
			DrugBCode:   strings.TrimSpace(record[3]),
			Description: strings.TrimSpace(record[4]),
			Severity:    normalizeSeverity(record[5]),
			Sources:     splitSources(record[6]),
		}

		if row.DrugAName == "" || row.DrugBName == "" {
			skippedBlankNames++
			continue
		}

		rows = append(rows, row)
	}

	if skippedMissingColumns > 0 || skippedBlankNames > 0 {
		logging.Info("interactions.csv skip statistics",
			"missing_columns", skippedMissingColumns,
			"blank_names", skippedBlankNames,
			"total_rows", len(records)-start,
			"rows_parsed", len(rows))
	}

	// Rows exported without a severity get one classified from their text
	if filled := l.classifier.ClassifyRows(rows); filled > 0 {
		logging.Info("Classified severity for unlabeled rows", "count", filled)
	}

	return rows, nil
}

func normalizeSeverity(raw string) entities.Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return entities.SeverityHigh
	case "medium":
		return entities.SeverityMedium
	case "low":
		return entities.SeverityLow
	default:
		return ""
	}
}

func splitSources(raw string) []string {
	var sources []string
	for _, source := range strings.Split(raw, ";") {
		if trimmed := strings.TrimSpace(source); trimmed != "" {
			sources = append(sources, trimmed)
		}
	}
	return sources
}

// dosageEntry is the on-disk shape of one dosages.json value.
type dosageEntry struct {
	MinMg      float64 `json:"min"`
	MaxMg      float64 `json:"max"`
	MaxDailyMg float64 `json:"max_daily"`
	Frequency  string  `json:"frequency"`
}

func (l *Loader) loadDosages() (map[string]entities.StandardRange, error) {
	path := filepath.Join(l.dataDir, dosagesFile)
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var entries map[string]dosageEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	dosages := make(map[string]entities.StandardRange, len(entries))
	skippedInvalid := 0
	for name, entry := range entries {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || entry.MaxMg <= 0 || entry.MinMg < 0 || entry.MinMg > entry.MaxMg {
			skippedInvalid++
			continue
		}
		dosages[key] = entities.StandardRange{
			DrugKey:    key,
			MinMg:      entry.MinMg,
			MaxMg:      entry.MaxMg,
			MaxDailyMg: entry.MaxDailyMg,
			Frequency:  entry.Frequency,
		}
	}

	if skippedInvalid > 0 {
		logging.Info("dosages.json skip statistics",
			"invalid_entries", skippedInvalid, "entries_parsed", len(dosages))
	}

	return dosages, nil
}

// rulesDocument is the on-disk shape of rules.json. Every section is
// optional; empty sections fall back to the built-in defaults.
type rulesDocument struct {
	AgeBands          []entities.AgeBand        `json:"age_bands"`
	PediatricWarnings []entities.WarningRule    `json:"pediatric_warnings"`
	ElderlyWarnings   []entities.WarningRule    `json:"elderly_warnings"`
	WeightRules       []entities.WeightRule     `json:"weight_rules"`
	Substitutes       []entities.SubstituteRule `json:"substitutes"`
}

func (l *Loader) loadRules() (*rulesDocument, error) {
	path := filepath.Join(l.dataDir, rulesFile)
	raw, err := os.ReadFile(filepath.Clean(path))
	if os.IsNotExist(err) {
		logging.Info("No rules file found, using built-in rules", "path", path)
		return defaultRules(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc rulesDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	defaults := defaultRules()
	if len(doc.AgeBands) == 0 {
		doc.AgeBands = defaults.AgeBands
	} else if err := validateAgeBands(doc.AgeBands); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	if len(doc.PediatricWarnings) == 0 {
		doc.PediatricWarnings = defaults.PediatricWarnings
	}
	if len(doc.ElderlyWarnings) == 0 {
		doc.ElderlyWarnings = defaults.ElderlyWarnings
	}
	if len(doc.WeightRules) == 0 {
		doc.WeightRules = defaults.WeightRules
	}
	if len(doc.Substitutes) == 0 {
		doc.Substitutes = defaults.Substitutes
	}

	return &doc, nil
}

// validateAgeBands rejects band tables that leave gaps or overlap, which
// would make age classification order-dependent.
func validateAgeBands(bands []entities.AgeBand) error {
	covered := make([]bool, 121)
	for _, band := range bands {
		if band.MinAge < 0 || band.MaxAge > 120 || band.MinAge > band.MaxAge {
			return fmt.Errorf("band %q has invalid range [%d,%d]", band.Name, band.MinAge, band.MaxAge)
		}
		if band.Factor <= 0 {
			return fmt.Errorf("band %q has non-positive factor %g", band.Name, band.Factor)
		}
		for age := band.MinAge; age <= band.MaxAge; age++ {
			if covered[age] {
				return fmt.Errorf("age %d covered by more than one band", age)
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
