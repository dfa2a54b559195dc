package refdata

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rxguard/prescription-api/refdata/entities"
)

// sampleInteractions is the bootstrap knowledge base, written to disk when
// no interactions file exists.
var sampleInteractions = []entities.InteractionRow{
	{
		DrugAName: "warfarin", DrugACode: "11289", DrugBName: "aspirin", DrugBCode: "1191",
		Description: "Increased risk of bleeding. Monitor INR closely and adjust warfarin dose as needed.",
		Severity:    entities.SeverityHigh, Sources: []string{"DrugBank", "Lexicomp"},
	},
	{
		DrugAName: "metformin", DrugACode: "6809", DrugBName: "ibuprofen", DrugBCode: "5640",
		Description: "NSAIDs may reduce kidney function and affect metformin elimination.",
		Severity:    entities.SeverityMedium, Sources: []string{"DrugBank"},
	},
	{
		DrugAName: "lisinopril", DrugACode: "29046", DrugBName: "ibuprofen", DrugBCode: "5640",
		Description: "NSAIDs may reduce the antihypertensive effect of ACE inhibitors.",
		Severity:    entities.SeverityMedium, Sources: []string{"DrugBank", "Clinical"},
	},
	{
		DrugAName: "digoxin", DrugACode: "3407", DrugBName: "furosemide", DrugBCode: "4603",
		Description: "Furosemide may increase digoxin levels by causing hypokalemia.",
		Severity:    entities.SeverityHigh, Sources: []string{"Lexicomp"},
	},
	{
		DrugAName: "simvastatin", DrugACode: "36567", DrugBName: "amlodipine", DrugBCode: "17767",
		Description: "Amlodipine may increase simvastatin levels. Consider dose reduction.",
		Severity:    entities.SeverityMedium, Sources: []string{"FDA", "DrugBank"},
	},
	{
		DrugAName: "warfarin", DrugACode: "11289", DrugBName: "amoxicillin", DrugBCode: "723",
		Description: "Antibiotics may alter gut flora and affect warfarin metabolism.",
		Severity:    entities.SeverityMedium, Sources: []string{"Clinical"},
	},
	{
		DrugAName: "tramadol", DrugACode: "10689", DrugBName: "sertraline", DrugBCode: "36437",
		Description: "Increased risk of serotonin syndrome. Monitor for symptoms.",
		Severity:    entities.SeverityHigh, Sources: []string{"FDA", "DrugBank"},
	},
	{
		DrugAName: "atorvastatin", DrugACode: "83367", DrugBName: "clarithromycin", DrugBCode: "21212",
		Description: "Clarithromycin may significantly increase statin levels and risk of myopathy.",
		Severity:    entities.SeverityHigh, Sources: []string{"FDA", "Lexicomp"},
	},
}

// sampleDosages holds adult reference ranges for common drugs, in mg.
var sampleDosages = map[string]dosageEntry{
	"paracetamol":   {MinMg: 325, MaxMg: 1000, MaxDailyMg: 4000, Frequency: "q4-6h"},
	"acetaminophen": {MinMg: 325, MaxMg: 1000, MaxDailyMg: 4000, Frequency: "q4-6h"},
	"ibuprofen":     {MinMg: 200, MaxMg: 800, MaxDailyMg: 3200, Frequency: "q6-8h"},
	"aspirin":       {MinMg: 81, MaxMg: 650, MaxDailyMg: 4000, Frequency: "q4-6h"},
	"metformin":     {MinMg: 500, MaxMg: 1000, MaxDailyMg: 2500, Frequency: "bid"},
	"lisinopril":    {MinMg: 2.5, MaxMg: 40, MaxDailyMg: 40, Frequency: "daily"},
	"amlodipine":    {MinMg: 2.5, MaxMg: 10, MaxDailyMg: 10, Frequency: "daily"},
	"simvastatin":   {MinMg: 5, MaxMg: 80, MaxDailyMg: 80, Frequency: "daily"},
	"warfarin":      {MinMg: 1, MaxMg: 10, MaxDailyMg: 15, Frequency: "daily"},
	"digoxin":       {MinMg: 0.125, MaxMg: 0.5, MaxDailyMg: 0.5, Frequency: "daily"},
	"furosemide":    {MinMg: 20, MaxMg: 80, MaxDailyMg: 600, Frequency: "daily"},
	"amoxicillin":   {MinMg: 250, MaxMg: 1000, MaxDailyMg: 3000, Frequency: "tid"},
}

func defaultRules() *rulesDocument {
	return &rulesDocument{
		AgeBands: []entities.AgeBand{
			{Name: entities.BandPediatric, MinAge: 0, MaxAge: 12, Factor: 0.5, SpecialRules: true},
			{Name: entities.BandAdolescent, MinAge: 13, MaxAge: 17, Factor: 0.8, SpecialRules: true},
			{Name: entities.BandAdult, MinAge: 18, MaxAge: 64, Factor: 1.0, SpecialRules: false},
			{Name: entities.BandElderly, MinAge: 65, MaxAge: 120, Factor: 0.75, SpecialRules: true},
		},
		PediatricWarnings: []entities.WarningRule{
			{Match: "aspirin", Warning: "Avoid in children under 16 due to Reye's syndrome risk"},
			{Match: "ibuprofen", Warning: "Not recommended for infants under 6 months"},
			{Match: "paracetamol", Warning: "Dose based on weight: 10-15mg/kg every 4-6 hours"},
			{Match: "acetaminophen", Warning: "Dose based on weight: 10-15mg/kg every 4-6 hours"},
			{Match: "codeine", Warning: "Contraindicated in children under 12 years"},
			{Match: "tramadol", Warning: "Not recommended for children under 12 years"},
		},
		ElderlyWarnings: []entities.WarningRule{
			{Match: "digoxin", Warning: "Increased risk of toxicity; monitor levels closely"},
			{Match: "warfarin", Warning: "Higher bleeding risk; more frequent INR monitoring"},
			{Match: "benzodiazepine", Warning: "Increased fall risk; consider shorter-acting alternatives"},
			{Match: "anticholinergic", Warning: "May cause confusion; monitor cognitive function"},
			{Match: "nsaid", Warning: "Increased GI and cardiovascular risks"},
			{Match: "ibuprofen", Warning: "Monitor kidney function and blood pressure"},
			{Match: "diuretic", Warning: "Monitor for dehydration and electrolyte imbalances"},
		},
		WeightRules: []entities.WeightRule{
			{Match: "paracetamol", DosePerKg: 15, Frequency: "q6h", MaxPerKg: 60},
			{Match: "acetaminophen", DosePerKg: 15, Frequency: "q6h", MaxPerKg: 60},
			{Match: "ibuprofen", DosePerKg: 10, Frequency: "q6-8h", MaxPerKg: 40},
			{Match: "amoxicillin", DosePerKg: 25, Frequency: "q8h", MaxPerKg: 90},
		},
		Substitutes: []entities.SubstituteRule{
			{Match: "ibuprofen", Substitutes: []string{"naproxen", "diclofenac", "celecoxib"}},
			{Match: "paracetamol", Substitutes: []string{"ibuprofen (if no contraindications)"}},
			{Match: "acetaminophen", Substitutes: []string{"ibuprofen (if no contraindications)"}},
			{Match: "simvastatin", Substitutes: []string{"atorvastatin", "rosuvastatin"}},
			{Match: "lisinopril", Substitutes: []string{"enalapril", "ramipril", "losartan"}},
			{Match: "amlodipine", Substitutes: []string{"nifedipine", "felodipine", "verapamil"}},
		},
	}
}

func writeSampleInteractions(path string) error {
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"drug_a_name", "drug_a_code", "drug_b_name", "drug_b_code", "description", "severity", "sources"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing %s header: %w", path, err)
	}

	for _, row := range sampleInteractions {
		record := []string{
			row.DrugAName, row.DrugACode, row.DrugBName, row.DrugBCode,
			row.Description, string(row.Severity), strings.Join(row.Sources, ";"),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing %s row: %w", path, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSampleDosages(path string) error {
	raw, err := json.MarshalIndent(sampleDosages, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sample dosages: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), raw, 0o640); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
