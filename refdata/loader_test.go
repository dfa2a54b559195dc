package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rxguard/prescription-api/refdata/entities"
)

func TestLoadAllBootstrapsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(dir, nil)

	set, err := loader.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	if len(set.Interactions) != len(sampleInteractions) {
		t.Errorf("interactions = %d, want %d", len(set.Interactions), len(sampleInteractions))
	}
	if len(set.Dosages) != len(sampleDosages) {
		t.Errorf("dosages = %d, want %d", len(set.Dosages), len(sampleDosages))
	}
	if len(set.AgeBands) != 4 {
		t.Errorf("age bands = %d, want 4", len(set.AgeBands))
	}

	// The sample files must now be on disk for the next start
	for _, name := range []string{interactionsFile, dosagesFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}
}

func TestLoadInteractionsSkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	csvData := "drug_a_name,drug_a_code,drug_b_name,drug_b_code,description,severity,sources\n" +
		"warfarin,11289,aspirin,1191,Increased bleeding risk,high,DrugBank;Lexicomp\n" +
		"short,row\n" +
		",123,aspirin,1191,blank first name,low,DrugBank\n" +
		"metformin,6809,ibuprofen,5640,Kidney effects,medium,DrugBank\n"
	writeTestFile(t, dir, interactionsFile, csvData)
	writeTestDosages(t, dir)

	set, err := NewLoader(dir, nil).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	if len(set.Interactions) != 2 {
		t.Fatalf("interactions = %d, want 2", len(set.Interactions))
	}
	first := set.Interactions[0]
	if first.DrugAName != "warfarin" || first.Severity != entities.SeverityHigh {
		t.Errorf("unexpected first row %+v", first)
	}
	if len(first.Sources) != 2 {
		t.Errorf("sources = %v, want 2", first.Sources)
	}
}

func TestLoadInteractionsBackfillsSeverity(t *testing.T) {
	dir := t.TempDir()
	csvData := "drug_a_name,drug_a_code,drug_b_name,drug_b_code,description,severity,sources\n" +
		"warfarin,11289,aspirin,1191,\"Contraindicated, may cause fatal hemorrhage\",,DrugBank\n" +
		"drugx,1,drugy,2,Minor interaction with minimal clinical significance,,Clinical\n" +
		"druga,3,drugb,4,Something unusual,bogus,Clinical\n"
	writeTestFile(t, dir, interactionsFile, csvData)
	writeTestDosages(t, dir)

	set, err := NewLoader(dir, nil).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	if got := set.Interactions[0].Severity; got != entities.SeverityHigh {
		t.Errorf("row 0 severity = %s, want high", got)
	}
	if got := set.Interactions[1].Severity; got != entities.SeverityLow {
		t.Errorf("row 1 severity = %s, want low", got)
	}
	// Unrecognized labels are treated as unlabeled and reclassified
	if got := set.Interactions[2].Severity; got != entities.SeverityMedium {
		t.Errorf("row 2 severity = %s, want medium", got)
	}
}

func TestLoadInteractionsLatin1(t *testing.T) {
	dir := t.TempDir()
	// 0xE9 is é in ISO-8859-1 and invalid as a standalone UTF-8 byte
	csvData := []byte("warfarin,11289,aspirin,1191,Risque \xe9lev\xe9 de saignement,high,DrugBank\n")
	if err := os.WriteFile(filepath.Join(dir, interactionsFile), csvData, 0o640); err != nil {
		t.Fatal(err)
	}
	writeTestDosages(t, dir)

	set, err := NewLoader(dir, nil).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(set.Interactions) != 1 {
		t.Fatalf("interactions = %d, want 1", len(set.Interactions))
	}
	if got := set.Interactions[0].Description; got != "Risque élevé de saignement" {
		t.Errorf("description = %q, transcoding failed", got)
	}
}

func TestLoadDosagesSkipsInvalidEntries(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, interactionsFile, "a,1,b,2,text,low,src\n")
	dosages := `{
		"Paracetamol": {"min": 325, "max": 1000, "max_daily": 4000, "frequency": "q4-6h"},
		"broken": {"min": 500, "max": 100},
		"": {"min": 1, "max": 2}
	}`
	writeTestFile(t, dir, dosagesFile, dosages)

	set, err := NewLoader(dir, nil).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	if len(set.Dosages) != 1 {
		t.Fatalf("dosages = %d, want 1", len(set.Dosages))
	}
	rng, ok := set.Dosages["paracetamol"]
	if !ok {
		t.Fatal("expected lowercase paracetamol key")
	}
	if rng.MinMg != 325 || rng.MaxMg != 1000 || rng.MaxDailyMg != 4000 {
		t.Errorf("unexpected range %+v", rng)
	}
}

func TestLoadRulesPartialDocument(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, interactionsFile, "a,1,b,2,text,low,src\n")
	writeTestDosages(t, dir)
	rules := `{
		"elderly_warnings": [{"match": "opioid", "warning": "Respiratory depression risk"}]
	}`
	writeTestFile(t, dir, rulesFile, rules)

	set, err := NewLoader(dir, nil).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	if len(set.Elderly) != 1 || set.Elderly[0].Match != "opioid" {
		t.Errorf("elderly warnings = %+v, want the loaded rule", set.Elderly)
	}
	// Unspecified sections keep their defaults
	if len(set.AgeBands) != 4 {
		t.Errorf("age bands = %d, want built-in 4", len(set.AgeBands))
	}
	if len(set.WeightRules) == 0 {
		t.Error("weight rules should fall back to defaults")
	}
}

func TestLoadRulesRejectsBrokenBandTable(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, interactionsFile, "a,1,b,2,text,low,src\n")
	writeTestDosages(t, dir)

	tests := []struct {
		name  string
		bands string
	}{
		{
			name: "gap",
			bands: `[{"name":"young","min_age":0,"max_age":50,"factor":1.0},
				{"name":"old","min_age":60,"max_age":120,"factor":0.75}]`,
		},
		{
			name: "overlap",
			bands: `[{"name":"young","min_age":0,"max_age":70,"factor":1.0},
				{"name":"old","min_age":60,"max_age":120,"factor":0.75}]`,
		},
		{
			name: "zero factor",
			bands: `[{"name":"all","min_age":0,"max_age":120,"factor":0}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeTestFile(t, dir, rulesFile, `{"age_bands": `+tt.bands+`}`)
			if _, err := NewLoader(dir, nil).LoadAll(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestValidateAgeBandsAcceptsDefaults(t *testing.T) {
	if err := validateAgeBands(defaultRules().AgeBands); err != nil {
		t.Errorf("built-in band table must validate: %v", err)
	}
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o640); err != nil {
		t.Fatal(err)
	}
}

func writeTestDosages(t *testing.T, dir string) {
	t.Helper()
	writeTestFile(t, dir, dosagesFile, `{"paracetamol": {"min": 325, "max": 1000, "max_daily": 4000, "frequency": "q4-6h"}}`)
}
