package data

import (
	"sync"
	"testing"
	"time"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/refdata/entities"
)

func testReferenceSet() *interfaces.ReferenceSet {
	return &interfaces.ReferenceSet{
		Interactions: []entities.InteractionRow{
			{
				DrugAName: "warfarin", DrugACode: "11289",
				DrugBName: "aspirin", DrugBCode: "1191",
				Description: "Increased risk of bleeding.",
				Severity:    entities.SeverityHigh,
			},
			{
				DrugAName: "metformin", DrugACode: "6809",
				DrugBName: "ibuprofen", DrugBCode: "5640",
				Description: "NSAIDs may affect metformin elimination.",
				Severity:    entities.SeverityMedium,
			},
			// Duplicate row for the same pair: the first one must win
			{
				DrugAName: "warfarin", DrugACode: "11289",
				DrugBName: "aspirin", DrugBCode: "1191",
				Description: "Duplicate row that should be ignored.",
				Severity:    entities.SeverityLow,
			},
		},
		Dosages: map[string]entities.StandardRange{
			"paracetamol": {DrugKey: "paracetamol", MinMg: 325, MaxMg: 1000, MaxDailyMg: 4000, Frequency: "q4-6h"},
			"ibuprofen":   {DrugKey: "ibuprofen", MinMg: 200, MaxMg: 800, MaxDailyMg: 3200, Frequency: "q6-8h"},
		},
	}
}

func TestLookupInteractionByCodeSymmetric(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(testReferenceSet())

	forward, okF := dc.LookupInteractionByCode("11289", "1191")
	reverse, okR := dc.LookupInteractionByCode("1191", "11289")

	if !okF || !okR {
		t.Fatal("expected to find the warfarin-aspirin row in both directions")
	}

	if forward.Description != reverse.Description || forward.Severity != reverse.Severity {
		t.Errorf("symmetric lookups disagree: %+v vs %+v", forward, reverse)
	}

	if forward.Severity != entities.SeverityHigh {
		t.Errorf("expected first stored row to win, got severity %s", forward.Severity)
	}
}

func TestLookupInteractionByCodeMiss(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(testReferenceSet())

	if _, ok := dc.LookupInteractionByCode("11289", "99999"); ok {
		t.Error("expected no row for unknown pair")
	}
	if _, ok := dc.LookupInteractionByCode("", "1191"); ok {
		t.Error("expected no row when one code is empty")
	}
}

func TestLookupInteractionByName(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(testReferenceSet())

	row, ok := dc.LookupInteractionByName("ASPIRIN", "Warfarin")
	if !ok {
		t.Fatal("expected case-insensitive name match")
	}
	if row.Severity != entities.SeverityHigh {
		t.Errorf("expected high severity, got %s", row.Severity)
	}

	if _, ok := dc.LookupInteractionByName("aspirin", ""); ok {
		t.Error("expected no match for empty name")
	}
}

func TestGetStandardRange(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(testReferenceSet())

	tests := []struct {
		name    string
		drug    string
		wantKey string
		wantOK  bool
	}{
		{"exact match", "paracetamol", "paracetamol", true},
		{"case insensitive", "Paracetamol", "paracetamol", true},
		{"brand substring fallback", "ibuprofen 400 film-coated", "ibuprofen", true},
		{"reverse substring", "ibu", "ibuprofen", true},
		{"unknown drug", "xyzabc", "", false},
		{"empty name", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, ok := dc.GetStandardRange(tt.drug)
			if ok != tt.wantOK {
				t.Fatalf("GetStandardRange(%q) ok = %v, want %v", tt.drug, ok, tt.wantOK)
			}
			if ok && rng.DrugKey != tt.wantKey {
				t.Errorf("GetStandardRange(%q) = %s, want %s", tt.drug, rng.DrugKey, tt.wantKey)
			}
		})
	}
}

func TestEmptyContainer(t *testing.T) {
	dc := NewDataContainer()

	if rows := dc.GetInteractions(); len(rows) != 0 {
		t.Errorf("expected empty interactions, got %d", len(rows))
	}
	if _, ok := dc.GetStandardRange("paracetamol"); ok {
		t.Error("expected no range from empty container")
	}
	if !dc.GetLastUpdated().IsZero() {
		t.Error("expected zero last updated time")
	}
}

func TestBeginEndUpdate(t *testing.T) {
	dc := NewDataContainer()

	if !dc.BeginUpdate() {
		t.Fatal("first BeginUpdate should succeed")
	}
	if dc.BeginUpdate() {
		t.Error("second BeginUpdate should fail while update in progress")
	}
	if !dc.IsUpdating() {
		t.Error("IsUpdating should report true during update")
	}

	dc.EndUpdate()
	if dc.IsUpdating() {
		t.Error("IsUpdating should report false after EndUpdate")
	}
	if !dc.BeginUpdate() {
		t.Error("BeginUpdate should succeed after EndUpdate")
	}
}

func TestConcurrentReadsDuringSwap(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(testReferenceSet())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					dc.LookupInteractionByCode("11289", "1191")
					dc.GetStandardRange("ibuprofen")
					dc.GetLastUpdated()
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		dc.UpdateData(testReferenceSet())
	}
	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()

	if _, ok := dc.LookupInteractionByCode("11289", "1191"); !ok {
		t.Error("data should remain queryable after repeated swaps")
	}
}
