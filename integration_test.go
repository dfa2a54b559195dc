package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rxguard/prescription-api/alternatives"
	"github.com/rxguard/prescription-api/analyzer"
	"github.com/rxguard/prescription-api/config"
	"github.com/rxguard/prescription-api/data"
	"github.com/rxguard/prescription-api/dosing"
	"github.com/rxguard/prescription-api/extractor"
	"github.com/rxguard/prescription-api/handlers"
	"github.com/rxguard/prescription-api/health"
	"github.com/rxguard/prescription-api/interactions"
	"github.com/rxguard/prescription-api/refdata"
	"github.com/rxguard/prescription-api/scheduler"
	"github.com/rxguard/prescription-api/server"
	"github.com/rxguard/prescription-api/severity"
	"github.com/rxguard/prescription-api/validation"
)

// buildTestStack wires the full pipeline over the bootstrapped sample
// datasets, the same way main.go does
func buildTestStack(t *testing.T) (*data.DataContainer, *server.Server) {
	t.Helper()

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())
	classifier := severity.NewClassifier()
	loader := refdata.NewLoader(t.TempDir(), classifier)
	validator := validation.NewInputValidator()

	sched := scheduler.NewScheduler(dataContainer, loader, validator)
	if err := sched.Start(); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}
	t.Cleanup(sched.Stop)

	// No external code resolver in integration tests
	suggester := alternatives.NewSuggester(nil, dataContainer)
	verifier := dosing.NewVerifier(dataContainer, suggester)
	matcher := interactions.NewMatcher(dataContainer)
	pipeline := analyzer.NewAnalyzer(extractor.NewExtractor(), nil, verifier, matcher)

	handler := handlers.NewHTTPHandler(
		dataContainer,
		validator,
		pipeline,
		classifier,
		suggester,
		health.NewHealthChecker(dataContainer),
	)

	cfg := &config.Config{
		Port:           "8000",
		Address:        "127.0.0.1",
		Env:            "test",
		MaxRequestBody: 1048576,
		MaxHeaderSize:  1048576,
	}

	return dataContainer, server.NewServer(cfg, handler)
}

// TestIntegrationFullAnalysisPipeline walks the complete pipeline from
// bootstrapped reference data to a full analysis report
func TestIntegrationFullAnalysisPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	fmt.Println("Starting full analysis pipeline integration test...")

	dataContainer, _ := buildTestStack(t)

	// The loader must have bootstrapped the sample datasets
	if len(dataContainer.GetInteractions()) < 5 {
		t.Fatalf("Expected bootstrapped interactions, got %d", len(dataContainer.GetInteractions()))
	}
	if len(dataContainer.GetAgeBands()) != 4 {
		t.Errorf("Expected 4 age bands, got %d", len(dataContainer.GetAgeBands()))
	}

	// Run the pipeline directly over free prescription text
	suggester := alternatives.NewSuggester(nil, dataContainer)
	verifier := dosing.NewVerifier(dataContainer, suggester)
	matcher := interactions.NewMatcher(dataContainer)
	pipeline := analyzer.NewAnalyzer(extractor.NewExtractor(), nil, verifier, matcher)

	text := "Take Warfarin 5mg once daily. " + strings.Repeat("-", 60) + " Take Aspirin 325mg twice daily."
	report, err := pipeline.AnalyzeText(context.Background(), text, 70)
	if err != nil {
		t.Fatalf("Analysis failed: %v", err)
	}

	if len(report.Entities) != 2 {
		t.Fatalf("Expected 2 extracted entities, got %d", len(report.Entities))
	}
	if len(report.Verdicts) != 2 {
		t.Errorf("Expected 2 dosage verdicts, got %d", len(report.Verdicts))
	}
	if report.Summary.Total != 1 {
		t.Errorf("Expected 1 warfarin/aspirin interaction, got %d", report.Summary.Total)
	}
	if report.Summary.MaxSeverity != "high" {
		t.Errorf("Expected max severity high, got %s", report.Summary.MaxSeverity)
	}
}

// TestIntegrationEndpointsOverBootstrappedData exercises the HTTP surface
// end to end over the sample datasets
func TestIntegrationEndpointsOverBootstrappedData(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	_, srv := buildTestStack(t)

	doJSON := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		req.RemoteAddr = "127.0.0.1:54321"
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)
		return rr
	}

	// Health reflects the fresh bootstrap
	rr := doJSON(http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Full analysis over extracted text
	body := `{"text": "Metformin 500mg twice daily for diabetes control, continue previous instructions from the last visit. Ibuprofen 400mg by mouth", "age": 55}`
	rr = doJSON(http.MethodPost, "/analyze", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var report map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("analyze: invalid JSON: %v", err)
	}
	summary, ok := report["interaction_summary"].(map[string]any)
	if !ok {
		t.Fatalf("analyze: missing interaction_summary: %v", report)
	}
	if summary["total"] != float64(1) {
		t.Errorf("analyze: expected 1 metformin/ibuprofen interaction, got %v", summary["total"])
	}

	// Severity classification stands alone
	rr = doJSON(http.MethodPost, "/severity", `{"text": "Do not combine. Risk of fatal arrhythmia."}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("severity: expected 200, got %d", rr.Code)
	}
	var sev map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &sev); err != nil {
		t.Fatalf("severity: invalid JSON: %v", err)
	}
	if sev["severity"] != "high" {
		t.Errorf("severity: expected high, got %v", sev["severity"])
	}

	// Curated substitutes work without a code resolver
	rr = doJSON(http.MethodGet, "/alternatives/ibuprofen", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("alternatives: expected 200, got %d", rr.Code)
	}
	var alt map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &alt); err != nil {
		t.Fatalf("alternatives: invalid JSON: %v", err)
	}
	if list, ok := alt["alternatives"].([]any); !ok || len(list) == 0 {
		t.Errorf("alternatives: expected curated substitutes, got %v", alt["alternatives"])
	}

	// Dataset endpoints serve the bootstrapped interaction rows
	rr = doJSON(http.MethodGet, "/database", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("database: expected 200, got %d", rr.Code)
	}
	var rows []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("database: invalid JSON: %v", err)
	}
	if len(rows) < 5 {
		t.Errorf("database: expected bootstrapped rows, got %d", len(rows))
	}
}

// TestIntegrationReloadKeepsServing verifies reads stay consistent while a
// reload swaps the data generation
func TestIntegrationReloadKeepsServing(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dataContainer, _ := buildTestStack(t)

	baseline := dataContainer.GetInteractions()
	if len(baseline) == 0 {
		t.Fatal("Expected bootstrapped interactions")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			rows := dataContainer.GetInteractions()
			if len(rows) == 0 {
				t.Error("Read an empty generation during reload")
				return
			}
			for _, row := range rows {
				if row.DrugAName == "" {
					t.Error("Read a row with an empty drug name during reload")
					return
				}
			}
		}
	}()

	// Swap generations concurrently with the reads
	classifier := severity.NewClassifier()
	loader := refdata.NewLoader(t.TempDir(), classifier)
	for i := 0; i < 10; i++ {
		set, err := loader.LoadAll()
		if err != nil {
			t.Fatalf("Reload failed: %v", err)
		}
		dataContainer.UpdateData(set)
	}
	<-done

	if len(dataContainer.GetInteractions()) != len(baseline) {
		t.Errorf("Generation size changed across identical reloads")
	}
}
