// Package handlers provides HTTP request handlers for the prescription API
// endpoints. This file implements the HTTPHandler interface with dependency
// injection.
package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rxguard/prescription-api/analyzer"
	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/metrics"
	"github.com/rxguard/prescription-api/refdata/entities"
	"github.com/rxguard/prescription-api/severity"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

const knowledgeBasePageSize = 25

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.InputValidator
	analyzer      *analyzer.Analyzer
	classifier    *severity.Classifier
	suggester     interfaces.AlternativeSuggester
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	dataStore interfaces.DataStore,
	validator interfaces.InputValidator,
	analyze *analyzer.Analyzer,
	classifier *severity.Classifier,
	suggester interfaces.AlternativeSuggester,
	healthChecker interfaces.HealthChecker,
) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		analyzer:      analyze,
		classifier:    classifier,
		suggester:     suggester,
		healthChecker: healthChecker,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *HTTPHandlerImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The actual routing is handled by chi
	http.Error(w, "Not implemented", http.StatusNotImplemented)
}

// analyzeRequest is the shared request body of the analysis endpoints.
// Either free text or pre-extracted entities must be provided.
type analyzeRequest struct {
	Text     string                `json:"text"`
	Entities []entities.DrugEntity `json:"entities"`
	Age      json.RawMessage       `json:"age"`
}

// ageString accepts the age as either a JSON number or a quoted string
func (req *analyzeRequest) ageString() string {
	return strings.Trim(strings.TrimSpace(string(req.Age)), `"`)
}

// HealthResponseImpl defines the structure for consistent JSON ordering
type HealthResponseImpl struct {
	Status        string         `json:"status"`
	LastUpdate    string         `json:"last_update"`
	DataAgeHours  float64        `json:"data_age_hours"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

func (h *HTTPHandlerImpl) decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (*analyzeRequest, int, bool) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return nil, 0, false
	}

	if req.Text == "" && len(req.Entities) == 0 {
		h.RespondWithError(w, http.StatusBadRequest, "Either text or entities must be provided")
		return nil, 0, false
	}

	if req.Text != "" {
		if err := h.validator.ValidateInput(req.Text); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return nil, 0, false
		}
	}

	for _, item := range req.Entities {
		if err := h.validator.ValidateDrugName(item.DrugName); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return nil, 0, false
		}
	}

	ageStr := req.ageString()
	if ageStr == "" || ageStr == "null" {
		h.RespondWithError(w, http.StatusBadRequest, "Patient age is required")
		return nil, 0, false
	}
	age, err := h.validator.ValidateAge(ageStr)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, 0, false
	}

	return &req, age, true
}

// runPipeline reuses the full pipeline for every analysis endpoint so
// entity extraction and code resolution behave identically everywhere.
func (h *HTTPHandlerImpl) runPipeline(r *http.Request, req *analyzeRequest, age int) (*analyzer.Report, error) {
	if len(req.Entities) > 0 {
		return h.analyzer.Analyze(r.Context(), req.Entities, age)
	}
	return h.analyzer.AnalyzeText(r.Context(), req.Text, age)
}

// AnalyzePrescription runs the full analysis pipeline over a prescription
func (h *HTTPHandlerImpl) AnalyzePrescription(w http.ResponseWriter, r *http.Request) {
	req, age, ok := h.decodeAnalyzeRequest(w, r)
	if !ok {
		metrics.AnalysesTotal.WithLabelValues("invalid").Inc()
		return
	}

	report, err := h.runPipeline(r, req, age)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	for _, finding := range report.Interactions {
		metrics.InteractionFindingsTotal.WithLabelValues(string(finding.Severity)).Inc()
	}

	h.respond(w, r, http.StatusOK, report)
}

// VerifyDosages checks the mentioned doses against the standard ranges
func (h *HTTPHandlerImpl) VerifyDosages(w http.ResponseWriter, r *http.Request) {
	req, age, ok := h.decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	report, err := h.runPipeline(r, req, age)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	response := map[string]any{
		"dosage_results": report.Verdicts,
		"patient_age":    report.PatientAge,
	}
	h.respond(w, r, http.StatusOK, response)
}

// FindInteractions matches all drug pairs against the interaction data
func (h *HTTPHandlerImpl) FindInteractions(w http.ResponseWriter, r *http.Request) {
	req, age, ok := h.decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	report, err := h.runPipeline(r, req, age)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, finding := range report.Interactions {
		metrics.InteractionFindingsTotal.WithLabelValues(string(finding.Severity)).Inc()
	}

	response := map[string]any{
		"interactions":        report.Interactions,
		"interaction_summary": report.Summary,
	}
	h.respond(w, r, http.StatusOK, response)
}

// severityRequest is the body of the severity classification endpoint
type severityRequest struct {
	Text string `json:"text"`
}

// ClassifySeverity classifies free interaction text into a severity level
func (h *HTTPHandlerImpl) ClassifySeverity(w http.ResponseWriter, r *http.Request) {
	var req severityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.validator.ValidateInput(req.Text); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	level := h.classifier.Classify(req.Text)
	h.respond(w, r, http.StatusOK, map[string]any{"severity": level})
}

// SuggestAlternatives proposes replacement drugs for a drug name
func (h *HTTPHandlerImpl) SuggestAlternatives(w http.ResponseWriter, r *http.Request) {
	drug := chi.URLParam(r, "drug")
	if drug == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Missing drug name")
		return
	}

	if err := h.validator.ValidateDrugName(drug); err != nil {
		logging.Warn("Unusual user input", "drug", drug)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	alternatives := h.suggester.Suggest(r.Context(), drug, "")
	response := map[string]any{
		"drug":         drug,
		"alternatives": alternatives,
	}
	h.respond(w, r, http.StatusOK, response)
}

// ServeKnowledgeBase returns the whole interaction dataset
func (h *HTTPHandlerImpl) ServeKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	interactions := h.dataStore.GetInteractions()
	h.respond(w, r, http.StatusOK, interactions)
}

// ServePagedKnowledgeBase returns the interaction dataset page by page
func (h *HTTPHandlerImpl) ServePagedKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	pageNumber := chi.URLParam(r, "pageNumber")
	page, err := strconv.Atoi(pageNumber)
	if err != nil || page < 1 {
		logging.Warn("Unusual user input", "pageNumber", pageNumber)
		h.RespondWithError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	interactions := h.dataStore.GetInteractions()
	pageSize := knowledgeBasePageSize
	start := (page - 1) * pageSize
	end := start + pageSize

	if start >= len(interactions) {
		h.RespondWithError(w, http.StatusNotFound, "Page not found")
		return
	}

	if end > len(interactions) {
		end = len(interactions)
	}

	pagedInteractions := interactions[start:end]
	totalItems := len(interactions)
	maxPage := (totalItems + pageSize - 1) / pageSize

	response := map[string]any{
		"data":       pagedInteractions,
		"page":       page,
		"pageSize":   pageSize,
		"totalItems": totalItems,
		"maxPage":    maxPage,
	}

	h.respond(w, r, http.StatusOK, response)
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.healthChecker.HealthCheck()

	lastUpdate := h.dataStore.GetLastUpdated()
	uptime := time.Since(h.dataStore.GetServerStartTime())

	data["api_version"] = "1.0"
	data["next_update"] = h.healthChecker.CalculateNextUpdate().Format(time.RFC3339)

	dataAge, _ := data["data_age_hours"].(float64)

	response := HealthResponseImpl{
		Status:        status,
		LastUpdate:    lastUpdate.Format(time.RFC3339),
		DataAgeHours:  dataAge,
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	h.respond(w, r, httpStatus, response)
}

// respond writes a JSON response, gzip-compressed when the client accepts
// it and the payload is large enough
func (h *HTTPHandlerImpl) respond(w http.ResponseWriter, r *http.Request, code int, payload any) {
	respondWithJSON(w, r, code, payload)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	respondWithError(w, code, message)
}
