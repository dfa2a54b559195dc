// Package interfaces defines the core abstractions of the prescription
// analysis API to improve testability and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/rxguard/prescription-api/refdata/entities"
)

// ReferenceSet is one immutable generation of clinical reference data.
// The data container swaps whole generations atomically.
type ReferenceSet struct {
	Interactions []entities.InteractionRow
	Dosages      map[string]entities.StandardRange
	AgeBands     []entities.AgeBand
	Pediatric    []entities.WarningRule
	Elderly      []entities.WarningRule
	WeightRules  []entities.WeightRule
	Substitutes  []entities.SubstituteRule
}

// DataStore provides thread-safe access to the loaded reference data with
// atomic operations for zero-downtime reloads.
type DataStore interface {
	// Data retrieval methods
	GetInteractions() []entities.InteractionRow
	LookupInteractionByCode(codeA, codeB string) (entities.InteractionRow, bool)
	LookupInteractionByName(nameA, nameB string) (entities.InteractionRow, bool)
	GetStandardRange(drugName string) (entities.StandardRange, bool)
	GetAgeBands() []entities.AgeBand
	GetPediatricWarnings() []entities.WarningRule
	GetElderlyWarnings() []entities.WarningRule
	GetWeightRules() []entities.WeightRule
	GetSubstitutes() []entities.SubstituteRule
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(set *ReferenceSet)
	BeginUpdate() bool
	EndUpdate()
}

// ReferenceLoader loads the clinical reference datasets from disk,
// bootstrapping the built-in samples when files are missing.
type ReferenceLoader interface {
	LoadAll() (*ReferenceSet, error)
}

// CodeResolver is the external drug code directory. Lookups are idempotent
// and side-effect free; failures are reported as not-found, never as fatal
// errors.
type CodeResolver interface {
	// ResolveCode returns the canonical code for a drug name.
	ResolveCode(ctx context.Context, name string) (string, bool)

	// ResolveIngredient returns the ingredient code behind a drug code.
	ResolveIngredient(ctx context.Context, code string) (string, bool)

	// ResolveBrands returns brand names for an ingredient code, capped.
	ResolveBrands(ctx context.Context, ingredientCode string) []string
}

// AlternativeSuggester proposes replacement drugs: same-ingredient brands
// from the code resolver plus curated same-class substitutes. It never
// fails; an unavailable source simply contributes nothing.
type AlternativeSuggester interface {
	Suggest(ctx context.Context, drugName, code string) []string
}

// EntitySource extracts prescription line items from free text. Returned
// entities always have a non-empty drug name.
type EntitySource interface {
	Extract(text string) []entities.DrugEntity
}

// Scheduler manages the periodic reference data reload and staleness
// monitoring.
type Scheduler interface {
	Start() error
	Stop()
}

// HTTPHandler groups the API endpoint handlers.
type HTTPHandler interface {
	http.Handler

	AnalyzePrescription(w http.ResponseWriter, r *http.Request)
	VerifyDosages(w http.ResponseWriter, r *http.Request)
	FindInteractions(w http.ResponseWriter, r *http.Request)
	ClassifySeverity(w http.ResponseWriter, r *http.Request)
	SuggestAlternatives(w http.ResponseWriter, r *http.Request)
	ServeKnowledgeBase(w http.ResponseWriter, r *http.Request)
	ServePagedKnowledgeBase(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports system health from reference data freshness.
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
	CalculateNextUpdate() time.Time
}

// InputValidator validates user-supplied input before it reaches the core.
type InputValidator interface {
	// ValidateInput rejects strings with dangerous or malformed content.
	ValidateInput(input string) error

	// ValidateAge parses and validates a patient age in [0,120].
	ValidateAge(input string) (int, error)

	// ValidateDrugName checks a single drug name.
	ValidateDrugName(name string) error

	// ValidateReferenceSet performs integrity checks before a data swap.
	ValidateReferenceSet(set *ReferenceSet) error
}
