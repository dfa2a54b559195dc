package entities

// DrugEntity represents a single prescription line item as produced by an
// entity source. Only DrugName is guaranteed to be populated; the canonical
// Code is attached later by the code resolver.
type DrugEntity struct {
	DrugName      string `json:"drug"`
	DoseText      string `json:"dose,omitempty"`
	FrequencyText string `json:"frequency,omitempty"`
	Route         string `json:"route,omitempty"`
	Code          string `json:"code,omitempty"`
}

// DefaultRoute is assumed when a prescription line does not mention one.
const DefaultRoute = "oral"
