package entities

// Severity is the three-level ordinal clinical risk of an interaction.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// InteractionRow is one stored knowledge-base entry. Rows are symmetric:
// a query for (B,A) must find a row stored as (A,B).
type InteractionRow struct {
	DrugAName   string   `json:"drug_a"`
	DrugACode   string   `json:"drug_a_code"`
	DrugBName   string   `json:"drug_b"`
	DrugBCode   string   `json:"drug_b_code"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Sources     []string `json:"sources,omitempty"`
}

// InteractionFinding is a matched interaction for one unordered drug pair.
// The stored orientation of the knowledge-base row is preserved.
type InteractionFinding struct {
	DrugA       string   `json:"drug_a"`
	DrugB       string   `json:"drug_b"`
	CodeA       string   `json:"drug_a_code,omitempty"`
	CodeB       string   `json:"drug_b_code,omitempty"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Sources     []string `json:"sources,omitempty"`
}

// InteractionSummary aggregates findings for report headers.
type InteractionSummary struct {
	Total       int    `json:"total"`
	High        int    `json:"high_severity"`
	Medium      int    `json:"medium_severity"`
	Low         int    `json:"low_severity"`
	MaxSeverity string `json:"max_severity"`
}
