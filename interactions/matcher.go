// Package interactions matches unordered drug pairs against the loaded
// interaction knowledge base.
package interactions

import (
	"strings"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/refdata/entities"
)

// Matcher checks every unordered pair of a drug list against the store.
type Matcher struct {
	store interfaces.DataStore
}

func NewMatcher(store interfaces.DataStore) *Matcher {
	return &Matcher{store: store}
}

// FindByCodes returns one finding per interacting unordered code pair.
// Blank codes are skipped; fewer than two usable codes yields no findings.
func (m *Matcher) FindByCodes(codes []string) []entities.InteractionFinding {
	usable := make([]string, 0, len(codes))
	for _, code := range codes {
		if strings.TrimSpace(code) != "" {
			usable = append(usable, strings.TrimSpace(code))
		}
	}
	if len(usable) < 2 {
		return nil
	}

	var findings []entities.InteractionFinding
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			row, ok := m.store.LookupInteractionByCode(usable[i], usable[j])
			if !ok {
				continue
			}
			findings = append(findings, toFinding(row))
		}
	}

	logging.Info("Matched interactions by code", "drugs", len(usable), "findings", len(findings))
	return findings
}

// FindByNames is the name-keyed variant, used when code resolution failed
// for part of the prescription.
func (m *Matcher) FindByNames(names []string) []entities.InteractionFinding {
	usable := make([]string, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) != "" {
			usable = append(usable, strings.TrimSpace(name))
		}
	}
	if len(usable) < 2 {
		return nil
	}

	var findings []entities.InteractionFinding
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			row, ok := m.store.LookupInteractionByName(usable[i], usable[j])
			if !ok {
				continue
			}
			findings = append(findings, toFinding(row))
		}
	}

	logging.Info("Matched interactions by name", "drugs", len(usable), "findings", len(findings))
	return findings
}

// FindForEntities pairs each entity's code when both sides have one and
// falls back to names otherwise, so a single unresolved drug does not hide
// its interactions.
func (m *Matcher) FindForEntities(items []entities.DrugEntity) []entities.InteractionFinding {
	usable := make([]entities.DrugEntity, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.DrugName) != "" {
			usable = append(usable, item)
		}
	}
	if len(usable) < 2 {
		return nil
	}

	var findings []entities.InteractionFinding
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			row, ok := m.lookupPair(usable[i], usable[j])
			if !ok {
				continue
			}
			findings = append(findings, toFinding(row))
		}
	}

	return findings
}

func (m *Matcher) lookupPair(a, b entities.DrugEntity) (entities.InteractionRow, bool) {
	if a.Code != "" && b.Code != "" {
		if row, ok := m.store.LookupInteractionByCode(a.Code, b.Code); ok {
			return row, true
		}
	}
	return m.store.LookupInteractionByName(a.DrugName, b.DrugName)
}

func toFinding(row entities.InteractionRow) entities.InteractionFinding {
	return entities.InteractionFinding{
		DrugA:       row.DrugAName,
		DrugB:       row.DrugBName,
		CodeA:       row.DrugACode,
		CodeB:       row.DrugBCode,
		Description: row.Description,
		Severity:    row.Severity,
		Sources:     row.Sources,
	}
}

// Summarize aggregates findings into counts and a maximum severity. With no
// findings the maximum reads "none" rather than "low".
func Summarize(findings []entities.InteractionFinding) entities.InteractionSummary {
	summary := entities.InteractionSummary{Total: len(findings), MaxSeverity: "none"}
	if len(findings) == 0 {
		return summary
	}

	for _, finding := range findings {
		switch finding.Severity {
		case entities.SeverityHigh:
			summary.High++
		case entities.SeverityMedium:
			summary.Medium++
		case entities.SeverityLow:
			summary.Low++
		}
	}

	switch {
	case summary.High > 0:
		summary.MaxSeverity = string(entities.SeverityHigh)
	case summary.Medium > 0:
		summary.MaxSeverity = string(entities.SeverityMedium)
	default:
		summary.MaxSeverity = string(entities.SeverityLow)
	}

	return summary
}
