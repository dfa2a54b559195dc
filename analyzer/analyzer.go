// Package analyzer runs the full prescription analysis pipeline: entity
// extraction, code resolution, dosage verification and interaction
// matching, combined into a single report.
package analyzer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rxguard/prescription-api/dosing"
	"github.com/rxguard/prescription-api/interactions"
	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/refdata/entities"
)

// Report is the combined result of one analysis run.
type Report struct {
	Entities     []entities.DrugEntity         `json:"entities"`
	Verdicts     []entities.DosageVerdict      `json:"dosage_results"`
	Interactions []entities.InteractionFinding `json:"interactions"`
	Summary      entities.InteractionSummary   `json:"interaction_summary"`
	PatientAge   int                           `json:"patient_age"`
	AnalyzedAt   time.Time                     `json:"analyzed_at"`
}

// Analyzer wires the pipeline stages together. The entity source and
// resolver are optional: without a source only pre-extracted entities can
// be analyzed, without a resolver interaction matching falls back to names.
type Analyzer struct {
	source   interfaces.EntitySource
	resolver interfaces.CodeResolver
	verifier *dosing.Verifier
	matcher  *interactions.Matcher
}

func NewAnalyzer(source interfaces.EntitySource, resolver interfaces.CodeResolver, verifier *dosing.Verifier, matcher *interactions.Matcher) *Analyzer {
	return &Analyzer{source: source, resolver: resolver, verifier: verifier, matcher: matcher}
}

// AnalyzeText extracts entities from free prescription text and analyzes
// them.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string, age int) (*Report, error) {
	var items []entities.DrugEntity
	if a.source != nil {
		items = a.source.Extract(text)
	}
	return a.Analyze(ctx, items, age)
}

// Analyze runs dosage verification and interaction matching over the given
// entities. The two stages are independent and run concurrently. The only
// error is an age outside the supported range.
func (a *Analyzer) Analyze(ctx context.Context, items []entities.DrugEntity, age int) (*Report, error) {
	usable := make([]entities.DrugEntity, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.DrugName) == "" {
			continue
		}
		usable = append(usable, item)
	}

	// Reject bad ages before spending resolver round trips
	if _, err := a.verifier.BandFor(age); err != nil {
		return nil, err
	}

	a.resolveCodes(ctx, usable)

	report := &Report{
		Entities:   usable,
		PatientAge: age,
		AnalyzedAt: time.Now().UTC(),
	}

	var wg sync.WaitGroup
	var verifyErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		report.Verdicts, verifyErr = a.verifier.Verify(ctx, usable, age)
	}()
	go func() {
		defer wg.Done()
		report.Interactions = a.matcher.FindForEntities(usable)
	}()
	wg.Wait()

	if verifyErr != nil {
		return nil, verifyErr
	}

	report.Summary = interactions.Summarize(report.Interactions)

	logging.Info("Prescription analyzed",
		"entities", len(report.Entities),
		"verdicts", len(report.Verdicts),
		"interactions", report.Summary.Total,
		"max_severity", report.Summary.MaxSeverity)
	return report, nil
}

// resolveCodes fills in missing drug codes where the resolver knows the
// name. Entities that already carry a code are left alone.
func (a *Analyzer) resolveCodes(ctx context.Context, items []entities.DrugEntity) {
	if a.resolver == nil {
		return
	}
	for i := range items {
		if items[i].Code != "" {
			continue
		}
		if code, ok := a.resolver.ResolveCode(ctx, items[i].DrugName); ok {
			items[i].Code = code
		}
	}
}
