// Package alternatives suggests brand and same-class substitutes for a
// prescribed drug.
package alternatives

import (
	"context"
	"strings"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/refdata/entities"
)

// At most this many brand names are taken from the terminology service per
// ingredient.
const maxBrands = 5

// Suggester combines live brand lookups with the static substitute table.
// Either collaborator may be missing; suggestions degrade to the other.
type Suggester struct {
	resolver interfaces.CodeResolver
	store    interfaces.DataStore
}

var _ interfaces.AlternativeSuggester = (*Suggester)(nil)

// NewSuggester creates a suggester. A nil resolver disables brand lookups,
// a nil store disables class substitutes.
func NewSuggester(resolver interfaces.CodeResolver, store interfaces.DataStore) *Suggester {
	return &Suggester{resolver: resolver, store: store}
}

// Suggest returns deduplicated alternatives in discovery order: brands for
// the coded ingredient first, then same-class substitutes by name match.
// An empty result means nothing was found, never an error.
func (s *Suggester) Suggest(ctx context.Context, drugName, code string) []string {
	var out []string
	seen := make(map[string]struct{})

	add := func(name string) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}

	if s.resolver != nil && code != "" {
		if ingredient, ok := s.resolver.ResolveIngredient(ctx, code); ok {
			brands := s.resolver.ResolveBrands(ctx, ingredient)
			if len(brands) > maxBrands {
				brands = brands[:maxBrands]
			}
			for _, brand := range brands {
				add(brand)
			}
		}
	}

	lower := strings.ToLower(drugName)
	for _, rule := range s.substitutes() {
		if strings.Contains(lower, rule.Match) {
			for _, sub := range rule.Substitutes {
				add(sub)
			}
		}
	}

	logging.Debug("Suggested alternatives", "drug", drugName, "count", len(out))
	return out
}

func (s *Suggester) substitutes() []entities.SubstituteRule {
	if s.store != nil {
		if rules := s.store.GetSubstitutes(); len(rules) > 0 {
			return rules
		}
	}
	return defaultSubstitutes
}

// Built-in same-class substitute table, used when the reference data has
// none loaded.
var defaultSubstitutes = []entities.SubstituteRule{
	{Match: "ibuprofen", Substitutes: []string{"naproxen", "diclofenac", "celecoxib"}},
	{Match: "paracetamol", Substitutes: []string{"ibuprofen (if no contraindications)"}},
	{Match: "acetaminophen", Substitutes: []string{"ibuprofen (if no contraindications)"}},
	{Match: "simvastatin", Substitutes: []string{"atorvastatin", "rosuvastatin"}},
	{Match: "lisinopril", Substitutes: []string{"enalapril", "ramipril", "losartan"}},
	{Match: "amlodipine", Substitutes: []string{"nifedipine", "felodipine", "verapamil"}},
}
