// Package data provides thread-safe storage for the clinical reference
// data. It includes the DataContainer struct with atomic operations for
// zero-downtime reloads and precomputed lookup indexes for interaction
// and dosage queries.
package data

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/refdata/entities"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// indexes holds the derived lookup structures for one reference data
// generation. Rebuilt on every swap, read-only afterwards.
type indexes struct {
	// codePairs and namePairs map both orientations of a stored row to the
	// row itself. First row wins when the dataset contains duplicates.
	codePairs map[string]entities.InteractionRow
	namePairs map[string]entities.InteractionRow

	// dosages is keyed by lowercase drug key; dosageKeys is the sorted key
	// list used for the deterministic substring fallback.
	dosages    map[string]entities.StandardRange
	dosageKeys []string
}

// DataContainer holds the reference data with atomic pointers for
// zero-downtime updates
type DataContainer struct {
	refset          atomic.Value // *interfaces.ReferenceSet
	index           atomic.Value // *indexes
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with empty data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.refset.Store(&interfaces.ReferenceSet{})
	dc.index.Store(buildIndexes(&interfaces.ReferenceSet{}))
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// pairKey builds a direction-sensitive lookup key. Both orientations of a
// row are inserted so a symmetric query is a single map hit.
func pairKey(a, b string) string {
	return a + "\x1f" + b
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// buildIndexes derives the lookup structures from a reference set.
func buildIndexes(set *interfaces.ReferenceSet) *indexes {
	idx := &indexes{
		codePairs: make(map[string]entities.InteractionRow, len(set.Interactions)*2),
		namePairs: make(map[string]entities.InteractionRow, len(set.Interactions)*2),
		dosages:   make(map[string]entities.StandardRange, len(set.Dosages)),
	}

	for _, row := range set.Interactions {
		if row.DrugACode != "" && row.DrugBCode != "" {
			for _, key := range []string{
				pairKey(row.DrugACode, row.DrugBCode),
				pairKey(row.DrugBCode, row.DrugACode),
			} {
				if _, exists := idx.codePairs[key]; !exists {
					idx.codePairs[key] = row
				}
			}
		}

		nameA := normalizeName(row.DrugAName)
		nameB := normalizeName(row.DrugBName)
		if nameA != "" && nameB != "" {
			for _, key := range []string{pairKey(nameA, nameB), pairKey(nameB, nameA)} {
				if _, exists := idx.namePairs[key]; !exists {
					idx.namePairs[key] = row
				}
			}
		}
	}

	for key, rng := range set.Dosages {
		idx.dosages[normalizeName(key)] = rng
	}
	idx.dosageKeys = make([]string, 0, len(idx.dosages))
	for key := range idx.dosages {
		idx.dosageKeys = append(idx.dosageKeys, key)
	}
	sort.Strings(idx.dosageKeys)

	return idx
}

func (dc *DataContainer) getRefset() *interfaces.ReferenceSet {
	if v := dc.refset.Load(); v != nil {
		if set, ok := v.(*interfaces.ReferenceSet); ok {
			return set
		}
	}

	logging.Warn("Reference set is empty or invalid")
	return &interfaces.ReferenceSet{}
}

func (dc *DataContainer) getIndexes() *indexes {
	if v := dc.index.Load(); v != nil {
		if idx, ok := v.(*indexes); ok {
			return idx
		}
	}

	logging.Warn("Reference indexes are empty or invalid")
	return buildIndexes(&interfaces.ReferenceSet{})
}

// GetInteractions returns all knowledge-base rows.
func (dc *DataContainer) GetInteractions() []entities.InteractionRow {
	return dc.getRefset().Interactions
}

// LookupInteractionByCode finds the stored row for a code pair, matching
// both orientations. The stored orientation is returned.
func (dc *DataContainer) LookupInteractionByCode(codeA, codeB string) (entities.InteractionRow, bool) {
	if codeA == "" || codeB == "" {
		return entities.InteractionRow{}, false
	}
	row, ok := dc.getIndexes().codePairs[pairKey(codeA, codeB)]
	return row, ok
}

// LookupInteractionByName finds the stored row for a drug name pair using
// case-insensitive exact equality, matching both orientations.
func (dc *DataContainer) LookupInteractionByName(nameA, nameB string) (entities.InteractionRow, bool) {
	a := normalizeName(nameA)
	b := normalizeName(nameB)
	if a == "" || b == "" {
		return entities.InteractionRow{}, false
	}
	row, ok := dc.getIndexes().namePairs[pairKey(a, b)]
	return row, ok
}

// GetStandardRange looks up the reference range for a drug name:
// case-insensitive exact match first, then substring match in either
// direction as the brand-to-generic fallback.
func (dc *DataContainer) GetStandardRange(drugName string) (entities.StandardRange, bool) {
	idx := dc.getIndexes()
	name := normalizeName(drugName)
	if name == "" {
		return entities.StandardRange{}, false
	}

	if rng, ok := idx.dosages[name]; ok {
		return rng, true
	}

	for _, key := range idx.dosageKeys {
		if strings.Contains(name, key) || strings.Contains(key, name) {
			return idx.dosages[key], true
		}
	}

	return entities.StandardRange{}, false
}

// GetAgeBands returns the configured age bands.
func (dc *DataContainer) GetAgeBands() []entities.AgeBand {
	return dc.getRefset().AgeBands
}

// GetPediatricWarnings returns the pediatric warning rules.
func (dc *DataContainer) GetPediatricWarnings() []entities.WarningRule {
	return dc.getRefset().Pediatric
}

// GetElderlyWarnings returns the elderly warning rules.
func (dc *DataContainer) GetElderlyWarnings() []entities.WarningRule {
	return dc.getRefset().Elderly
}

// GetWeightRules returns the pediatric weight-based dosing rules.
func (dc *DataContainer) GetWeightRules() []entities.WeightRule {
	return dc.getRefset().WeightRules
}

// GetSubstitutes returns the same-class substitution rules.
func (dc *DataContainer) GetSubstitutes() []entities.SubstituteRule {
	return dc.getRefset().Substitutes
}

// GetLastUpdated returns the time of the last successful data swap.
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating reports whether a reload is in progress.
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// GetServerStartTime returns the recorded server start time.
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// SetServerStartTime records the server start time.
func (dc *DataContainer) SetServerStartTime(t time.Time) {
	dc.serverStartTime.Store(t)
}

// UpdateData atomically swaps in a new reference data generation.
func (dc *DataContainer) UpdateData(set *interfaces.ReferenceSet) {
	if set == nil {
		logging.Warn("Ignoring nil reference set update")
		return
	}

	// Build indexes before the swap so readers never see partial data
	idx := buildIndexes(set)

	dc.refset.Store(set)
	dc.index.Store(idx)
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks an update as started. Returns false if another update
// is already in progress.
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the current update as finished.
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
