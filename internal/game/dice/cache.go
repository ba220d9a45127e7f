package dice

import "sync"

// FormulaCache memoizes ParsedFormula values keyed by raw formula text.
// Entries never expire; Reset clears them. Safe for concurrent use.
type FormulaCache struct {
	mu      sync.RWMutex
	entries map[string]ParsedFormula
}

// NewFormulaCache creates an empty FormulaCache.
func NewFormulaCache() *FormulaCache {
	return &FormulaCache{entries: make(map[string]ParsedFormula)}
}

// get returns a deep copy so callers may mutate the result freely.
func (c *FormulaCache) get(key string) (ParsedFormula, bool) {
	c.mu.RLock()
	pf, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return ParsedFormula{}, false
	}
	return pf.clone(), true
}

func (c *FormulaCache) put(key string, pf ParsedFormula) {
	stored := pf.clone()
	c.mu.Lock()
	c.entries[key] = stored
	c.mu.Unlock()
}

// Len returns the number of cached formulas.
func (c *FormulaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every cached entry.
func (c *FormulaCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]ParsedFormula)
	c.mu.Unlock()
}
