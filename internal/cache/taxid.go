// Package cache holds the counterparty name to tax-id associations
// learned while processing documents.
package cache

import "sync"

// TaxIDCache is a thread-safe associative store mapping company name to
// tax identifier and back, with an occurrence counter per (company,
// tax-id) pair. Every processed document consults it to backfill missing
// identifiers and reaffirms or contradicts existing pairings. The cache
// is owned by the orchestrator and injected into worker tasks; it grows
// for the life of the process, which is acceptable since company
// cardinality is bounded by realistic invoice volumes.
type TaxIDCache struct {
	mu        sync.Mutex
	byCompany map[string]string
	byTaxID   map[string]string
	counts    map[string]map[string]int
}

// New returns an empty cache.
func New() *TaxIDCache {
	return &TaxIDCache{
		byCompany: make(map[string]string),
		byTaxID:   make(map[string]string),
		counts:    make(map[string]map[string]int),
	}
}

// Associate records one observation of the (company, taxID) pairing,
// incrementing its confidence counter. When the company already maps to
// a different tax id, the pairing with higher confidence wins; a tie
// keeps the existing mapping so competing observations cannot thrash it.
func (c *TaxIDCache) Associate(company, taxID string) {
	if company == "" || taxID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts[company] == nil {
		c.counts[company] = make(map[string]int)
	}
	c.counts[company][taxID]++

	current, ok := c.byCompany[company]
	if !ok || c.counts[company][taxID] > c.counts[company][current] {
		c.byCompany[company] = taxID
		c.byTaxID[taxID] = company
	}
}

// Lookup returns the winning tax id for a company.
func (c *TaxIDCache) Lookup(company string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	taxID, ok := c.byCompany[company]
	return taxID, ok
}

// LookupCompany returns the company last associated with a tax id.
func (c *TaxIDCache) LookupCompany(taxID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	company, ok := c.byTaxID[taxID]
	return company, ok
}

// Confidence returns the occurrence count recorded for a pairing.
func (c *TaxIDCache) Confidence(company, taxID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[company][taxID]
}

// Reset drops every association. Entries are never evicted otherwise.
func (c *TaxIDCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCompany = make(map[string]string)
	c.byTaxID = make(map[string]string)
	c.counts = make(map[string]map[string]int)
}
