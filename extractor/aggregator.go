package extractor

import (
	"sync"

	"guild-contributions/internal/types"
)

// Table is the ordered collection of records gathered during a run. It does
// not deduplicate: scraping a member twice yields two records.
type Table struct {
	mu      sync.RWMutex
	records []types.Record
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{}
}

// Append adds record at the end of the table
func (t *Table) Append(record types.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, record)
}

// All returns the records in append order. The slice is a copy.
func (t *Table) All() []types.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Record, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of records
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Clear drops every record
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
}
