// Package table models the metadata surface the write path needs from a
// logical table: its name and the ordered set of placements its writes
// fan out to. Resolution is explicit interface dispatch; there is no
// runtime type inspection of table implementations.
package table

import (
	"fmt"
	"sort"
	"sync"

	"deltastore/pkg/cluster"
)

// Table is a logical table with one or more write placements. A table
// with several placements is replicated: every update fans out to each
// placement independently.
type Table interface {
	Name() string
	WritePlacements() []*cluster.Placement
}

// StaticTable is a Table with a fixed placement list.
type StaticTable struct {
	name       string
	placements []*cluster.Placement
}

// NewStatic builds a table from its name and ordered placements.
func NewStatic(name string, placements ...*cluster.Placement) *StaticTable {
	return &StaticTable{name: name, placements: placements}
}

func (t *StaticTable) Name() string { return t.name }

func (t *StaticTable) WritePlacements() []*cluster.Placement {
	return t.placements
}

// Registry resolves table names for the API surface. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]Table)}
}

// Register adds or replaces a table.
func (r *Registry) Register(t Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.Name()] = t
}

// Get resolves a table by name.
func (r *Registry) Get(name string) (Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// Names returns the registered table names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tables))
	for n := range r.tables {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
