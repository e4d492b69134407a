package analyzer

import (
	"fmt"
	"sort"
)

// scope tracks the FROM items visible from one query block. Lookups fall
// back to the parent scope for correlated references.
type scope struct {
	parent  *scope
	block   *Block
	entries map[string]TableRef // ref name -> table
}

func newScope(block *Block, parent *scope) *scope {
	return &scope{parent: parent, block: block, entries: make(map[string]TableRef)}
}

// register adds a FROM item under its reference name. Two items with the
// same reference name in one block are an error, as in PostgreSQL.
func (s *scope) register(t TableRef) error {
	name := t.RefName()
	if name == "" {
		return nil
	}
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("table name %q specified more than once", name)
	}
	s.entries[name] = t
	return nil
}

// lookup resolves a qualifier in this scope and its parents.
func (s *scope) lookup(qualifier, schema string) (TableRef, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.local(qualifier, schema); ok {
			return t, true
		}
	}
	return TableRef{}, false
}

// local resolves a qualifier in this scope only.
func (s *scope) local(qualifier, schema string) (TableRef, bool) {
	t, ok := s.entries[qualifier]
	if !ok {
		return TableRef{}, false
	}
	if schema != "" && (t.Alias != "" || (t.Schema != "" && t.Schema != schema)) {
		return TableRef{}, false
	}
	return t, true
}

// sorted returns the entries in introduction order.
func (s *scope) sorted() []TableRef {
	out := make([]TableRef, 0, len(s.entries))
	for _, t := range s.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// cteEnv tracks the CTE names visible at a point in the statement.
type cteEnv struct {
	parent *cteEnv
	names  map[string]bool
}

func (e *cteEnv) child() *cteEnv {
	return &cteEnv{parent: e, names: make(map[string]bool)}
}

func (e *cteEnv) has(name string) bool {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.names[name] {
			return true
		}
	}
	return false
}
