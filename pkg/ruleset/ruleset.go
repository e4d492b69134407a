// Package ruleset compiles rule-set documents into immutable, versioned
// snapshots and publishes the active snapshot to concurrent readers.
//
// A RuleSet bundles everything one validation needs: table metadata, the
// foreign-key join graph with its precomputed paths, the policy store and
// the per-table overrides. It is never modified after Compile; a refresh
// builds a new one and swaps it into a Holder.
package ruleset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/joingraph"
	"github.com/leapstack-labs/sqlgate/pkg/policy"
	"github.com/leapstack-labs/sqlgate/pkg/schema"
)

// CompileError reports an invalid rule-set document.
type CompileError struct {
	Field   string
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid rule set: %s: %s", e.Field, e.Message)
}

// Override is a per-table policy. Zero fields are unset and fall back to
// the global policy.
type Override struct {
	MaxDepth     int // deepest cumulative join depth at which the table may be introduced
	MaxHops      int // longest FK path allowed when joining the table
	MaxLimit     int // row cap for queries touching the table
	BlockedPairs [][2]string
}

// RuleSet is a compiled, immutable rule-set snapshot.
type RuleSet struct {
	Version   uint64
	Catalog   *schema.Catalog
	Graph     *joingraph.Graph
	Policy    *policy.Store
	overrides map[string]Override
	// Warnings collects non-fatal compile findings.
	Warnings []string
}

// Override returns the override for a qualified table name.
func (rs *RuleSet) Override(table string) (Override, bool) {
	o, ok := rs.overrides[table]
	return o, ok
}

// OverrideTables returns the tables that carry an override, sorted.
func (rs *RuleSet) OverrideTables() []string {
	out := make([]string, 0, len(rs.overrides))
	for t := range rs.overrides {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// WithVersion returns a copy of the snapshot carrying another version.
// The copy shares the read-only internals.
func (rs *RuleSet) WithVersion(v uint64) *RuleSet {
	cp := *rs
	cp.Version = v
	return &cp
}

// Compile validates a document and builds its snapshot: the catalog, the
// join graph with paths cached up to the hard depth cap, the policy store
// and the overrides.
func Compile(doc *Document) (*RuleSet, error) {
	th, err := thresholds(doc)
	if err != nil {
		return nil, err
	}

	tables, err := compileTables(doc.Tables, th.DefaultSchema)
	if err != nil {
		return nil, err
	}
	catalog := schema.NewCatalog(tables)

	var warnings []string
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if len(t.Columns) > 0 && !t.HasColumn(fk.Column) {
				warnings = append(warnings, fmt.Sprintf(
					"foreign key column %s is not a declared column of %s", fk.Column, t.QualifiedName()))
			}
		}
	}

	graph, graphWarnings := joingraph.Build(tables)
	warnings = append(warnings, graphWarnings...)

	maxDepth := th.HardCapJoinDepth
	overrides := make(map[string]Override, len(doc.TableOverrides))
	for _, key := range sortedKeys(doc.TableOverrides) {
		od := doc.TableOverrides[key]
		name := qualify(key, th.DefaultSchema)
		if _, ok := catalog.LookupQualified(name); !ok {
			return nil, &CompileError{Field: "table_overrides." + key, Message: "unknown table"}
		}
		if od.MaxDepth < 0 || od.MaxHops < 0 || od.MaxLimit < 0 {
			return nil, &CompileError{Field: "table_overrides." + key, Message: "limits must not be negative"}
		}
		o := Override{MaxDepth: od.MaxDepth, MaxHops: od.MaxHops, MaxLimit: od.MaxLimit}
		for i, pair := range od.BlockedPairs {
			field := fmt.Sprintf("table_overrides.%s.blocked_pairs[%d]", key, i)
			if len(pair) != 2 {
				return nil, &CompileError{Field: field, Message: "a pair needs exactly two tables"}
			}
			a, b := qualify(pair[0], th.DefaultSchema), qualify(pair[1], th.DefaultSchema)
			for _, t := range []string{a, b} {
				if _, ok := catalog.LookupQualified(t); !ok {
					return nil, &CompileError{Field: field, Message: "unknown table " + t}
				}
			}
			o.BlockedPairs = append(o.BlockedPairs, [2]string{a, b})
		}
		if o.MaxHops > maxDepth {
			maxDepth = o.MaxHops
		}
		overrides[name] = o
	}
	graph.ComputeJoinPaths(maxDepth)

	store := policy.New(th,
		listOr(doc.BlockedKeywords, policy.DefaultBlockedKeywords),
		listOr(doc.BlockedFunctions, policy.DefaultBlockedFunctions),
		listOr(doc.BlockedJoinTypes, policy.DefaultBlockedJoinTypes))

	return &RuleSet{
		Version:   doc.Version,
		Catalog:   catalog,
		Graph:     graph,
		Policy:    store,
		overrides: overrides,
		Warnings:  warnings,
	}, nil
}

func thresholds(doc *Document) (policy.Thresholds, error) {
	th := policy.DefaultThresholds()
	if doc.DefaultSchema != "" {
		th.DefaultSchema = strings.ToLower(doc.DefaultSchema)
	}
	p := doc.Policies
	setInt(&th.DefaultLimit, p.DefaultLimit)
	setInt(&th.MaxLimit, p.MaxLimit)
	setInt(&th.MaxJoinDepth, p.MaxJoinDepth)
	setInt(&th.HardCapJoinDepth, p.HardCapJoinDepth)
	setInt(&th.DeepJoinThreshold, p.DeepJoinThreshold)
	if p.RequireWhereForDeepJoins != nil {
		th.RequireWhereForDeepJoins = *p.RequireWhereForDeepJoins
	}
	if p.EnforceFKJoinColumns != nil {
		th.EnforceFKJoinColumns = *p.EnforceFKJoinColumns
	}

	switch {
	case th.DefaultLimit < 1:
		return th, &CompileError{Field: "policies.default_limit", Message: "must be at least 1"}
	case th.MaxLimit < th.DefaultLimit:
		return th, &CompileError{Field: "policies.max_limit", Message: "must not be below default_limit"}
	case th.MaxJoinDepth < 0:
		return th, &CompileError{Field: "policies.max_join_depth", Message: "must not be negative"}
	case th.HardCapJoinDepth < th.MaxJoinDepth:
		return th, &CompileError{Field: "policies.hard_cap_join_depth", Message: "must not be below max_join_depth"}
	case th.DeepJoinThreshold < 1:
		return th, &CompileError{Field: "policies.deep_join_threshold", Message: "must be at least 1"}
	}
	return th, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func compileTables(docs TableDocs, defaultSchema string) ([]schema.Table, error) {
	seen := make(map[string]bool, len(docs))
	tables := make([]schema.Table, 0, len(docs))
	for _, td := range docs {
		field := "tables." + td.Name
		if strings.TrimSpace(td.Name) == "" {
			return nil, &CompileError{Field: "tables", Message: "table name must not be empty"}
		}
		s, n := schema.SplitName(td.Name, defaultSchema)
		t := schema.Table{Schema: s, Name: n}
		if seen[t.QualifiedName()] {
			return nil, &CompileError{Field: field, Message: "table " + t.QualifiedName() + " declared twice"}
		}
		seen[t.QualifiedName()] = true

		for i, c := range td.Columns {
			if c.Name == "" {
				return nil, &CompileError{Field: fmt.Sprintf("%s.columns[%d]", field, i), Message: "column name must not be empty"}
			}
			t.Columns = append(t.Columns, schema.Column{Name: strings.ToLower(c.Name), Type: c.Type})
		}
		for i, fk := range td.ForeignKeys {
			if fk.Column == "" || fk.RefTable == "" || fk.RefColumn == "" {
				return nil, &CompileError{
					Field:   fmt.Sprintf("%s.foreign_keys[%d]", field, i),
					Message: "column, ref_table and ref_column are required",
				}
			}
			t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
				Column:    strings.ToLower(fk.Column),
				RefTable:  qualify(fk.RefTable, defaultSchema),
				RefColumn: strings.ToLower(fk.RefColumn),
				Name:      strings.ToLower(fk.Name),
			})
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func qualify(name, defaultSchema string) string {
	s, n := schema.SplitName(strings.TrimSpace(name), defaultSchema)
	return s + "." + n
}

func listOr(list *[]string, def []string) []string {
	if list == nil {
		return def
	}
	return *list
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
