// Package policy holds the blocked keywords, functions and join types and
// the numeric thresholds of a rule set. All lookups are case-insensitive.
//
// A Store is immutable once built and safe for concurrent use.
package policy

import (
	"sort"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

// DefaultBlockedKeywords are the statement keywords rejected when a rule
// set does not list its own.
var DefaultBlockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "MERGE", "TRUNCATE", "DROP", "CREATE", "ALTER",
	"RENAME", "GRANT", "REVOKE", "BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT",
	"VACUUM", "ANALYZE", "CLUSTER", "REINDEX", "DO", "CALL", "COPY",
	"LISTEN", "NOTIFY", "UNLISTEN",
}

// DefaultBlockedFunctions are the function patterns rejected when a rule set
// does not list its own. Entries containing '*' or '?' are wildcard
// patterns: '*' matches any run of characters, '?' at most one and '.'
// exactly one. Other entries match by name.
var DefaultBlockedFunctions = []string{
	"pg_sleep*", "pg_read_file", "pg_read_binary_file", "pg_ls_dir", "dblink*",
	"lo_import", "lo_export", "lo_create", "lo_unlink",
	"pg_terminate_backend", "pg_cancel_backend", "pg_reload_conf",
	"pg_advisory_lock", "pg_try_advisory_lock",
}

// DefaultBlockedJoinTypes are the join types rejected by default.
var DefaultBlockedJoinTypes = []string{"CROSS"}

// Thresholds are the numeric and boolean limits of a rule set.
type Thresholds struct {
	DefaultLimit             int
	MaxLimit                 int
	MaxJoinDepth             int // soft limit, exceeding it warns
	HardCapJoinDepth         int // exceeding it rejects
	DeepJoinThreshold        int
	RequireWhereForDeepJoins bool
	EnforceFKJoinColumns     bool
	DefaultSchema            string
}

// DefaultThresholds returns the built-in limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DefaultLimit:             200,
		MaxLimit:                 2000,
		MaxJoinDepth:             4,
		HardCapJoinDepth:         6,
		DeepJoinThreshold:        5,
		RequireWhereForDeepJoins: true,
		EnforceFKJoinColumns:     true,
		DefaultSchema:            "core",
	}
}

// Store answers policy lookups.
type Store struct {
	Thresholds

	keywords  map[string]bool
	exactFns  map[string]bool
	globFns   []string
	joinTypes map[string]bool
}

// New builds a store. Nil lists are empty: nothing of that kind is blocked.
func New(th Thresholds, keywords, functions, joinTypes []string) *Store {
	s := &Store{
		Thresholds: th,
		keywords:   make(map[string]bool, len(keywords)),
		exactFns:   make(map[string]bool, len(functions)),
		joinTypes:  make(map[string]bool, len(joinTypes)),
	}
	for _, k := range keywords {
		s.keywords[strings.ToUpper(strings.TrimSpace(k))] = true
	}
	for _, f := range functions {
		f = strings.ToLower(strings.TrimSpace(f))
		if strings.ContainsAny(f, "*?") {
			s.globFns = append(s.globFns, f)
		} else {
			s.exactFns[f] = true
		}
	}
	sort.Strings(s.globFns)
	for _, j := range joinTypes {
		s.joinTypes[strings.ToUpper(strings.TrimSpace(j))] = true
	}
	return s
}

// Default returns a store with the built-in lists and thresholds.
func Default() *Store {
	return New(DefaultThresholds(), DefaultBlockedKeywords, DefaultBlockedFunctions, DefaultBlockedJoinTypes)
}

// BlockedKeyword reports whether word is a blocked keyword.
func (s *Store) BlockedKeyword(word string) bool {
	return s.keywords[strings.ToUpper(word)]
}

// BlockedFunction reports whether a function name is blocked and returns
// the entry that matched. A schema-qualified name is checked both as
// written and by its bare name.
func (s *Store) BlockedFunction(name string) (string, bool) {
	name = strings.ToLower(name)
	candidates := []string{name}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		candidates = append(candidates, name[i+1:])
	}
	for _, c := range candidates {
		if s.exactFns[c] {
			return c, true
		}
		for _, pattern := range s.globFns {
			if wildcard.Match(pattern, c) {
				return pattern, true
			}
		}
	}
	return "", false
}

// BlockedJoinType reports whether a join type (INNER, LEFT, CROSS, COMMA,
// ...) is blocked.
func (s *Store) BlockedJoinType(joinType string) bool {
	return s.joinTypes[strings.ToUpper(joinType)]
}

// Keywords returns the blocked keywords, sorted.
func (s *Store) Keywords() []string { return sortedKeys(s.keywords) }

// Functions returns the blocked function entries, sorted.
func (s *Store) Functions() []string {
	out := append(sortedKeys(s.exactFns), s.globFns...)
	sort.Strings(out)
	return out
}

// JoinTypes returns the blocked join types, sorted.
func (s *Store) JoinTypes() []string { return sortedKeys(s.joinTypes) }

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
