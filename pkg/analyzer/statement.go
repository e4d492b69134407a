package analyzer

import (
	"strconv"

	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/parser"
	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// KindSelect is the kind of a query statement. Other statements report
// their upper-case leading keyword (DELETE, INSERT, VACUUM, ...).
const KindSelect = "SELECT"

// Statement is the analyzed form of one SQL text.
type Statement struct {
	script *parser.Script
	root   *ast.SelectStmt
	kind   string
	count  int

	blocks     []*Block
	tables     []TableRef // physical, deduplicated
	allTables  []TableRef // physical, every occurrence
	columns    []ColumnRef
	joins      []JoinClause
	functions  []string
	ctes       []string
	modifying  []string
	locking    []string
	selectInto bool
}

// Kind returns SELECT for queries and the leading keyword otherwise. For a
// multi-statement text it is the first statement's kind.
func (s *Statement) Kind() string { return s.kind }

// Source returns the original SQL text.
func (s *Statement) Source() string { return s.script.Source }

// Script returns the parsed text with its tokens.
func (s *Statement) Script() *parser.Script { return s.script }

// Root returns the query AST, or nil for a non-query statement.
func (s *Statement) Root() *ast.SelectStmt { return s.root }

// StatementCount returns the number of top-level statements.
func (s *Statement) StatementCount() int { return s.count }

// IsSingleStatement reports whether the text holds exactly one statement
// outside string and comment literals.
func (s *Statement) IsSingleStatement() bool { return s.count == 1 }

// IsSelectOnly reports whether the statement is a single query that only
// reads. It is false for non-query statements, multi-statement texts,
// data-modifying CTEs, SELECT ... INTO and row locking clauses.
func (s *Statement) IsSelectOnly() bool {
	return s.root != nil && len(s.modifying) == 0 && !s.selectInto && len(s.locking) == 0
}

// NonSelectReason describes why IsSelectOnly is false, or returns "".
func (s *Statement) NonSelectReason() string {
	switch {
	case s.kind != KindSelect:
		return s.kind + " statement"
	case s.root == nil:
		return "multiple statements"
	case len(s.modifying) > 0:
		return s.modifying[0] + " inside a common table expression"
	case s.selectInto:
		return "SELECT ... INTO"
	case len(s.locking) > 0:
		return "FOR " + s.locking[0] + " locking clause"
	}
	return ""
}

// Blocks returns every SELECT core in the statement.
func (s *Statement) Blocks() []*Block { return s.blocks }

// Tables returns the physical tables referenced anywhere in the statement,
// CTE bodies and subqueries included, deduplicated in order of first
// appearance. CTE references are not tables.
func (s *Statement) Tables() []TableRef { return s.tables }

// TableOccurrences returns every physical table reference, duplicates
// included, in textual order.
func (s *Statement) TableOccurrences() []TableRef { return s.allTables }

// Columns returns the column references in textual order.
func (s *Statement) Columns() []ColumnRef { return s.columns }

// ColumnsByTable maps each resolved physical table (as written) to the
// columns referenced through it.
func (s *Statement) ColumnsByTable() map[string][]string {
	out := make(map[string][]string)
	for _, c := range s.columns {
		if c.Resolved && c.Table.IsPhysical() {
			key := c.Table.QualifiedName()
			out[key] = append(out[key], c.Column)
		}
	}
	return out
}

// Functions returns the lower-cased function names in order of first
// appearance. Schema-qualified calls are reported as schema.name.
func (s *Statement) Functions() []string { return s.functions }

// Joins returns every join clause in textual order.
func (s *Statement) Joins() []JoinClause { return s.joins }

// CTENames returns the names of all common table expressions.
func (s *Statement) CTENames() []string { return s.ctes }

// TopBlocks returns the SELECT cores of the outer query; CTE bodies,
// subqueries and derived tables are excluded.
func (s *Statement) TopBlocks() []*Block {
	var out []*Block
	for _, b := range s.blocks {
		if b.Origin == OriginTop {
			out = append(out, b)
		}
	}
	return out
}

// JoinDepth returns the number of distinct non-root tables introduced via
// joins in the outer query. With set operations the largest branch counts.
func (s *Statement) JoinDepth() int {
	depth := 0
	for _, b := range s.TopBlocks() {
		seen := make(map[string]bool)
		for _, j := range b.Joins {
			seen[j.Right.RefName()+"\x00"+j.Right.QualifiedName()] = true
		}
		if len(seen) > depth {
			depth = len(seen)
		}
	}
	return depth
}

// HasWhere reports whether every SELECT core of the outer query has a
// WHERE clause.
func (s *Statement) HasWhere() bool {
	top := s.TopBlocks()
	if len(top) == 0 {
		return false
	}
	for _, b := range top {
		if !b.HasWhere {
			return false
		}
	}
	return true
}

// Limit returns the statement-level row limit, or nil when there is none.
// LIMIT takes precedence over FETCH FIRST.
func (s *Statement) Limit() *LimitInfo {
	if s.root == nil {
		return nil
	}
	if lc := s.root.Limit; lc != nil {
		info := &LimitInfo{All: lc.All, ClauseSpan: lc.Span}
		if lc.Count != nil {
			info.ValueSpan = spanOf(lc.Count)
			info.Value, info.Literal = intLiteral(lc.Count)
		}
		return info
	}
	if fc := s.root.Fetch; fc != nil {
		info := &LimitInfo{Fetch: true, ClauseSpan: fc.Span, Value: 1, Literal: true}
		if fc.Count != nil {
			info.ValueSpan = spanOf(fc.Count)
			info.Value, info.Literal = intLiteral(fc.Count)
		}
		return info
	}
	return nil
}

func intLiteral(e ast.Expr) (int64, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok || lit.Type != ast.LiteralNumber {
		return 0, false
	}
	v, err := strconv.ParseInt(lit.Value, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func spanOf(n ast.Node) token.Span {
	return token.Span{Start: n.Pos(), End: n.End()}
}
