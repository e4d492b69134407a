package analyzer

import (
	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// TableKind classifies a FROM item.
type TableKind int

// TableKind constants.
const (
	TablePhysical TableKind = iota
	TableCTE
	TableDerived
	TableFunction
)

func (k TableKind) String() string {
	switch k {
	case TablePhysical:
		return "table"
	case TableCTE:
		return "cte"
	case TableDerived:
		return "derived"
	case TableFunction:
		return "function"
	}
	return "unknown"
}

// TableRef is one FROM or JOIN item. Names are lower-cased.
type TableRef struct {
	Schema  string // empty when written unqualified
	Name    string // table, CTE or function name; alias for derived tables
	Alias   string
	Kind    TableKind
	Block   int // index into Statement.Blocks
	Ordinal int // introduction order within the block; the root item is 0
	// Span covers the written table name for physical tables and the whole
	// item otherwise.
	Span token.Span
}

// QualifiedName returns schema.name, or name when unqualified.
func (t TableRef) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// RefName returns the name other clauses use to reference this item.
func (t TableRef) RefName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// IsPhysical reports whether the item names a stored table.
func (t TableRef) IsPhysical() bool {
	return t.Kind == TablePhysical
}

// Confidence grades a column resolution.
type Confidence int

// Confidence constants.
const (
	ConfidenceHigh Confidence = iota
	ConfidenceLow
)

func (c Confidence) String() string {
	if c == ConfidenceHigh {
		return "high"
	}
	return "low"
}

// ColumnRef is a column reference with its best-effort owner.
type ColumnRef struct {
	Column     string
	Qualifier  string // as written, lower-cased; empty when unqualified
	Table      TableRef
	Resolved   bool // Table is set
	Confidence Confidence
	// Candidates lists the physical tables an unqualified column may belong
	// to when the scope has more than one.
	Candidates []TableRef
	Span       token.Span
}

// ColumnPair is an equality between two resolved columns in a join
// condition.
type ColumnPair struct {
	Left  ColumnRef
	Right ColumnRef
}

// JoinClause is one join in textual order.
type JoinClause struct {
	Type    ast.JoinType
	Natural bool
	// Left is the earlier table the join attaches to: the first earlier
	// table the ON condition references, else the most recently introduced
	// one. A comma join takes its condition from the WHERE equalities that
	// reference it, which also fill Equalities.
	Left         TableRef
	LeftFromOn   bool
	Right        TableRef
	Condition    ast.Expr
	Using        []string
	Equalities   []ColumnPair
	Block        int
	Span         token.Span
	earlierCount int
}

// Origin says where a query block sits in the statement.
type Origin int

// Origin constants.
const (
	OriginTop Origin = iota
	OriginCTE
	OriginSubquery
	OriginDerived
)

func (o Origin) String() string {
	switch o {
	case OriginTop:
		return "top"
	case OriginCTE:
		return "cte"
	case OriginSubquery:
		return "subquery"
	case OriginDerived:
		return "derived"
	}
	return "unknown"
}

// Block is one SELECT core with its FROM items and joins.
type Block struct {
	Index    int
	Origin   Origin
	CTEName  string
	Tables   []TableRef
	Joins    []JoinClause
	HasWhere bool
	Span     token.Span
}

// Earlier returns the tables introduced before the join's right table.
func (b *Block) Earlier(j JoinClause) []TableRef {
	return b.Tables[:j.earlierCount]
}

// LimitInfo describes the statement-level row limit.
type LimitInfo struct {
	All     bool  // LIMIT ALL
	Literal bool  // Value holds an integer literal
	Value   int64 // meaningful only when Literal
	Fetch   bool  // written as FETCH FIRST
	// ClauseSpan covers the whole clause; ValueSpan the count expression.
	// ValueSpan is zero for LIMIT ALL and for FETCH without a count.
	ClauseSpan token.Span
	ValueSpan  token.Span
}
