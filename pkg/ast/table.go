package ast

import "github.com/leapstack-labs/sqlgate/pkg/token"

// ---------- Table Reference Types ----------

// FromClause represents the FROM clause with its joins.
type FromClause struct {
	NodeInfo
	Source TableRef
	Joins  []*Join
}

// Join represents a JOIN clause or a comma-separated FROM item.
type Join struct {
	NodeInfo
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr     // ON condition
	Using     []string // USING columns
}

// JoinType represents the type of join.
type JoinType string

// JoinType constants. Comma-separated FROM items are recorded as JoinComma.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
	JoinComma JoinType = "COMMA"
)

// TableName represents a table name reference.
type TableName struct {
	NodeInfo
	Schema string
	Name   string
	Alias  string
	// NameSpan covers the written reference, schema included when present.
	NameSpan token.Span
}

func (*TableName) tableRefNode() {}

// DerivedTable represents a subquery in the FROM clause, optionally LATERAL.
type DerivedTable struct {
	NodeInfo
	Select  *SelectStmt
	Alias   string
	Lateral bool
}

func (*DerivedTable) tableRefNode() {}

// FuncTable represents a set-returning function in the FROM clause.
type FuncTable struct {
	NodeInfo
	Func    *FuncCall
	Alias   string
	Lateral bool
}

func (*FuncTable) tableRefNode() {}
