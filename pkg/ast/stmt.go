package ast

// ---------- Statement Types ----------

// SelectStmt is a complete query: optional WITH clause, a body of one or
// more set-operation terms, and the statement-level ORDER BY / LIMIT /
// OFFSET / FETCH / locking clauses.
type SelectStmt struct {
	NodeInfo
	With    *WithClause
	Body    *SelectBody
	OrderBy []OrderByItem
	Limit   *LimitClause
	Offset  Expr
	Fetch   *FetchClause
	Locking []string // FOR UPDATE, FOR SHARE, ...
}

func (*SelectStmt) stmtNode() {}

// OpaqueStmt is a statement the parser classifies by its leading keyword
// without parsing the rest. It is produced for every non-query statement and
// for every segment of a multi-statement script.
type OpaqueStmt struct {
	NodeInfo
	Keyword string // upper-case leading word, or the leading punctuation
}

func (*OpaqueStmt) stmtNode() {}

// WithClause represents a WITH clause with CTEs.
type WithClause struct {
	NodeInfo
	Recursive bool
	CTEs      []*CTE
}

// CTE represents a Common Table Expression.
type CTE struct {
	NodeInfo
	Name    string
	Columns []string
	Select  *SelectStmt
	// Modifying holds the upper-case verb (INSERT, UPDATE, DELETE, MERGE)
	// when the body is a data-modifying statement. Select is nil then.
	Modifying string
}

// SelectBody represents the body of a SELECT with possible set operations.
type SelectBody struct {
	NodeInfo
	Left  QueryTerm
	Op    SetOpType
	All   bool
	Right *SelectBody
}

// SetOpType represents the type of set operation.
type SetOpType string

// SetOpType constants for set operations in queries.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SelectCore represents a single SELECT ... FROM ... WHERE ... block.
type SelectCore struct {
	NodeInfo
	Distinct   bool
	DistinctOn []Expr
	Columns    []SelectItem
	Into       *TableName // SELECT ... INTO creates a table
	From       *FromClause
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	Windows    []WindowDef
}

func (*SelectCore) queryTermNode() {}

// ParenQuery is a parenthesized query used as a set-operation operand.
type ParenQuery struct {
	NodeInfo
	Select *SelectStmt
}

func (*ParenQuery) queryTermNode() {}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool   // SELECT *
	TableStar string // SELECT t.*
	Expr      Expr
	Alias     string
}

// OrderByItem represents an item in ORDER BY.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool
}

// LimitClause is LIMIT n or LIMIT ALL.
type LimitClause struct {
	NodeInfo
	All   bool
	Count Expr // nil for LIMIT ALL
}

// FetchClause represents FETCH FIRST/NEXT n ROWS ONLY.
type FetchClause struct {
	NodeInfo
	Count Expr // nil means one row
}

// WindowDef is a named window from the WINDOW clause.
type WindowDef struct {
	Name string
	Spec *WindowSpec
}
