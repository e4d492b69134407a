package ast

// ---------- Expression Types ----------

// LiteralType represents the type of a literal.
type LiteralType int

// LiteralType constants for SQL literal types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
	LiteralTyped // DATE '2024-01-01', INTERVAL '1 day'
)

// Literal represents a literal value.
type Literal struct {
	NodeInfo
	Type     LiteralType
	Value    string
	TypeName string // only for LiteralTyped
}

func (*Literal) exprNode() {}

// Param is a bind parameter ($1, ?, :name).
type Param struct {
	NodeInfo
	Name string
}

func (*Param) exprNode() {}

// ColumnRef represents a column reference, optionally qualified.
type ColumnRef struct {
	NodeInfo
	Schema string
	Table  string
	Column string
}

func (*ColumnRef) exprNode() {}

// BinaryExpr represents a binary expression.
type BinaryExpr struct {
	NodeInfo
	Left  Expr
	Op    string
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression (NOT, -, +).
type UnaryExpr struct {
	NodeInfo
	Op   string
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	NodeInfo
	Schema      string
	Name        string
	Distinct    bool
	Star        bool // COUNT(*)
	Args        []Expr
	OrderBy     []OrderByItem // string_agg(x, ',' ORDER BY y)
	WithinGroup []OrderByItem
	Filter      Expr
	Window      *WindowSpec
}

func (*FuncCall) exprNode() {}

// QualifiedName returns schema.name, or name when unqualified.
func (f *FuncCall) QualifiedName() string {
	if f.Schema == "" {
		return f.Name
	}
	return f.Schema + "." + f.Name
}

// WindowSpec represents a window specification.
type WindowSpec struct {
	Name        string // reference to a named window
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameSpec represents a window frame.
type FrameSpec struct {
	Unit  string // ROWS, RANGE, GROUPS
	Start FrameBound
	End   *FrameBound
}

// FrameBound is one end of a window frame.
type FrameBound struct {
	Kind   string // UNBOUNDED PRECEDING, CURRENT ROW, PRECEDING, FOLLOWING ...
	Offset Expr
}

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	NodeInfo
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// WhenClause represents a WHEN clause in CASE.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(expr AS type) and expr::type.
type CastExpr struct {
	NodeInfo
	Expr     Expr
	TypeName string
}

func (*CastExpr) exprNode() {}

// InExpr represents an IN expression.
type InExpr struct {
	NodeInfo
	Expr   Expr
	Not    bool
	Values []Expr
	Query  *SelectStmt
}

func (*InExpr) exprNode() {}

// BetweenExpr represents a BETWEEN expression.
type BetweenExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// LikeExpr represents LIKE / ILIKE.
type LikeExpr struct {
	NodeInfo
	Expr    Expr
	Not     bool
	Op      string // LIKE or ILIKE
	Pattern Expr
	Escape  Expr
}

func (*LikeExpr) exprNode() {}

// IsExpr represents IS [NOT] NULL/TRUE/FALSE and IS [NOT] DISTINCT FROM.
type IsExpr struct {
	NodeInfo
	Expr  Expr
	Not   bool
	Value string // NULL, TRUE, FALSE, DISTINCT FROM
	Right Expr   // only for DISTINCT FROM
}

func (*IsExpr) exprNode() {}

// ExistsExpr represents EXISTS (subquery).
type ExistsExpr struct {
	NodeInfo
	Not    bool
	Select *SelectStmt
}

func (*ExistsExpr) exprNode() {}

// SubqueryExpr represents a scalar subquery.
type SubqueryExpr struct {
	NodeInfo
	Select *SelectStmt
}

func (*SubqueryExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	NodeInfo
	Expr Expr
}

func (*ParenExpr) exprNode() {}

// TupleExpr represents a row constructor: (a, b, c).
type TupleExpr struct {
	NodeInfo
	Elems []Expr
}

func (*TupleExpr) exprNode() {}

// ArrayExpr represents ARRAY[...].
type ArrayExpr struct {
	NodeInfo
	Elems []Expr
}

func (*ArrayExpr) exprNode() {}

// IndexExpr represents subscripting: expr[index].
type IndexExpr struct {
	NodeInfo
	Expr  Expr
	Index Expr
}

func (*IndexExpr) exprNode() {}
