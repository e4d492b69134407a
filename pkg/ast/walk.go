package ast

import "fmt"

// Inspect traverses the tree rooted at node in depth-first order. It calls
// f(node); when f returns true, Inspect descends into the node's children.
// Nil nodes are skipped. Inspect panics on a node type it does not know.
func Inspect(node Node, f func(Node) bool) {
	if isNil(node) || !f(node) {
		return
	}

	switch n := node.(type) {
	// Statements
	case *SelectStmt:
		walk(n.With, f)
		walk(n.Body, f)
		walkOrderBy(n.OrderBy, f)
		walk(n.Limit, f)
		walk(n.Offset, f)
		walk(n.Fetch, f)
	case *OpaqueStmt:
	case *WithClause:
		for _, cte := range n.CTEs {
			walk(cte, f)
		}
	case *CTE:
		walk(n.Select, f)
	case *SelectBody:
		walk(n.Left, f)
		walk(n.Right, f)
	case *SelectCore:
		walkExprs(n.DistinctOn, f)
		for _, item := range n.Columns {
			walk(item.Expr, f)
		}
		walk(n.Into, f)
		walk(n.From, f)
		walk(n.Where, f)
		walkExprs(n.GroupBy, f)
		walk(n.Having, f)
		for _, w := range n.Windows {
			walkWindow(w.Spec, f)
		}
	case *ParenQuery:
		walk(n.Select, f)
	case *LimitClause:
		walk(n.Count, f)
	case *FetchClause:
		walk(n.Count, f)

	// Table references
	case *FromClause:
		walk(n.Source, f)
		for _, j := range n.Joins {
			walk(j, f)
		}
	case *Join:
		walk(n.Right, f)
		walk(n.Condition, f)
	case *TableName:
	case *DerivedTable:
		walk(n.Select, f)
	case *FuncTable:
		walk(n.Func, f)

	// Expressions
	case *Literal, *Param, *ColumnRef:
	case *BinaryExpr:
		walk(n.Left, f)
		walk(n.Right, f)
	case *UnaryExpr:
		walk(n.Expr, f)
	case *FuncCall:
		walkExprs(n.Args, f)
		walkOrderBy(n.OrderBy, f)
		walkOrderBy(n.WithinGroup, f)
		walk(n.Filter, f)
		walkWindow(n.Window, f)
	case *CaseExpr:
		walk(n.Operand, f)
		for _, w := range n.Whens {
			walk(w.Condition, f)
			walk(w.Result, f)
		}
		walk(n.Else, f)
	case *CastExpr:
		walk(n.Expr, f)
	case *InExpr:
		walk(n.Expr, f)
		walkExprs(n.Values, f)
		walk(n.Query, f)
	case *BetweenExpr:
		walk(n.Expr, f)
		walk(n.Low, f)
		walk(n.High, f)
	case *LikeExpr:
		walk(n.Expr, f)
		walk(n.Pattern, f)
		walk(n.Escape, f)
	case *IsExpr:
		walk(n.Expr, f)
		walk(n.Right, f)
	case *ExistsExpr:
		walk(n.Select, f)
	case *SubqueryExpr:
		walk(n.Select, f)
	case *ParenExpr:
		walk(n.Expr, f)
	case *TupleExpr:
		walkExprs(n.Elems, f)
	case *ArrayExpr:
		walkExprs(n.Elems, f)
	case *IndexExpr:
		walk(n.Expr, f)
		walk(n.Index, f)

	default:
		panic(fmt.Sprintf("ast.Inspect: unexpected node type %T", n))
	}
}

func walk(n Node, f func(Node) bool) {
	Inspect(n, f)
}

func walkExprs(exprs []Expr, f func(Node) bool) {
	for _, e := range exprs {
		Inspect(e, f)
	}
}

func walkOrderBy(items []OrderByItem, f func(Node) bool) {
	for _, item := range items {
		Inspect(item.Expr, f)
	}
}

func walkWindow(w *WindowSpec, f func(Node) bool) {
	if w == nil {
		return
	}
	walkExprs(w.PartitionBy, f)
	walkOrderBy(w.OrderBy, f)
	if w.Frame != nil {
		Inspect(w.Frame.Start.Offset, f)
		if w.Frame.End != nil {
			Inspect(w.Frame.End.Offset, f)
		}
	}
}

// isNil reports whether n is nil or a typed nil pointer.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	switch v := n.(type) {
	case *SelectStmt:
		return v == nil
	case *WithClause:
		return v == nil
	case *CTE:
		return v == nil
	case *SelectBody:
		return v == nil
	case *SelectCore:
		return v == nil
	case *ParenQuery:
		return v == nil
	case *LimitClause:
		return v == nil
	case *FetchClause:
		return v == nil
	case *FromClause:
		return v == nil
	case *Join:
		return v == nil
	case *TableName:
		return v == nil
	case *FuncCall:
		return v == nil
	}
	return false
}
