// Package ast defines the syntax tree produced by the SQL parser.
//
// The node set is closed: every concrete node implements exactly one of the
// sealed marker interfaces below, and Inspect switches over all of them, so a
// new construct cannot be added without deciding how the walker handles it.
package ast

import "github.com/leapstack-labs/sqlgate/pkg/token"

// Node is the base interface for all AST nodes.
type Node interface {
	// Pos returns the position of the first character of the node.
	Pos() token.Position
	// End returns the position of the character immediately after the node.
	End() token.Position
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a marker interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// TableRef is a marker interface for FROM clause items.
type TableRef interface {
	Node
	tableRefNode()
}

// QueryTerm is an operand of a set operation: a bare SELECT core or a
// parenthesized query.
type QueryTerm interface {
	Node
	queryTermNode()
}

// NodeInfo carries the source span shared by every node.
type NodeInfo struct {
	Span token.Span
}

// Pos implements Node.
func (n NodeInfo) Pos() token.Position { return n.Span.Start }

// End implements Node.
func (n NodeInfo) End() token.Position { return n.Span.End }
