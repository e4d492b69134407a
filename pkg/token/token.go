// Package token defines the token types for SQL parsing.
//
// The keyword table covers the read-only subset of PostgreSQL-flavoured SQL
// that the guard understands. Words that only matter for statement
// classification (INSERT, DELETE, VACUUM, ...) lex as IDENT and are
// recognised by literal.
package token

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // identifier
	NUMBER // 123, 45.67, 1e10
	STRING // 'hello'
	PARAM  // $1, ?, :name

	// Operators
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	DPIPE     // ||
	EQ        // =
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	DOT       // .
	COMMA     // ,
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	SEMICOLON // ;
	DCOLON    // ::
	OP        // any other PostgreSQL operator: ~ ~* !~ -> ->> @> <@ && ...

	// Keywords (alphabetical)
	ALL
	AND
	AS
	ASC
	BETWEEN
	BY
	CASE
	CAST
	CROSS
	CURRENT
	DESC
	DISTINCT
	ELSE
	END
	ESCAPE
	EXCEPT
	EXISTS
	FALSE
	FETCH
	FILTER
	FIRST
	FOLLOWING
	FOR
	FROM
	FULL
	GROUP
	GROUPS
	HAVING
	ILIKE
	IN
	INNER
	INTERSECT
	INTO
	IS
	JOIN
	LAST
	LATERAL
	LEFT
	LIKE
	LIMIT
	NATURAL
	NEXT
	NOT
	NULL
	NULLS
	OFFSET
	ON
	ONLY
	OR
	ORDER
	OUTER
	OVER
	PARTITION
	PRECEDING
	RANGE
	RECURSIVE
	RIGHT
	ROW
	ROWS
	SELECT
	THEN
	TRUE
	UNBOUNDED
	UNION
	USING
	WHEN
	WHERE
	WINDOW
	WITH
	WITHIN
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",
	PARAM:  "PARAM",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	DPIPE:     "||",
	EQ:        "=",
	NE:        "!=",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	DOT:       ".",
	COMMA:     ",",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACKET:  "[",
	RBRACKET:  "]",
	SEMICOLON: ";",
	DCOLON:    "::",
	OP:        "OP",
}

var keywords = map[string]TokenType{}

func init() {
	for t, name := range map[TokenType]string{
		ALL: "ALL", AND: "AND", AS: "AS", ASC: "ASC", BETWEEN: "BETWEEN", BY: "BY",
		CASE: "CASE", CAST: "CAST", CROSS: "CROSS", CURRENT: "CURRENT", DESC: "DESC",
		DISTINCT: "DISTINCT", ELSE: "ELSE", END: "END", ESCAPE: "ESCAPE", EXCEPT: "EXCEPT",
		EXISTS: "EXISTS", FALSE: "FALSE", FETCH: "FETCH", FILTER: "FILTER", FIRST: "FIRST",
		FOLLOWING: "FOLLOWING", FOR: "FOR", FROM: "FROM", FULL: "FULL", GROUP: "GROUP",
		GROUPS: "GROUPS", HAVING: "HAVING", ILIKE: "ILIKE", IN: "IN", INNER: "INNER",
		INTERSECT: "INTERSECT", INTO: "INTO", IS: "IS", JOIN: "JOIN", LAST: "LAST",
		LATERAL: "LATERAL", LEFT: "LEFT", LIKE: "LIKE", LIMIT: "LIMIT", NATURAL: "NATURAL",
		NEXT: "NEXT", NOT: "NOT", NULL: "NULL", NULLS: "NULLS", OFFSET: "OFFSET", ON: "ON",
		ONLY: "ONLY", OR: "OR", ORDER: "ORDER", OUTER: "OUTER", OVER: "OVER",
		PARTITION: "PARTITION", PRECEDING: "PRECEDING", RANGE: "RANGE",
		RECURSIVE: "RECURSIVE", RIGHT: "RIGHT", ROW: "ROW", ROWS: "ROWS", SELECT: "SELECT",
		THEN: "THEN", TRUE: "TRUE", UNBOUNDED: "UNBOUNDED", UNION: "UNION", USING: "USING",
		WHEN: "WHEN", WHERE: "WHERE", WINDOW: "WINDOW", WITH: "WITH", WITHIN: "WITHIN",
	} {
		tokenNames[t] = name
		keywords[strings.ToLower(name)] = t
	}
}

// LookupIdent returns the token type for the given lower-case identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, IDENT is returned.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= ALL && t <= WITHIN
}

// IsOperator returns true if the token type is an operator.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= OP
}

// nonReserved lists keywords that may still be used as column, table or
// function names.
var nonReserved = map[TokenType]bool{
	CURRENT: true, ESCAPE: true, FILTER: true, FIRST: true, FOLLOWING: true,
	GROUPS: true, LAST: true, NEXT: true, NULLS: true, ONLY: true, OVER: true,
	PARTITION: true, PRECEDING: true, RANGE: true, RECURSIVE: true, ROW: true,
	ROWS: true, UNBOUNDED: true, WITHIN: true,
}

// IsNonReserved reports whether a keyword can double as an identifier.
func IsNonReserved(t TokenType) bool {
	return nonReserved[t]
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	// End is the byte offset immediately after the token's last character.
	End int
	// Quoted is set for double-quoted identifiers.
	Quoted bool
}

// Span returns the token's source range.
func (t Token) Span() Span {
	return Span{Start: t.Pos, End: Position{Line: t.Pos.Line, Column: t.Pos.Column + (t.End - t.Pos.Offset), Offset: t.End}}
}

// Is reports whether the token is an unquoted word equal to word, ignoring
// case. It matches both keywords and plain identifiers.
func (t Token) Is(word string) bool {
	if t.Quoted || (t.Type != IDENT && !IsKeyword(t.Type)) {
		return false
	}
	return strings.EqualFold(t.Literal, word)
}

// IsWord reports whether the token is an unquoted identifier or keyword.
func (t Token) IsWord() bool {
	return !t.Quoted && (t.Type == IDENT || IsKeyword(t.Type))
}
