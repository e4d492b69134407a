package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIdent(t *testing.T) {
	assert.Equal(t, SELECT, LookupIdent("select"))
	assert.Equal(t, NATURAL, LookupIdent("natural"))
	assert.Equal(t, IDENT, LookupIdent("delete"), "statement verbs lex as identifiers")
	assert.Equal(t, IDENT, LookupIdent("SELECT"), "lookup expects lower case")
}

func TestTokenIs(t *testing.T) {
	kw := Token{Type: SELECT, Literal: "Select"}
	assert.True(t, kw.Is("SELECT"))

	ident := Token{Type: IDENT, Literal: "delete"}
	assert.True(t, ident.Is("DELETE"))

	quoted := Token{Type: IDENT, Literal: "delete", Quoted: true}
	assert.False(t, quoted.Is("DELETE"))
	assert.False(t, quoted.IsWord())

	str := Token{Type: STRING, Literal: "delete"}
	assert.False(t, str.Is("DELETE"))
}

func TestTokenTypeString(t *testing.T) {
	assert.Equal(t, "WHERE", WHERE.String())
	assert.Equal(t, "::", DCOLON.String())
	assert.Equal(t, "TOKEN(9999)", TokenType(9999).String())
}

func TestClassification(t *testing.T) {
	assert.True(t, IsKeyword(ALL))
	assert.True(t, IsKeyword(WITHIN))
	assert.False(t, IsKeyword(IDENT))
	assert.True(t, IsOperator(DCOLON))
	assert.True(t, IsNonReserved(FIRST))
	assert.False(t, IsNonReserved(SELECT))
}

func TestSpanText(t *testing.T) {
	src := "SELECT 1"
	tok := Token{Type: NUMBER, Literal: "1", Pos: Position{Line: 1, Column: 8, Offset: 7}, End: 8}
	assert.Equal(t, "1", tok.Span().Text(src))
	assert.Equal(t, "", Span{Start: Position{Offset: 5}, End: Position{Offset: 2}}.Text(src))
}
