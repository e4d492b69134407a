// Package parser turns SQL text into the ast node set.
//
// # Usage
//
//	script, err := parser.Parse("SELECT a, b FROM core.t")
//	if err != nil {
//	    // handle error
//	}
//
// Parse always classifies every top-level statement. Only a lone query
// (SELECT, WITH or a parenthesized SELECT) is parsed in full; anything else
// becomes an ast.OpaqueStmt carrying its leading keyword.
//
// # Grammar Overview
//
//	statement     → [WITH [RECURSIVE] cte_list] select_body
//	                [ORDER BY order_list] [LIMIT expr|ALL] [OFFSET expr]
//	                [FETCH FIRST|NEXT [expr] ROW|ROWS ONLY] [FOR lock_mode ...]
//	select_body   → query_term [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
//	query_term    → select_core | '(' statement ')'
//	select_core   → SELECT [DISTINCT [ON (expr_list)]|ALL] select_list [INTO table]
//	                [FROM from_clause] [WHERE expr] [GROUP BY expr_list]
//	                [HAVING expr] [WINDOW window_list]
//
// See each file for detailed grammar rules for that section.
package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// Script is the result of parsing one SQL text.
type Script struct {
	Source string
	// Tokens holds every token of the text except the trailing EOF. When a
	// later statement has a lexical error, it ends at the ILLEGAL token.
	Tokens []token.Token
	// Statements holds one entry per top-level statement.
	Statements []ast.Stmt
}

// Parse tokenizes sql, splits it at top-level semicolons and parses the
// statements. A text consisting only of whitespace, comments and semicolons
// is an error.
func Parse(sql string) (*Script, error) {
	tokens := Tokenize(sql)
	last := tokens[len(tokens)-1]
	if last.Type == token.ILLEGAL {
		if script := splitAtLexError(sql, tokens); script != nil {
			return script, nil
		}
		return nil, &ParseError{Pos: last.Pos, Message: describeIllegal(last)}
	}

	script := &Script{Source: sql, Tokens: tokens[:len(tokens)-1]}
	segments := Split(script.Tokens)
	if len(segments) == 0 {
		return nil, &ParseError{Pos: last.Pos, Message: ErrEmptyStatement}
	}

	if len(segments) > 1 {
		for _, seg := range segments {
			script.Statements = append(script.Statements, opaque(seg))
		}
		return script, nil
	}

	seg := segments[0]
	if !isQueryStart(seg[0]) {
		script.Statements = append(script.Statements, opaque(seg))
		return script, nil
	}

	p := newParser(seg, last)
	stmt := p.parseStatement()
	if len(p.errors) == 0 && !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrTrailingInput, describe(p.token)))
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	script.Statements = append(script.Statements, stmt)
	return script, nil
}

// splitAtLexError handles a text whose tokenizing stopped at an ILLEGAL
// token. When a top-level semicolon separates earlier content from the
// broken part, the text holds more than one statement and every segment is
// returned as an opaque statement. Otherwise it returns nil. An unterminated
// trailing comment does not count as a statement.
func splitAtLexError(sql string, tokens []token.Token) *Script {
	kept := tokens
	if tokens[len(tokens)-1].Literal == errUnterminatedComment {
		kept = tokens[:len(tokens)-1]
	}
	segments := Split(kept)
	if len(segments) < 2 {
		return nil
	}
	script := &Script{Source: sql, Tokens: kept}
	for _, seg := range segments {
		script.Statements = append(script.Statements, opaque(seg))
	}
	return script
}

// ParseSelect parses sql and returns its single query statement.
func ParseSelect(sql string) (*ast.SelectStmt, error) {
	script, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	if len(script.Statements) != 1 {
		return nil, &ParseError{Pos: token.Position{Line: 1, Column: 1}, Message: "expected a single statement"}
	}
	sel, ok := script.Statements[0].(*ast.SelectStmt)
	if !ok {
		return nil, &ParseError{Pos: script.Statements[0].Pos(), Message: "expected a query"}
	}
	return sel, nil
}

// Split cuts a token stream at top-level semicolons. Empty segments are
// dropped and the semicolons themselves are not included. String literals,
// quoted identifiers and comments are single tokens or skipped entirely, so
// semicolons inside them never split.
func Split(tokens []token.Token) [][]token.Token {
	var segments [][]token.Token
	start := 0
	for i, tok := range tokens {
		if tok.Type == token.EOF {
			break
		}
		if tok.Type != token.SEMICOLON {
			continue
		}
		if i > start {
			segments = append(segments, tokens[start:i])
		}
		start = i + 1
	}
	end := len(tokens)
	if end > 0 && tokens[end-1].Type == token.EOF {
		end--
	}
	if end > start {
		segments = append(segments, tokens[start:end])
	}
	return segments
}

func isQueryStart(tok token.Token) bool {
	return tok.Type == token.SELECT || tok.Type == token.WITH || tok.Type == token.LPAREN
}

func opaque(seg []token.Token) *ast.OpaqueStmt {
	first, lastTok := seg[0], seg[len(seg)-1]
	kw := first.Literal
	switch {
	case first.IsWord():
		kw = strings.ToUpper(kw)
	case first.Type == token.ILLEGAL:
		kw = ""
	}
	return &ast.OpaqueStmt{
		NodeInfo: ast.NodeInfo{Span: token.Span{Start: first.Pos, End: lastTok.Span().End}},
		Keyword:  kw,
	}
}

// Parser parses one query statement from a token segment.
type Parser struct {
	tokens []token.Token
	idx    int
	token  token.Token // current token
	prev   token.Token // last consumed token
	eof    token.Token
	errors []error
}

func newParser(seg []token.Token, eof token.Token) *Parser {
	p := &Parser{tokens: seg, eof: eof, idx: -1}
	p.nextToken()
	return p
}

// ---------- Token Helpers ----------

func (p *Parser) at(i int) token.Token {
	if i < len(p.tokens) {
		return p.tokens[i]
	}
	eof := p.eof
	eof.Type = token.EOF
	if len(p.tokens) > 0 {
		end := p.tokens[len(p.tokens)-1].Span().End
		eof.Pos, eof.End = end, end.Offset
	}
	return eof
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	if p.idx >= 0 {
		p.prev = p.token
	}
	if p.idx < len(p.tokens) {
		p.idx++
	}
	p.token = p.at(p.idx)
}

func (p *Parser) peek() token.Token  { return p.at(p.idx + 1) }
func (p *Parser) peek2() token.Token { return p.at(p.idx + 2) }

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek().Type == t
}

// checkWord returns true if the current token is the unquoted word w.
func (p *Parser) checkWord(w string) bool {
	return p.token.Is(w)
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// matchWord consumes the current token if it is the unquoted word w.
func (p *Parser) matchWord(w string) bool {
	if p.checkWord(w) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.errorExpected(t.String())
	return false
}

func (p *Parser) expectWord(w string) bool {
	if p.matchWord(w) {
		return true
	}
	p.errorExpected(w)
	return false
}

func (p *Parser) errorExpected(what string) {
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), what))
}

// addError adds a parse error. Only the first error is reported; later ones
// are usually cascades.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// spanFrom returns the span from start to the end of the last consumed token.
func (p *Parser) spanFrom(start token.Position) token.Span {
	end := start
	if p.prev.End > 0 || p.prev.Type != token.EOF {
		end = p.prev.Span().End
	}
	return token.Span{Start: start, End: end}
}

// ---------- Keyword Helpers ----------

// isIdentLike returns true for tokens usable as a name: identifiers, quoted
// identifiers and non-reserved keywords.
func isIdentLike(tok token.Token) bool {
	return tok.Type == token.IDENT || token.IsNonReserved(tok.Type)
}

// parseIdent consumes a name token and returns its text. Unquoted names
// keep their spelling; comparisons elsewhere are case-insensitive.
func (p *Parser) parseIdent(what string) string {
	if !isIdentLike(p.token) {
		p.errorExpected(what)
		return ""
	}
	name := p.token.Literal
	p.nextToken()
	return name
}

// parseAlias parses [AS] alias. Without AS only plain identifiers count,
// so a following clause keyword is never mistaken for an alias.
func (p *Parser) parseAlias() string {
	if p.match(token.AS) {
		if !p.token.IsWord() && p.token.Type != token.IDENT {
			p.errorExpected("alias")
			return ""
		}
		name := p.token.Literal
		p.nextToken()
		return name
	}
	if p.check(token.IDENT) {
		name := p.token.Literal
		p.nextToken()
		return name
	}
	return ""
}

func describe(tok token.Token) string {
	switch {
	case tok.Type == token.EOF:
		return "end of input"
	case tok.Type == token.IDENT:
		return fmt.Sprintf("identifier %q", tok.Literal)
	case tok.Type == token.NUMBER:
		return "number " + tok.Literal
	case tok.Type == token.STRING:
		return "string literal"
	case token.IsKeyword(tok.Type):
		return strings.ToUpper(tok.Literal)
	}
	return fmt.Sprintf("%q", tok.Literal)
}

func describeIllegal(tok token.Token) string {
	if strings.HasPrefix(tok.Literal, "unterminated") {
		return tok.Literal
	}
	return fmt.Sprintf("unexpected character %q", tok.Literal)
}
