package parser

import (
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// niladic lists functions that PostgreSQL calls without parentheses.
var niladic = map[string]bool{
	"current_date": true, "current_time": true, "current_timestamp": true,
	"localtime": true, "localtimestamp": true, "current_user": true,
	"session_user": true, "current_role": true, "current_catalog": true,
	"current_schema": true, "user": true,
}

// ---------- Primary Expression Parsing ----------

// parsePrimary parses literals, names, function calls and the bracketed
// forms (subqueries, tuples, CASE, CAST, EXISTS).
func (p *Parser) parsePrimary() ast.Expr {
	start := p.token.Pos
	tok := p.token

	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		return &ast.Literal{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Type: ast.LiteralNumber, Value: tok.Literal}
	case token.STRING:
		p.nextToken()
		return &ast.Literal{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Type: ast.LiteralString, Value: tok.Literal}
	case token.TRUE, token.FALSE:
		p.nextToken()
		return &ast.Literal{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Type: ast.LiteralBool, Value: strings.ToUpper(tok.Literal)}
	case token.NULL:
		p.nextToken()
		return &ast.Literal{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Type: ast.LiteralNull, Value: "NULL"}
	case token.PARAM:
		p.nextToken()
		return &ast.Param{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Name: tok.Literal}
	case token.LPAREN:
		return p.parseParenExpr()
	case token.CASE:
		return p.parseCaseExpr()
	case token.CAST:
		return p.parseCastExpr()
	case token.EXISTS:
		p.nextToken()
		ex := &ast.ExistsExpr{}
		p.expect(token.LPAREN)
		ex.Select = p.parseQuery()
		p.expect(token.RPAREN)
		ex.Span = p.spanFrom(start)
		return ex
	case token.LEFT, token.RIGHT, token.ALL:
		// left(s, n), right(s, n) and x = ALL(arr) read as function calls
		if p.checkPeek(token.LPAREN) {
			name := strings.ToLower(tok.Literal)
			p.nextToken()
			return p.parseFuncCall(start, "", name)
		}
	}

	if isIdentLike(tok) {
		return p.parseNameExpr()
	}

	p.errorExpected("expression")
	return nil
}

// parseNameExpr parses column references, function calls, typed literals
// and ARRAY constructors, all of which start with a name.
func (p *Parser) parseNameExpr() ast.Expr {
	start := p.token.Pos
	first := p.token
	p.nextToken()

	if !first.Quoted {
		lower := strings.ToLower(first.Literal)
		switch {
		case lower == "array" && p.check(token.LBRACKET):
			p.nextToken()
			arr := &ast.ArrayExpr{}
			if !p.check(token.RBRACKET) {
				arr.Elems = p.parseExpressionList()
			}
			p.expect(token.RBRACKET)
			arr.Span = p.spanFrom(start)
			return arr
		case p.check(token.STRING):
			// DATE '2024-01-01', INTERVAL '1 day', TIMESTAMP '...'
			lit := &ast.Literal{Type: ast.LiteralTyped, TypeName: lower, Value: p.token.Literal}
			p.nextToken()
			lit.Span = p.spanFrom(start)
			return lit
		case niladic[lower] && !p.check(token.LPAREN) && !p.check(token.DOT):
			return &ast.FuncCall{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Name: lower}
		}
	}

	parts := []string{first.Literal}
	for p.check(token.DOT) {
		p.nextToken()
		if p.check(token.STAR) {
			// t.* inside an expression, e.g. row_to_json(t.*)
			p.nextToken()
			parts = append(parts, "*")
			break
		}
		parts = append(parts, p.parseIdent("name"))
		if p.failed() {
			return nil
		}
	}

	if p.check(token.LPAREN) && parts[len(parts)-1] != "*" {
		switch len(parts) {
		case 1:
			return p.parseFuncCall(start, "", parts[0])
		case 2:
			return p.parseFuncCall(start, parts[0], parts[1])
		}
		p.errorExpected("function name")
		return nil
	}

	col := &ast.ColumnRef{}
	switch len(parts) {
	case 1:
		col.Column = parts[0]
	case 2:
		col.Table, col.Column = parts[0], parts[1]
	case 3:
		col.Schema, col.Table, col.Column = parts[0], parts[1], parts[2]
	default:
		p.addError("column reference has too many qualifiers")
		return nil
	}
	col.Span = p.spanFrom(start)
	return col
}

// parseFuncCall parses the argument list and trailing clauses of a function
// call whose name has already been consumed.
//
//	func_call → name '(' [DISTINCT|ALL] [* | args [ORDER BY ...]] ')'
//	            [WITHIN GROUP (ORDER BY ...)] [FILTER (WHERE expr)] [OVER window]
func (p *Parser) parseFuncCall(start token.Position, schema, name string) *ast.FuncCall {
	fn := &ast.FuncCall{Schema: schema, Name: name}
	p.expect(token.LPAREN)

	switch {
	case p.match(token.STAR):
		fn.Star = true
	case p.check(token.RPAREN):
	default:
		if p.match(token.DISTINCT) {
			fn.Distinct = true
		} else {
			p.match(token.ALL)
		}
		fn.Args = p.parseFuncArgs(strings.ToLower(name))
		if p.check(token.ORDER) {
			p.nextToken()
			p.expect(token.BY)
			fn.OrderBy = p.parseOrderByList()
		}
	}
	p.expect(token.RPAREN)

	if p.check(token.WITHIN) {
		p.nextToken()
		p.expect(token.GROUP)
		p.expect(token.LPAREN)
		p.expect(token.ORDER)
		p.expect(token.BY)
		fn.WithinGroup = p.parseOrderByList()
		p.expect(token.RPAREN)
	}

	if p.check(token.FILTER) && p.checkPeek(token.LPAREN) {
		p.nextToken()
		p.nextToken()
		p.expect(token.WHERE)
		fn.Filter = p.parseExpression()
		p.expect(token.RPAREN)
	}

	if p.match(token.OVER) {
		if isIdentLike(p.token) {
			fn.Window = &ast.WindowSpec{Name: p.token.Literal}
			p.nextToken()
		} else {
			fn.Window = p.parseWindowSpec()
		}
	}

	fn.Span = p.spanFrom(start)
	return fn
}

// parseFuncArgs parses function arguments. A few SQL-standard functions use
// keywords instead of commas between arguments; those keywords are treated
// as separators. Subqueries are accepted as arguments.
func (p *Parser) parseFuncArgs(name string) []ast.Expr {
	if name == "trim" {
		if p.checkWord("BOTH") || p.checkWord("LEADING") || p.checkWord("TRAILING") {
			p.nextToken()
		}
		if p.match(token.FROM) {
			return p.parseExpressionList()
		}
	}

	var args []ast.Expr
	for !p.failed() {
		args = append(args, p.parseFuncArg(name))
		switch {
		case p.match(token.COMMA):
		case name == "extract" && p.match(token.FROM):
		case (name == "substring" || name == "overlay" || name == "trim") && p.match(token.FROM):
		case (name == "substring" || name == "overlay") && p.match(token.FOR):
		case name == "overlay" && p.matchWord("PLACING"):
		case name == "position" && p.match(token.IN):
		default:
			return args
		}
	}
	return args
}

func (p *Parser) parseFuncArg(name string) ast.Expr {
	if p.check(token.SELECT) || p.check(token.WITH) {
		start := p.token.Pos
		sub := &ast.SubqueryExpr{Select: p.parseQuery()}
		sub.Span = p.spanFrom(start)
		return sub
	}
	if name == "position" {
		// stop before IN so it separates the arguments
		return p.parseExpressionWithPrecedence(precedenceComparison + 1)
	}
	// name => value named arguments
	if isIdentLike(p.token) && p.checkPeek(token.EQ) && p.peek2().Type == token.GT {
		p.nextToken()
		p.nextToken()
		p.nextToken()
	}
	return p.parseExpression()
}

// parseParenExpr parses (expr), (expr, ...) and (subquery).
func (p *Parser) parseParenExpr() ast.Expr {
	start := p.token.Pos
	p.nextToken() // consume (

	if p.check(token.SELECT) || p.check(token.WITH) {
		sub := &ast.SubqueryExpr{Select: p.parseQuery()}
		p.expect(token.RPAREN)
		sub.Span = p.spanFrom(start)
		return sub
	}

	expr := p.parseExpression()
	if p.check(token.COMMA) {
		elems := []ast.Expr{expr}
		for p.match(token.COMMA) {
			elems = append(elems, p.parseExpression())
		}
		p.expect(token.RPAREN)
		return &ast.TupleExpr{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Elems: elems}
	}
	p.expect(token.RPAREN)
	return &ast.ParenExpr{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Expr: expr}
}

// parseCaseExpr parses CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (p *Parser) parseCaseExpr() ast.Expr {
	start := p.token.Pos
	p.nextToken() // consume CASE

	c := &ast.CaseExpr{}
	if !p.check(token.WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.match(token.WHEN) {
		cond := p.parseExpression()
		p.expect(token.THEN)
		c.Whens = append(c.Whens, ast.WhenClause{Condition: cond, Result: p.parseExpression()})
		if p.failed() {
			return nil
		}
	}
	if len(c.Whens) == 0 {
		p.errorExpected("WHEN")
		return nil
	}
	if p.match(token.ELSE) {
		c.Else = p.parseExpression()
	}
	p.expect(token.END)
	c.Span = p.spanFrom(start)
	return c
}

// parseCastExpr parses CAST(expr AS type).
func (p *Parser) parseCastExpr() ast.Expr {
	start := p.token.Pos
	p.nextToken() // consume CAST
	p.expect(token.LPAREN)
	c := &ast.CastExpr{Expr: p.parseExpression()}
	p.expect(token.AS)
	c.TypeName = p.parseTypeName()
	p.expect(token.RPAREN)
	c.Span = p.spanFrom(start)
	return c
}

// parseWindowSpec parses ( [name] [PARTITION BY ...] [ORDER BY ...] [frame] ).
func (p *Parser) parseWindowSpec() *ast.WindowSpec {
	spec := &ast.WindowSpec{}
	if !p.expect(token.LPAREN) {
		return spec
	}

	if p.check(token.IDENT) {
		spec.Name = p.token.Literal
		p.nextToken()
	}
	if p.check(token.PARTITION) {
		p.nextToken()
		p.expect(token.BY)
		spec.PartitionBy = p.parseExpressionList()
	}
	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		spec.OrderBy = p.parseOrderByList()
	}
	if p.check(token.ROWS) || p.check(token.RANGE) || p.check(token.GROUPS) {
		spec.Frame = p.parseFrameSpec()
	}

	p.expect(token.RPAREN)
	return spec
}

// parseFrameSpec parses {ROWS|RANGE|GROUPS} {bound | BETWEEN bound AND bound}.
func (p *Parser) parseFrameSpec() *ast.FrameSpec {
	frame := &ast.FrameSpec{Unit: strings.ToUpper(p.token.Literal)}
	p.nextToken()

	if p.match(token.BETWEEN) {
		frame.Start = p.parseFrameBound()
		p.expect(token.AND)
		end := p.parseFrameBound()
		frame.End = &end
	} else {
		frame.Start = p.parseFrameBound()
	}

	if p.matchWord("EXCLUDE") {
		switch {
		case p.match(token.CURRENT):
			p.expect(token.ROW)
		case p.match(token.GROUP), p.matchWord("TIES"):
		case p.matchWord("NO"):
			p.matchWord("OTHERS")
		}
	}
	return frame
}

func (p *Parser) parseFrameBound() ast.FrameBound {
	switch {
	case p.match(token.UNBOUNDED):
		if p.match(token.PRECEDING) {
			return ast.FrameBound{Kind: "UNBOUNDED PRECEDING"}
		}
		p.expect(token.FOLLOWING)
		return ast.FrameBound{Kind: "UNBOUNDED FOLLOWING"}
	case p.match(token.CURRENT):
		p.expect(token.ROW)
		return ast.FrameBound{Kind: "CURRENT ROW"}
	}

	offset := p.parseExpressionWithPrecedence(precedenceComparison + 1)
	if p.match(token.PRECEDING) {
		return ast.FrameBound{Kind: "PRECEDING", Offset: offset}
	}
	p.expect(token.FOLLOWING)
	return ast.FrameBound{Kind: "FOLLOWING", Offset: offset}
}
