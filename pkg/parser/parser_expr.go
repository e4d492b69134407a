package parser

import (
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// Expression parsing uses precedence climbing (Pratt).
//
// Precedence levels:
//
//	precedenceNone       = 0
//	precedenceOr         = 1
//	precedenceAnd        = 2
//	precedenceNot        = 3
//	precedenceIs         = 4  (IS)
//	precedenceComparison = 5  (=, <>, <, >, <=, >=, IN, BETWEEN, LIKE, ILIKE)
//	precedenceOther      = 6  (||, ->, ~, @> and other operators)
//	precedenceAddition   = 7  (+, -)
//	precedenceMultiply   = 8  (*, /, %)
//	precedenceUnary      = 9  (-, +)
//
// Postfix :: and [] bind tighter than everything and are applied directly
// after a primary expression.
const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceIs
	precedenceComparison
	precedenceOther
	precedenceAddition
	precedenceMultiply
	precedenceUnary
)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() ast.Expr {
	return p.parseExpressionWithPrecedence(precedenceNone + 1)
}

// parseExpressionWithPrecedence parses operators binding at least as tightly
// as minPrecedence.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) ast.Expr {
	start := p.token.Pos
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for !p.failed() {
		prec := p.infixPrecedence()
		if prec == precedenceNone || prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(start, left, prec)
		if left == nil {
			break
		}
	}

	return left
}

// parsePrefixExpr parses unary operators and primary expressions.
func (p *Parser) parsePrefixExpr() ast.Expr {
	start := p.token.Pos
	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceNot)
		return &ast.UnaryExpr{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Op: "NOT", Expr: expr}

	case token.MINUS, token.PLUS:
		op := p.token.Literal
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceUnary)
		return &ast.UnaryExpr{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Op: op, Expr: expr}

	case token.OP:
		// prefix operators such as ~ (bitwise not) and @ (absolute value)
		op := p.token.Literal
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceUnary)
		return &ast.UnaryExpr{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Op: op, Expr: expr}

	default:
		return p.parsePostfix(start, p.parsePrimary())
	}
}

// parsePostfix applies :: casts and [] subscripts.
func (p *Parser) parsePostfix(start token.Position, expr ast.Expr) ast.Expr {
	for expr != nil && !p.failed() {
		switch {
		case p.match(token.DCOLON):
			typeName := p.parseTypeName()
			expr = &ast.CastExpr{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Expr: expr, TypeName: typeName}
		case p.match(token.LBRACKET):
			idx := &ast.IndexExpr{Expr: expr, Index: p.parseExpression()}
			p.expect(token.RBRACKET)
			idx.Span = p.spanFrom(start)
			expr = idx
		default:
			return expr
		}
	}
	return expr
}

// infixPrecedence returns the precedence of the current token as an infix
// operator, or precedenceNone.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case token.OR:
		return precedenceOr
	case token.AND:
		return precedenceAnd
	case token.IS:
		return precedenceIs
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE,
		token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
		return precedenceComparison
	case token.NOT:
		switch p.peek().Type {
		case token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
			return precedenceComparison
		}
		return precedenceNone
	case token.DPIPE, token.OP:
		return precedenceOther
	case token.IDENT:
		if p.token.Is("AT") && p.peek().Is("TIME") {
			return precedenceOther
		}
	case token.PLUS, token.MINUS:
		return precedenceAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precedenceMultiply
	}
	return precedenceNone
}

// parseInfixExpr parses the operator at the current token with left as its
// left operand.
func (p *Parser) parseInfixExpr(start token.Position, left ast.Expr, prec int) ast.Expr {
	not := p.match(token.NOT)

	switch p.token.Type {
	case token.IS:
		return p.parseIsExpr(start, left)

	case token.IN:
		p.nextToken()
		return p.parseInExpr(start, left, not)

	case token.BETWEEN:
		p.nextToken()
		p.matchWord("SYMMETRIC")
		low := p.parseExpressionWithPrecedence(precedenceComparison + 1)
		p.expect(token.AND)
		high := p.parseExpressionWithPrecedence(precedenceComparison + 1)
		return &ast.BetweenExpr{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Expr: left, Not: not, Low: low, High: high}

	case token.LIKE, token.ILIKE:
		op := strings.ToUpper(p.token.Literal)
		p.nextToken()
		pattern := p.parseExpressionWithPrecedence(precedenceComparison + 1)
		like := &ast.LikeExpr{Expr: left, Not: not, Op: op, Pattern: pattern}
		if p.match(token.ESCAPE) {
			like.Escape = p.parseExpressionWithPrecedence(precedenceComparison + 1)
		}
		like.Span = p.spanFrom(start)
		return like
	}

	op := p.token.Literal
	switch p.token.Type {
	case token.IDENT:
		// AT TIME ZONE
		p.nextToken()
		p.nextToken()
		p.expectWord("ZONE")
		right := p.parseExpressionWithPrecedence(prec + 1)
		return &ast.BinaryExpr{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Left: left, Op: "AT TIME ZONE", Right: right}
	case token.AND, token.OR:
		op = strings.ToUpper(op)
	case token.NE:
		op = "<>"
	}
	p.nextToken()
	right := p.parseExpressionWithPrecedence(prec + 1)
	if right == nil {
		return nil
	}
	return &ast.BinaryExpr{NodeInfo: ast.NodeInfo{Span: p.spanFrom(start)}, Left: left, Op: op, Right: right}
}

// parseIsExpr parses IS [NOT] {NULL | TRUE | FALSE | UNKNOWN | DISTINCT FROM expr}.
func (p *Parser) parseIsExpr(start token.Position, left ast.Expr) ast.Expr {
	p.nextToken() // consume IS
	is := &ast.IsExpr{Expr: left, Not: p.match(token.NOT)}

	switch {
	case p.match(token.NULL):
		is.Value = "NULL"
	case p.match(token.TRUE):
		is.Value = "TRUE"
	case p.match(token.FALSE):
		is.Value = "FALSE"
	case p.matchWord("UNKNOWN"):
		is.Value = "UNKNOWN"
	case p.match(token.DISTINCT):
		p.expect(token.FROM)
		is.Value = "DISTINCT FROM"
		is.Right = p.parseExpressionWithPrecedence(precedenceIs + 1)
	default:
		p.errorExpected("NULL, TRUE, FALSE or DISTINCT FROM")
		return nil
	}

	is.Span = p.spanFrom(start)
	return is
}

// parseInExpr parses the part after IN: (subquery) or (expr, ...).
func (p *Parser) parseInExpr(start token.Position, left ast.Expr, not bool) ast.Expr {
	in := &ast.InExpr{Expr: left, Not: not}
	if !p.expect(token.LPAREN) {
		return nil
	}
	if p.check(token.SELECT) || p.check(token.WITH) {
		in.Query = p.parseQuery()
	} else {
		in.Values = p.parseExpressionList()
	}
	p.expect(token.RPAREN)
	in.Span = p.spanFrom(start)
	return in
}

// parseTypeName parses a type name for CAST and ::, including the
// multi-word PostgreSQL spellings, modifiers and array suffixes.
func (p *Parser) parseTypeName() string {
	if !isIdentLike(p.token) {
		p.errorExpected("type name")
		return ""
	}
	words := []string{strings.ToLower(p.token.Literal)}
	p.nextToken()
	if p.match(token.DOT) {
		words[0] += "." + strings.ToLower(p.parseIdent("type name"))
	}

	switch words[0] {
	case "double":
		if p.matchWord("PRECISION") {
			words = append(words, "precision")
		}
	case "character", "char", "bit":
		if p.matchWord("VARYING") {
			words = append(words, "varying")
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(words, " "))
	if p.match(token.LPAREN) {
		b.WriteByte('(')
		for i := 0; !p.check(token.RPAREN) && !p.check(token.EOF); i++ {
			if i > 0 && !p.expect(token.COMMA) {
				return ""
			}
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(p.token.Literal)
			p.nextToken()
		}
		p.expect(token.RPAREN)
		b.WriteByte(')')
	}

	if words[0] == "timestamp" || words[0] == "time" {
		switch {
		case p.check(token.WITH) && p.peek().Is("TIME"):
			p.nextToken()
			p.nextToken()
			p.expectWord("ZONE")
			b.WriteString(" with time zone")
		case p.checkWord("WITHOUT"):
			p.nextToken()
			p.expectWord("TIME")
			p.expectWord("ZONE")
			b.WriteString(" without time zone")
		}
	}

	for p.check(token.LBRACKET) && p.checkPeek(token.RBRACKET) {
		p.nextToken()
		p.nextToken()
		b.WriteString("[]")
	}
	return b.String()
}
