package parser

import (
	"fmt"

	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// ---------- FROM Clause Parsing ----------

// parseFromClause parses: table_ref { join }
func (p *Parser) parseFromClause() *ast.FromClause {
	start := p.token.Pos
	from := &ast.FromClause{Source: p.parseTableRef()}

	for !p.failed() {
		j := p.parseJoin()
		if j == nil {
			break
		}
		from.Joins = append(from.Joins, j)
	}

	from.Span = p.spanFrom(start)
	return from
}

// parseTableRef parses a table reference.
//
//	table_ref → [ONLY] table_name [[AS] alias [(columns)]]
//	          | [LATERAL] '(' query ')' [AS] alias
//	          | [LATERAL] func_call [[AS] alias]
func (p *Parser) parseTableRef() ast.TableRef {
	start := p.token.Pos
	lateral := p.match(token.LATERAL)

	if p.check(token.LPAREN) {
		next := p.peek()
		if next.Type != token.SELECT && next.Type != token.WITH && next.Type != token.LPAREN {
			p.addError(fmt.Sprintf(ErrUnsupported, "parenthesized join"))
			return nil
		}
		p.nextToken()
		dt := &ast.DerivedTable{Select: p.parseQuery(), Lateral: lateral}
		p.expect(token.RPAREN)
		dt.Alias = p.parseAlias()
		p.skipColumnAliases()
		dt.Span = p.spanFrom(start)
		return dt
	}

	p.match(token.ONLY)
	nameStart := p.token
	schema, name := p.parseQualifiedName()
	if p.failed() {
		return nil
	}

	if p.check(token.LPAREN) {
		fn := p.parseFuncCall(nameStart.Pos, schema, name)
		ft := &ast.FuncTable{Func: fn, Lateral: lateral}
		if p.match(token.WITH) {
			p.expectWord("ORDINALITY")
		}
		ft.Alias = p.parseAlias()
		p.skipColumnAliases()
		ft.Span = p.spanFrom(start)
		return ft
	}
	if lateral {
		p.errorExpected("subquery or function after LATERAL")
		return nil
	}

	tn := &ast.TableName{
		Schema:   schema,
		Name:     name,
		NameSpan: p.spanFrom(nameStart.Pos),
	}
	tn.Alias = p.parseAlias()
	p.skipColumnAliases()
	if p.checkWord("TABLESAMPLE") {
		p.addError(fmt.Sprintf(ErrUnsupported, "TABLESAMPLE"))
	}
	tn.Span = p.spanFrom(start)
	return tn
}

// parseTableName parses a bare table name without alias (SELECT ... INTO).
func (p *Parser) parseTableName() *ast.TableName {
	start := p.token.Pos
	schema, name := p.parseQualifiedName()
	span := p.spanFrom(start)
	return &ast.TableName{NodeInfo: ast.NodeInfo{Span: span}, Schema: schema, Name: name, NameSpan: span}
}

// parseQualifiedName parses name or schema.name. Three-part names are
// rejected: cross-database references cannot be validated.
func (p *Parser) parseQualifiedName() (schema, name string) {
	name = p.parseIdent("table name")
	if !p.check(token.DOT) || p.failed() {
		return "", name
	}
	p.nextToken()
	schema, name = name, p.parseIdent("table name")
	if p.check(token.DOT) {
		p.addError(fmt.Sprintf(ErrUnsupported, "cross-database reference"))
	}
	return schema, name
}

// skipColumnAliases consumes an optional (col, ...) list after an alias.
func (p *Parser) skipColumnAliases() {
	if p.check(token.LPAREN) && isIdentLike(p.peek()) {
		p.nextToken()
		p.parseIdentList()
		p.expect(token.RPAREN)
	}
}

// parseJoin parses a join clause, or returns nil when none follows.
//
//	join → ',' table_ref
//	     | [NATURAL] [INNER | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS]
//	       JOIN table_ref [ON expr | USING (columns)]
func (p *Parser) parseJoin() *ast.Join {
	start := p.token.Pos

	if p.match(token.COMMA) {
		j := &ast.Join{Type: ast.JoinComma, Right: p.parseTableRef()}
		j.Span = p.spanFrom(start)
		return j
	}

	if !isJoinStart(p.token.Type) {
		return nil
	}

	j := &ast.Join{Type: ast.JoinInner}
	j.Natural = p.match(token.NATURAL)

	switch {
	case p.match(token.INNER):
	case p.match(token.LEFT):
		j.Type = ast.JoinLeft
		p.match(token.OUTER)
	case p.match(token.RIGHT):
		j.Type = ast.JoinRight
		p.match(token.OUTER)
	case p.match(token.FULL):
		j.Type = ast.JoinFull
		p.match(token.OUTER)
	case p.match(token.CROSS):
		j.Type = ast.JoinCross
	}

	if !p.expect(token.JOIN) {
		return nil
	}
	j.Right = p.parseTableRef()
	if p.failed() {
		return nil
	}

	switch {
	case j.Type == ast.JoinCross || j.Natural:
		if p.check(token.ON) || p.check(token.USING) {
			p.addError("NATURAL and CROSS joins cannot have ON or USING")
			return nil
		}
	default:
		p.parseJoinCondition(j)
	}

	j.Span = p.spanFrom(start)
	return j
}

func isJoinStart(t token.TokenType) bool {
	switch t {
	case token.JOIN, token.INNER, token.LEFT, token.RIGHT, token.FULL, token.CROSS, token.NATURAL:
		return true
	}
	return false
}

// parseJoinCondition parses ON expr | USING (col, ...).
func (p *Parser) parseJoinCondition(j *ast.Join) {
	switch {
	case p.match(token.ON):
		j.Condition = p.parseExpression()
	case p.match(token.USING):
		p.expect(token.LPAREN)
		j.Using = p.parseIdentList()
		p.expect(token.RPAREN)
	default:
		p.errorExpected("ON or USING")
	}
}
