package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// modifyingVerbs are statement verbs that turn a CTE body or a WITH-prefixed
// statement into a data-modifying one.
var modifyingVerbs = []string{"INSERT", "UPDATE", "DELETE", "MERGE"}

func (p *Parser) modifyingVerb() string {
	for _, v := range modifyingVerbs {
		if p.checkWord(v) {
			return v
		}
	}
	return ""
}

// ---------- Statement Parsing ----------

// parseStatement parses a complete query. A WITH clause followed by a
// data-modifying statement yields an OpaqueStmt named after its verb.
//
//	statement → [WITH cte_list] select_body [ORDER BY ...] [LIMIT ...]
//	            [OFFSET ...] [FETCH ...] [FOR ...]
func (p *Parser) parseStatement() ast.Stmt {
	start := p.token.Pos
	stmt := &ast.SelectStmt{}

	if p.check(token.WITH) {
		stmt.With = p.parseWithClause()
		if p.failed() {
			return stmt
		}
		if verb := p.modifyingVerb(); verb != "" {
			op := &ast.OpaqueStmt{Keyword: verb}
			for !p.check(token.EOF) {
				p.nextToken()
			}
			op.Span = p.spanFrom(start)
			return op
		}
	}

	p.parseQueryRest(stmt)
	stmt.Span = p.spanFrom(start)
	return stmt
}

// parseQuery parses a nested query (subquery, derived table, CTE body).
func (p *Parser) parseQuery() *ast.SelectStmt {
	start := p.token.Pos
	stmt := &ast.SelectStmt{}
	if p.check(token.WITH) {
		stmt.With = p.parseWithClause()
		if verb := p.modifyingVerb(); verb != "" {
			p.addError(fmt.Sprintf(ErrUnsupported, verb+" inside a subquery"))
			return stmt
		}
	}
	p.parseQueryRest(stmt)
	stmt.Span = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseQueryRest(stmt *ast.SelectStmt) {
	stmt.Body = p.parseSelectBody()

	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		stmt.OrderBy = p.parseOrderByList()
	}

	// PostgreSQL accepts LIMIT and OFFSET in either order.
	for !p.failed() {
		switch {
		case p.check(token.LIMIT) && stmt.Limit == nil:
			stmt.Limit = p.parseLimit()
		case p.check(token.OFFSET) && stmt.Offset == nil:
			p.nextToken()
			stmt.Offset = p.parseExpression()
			if !p.match(token.ROWS) {
				p.match(token.ROW)
			}
		case p.check(token.FETCH) && stmt.Fetch == nil:
			stmt.Fetch = p.parseFetch()
		default:
			stmt.Locking = p.parseLocking()
			return
		}
	}
}

// parseLimit parses LIMIT expr | LIMIT ALL.
func (p *Parser) parseLimit() *ast.LimitClause {
	start := p.token.Pos
	p.nextToken() // consume LIMIT
	lc := &ast.LimitClause{}
	if p.match(token.ALL) {
		lc.All = true
	} else {
		lc.Count = p.parseExpression()
	}
	lc.Span = p.spanFrom(start)
	return lc
}

// parseFetch parses FETCH {FIRST|NEXT} [count] {ROW|ROWS} {ONLY|WITH TIES}.
func (p *Parser) parseFetch() *ast.FetchClause {
	start := p.token.Pos
	p.nextToken() // consume FETCH
	if !p.match(token.FIRST) && !p.match(token.NEXT) {
		p.errorExpected("FIRST or NEXT")
		return nil
	}
	fc := &ast.FetchClause{}
	if !p.check(token.ROW) && !p.check(token.ROWS) {
		fc.Count = p.parseExpression()
	}
	if !p.match(token.ROWS) && !p.match(token.ROW) {
		p.errorExpected("ROWS")
		return nil
	}
	if p.match(token.WITH) {
		p.expectWord("TIES")
	} else {
		p.expect(token.ONLY)
	}
	fc.Span = p.spanFrom(start)
	return fc
}

// parseLocking parses any number of FOR UPDATE / FOR SHARE clauses.
func (p *Parser) parseLocking() []string {
	var modes []string
	for p.match(token.FOR) {
		var words []string
		for {
			switch {
			case p.checkWord("UPDATE"), p.checkWord("SHARE"), p.checkWord("NO"), p.checkWord("KEY"):
				words = append(words, strings.ToUpper(p.token.Literal))
				p.nextToken()
				continue
			}
			break
		}
		if len(words) == 0 {
			p.errorExpected("UPDATE or SHARE")
			return modes
		}
		modes = append(modes, strings.Join(words, " "))
		if p.matchWord("OF") {
			for {
				p.parseQualifiedName()
				if !p.match(token.COMMA) {
					break
				}
			}
		}
		if !p.matchWord("NOWAIT") && p.matchWord("SKIP") {
			p.expectWord("LOCKED")
		}
	}
	return modes
}

// parseWithClause parses WITH [RECURSIVE] cte_list.
func (p *Parser) parseWithClause() *ast.WithClause {
	start := p.token.Pos
	p.nextToken() // consume WITH

	with := &ast.WithClause{}
	with.Recursive = p.match(token.RECURSIVE)

	for {
		cte := p.parseCTE()
		if cte != nil {
			with.CTEs = append(with.CTEs, cte)
		}
		if p.failed() || !p.match(token.COMMA) {
			break
		}
	}
	with.Span = p.spanFrom(start)
	return with
}

// parseCTE parses: name [(columns)] AS [[NOT] MATERIALIZED] (query)
func (p *Parser) parseCTE() *ast.CTE {
	start := p.token.Pos
	cte := &ast.CTE{Name: p.parseIdent("CTE name")}

	if p.match(token.LPAREN) {
		cte.Columns = p.parseIdentList()
		p.expect(token.RPAREN)
	}

	p.expect(token.AS)
	if p.match(token.NOT) {
		p.expectWord("MATERIALIZED")
	} else {
		p.matchWord("MATERIALIZED")
	}

	if !p.expect(token.LPAREN) {
		return nil
	}
	if verb := p.modifyingVerb(); verb != "" {
		cte.Modifying = verb
		p.skipBalanced()
	} else if p.check(token.SELECT) || p.check(token.WITH) || p.check(token.LPAREN) {
		cte.Select = p.parseQuery()
	} else {
		p.errorExpected("query")
		return nil
	}
	p.expect(token.RPAREN)

	cte.Span = p.spanFrom(start)
	return cte
}

// skipBalanced consumes tokens up to, but not including, the parenthesis
// that closes the current group.
func (p *Parser) skipBalanced() {
	depth := 0
	for !p.check(token.EOF) {
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			if depth == 0 {
				return
			}
			depth--
		}
		p.nextToken()
	}
}

// parseSelectBody parses: query_term [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
func (p *Parser) parseSelectBody() *ast.SelectBody {
	start := p.token.Pos
	body := &ast.SelectBody{Left: p.parseQueryTerm()}

	switch {
	case p.check(token.UNION):
		body.Op = ast.SetOpUnion
	case p.check(token.INTERSECT):
		body.Op = ast.SetOpIntersect
	case p.check(token.EXCEPT):
		body.Op = ast.SetOpExcept
	}
	if body.Op != ast.SetOpNone && !p.failed() {
		p.nextToken()
		if p.match(token.ALL) {
			body.All = true
		} else {
			p.match(token.DISTINCT)
		}
		body.Right = p.parseSelectBody()
	}

	body.Span = p.spanFrom(start)
	return body
}

// parseQueryTerm parses a SELECT core or a parenthesized query.
func (p *Parser) parseQueryTerm() ast.QueryTerm {
	if p.check(token.LPAREN) {
		start := p.token.Pos
		p.nextToken()
		pq := &ast.ParenQuery{Select: p.parseQuery()}
		p.expect(token.RPAREN)
		pq.Span = p.spanFrom(start)
		return pq
	}
	return p.parseSelectCore()
}

// parseSelectCore parses a single SELECT block.
func (p *Parser) parseSelectCore() *ast.SelectCore {
	start := p.token.Pos
	core := &ast.SelectCore{}
	if !p.expect(token.SELECT) {
		return core
	}

	if p.match(token.DISTINCT) {
		core.Distinct = true
		if p.match(token.ON) {
			p.expect(token.LPAREN)
			core.DistinctOn = p.parseExpressionList()
			p.expect(token.RPAREN)
		}
	} else {
		p.match(token.ALL)
	}

	core.Columns = p.parseSelectList()

	if p.match(token.INTO) {
		for p.matchWord("TEMP") || p.matchWord("TEMPORARY") || p.matchWord("UNLOGGED") {
		}
		p.matchWord("TABLE")
		core.Into = p.parseTableName()
	}

	if p.match(token.FROM) {
		core.From = p.parseFromClause()
	}

	if p.match(token.WHERE) {
		core.Where = p.parseExpression()
	}

	if p.check(token.GROUP) {
		p.nextToken()
		p.expect(token.BY)
		if !p.match(token.ALL) {
			p.match(token.DISTINCT)
		}
		core.GroupBy = p.parseExpressionList()
	}

	if p.match(token.HAVING) {
		core.Having = p.parseExpression()
	}

	if p.match(token.WINDOW) {
		for {
			name := p.parseIdent("window name")
			p.expect(token.AS)
			core.Windows = append(core.Windows, ast.WindowDef{Name: name, Spec: p.parseWindowSpec()})
			if p.failed() || !p.match(token.COMMA) {
				break
			}
		}
	}

	core.Span = p.spanFrom(start)
	return core
}

// parseSelectList parses the column list.
func (p *Parser) parseSelectList() []ast.SelectItem {
	var items []ast.SelectItem
	for {
		items = append(items, p.parseSelectItem())
		if p.failed() || !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseSelectItem parses: * | table.* | expr [[AS] alias]
func (p *Parser) parseSelectItem() ast.SelectItem {
	if p.match(token.STAR) {
		return ast.SelectItem{Star: true}
	}

	if isIdentLike(p.token) && p.checkPeek(token.DOT) && p.peek2().Type == token.STAR {
		name := p.token.Literal
		p.nextToken() // table
		p.nextToken() // .
		p.nextToken() // *
		return ast.SelectItem{TableStar: name}
	}

	item := ast.SelectItem{Expr: p.parseExpression()}
	item.Alias = p.parseAlias()
	return item
}

// parseOrderByList parses ORDER BY items.
func (p *Parser) parseOrderByList() []ast.OrderByItem {
	var items []ast.OrderByItem
	for {
		items = append(items, p.parseOrderByItem())
		if p.failed() || !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseOrderByItem parses: expr [ASC|DESC|USING op] [NULLS FIRST|LAST]
func (p *Parser) parseOrderByItem() ast.OrderByItem {
	item := ast.OrderByItem{Expr: p.parseExpression()}

	switch {
	case p.match(token.ASC):
	case p.match(token.DESC):
		item.Desc = true
	case p.match(token.USING):
		p.nextToken() // operator
	}

	if p.match(token.NULLS) {
		first := p.check(token.FIRST)
		if !p.match(token.FIRST) && !p.match(token.LAST) {
			p.errorExpected("FIRST or LAST")
		}
		item.NullsFirst = &first
	}
	return item
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []ast.Expr {
	var exprs []ast.Expr
	for {
		exprs = append(exprs, p.parseExpression())
		if p.failed() || !p.match(token.COMMA) {
			break
		}
	}
	return exprs
}

// parseIdentList parses a comma-separated list of names.
func (p *Parser) parseIdentList() []string {
	var names []string
	for {
		names = append(names, p.parseIdent("column name"))
		if p.failed() || !p.match(token.COMMA) {
			break
		}
	}
	return names
}
