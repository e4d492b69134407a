// Package analyzer builds a queryable representation of a parsed SQL
// statement: its kind, query blocks, tables, columns, joins, functions,
// WHERE presence and row limit.
//
// Identifiers are compared case-insensitively; every name the analyzer
// reports is lower-cased. Column resolution is best effort and never
// authoritative.
package analyzer

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/parser"
	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// Analyze parses sql and builds its Statement. It fails with a
// *parser.ParseError on malformed or unsupported SQL.
func Analyze(sql string) (*Statement, error) {
	script, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}

	st := &Statement{script: script, count: len(script.Statements)}
	switch root := script.Statements[0].(type) {
	case *ast.SelectStmt:
		st.kind = KindSelect
		st.root = root
		b := &builder{st: st}
		b.query(root, OriginTop, "", nil, nil)
		if b.err != nil {
			return nil, b.err
		}
		b.finish()
	case *ast.OpaqueStmt:
		st.kind = root.Keyword
	}
	return st, nil
}

// builder walks a query and fills in the Statement.
type builder struct {
	st  *Statement
	err error
}

// frame is the resolution context for expressions.
type frame struct {
	env   *cteEnv
	scope *scope
	skip  map[string]bool // select-list aliases usable unqualified
}

func (b *builder) fail(pos token.Position, msg string) {
	if b.err == nil {
		b.err = &parser.ParseError{Pos: pos, Message: msg}
	}
}

// query walks a full query: its CTEs, set-operation terms and the
// statement-level clauses.
func (b *builder) query(q *ast.SelectStmt, origin Origin, cteName string, env *cteEnv, parent *scope) {
	if q == nil || b.err != nil {
		return
	}

	if q.With != nil {
		env = env.child()
		for _, cte := range q.With.CTEs {
			name := strings.ToLower(cte.Name)
			if q.With.Recursive {
				env.names[name] = true
			}
			if cte.Modifying != "" {
				b.st.modifying = append(b.st.modifying, cte.Modifying)
			} else {
				b.query(cte.Select, OriginCTE, name, env, parent)
			}
			env.names[name] = true
			b.st.ctes = append(b.st.ctes, name)
		}
	}

	first, aliases := b.body(q.Body, origin, cteName, env, parent)

	// ORDER BY sees the output aliases, plus the input tables of a lone
	// SELECT core.
	orderScope := first
	if q.Body != nil && q.Body.Op != ast.SetOpNone {
		orderScope = nil
	}
	for _, item := range q.OrderBy {
		if orderScope == nil {
			b.subqueries(item.Expr, frame{env: env, scope: parent})
			continue
		}
		b.exprs(item.Expr, frame{env: env, scope: orderScope, skip: aliases})
	}

	outer := frame{env: env, scope: parent}
	if q.Limit != nil {
		b.exprs(q.Limit.Count, outer)
	}
	b.exprs(q.Offset, outer)
	if q.Fetch != nil {
		b.exprs(q.Fetch.Count, outer)
	}
	if len(q.Locking) > 0 {
		b.st.locking = append(b.st.locking, q.Locking...)
	}
}

// body walks the set-operation terms and returns the first core's scope
// and select-list aliases.
func (b *builder) body(body *ast.SelectBody, origin Origin, cteName string, env *cteEnv, parent *scope) (*scope, map[string]bool) {
	var (
		firstScope *scope
		aliases    map[string]bool
	)
	for cur := body; cur != nil && b.err == nil; cur = cur.Right {
		switch term := cur.Left.(type) {
		case *ast.SelectCore:
			sc, al := b.core(term, origin, cteName, env, parent)
			if firstScope == nil && aliases == nil {
				firstScope, aliases = sc, al
			}
		case *ast.ParenQuery:
			b.query(term.Select, origin, cteName, env, parent)
		}
	}
	return firstScope, aliases
}

// core walks one SELECT block.
func (b *builder) core(c *ast.SelectCore, origin Origin, cteName string, env *cteEnv, parent *scope) (*scope, map[string]bool) {
	block := &Block{
		Index:    len(b.st.blocks),
		Origin:   origin,
		CTEName:  cteName,
		HasWhere: c.Where != nil,
		Span:     c.Span,
	}
	b.st.blocks = append(b.st.blocks, block)
	sc := newScope(block, parent)
	fr := frame{env: env, scope: sc}

	if c.Into != nil {
		b.st.selectInto = true
	}

	if c.From != nil {
		b.tableRef(c.From.Source, block, fr)
		for _, j := range c.From.Joins {
			if b.err != nil {
				break
			}
			earlier := len(block.Tables)
			right := b.tableRef(j.Right, block, fr)
			jc := JoinClause{
				Type:         j.Type,
				Natural:      j.Natural,
				Right:        right,
				Condition:    j.Condition,
				Using:        lowerAll(j.Using),
				Block:        block.Index,
				Span:         j.Span,
				earlierCount: earlier,
			}
			jc.Left, jc.LeftFromOn = b.joinLeft(j.Condition, block, sc, earlier)
			jc.Equalities = b.equalities(j.Condition, sc)
			block.Joins = append(block.Joins, jc)
			b.exprs(j.Condition, fr)
		}
		if c.Where != nil {
			where := b.equalities(c.Where, sc)
			for i := range block.Joins {
				if block.Joins[i].Type == ast.JoinComma {
					commaPredicate(&block.Joins[i], where)
				}
			}
		}
	}

	aliases := make(map[string]bool)
	for _, item := range c.Columns {
		if item.Alias != "" {
			aliases[strings.ToLower(item.Alias)] = true
		}
		b.exprs(item.Expr, fr)
	}
	for _, e := range c.DistinctOn {
		b.exprs(e, fr)
	}
	b.exprs(c.Where, fr)
	grouped := frame{env: env, scope: sc, skip: aliases}
	for _, e := range c.GroupBy {
		b.exprs(e, grouped)
	}
	b.exprs(c.Having, grouped)
	for _, w := range c.Windows {
		b.window(w.Spec, fr)
	}
	return sc, aliases
}

// tableRef registers one FROM item in the block.
func (b *builder) tableRef(ref ast.TableRef, block *Block, fr frame) TableRef {
	t := TableRef{Block: block.Index, Ordinal: len(block.Tables)}

	switch r := ref.(type) {
	case *ast.TableName:
		t.Schema = strings.ToLower(r.Schema)
		t.Name = strings.ToLower(r.Name)
		t.Alias = strings.ToLower(r.Alias)
		t.Span = r.NameSpan
		if t.Schema == "" && fr.env.has(t.Name) {
			t.Kind = TableCTE
		}
	case *ast.DerivedTable:
		t.Kind = TableDerived
		t.Name = strings.ToLower(r.Alias)
		t.Span = r.Span
		parent := fr.scope.parent
		if r.Lateral {
			parent = fr.scope
		}
		b.query(r.Select, OriginDerived, "", fr.env, parent)
	case *ast.FuncTable:
		t.Kind = TableFunction
		t.Name = strings.ToLower(r.Func.Name)
		t.Alias = strings.ToLower(r.Alias)
		t.Span = r.Span
		b.exprs(r.Func, fr)
	}

	if err := fr.scope.register(t); err != nil {
		b.fail(ref.Pos(), err.Error())
	}
	block.Tables = append(block.Tables, t)
	return t
}

// joinLeft picks the earlier table a join attaches to.
func (b *builder) joinLeft(cond ast.Expr, block *Block, sc *scope, earlier int) (TableRef, bool) {
	var (
		found TableRef
		ok    bool
	)
	if cond != nil {
		ast.Inspect(cond, func(n ast.Node) bool {
			if ok {
				return false
			}
			switch n := n.(type) {
			case *ast.SelectStmt:
				return false
			case *ast.ColumnRef:
				if n.Table == "" {
					return false
				}
				if t, hit := sc.local(strings.ToLower(n.Table), strings.ToLower(n.Schema)); hit && t.Ordinal < earlier {
					found, ok = t, true
				}
				return false
			}
			return true
		})
	}
	if ok {
		return found, true
	}
	return block.Tables[earlier-1], false
}

// commaPredicate takes the WHERE equalities that tie a comma-joined table
// to an earlier one as that join's predicate.
func commaPredicate(jc *JoinClause, where []ColumnPair) {
	right := jc.Right
	isRight := func(c ColumnRef) bool {
		return c.Table.Block == right.Block && c.Table.Ordinal == right.Ordinal
	}
	for _, eq := range where {
		var mine, other ColumnRef
		switch {
		case isRight(eq.Left) && eq.Right.Table.Ordinal < right.Ordinal:
			mine, other = eq.Left, eq.Right
		case isRight(eq.Right) && eq.Left.Table.Ordinal < right.Ordinal:
			mine, other = eq.Right, eq.Left
		default:
			continue
		}
		if len(jc.Equalities) == 0 {
			jc.Left, jc.LeftFromOn = other.Table, true
		}
		jc.Equalities = append(jc.Equalities, ColumnPair{Left: other, Right: mine})
	}
}

// equalities collects col = col conjuncts whose qualifiers resolve in the
// block's own scope.
func (b *builder) equalities(cond ast.Expr, sc *scope) []ColumnPair {
	var pairs []ColumnPair
	var visit func(e ast.Expr)
	visit = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.ParenExpr:
			visit(n.Expr)
		case *ast.BinaryExpr:
			switch n.Op {
			case "AND":
				visit(n.Left)
				visit(n.Right)
			case "=":
				l, lok := localColumn(n.Left, sc)
				r, rok := localColumn(n.Right, sc)
				if lok && rok {
					pairs = append(pairs, ColumnPair{Left: l, Right: r})
				}
			}
		}
	}
	if cond != nil {
		visit(cond)
	}
	return pairs
}

func localColumn(e ast.Expr, sc *scope) (ColumnRef, bool) {
	for {
		switch n := e.(type) {
		case *ast.ParenExpr:
			e = n.Expr
			continue
		case *ast.CastExpr:
			e = n.Expr
			continue
		case *ast.ColumnRef:
			if n.Table == "" {
				return ColumnRef{}, false
			}
			t, ok := sc.local(strings.ToLower(n.Table), strings.ToLower(n.Schema))
			if !ok {
				return ColumnRef{}, false
			}
			return ColumnRef{
				Column:    strings.ToLower(n.Column),
				Qualifier: strings.ToLower(n.Table),
				Table:     t,
				Resolved:  true,
				Span:      n.Span,
			}, true
		}
		return ColumnRef{}, false
	}
}

// exprs records the columns of e and walks its subqueries.
func (b *builder) exprs(e ast.Node, fr frame) {
	if e == nil || b.err != nil {
		return
	}
	ast.Inspect(e, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.ColumnRef:
			b.column(n, fr)
			return false
		case *ast.SelectStmt:
			b.query(n, OriginSubquery, "", fr.env, fr.scope)
			return false
		}
		return true
	})
}

// subqueries walks only the subqueries of e. It is used where plain column
// names refer to output columns rather than tables.
func (b *builder) subqueries(e ast.Expr, fr frame) {
	if e == nil {
		return
	}
	ast.Inspect(e, func(n ast.Node) bool {
		if q, ok := n.(*ast.SelectStmt); ok {
			b.query(q, OriginSubquery, "", fr.env, fr.scope)
			return false
		}
		return true
	})
}

func (b *builder) window(w *ast.WindowSpec, fr frame) {
	if w == nil {
		return
	}
	for _, e := range w.PartitionBy {
		b.exprs(e, fr)
	}
	for _, item := range w.OrderBy {
		b.exprs(item.Expr, fr)
	}
}

// column resolves one column reference against the scope chain.
func (b *builder) column(c *ast.ColumnRef, fr frame) {
	if c.Column == "*" {
		return
	}
	ref := ColumnRef{
		Column:     strings.ToLower(c.Column),
		Qualifier:  strings.ToLower(c.Table),
		Confidence: ConfidenceLow,
		Span:       c.Span,
	}

	if ref.Qualifier != "" {
		if t, ok := fr.scope.lookup(ref.Qualifier, strings.ToLower(c.Schema)); ok {
			ref.Table, ref.Resolved = t, true
			if t.IsPhysical() {
				ref.Confidence = ConfidenceHigh
			}
		}
		b.st.columns = append(b.st.columns, ref)
		return
	}

	if fr.skip[ref.Column] {
		return
	}
	for sc := fr.scope; sc != nil; sc = sc.parent {
		entries := sc.sorted()
		if len(entries) == 0 {
			continue
		}
		if len(entries) == 1 {
			ref.Table, ref.Resolved = entries[0], true
			if entries[0].IsPhysical() {
				ref.Confidence = ConfidenceHigh
			}
			break
		}
		for _, t := range entries {
			if t.IsPhysical() {
				ref.Candidates = append(ref.Candidates, t)
			}
		}
		break
	}
	b.st.columns = append(b.st.columns, ref)
}

// finish derives the statement-wide lists in textual order.
func (b *builder) finish() {
	st := b.st

	var tables []TableRef
	for _, blk := range st.blocks {
		for _, t := range blk.Tables {
			if t.IsPhysical() {
				tables = append(tables, t)
			}
		}
		st.joins = append(st.joins, blk.Joins...)
	}
	sort.SliceStable(tables, func(i, j int) bool { return tables[i].Span.Start.Offset < tables[j].Span.Start.Offset })
	seen := make(map[string]bool)
	for _, t := range tables {
		key := t.QualifiedName()
		if !seen[key] {
			seen[key] = true
			st.tables = append(st.tables, t)
		}
	}
	st.allTables = tables

	sort.SliceStable(st.joins, func(i, j int) bool { return st.joins[i].Span.Start.Offset < st.joins[j].Span.Start.Offset })
	sort.SliceStable(st.columns, func(i, j int) bool { return st.columns[i].Span.Start.Offset < st.columns[j].Span.Start.Offset })

	seenFn := make(map[string]bool)
	ast.Inspect(st.root, func(n ast.Node) bool {
		if fn, ok := n.(*ast.FuncCall); ok {
			name := strings.ToLower(fn.QualifiedName())
			if !seenFn[name] {
				seenFn[name] = true
				st.functions = append(st.functions, name)
			}
		}
		return true
	})
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
