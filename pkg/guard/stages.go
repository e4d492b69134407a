package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/analyzer"
	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/joincheck"
	"github.com/leapstack-labs/sqlgate/pkg/parser"
	"github.com/leapstack-labs/sqlgate/pkg/ruleset"
	"github.com/leapstack-labs/sqlgate/pkg/schema"
)

// pipeline is the fixed stage order. Each stage may assume every earlier
// one passed.
var pipeline = []struct {
	stage Stage
	check func(*run) *Issue
}{
	{StageParse, (*run).parse},
	{StageSingleStatement, (*run).singleStatement},
	{StageSelectOnly, (*run).selectOnly},
	{StageBlockedKeywords, (*run).blockedKeywords},
	{StageTableExistence, (*run).tableExistence},
	{StageColumnExistence, (*run).columnExistence},
	{StageSchemaQualification, (*run).schemaQualification},
	{StageBlockedFunctions, (*run).blockedFunctions},
	{StageBlockedJoinTypes, (*run).blockedJoinTypes},
	{StageJoinPath, (*run).joinPath},
	{StageJoinDepth, (*run).checkJoinDepth},
	{StageLimit, (*run).limit},
}

// run is the state of one validation.
type run struct {
	rs      *ruleset.RuleSet
	sql     string
	checker *joincheck.Checker

	stmt      *analyzer.Statement
	tables    []string // resolved physical tables in first-appearance order
	report    joincheck.Report
	joinDepth int
	rowLimit  int
	edits     []textEdit
	warnings  []Issue
}

func newRun(rs *ruleset.RuleSet, sql string) *run {
	return &run{
		rs:       rs,
		sql:      sql,
		checker:  joincheck.New(rs),
		warnings: []Issue{},
	}
}

func rejection(kind Kind, format string, args ...any) *Issue {
	return &Issue{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (r *run) warn(stage Stage, format string, args ...any) {
	r.warnings = append(r.warnings, Issue{Stage: stage, Message: fmt.Sprintf(format, args...)})
}

func (r *run) resolve(t analyzer.TableRef) (*schema.Table, []string) {
	return r.rs.Catalog.Resolve(t.Schema, t.Name, r.rs.Policy.DefaultSchema)
}

func (r *run) reject(issue *Issue) *Result {
	return &Result{
		FinalSQL:       r.sql,
		Warnings:       r.warnings,
		Error:          issue,
		JoinDepth:      r.joinDepth,
		RuleSetVersion: r.rs.Version,
	}
}

func (r *run) accept() *Result {
	return &Result{
		Accepted:       true,
		FinalSQL:       applyEdits(r.sql, r.edits),
		Warnings:       r.warnings,
		JoinDepth:      r.joinDepth,
		RuleSetVersion: r.rs.Version,
		Explanation:    r.explain(),
	}
}

func (r *run) parse() *Issue {
	stmt, err := analyzer.Analyze(r.sql)
	if err != nil {
		var pe *parser.ParseError
		if errors.As(err, &pe) {
			return rejection(KindParse, "%s", pe.Error())
		}
		return rejection(KindParse, "query could not be parsed")
	}
	r.stmt = stmt
	return nil
}

func (r *run) singleStatement() *Issue {
	if !r.stmt.IsSingleStatement() {
		return rejection(KindMultiStatement, "expected a single statement, found %d", r.stmt.StatementCount())
	}
	return nil
}

func (r *run) selectOnly() *Issue {
	if !r.stmt.IsSelectOnly() {
		return rejection(KindNonSelect, "only read-only SELECT queries are allowed, found %s", r.stmt.NonSelectReason())
	}
	return nil
}

// blockedKeywords scans unquoted words only, so string literals, comments
// and quoted identifiers never match.
func (r *run) blockedKeywords() *Issue {
	for _, tok := range r.stmt.Script().Tokens {
		if tok.IsWord() && r.rs.Policy.BlockedKeyword(tok.Literal) {
			return rejection(KindBlockedKeyword, "keyword %s is not allowed (line %d, column %d)",
				strings.ToUpper(tok.Literal), tok.Pos.Line, tok.Pos.Column)
		}
	}
	return nil
}

func (r *run) tableExistence() *Issue {
	seen := make(map[string]bool)
	for _, t := range r.stmt.Tables() {
		tbl, candidates := r.resolve(t)
		if tbl == nil {
			if len(candidates) == 0 {
				return rejection(KindTableNotFound, "table %s does not exist", t.QualifiedName())
			}
			continue
		}
		if q := tbl.QualifiedName(); !seen[q] {
			seen[q] = true
			r.tables = append(r.tables, q)
		}
	}
	return nil
}

// columnExistence only warns. Resolution is best effort and a missing
// column is left for the database to report.
func (r *run) columnExistence() *Issue {
	seen := make(map[string]bool)
	for _, c := range r.stmt.Columns() {
		if msg := r.missingColumn(c); msg != "" && !seen[msg] {
			seen[msg] = true
			r.warn(StageColumnExistence, "%s", msg)
		}
	}
	return nil
}

func (r *run) missingColumn(c analyzer.ColumnRef) string {
	if c.Resolved {
		if !c.Table.IsPhysical() {
			return ""
		}
		tbl, _ := r.resolve(c.Table)
		if tbl == nil || len(tbl.Columns) == 0 || tbl.HasColumn(c.Column) {
			return ""
		}
		return fmt.Sprintf("column %s not found in %s", c.Column, tbl.QualifiedName())
	}
	if c.Qualifier != "" {
		return fmt.Sprintf("column %s.%s references an unknown table or alias", c.Qualifier, c.Column)
	}
	if len(c.Candidates) == 0 {
		return ""
	}
	for _, t := range r.stmt.Blocks()[c.Candidates[0].Block].Tables {
		if !t.IsPhysical() {
			return ""
		}
	}
	names := make([]string, 0, len(c.Candidates))
	for _, cand := range c.Candidates {
		tbl, _ := r.resolve(cand)
		if tbl == nil || len(tbl.Columns) == 0 || tbl.HasColumn(c.Column) {
			return ""
		}
		names = append(names, tbl.QualifiedName())
	}
	return fmt.Sprintf("column %s not found in any of %s", c.Column, strings.Join(names, ", "))
}

// schemaQualification rewrites unqualified table names to their resolved
// schema. CTE references are not tables and are left alone.
func (r *run) schemaQualification() *Issue {
	warned := make(map[string]bool)
	for _, t := range r.stmt.TableOccurrences() {
		if t.Schema != "" {
			continue
		}
		tbl, candidates := r.resolve(t)
		if tbl == nil {
			return rejection(KindSchemaQualification, "table %s exists in schemas %s; qualify it with a schema",
				t.Name, strings.Join(candidates, ", "))
		}
		r.replace(t.Span, quoteIdent(tbl.Schema)+"."+t.Span.Text(r.sql))
		if !warned[t.Name] {
			warned[t.Name] = true
			r.warn(StageSchemaQualification, "table %s qualified as %s", t.Name, tbl.QualifiedName())
		}
	}
	return nil
}

func (r *run) blockedFunctions() *Issue {
	for _, fn := range r.stmt.Functions() {
		if _, blocked := r.rs.Policy.BlockedFunction(fn); blocked {
			return rejection(KindBlockedFunction, "function %s is not allowed", fn)
		}
	}
	return nil
}

func (r *run) blockedJoinTypes() *Issue {
	p := r.rs.Policy
	for _, j := range r.stmt.Joins() {
		if j.Natural && p.BlockedJoinType("NATURAL") {
			return rejection(KindBlockedJoinType, "NATURAL JOIN is not allowed")
		}
		if !p.BlockedJoinType(string(j.Type)) {
			continue
		}
		if j.Type == ast.JoinComma {
			return rejection(KindBlockedJoinType, "comma-separated FROM items are not allowed; use JOIN ... ON")
		}
		return rejection(KindBlockedJoinType, "%s JOIN is not allowed", j.Type)
	}
	return nil
}

func (r *run) joinPath() *Issue {
	report, v := r.checker.ValidatePaths(r.stmt)
	if v != nil {
		return violationIssue(v)
	}
	r.report = report
	r.joinDepth = report.Depth
	return nil
}

func (r *run) checkJoinDepth() *Issue {
	warnings, v := r.checker.CheckJoinDepth(r.report, r.stmt)
	for _, w := range warnings {
		r.warn(StageJoinDepth, "%s", w)
	}
	if v != nil {
		return violationIssue(v)
	}
	return nil
}

func violationIssue(v *joincheck.Violation) *Issue {
	kind := KindJoinPath
	switch v.Code {
	case joincheck.CodeJoinDepthExceeded:
		kind = KindJoinDepthExceeded
	case joincheck.CodeMissingWhere:
		kind = KindMissingWhereForDeepJoin
	}
	return &Issue{Kind: kind, Message: v.Message}
}

// limit bounds the rows the query can return. It rewrites and warns but
// never rejects.
func (r *run) limit() *Issue {
	maxLimit := r.checker.MaxLimit(r.tables)
	def := min(r.rs.Policy.DefaultLimit, maxLimit)
	r.rowLimit = def

	info := r.stmt.Limit()
	clause := "LIMIT"
	if info != nil && info.Fetch {
		clause = "FETCH FIRST"
	}
	switch {
	case info == nil:
		r.appendLimit(def)
		r.warn(StageLimit, "no LIMIT specified; added LIMIT %d", def)
	case info.All:
		r.replace(info.ClauseSpan, fmt.Sprintf("LIMIT %d", def))
		r.warn(StageLimit, "LIMIT ALL replaced with LIMIT %d", def)
	case !info.Literal:
		r.replace(info.ValueSpan, fmt.Sprint(def))
		r.warn(StageLimit, "non-literal %s count replaced with %d", clause, def)
	case info.Value > int64(maxLimit):
		r.rowLimit = maxLimit
		r.replace(info.ValueSpan, fmt.Sprint(maxLimit))
		r.warn(StageLimit, "%s %d exceeds maximum %d; capped to %d", clause, info.Value, maxLimit, maxLimit)
	default:
		r.rowLimit = int(info.Value)
	}
	return nil
}

func (r *run) explain() []string {
	lines := []string{"single read-only SELECT statement"}
	if len(r.tables) == 0 {
		lines = append(lines, "reads no tables")
	} else {
		lines = append(lines, fmt.Sprintf("reads %d table(s): %s", len(r.tables), strings.Join(r.tables, ", ")))
	}
	lines = append(lines, fmt.Sprintf("join depth %d (hard cap %d)", r.joinDepth, r.rs.Policy.HardCapJoinDepth))
	if r.stmt.HasWhere() {
		lines = append(lines, "filtered by a WHERE clause")
	} else {
		lines = append(lines, "no WHERE clause")
	}
	return append(lines, fmt.Sprintf("returns at most %d rows", r.rowLimit))
}
