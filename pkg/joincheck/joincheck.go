// Package joincheck validates the joins of an analyzed statement against
// the join graph and join policies of a rule set.
//
// Every join clause attaches its right table to one earlier table of the
// same query block. Physical pairs must be connected by a foreign key, or
// by a cached path short enough for a table override's max_hops. The query
// join depth is the sum of those path lengths in the order the joins
// introduce tables, taken over the outer query blocks.
package joincheck

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/analyzer"
	"github.com/leapstack-labs/sqlgate/pkg/ast"
	"github.com/leapstack-labs/sqlgate/pkg/joingraph"
	"github.com/leapstack-labs/sqlgate/pkg/ruleset"
)

// Code classifies a violation.
type Code int

// Code constants.
const (
	CodeJoinPath Code = iota
	CodeJoinDepthExceeded
	CodeMissingWhere
)

func (c Code) String() string {
	switch c {
	case CodeJoinPath:
		return "join_path"
	case CodeJoinDepthExceeded:
		return "join_depth_exceeded"
	case CodeMissingWhere:
		return "missing_where"
	}
	return "unknown"
}

// Violation is a join rule a statement breaks.
type Violation struct {
	Code    Code
	Message string
}

func (v *Violation) Error() string {
	return v.Message
}

func violation(code Code, format string, args ...any) *Violation {
	return &Violation{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Hop is one validated join clause.
type Hop struct {
	Block int
	// Left and Right are qualified table names for physical tables and the
	// written name for CTEs, derived and function tables.
	Left  string
	Right string
	Hops  int
	// Depth is the cumulative depth of the block after this join.
	Depth int
	// Path is the foreign-key path used; empty for joins not checked
	// against the graph.
	Path joingraph.Path
}

// Report is the outcome of ValidatePaths.
type Report struct {
	Hops []Hop
	// Depth is the join depth of the statement: the largest per-block sum
	// over the outer query blocks.
	Depth  int
	blocks map[int]int
}

// BlockDepth returns the summed depth of one query block.
func (r Report) BlockDepth(block int) int {
	return r.blocks[block]
}

// Checker validates joins against one rule-set snapshot.
type Checker struct {
	rs *ruleset.RuleSet
}

// New creates a checker for rs.
func New(rs *ruleset.RuleSet) *Checker {
	return &Checker{rs: rs}
}

// Resolve returns the qualified catalog name of a physical table reference,
// or "" when it does not resolve to exactly one table.
func (c *Checker) Resolve(t analyzer.TableRef) string {
	if !t.IsPhysical() {
		return ""
	}
	tbl, _ := c.rs.Catalog.Resolve(t.Schema, t.Name, c.rs.Policy.DefaultSchema)
	if tbl == nil {
		return ""
	}
	return tbl.QualifiedName()
}

func (c *Checker) label(t analyzer.TableRef) string {
	if q := c.Resolve(t); q != "" {
		return q
	}
	return t.QualifiedName()
}

// CheckTableSpecificPolicies returns the override of a qualified table, or
// the zero Override when it has none.
func (c *Checker) CheckTableSpecificPolicies(table string) ruleset.Override {
	o, _ := c.rs.Override(table)
	return o
}

// MaxLimit returns the row cap for a query touching tables: the smallest
// of each table's own cap, which is its override max_limit when set and
// the global max_limit otherwise.
func (c *Checker) MaxLimit(tables []string) int {
	global := c.rs.Policy.MaxLimit
	if len(tables) == 0 {
		return global
	}
	limit := 0
	for _, t := range tables {
		own := global
		if o := c.CheckTableSpecificPolicies(t); o.MaxLimit > 0 {
			own = o.MaxLimit
		}
		if limit == 0 || own < limit {
			limit = own
		}
	}
	return limit
}

// ValidatePaths checks every join clause of every block in textual order
// and computes the join depth.
func (c *Checker) ValidatePaths(stmt *analyzer.Statement) (Report, *Violation) {
	report := Report{blocks: make(map[int]int)}
	for _, b := range stmt.Blocks() {
		if v := c.checkBlockedPairs(b); v != nil {
			return report, v
		}
		depth := 0
		for _, j := range b.Joins {
			hop, v := c.checkJoin(b, j)
			if v != nil {
				return report, v
			}
			depth += hop.Hops
			hop.Depth = depth
			report.Hops = append(report.Hops, hop)
		}
		report.blocks[b.Index] = depth
		if b.Origin == analyzer.OriginTop && depth > report.Depth {
			report.Depth = depth
		}
	}
	return report, nil
}

func (c *Checker) checkBlockedPairs(b *analyzer.Block) *Violation {
	present := make(map[string]int)
	for _, t := range b.Tables {
		if q := c.Resolve(t); q != "" {
			present[q]++
		}
	}
	for _, table := range c.rs.OverrideTables() {
		if present[table] == 0 {
			continue
		}
		for _, pair := range c.CheckTableSpecificPolicies(table).BlockedPairs {
			a, z := pair[0], pair[1]
			if (a == z && present[a] > 1) || (a != z && present[a] > 0 && present[z] > 0) {
				return violation(CodeJoinPath, "joining %s with %s is not allowed", a, z)
			}
		}
	}
	return nil
}

func (c *Checker) checkJoin(b *analyzer.Block, j analyzer.JoinClause) (Hop, *Violation) {
	left := j.Left
	if len(j.Using) > 0 {
		left = c.usingLeft(b, j)
	}
	hop := Hop{Block: b.Index, Left: c.label(left), Right: c.label(j.Right), Hops: 1}
	if j.Type == ast.JoinComma && len(j.Equalities) == 0 && left.IsPhysical() && j.Right.IsPhysical() {
		return hop, violation(CodeJoinPath,
			"%s is listed in FROM without a join condition; join it with JOIN ... ON or a WHERE equality on a foreign key",
			hop.Right)
	}

	lq, rq := c.Resolve(left), c.Resolve(j.Right)
	if lq == "" || rq == "" {
		return hop, nil
	}

	g := c.rs.Graph
	if edges := g.Edges(lq, rq); len(edges) > 0 {
		hop.Path = joingraph.Path{Tables: []string{lq, rq}, Edges: edges[:1]}
		return hop, c.checkColumns(left, j)
	}
	if lq == rq {
		return hop, violation(CodeJoinPath, "%s cannot be joined to itself: no self-referencing foreign key", lq)
	}

	p, ok := g.ValidateJoinPath(lq, rq)
	allowed := max(c.CheckTableSpecificPolicies(lq).MaxHops, c.CheckTableSpecificPolicies(rq).MaxHops)
	if ok && p.Hops() <= allowed {
		hop.Hops = p.Hops()
		hop.Path = p
		return hop, nil
	}
	if ok {
		return hop, violation(CodeJoinPath,
			"no foreign key joins %s and %s directly; join through %s",
			lq, rq, strings.Join(p.Tables[1:len(p.Tables)-1], ", "))
	}
	return hop, violation(CodeJoinPath, "no foreign-key join path between %s and %s", lq, rq)
}

// usingLeft picks the most recent earlier table that shares a foreign key
// on one of the USING columns with the right table.
func (c *Checker) usingLeft(b *analyzer.Block, j analyzer.JoinClause) analyzer.TableRef {
	rq := c.Resolve(j.Right)
	earlier := b.Earlier(j)
	for i := len(earlier) - 1; i >= 0 && rq != ""; i-- {
		lq := c.Resolve(earlier[i])
		if lq == "" {
			continue
		}
		for _, e := range c.rs.Graph.Edges(lq, rq) {
			for _, col := range j.Using {
				if e.MatchesColumns(lq, col, rq, col) {
					return earlier[i]
				}
			}
		}
	}
	return j.Left
}

// checkColumns requires the predicate of a direct join to match a foreign
// key's column pair. For comma joins the predicate is the WHERE equalities
// that reference the table. NATURAL and CROSS joins carry no predicate to
// check.
func (c *Checker) checkColumns(left analyzer.TableRef, j analyzer.JoinClause) *Violation {
	if !c.rs.Policy.EnforceFKJoinColumns || j.Natural || j.Type == ast.JoinCross {
		return nil
	}
	lq, rq := c.Resolve(left), c.Resolve(j.Right)
	edges := c.rs.Graph.Edges(lq, rq)

	matches := func(colL, colR string) bool {
		for _, e := range edges {
			if e.MatchesColumns(lq, colL, rq, colR) {
				return true
			}
		}
		return false
	}

	for _, col := range j.Using {
		if matches(col, col) {
			return nil
		}
	}
	for _, eq := range j.Equalities {
		l, r := eq.Left, eq.Right
		if sameRef(l.Table, j.Right) && sameRef(r.Table, left) {
			l, r = r, l
		}
		if sameRef(l.Table, left) && sameRef(r.Table, j.Right) && matches(l.Column, r.Column) {
			return nil
		}
	}
	return violation(CodeJoinPath,
		"join between %s and %s does not follow a foreign key; expected %s",
		lq, rq, c.rs.Graph.JoinHint(lq, rq))
}

func sameRef(a, b analyzer.TableRef) bool {
	return a.Block == b.Block && a.Ordinal == b.Ordinal
}

// CheckJoinDepth applies the depth policies to a report. It returns the
// warnings raised and the first violation, if any.
func (c *Checker) CheckJoinDepth(report Report, stmt *analyzer.Statement) ([]string, *Violation) {
	p := c.rs.Policy
	if report.Depth > p.HardCapJoinDepth {
		return nil, violation(CodeJoinDepthExceeded,
			"join depth %d exceeds the hard cap of %d", report.Depth, p.HardCapJoinDepth)
	}

	var warnings []string
	if report.Depth > p.MaxJoinDepth {
		warnings = append(warnings, fmt.Sprintf(
			"join depth %d exceeds the recommended maximum of %d", report.Depth, p.MaxJoinDepth))
	}

	for _, hop := range report.Hops {
		o := c.CheckTableSpecificPolicies(hop.Right)
		if o.MaxDepth > 0 && hop.Depth > o.MaxDepth {
			return warnings, violation(CodeJoinDepthExceeded,
				"%s may not be joined beyond depth %d; it is introduced at depth %d",
				hop.Right, o.MaxDepth, hop.Depth)
		}
	}

	if p.RequireWhereForDeepJoins {
		for _, b := range stmt.TopBlocks() {
			d := report.BlockDepth(b.Index)
			if d >= p.DeepJoinThreshold && !b.HasWhere {
				return warnings, violation(CodeMissingWhere,
					"join depth %d reaches the deep-join threshold of %d; add a WHERE clause", d, p.DeepJoinThreshold)
			}
		}
	}
	return warnings, nil
}
