// Package joingraph provides the foreign-key join graph of a rule set.
// Tables are nodes; every declared foreign key is one undirected edge.
// Parallel edges between the same pair of tables are kept.
//
// A Graph is built once per rule-set version. After ComputeJoinPaths it is
// read-only and safe for concurrent use.
package joingraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/schema"
)

// Edge is one foreign key. From holds the referencing column; To the
// referenced one.
type Edge struct {
	From       string // schema-qualified child table
	FromColumn string
	To         string // schema-qualified parent table
	ToColumn   string
	Name       string // constraint name, may be empty
}

// Other returns the table at the other end of the edge.
func (e Edge) Other(table string) string {
	if e.From == table {
		return e.To
	}
	return e.From
}

// ColumnOn returns the edge's column on the given side.
func (e Edge) ColumnOn(table string) string {
	if e.From == table {
		return e.FromColumn
	}
	return e.ToColumn
}

// Connects reports whether the edge joins a and b in either direction.
func (e Edge) Connects(a, b string) bool {
	return (e.From == a && e.To == b) || (e.From == b && e.To == a)
}

// MatchesColumns reports whether a.colA = b.colB is this edge's predicate,
// in either orientation.
func (e Edge) MatchesColumns(a, colA, b, colB string) bool {
	if e.From == a && e.To == b && e.FromColumn == colA && e.ToColumn == colB {
		return true
	}
	return e.From == b && e.To == a && e.FromColumn == colB && e.ToColumn == colA
}

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s = %s.%s", e.From, e.FromColumn, e.To, e.ToColumn)
}

func (e Edge) less(o Edge) bool {
	if e.Name != o.Name {
		return e.Name < o.Name
	}
	if e.From != o.From {
		return e.From < o.From
	}
	if e.FromColumn != o.FromColumn {
		return e.FromColumn < o.FromColumn
	}
	return e.ToColumn < o.ToColumn
}

// Path is a chain of edges from Tables[0] to Tables[len-1].
type Path struct {
	Tables []string
	Edges  []Edge
}

// Hops returns the number of edges on the path.
func (p Path) Hops() int { return len(p.Edges) }

// Graph is an undirected foreign-key multigraph.
type Graph struct {
	nodes    map[string]bool
	adj      map[string][]Edge // table -> incident edges, sorted
	edges    []Edge
	paths    map[[2]string]Path
	maxDepth int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		adj:   make(map[string][]Edge),
		paths: make(map[[2]string]Path),
	}
}

// Build creates a graph from table metadata. It returns warnings for
// foreign keys that reference unknown tables (skipped), for constraint
// names redeclared with different columns and for column pairs redeclared
// under a different name. In both redeclaration cases the later
// declaration wins.
func Build(tables []schema.Table) (*Graph, []string) {
	g := NewGraph()
	for _, t := range tables {
		g.AddNode(t.QualifiedName())
	}

	var warnings []string
	named := make(map[string]int)   // constraint key -> index into g.edges
	columns := make(map[string]int) // column key -> index into g.edges
	for _, t := range tables {
		from := t.QualifiedName()
		for _, fk := range t.ForeignKeys {
			if !g.nodes[fk.RefTable] {
				warnings = append(warnings, fmt.Sprintf(
					"foreign key %s on %s references unknown table %s; skipped",
					fkLabel(fk), from, fk.RefTable))
				continue
			}
			e := Edge{From: from, FromColumn: fk.Column, To: fk.RefTable, ToColumn: fk.RefColumn, Name: fk.Name}

			if i, seen := columns[columnKey(e)]; seen {
				prev := g.edges[i]
				if e.Name == "" || e.Name == prev.Name {
					continue
				}
				if prev.Name != "" {
					warnings = append(warnings, fmt.Sprintf(
						"foreign key %s.%s -> %s.%s declared as both %s and %s; using %s",
						e.From, e.FromColumn, e.To, e.ToColumn, prev.Name, e.Name, e.Name))
					delete(named, constraintKey(prev))
				}
				g.edges[i].Name = e.Name
				named[constraintKey(e)] = i
				continue
			}

			if e.Name != "" {
				if i, seen := named[constraintKey(e)]; seen {
					warnings = append(warnings, fmt.Sprintf(
						"constraint %s between %s and %s redeclared with different columns; using %s",
						e.Name, e.From, e.To, e))
					delete(columns, columnKey(g.edges[i]))
					g.edges[i] = e
					columns[columnKey(e)] = i
					continue
				}
				named[constraintKey(e)] = len(g.edges)
			}
			columns[columnKey(e)] = len(g.edges)
			g.edges = append(g.edges, e)
		}
	}

	for _, e := range g.edges {
		g.adj[e.From] = append(g.adj[e.From], e)
		if e.To != e.From {
			g.adj[e.To] = append(g.adj[e.To], e)
		}
	}
	for t := range g.adj {
		sortEdges(g.adj[t])
	}
	return g, warnings
}

func fkLabel(fk schema.ForeignKey) string {
	if fk.Name != "" {
		return fk.Name
	}
	return "(" + fk.Column + ")"
}

func constraintKey(e Edge) string {
	a, b := e.From, e.To
	if b < a {
		a, b = b, a
	}
	return e.Name + "\x00" + a + "\x00" + b
}

func columnKey(e Edge) string {
	return e.From + "\x00" + e.FromColumn + "\x00" + e.To + "\x00" + e.ToColumn
}

func sortEdges(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].less(edges[j]) })
}

// AddNode adds a table without edges.
func (g *Graph) AddNode(table string) {
	g.nodes[table] = true
}

// HasTable reports whether the table is a node.
func (g *Graph) HasTable(table string) bool {
	return g.nodes[table]
}

// Tables returns every node, sorted.
func (g *Graph) Tables() []string {
	out := make([]string, 0, len(g.nodes))
	for t := range g.nodes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of tables.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of foreign-key edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AllEdges returns every edge in declaration order.
func (g *Graph) AllEdges() []Edge {
	return g.edges
}

// Edges returns the edges that directly connect a and b, sorted.
func (g *Graph) Edges(a, b string) []Edge {
	var out []Edge
	for _, e := range g.adj[a] {
		if e.Connects(a, b) {
			out = append(out, e)
		}
	}
	return out
}

// Neighbors returns the tables adjacent to table, sorted and deduplicated.
func (g *Graph) Neighbors(table string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.adj[table] {
		o := e.Other(table)
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	sort.Strings(out)
	return out
}

// ComputeJoinPaths caches the shortest path of at most maxDepth hops
// between every ordered pair of distinct connected tables. Neighbours are
// visited in sorted order and the first parallel edge (by constraint name)
// is used, so the chosen path is deterministic.
func (g *Graph) ComputeJoinPaths(maxDepth int) {
	g.paths = make(map[[2]string]Path)
	g.maxDepth = maxDepth
	if maxDepth < 1 {
		return
	}
	for _, src := range g.Tables() {
		g.bfs(src, maxDepth)
	}
}

func (g *Graph) bfs(src string, maxDepth int) {
	via := map[string]Edge{}
	dist := map[string]int{src: 0}
	queue := []string{src}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if dist[cur] == maxDepth {
			continue
		}
		for _, next := range g.Neighbors(cur) {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			via[next] = g.Edges(cur, next)[0]
			queue = append(queue, next)
		}
	}

	for dst, d := range dist {
		if d == 0 {
			continue
		}
		p := Path{Tables: make([]string, d+1), Edges: make([]Edge, d)}
		cur := dst
		for i := d; i > 0; i-- {
			p.Tables[i] = cur
			e := via[cur]
			p.Edges[i-1] = e
			cur = e.Other(cur)
		}
		p.Tables[0] = src
		g.paths[[2]string{src, dst}] = p
	}
}

// MaxDepth returns the depth the path cache was computed with.
func (g *Graph) MaxDepth() int {
	return g.maxDepth
}

// ValidateJoinPath returns the cached shortest path from a to b. A table
// joined to itself has a path only through a self-referencing foreign key.
func (g *Graph) ValidateJoinPath(a, b string) (Path, bool) {
	if a == b {
		edges := g.Edges(a, a)
		if len(edges) == 0 {
			return Path{}, false
		}
		return Path{Tables: []string{a, a}, Edges: edges[:1]}, true
	}
	p, ok := g.paths[[2]string{a, b}]
	return p, ok
}

// PathCount returns the number of cached paths.
func (g *Graph) PathCount() int {
	return len(g.paths)
}

// JoinHint renders the ON predicate chain for the cached path from a to b,
// or "" when there is none.
func (g *Graph) JoinHint(a, b string) string {
	p, ok := g.ValidateJoinPath(a, b)
	if !ok {
		return ""
	}
	parts := make([]string, len(p.Edges))
	for i, e := range p.Edges {
		x, y := p.Tables[i], p.Tables[i+1]
		cx, cy := e.ColumnOn(x), e.ColumnOn(y)
		if x == y {
			cx, cy = e.FromColumn, e.ToColumn
		}
		parts[i] = fmt.Sprintf("%s.%s = %s.%s", x, cx, y, cy)
	}
	return strings.Join(parts, " AND ")
}
