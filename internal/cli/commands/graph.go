package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/pkg/ruleset"
	"github.com/spf13/cobra"
)

// GraphOptions holds options for the graph command.
type GraphOptions struct {
	Format string // Output format override
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	opts := &GraphOptions{}
	cmd := &cobra.Command{
		Use:   "graph [table [table]]",
		Short: "Show the foreign-key join graph",
		Long: `Show the join graph compiled from the rule set.

Without arguments every foreign-key edge is listed. With one table, the
tables reachable from it are listed with their hop count and the join
predicate to use. With two tables, the join predicate between them is shown.`,
		Example: `  # List every foreign key
  sqlgate graph

  # Tables reachable from orders
  sqlgate graph orders

  # How to join order_items to customers
  sqlgate graph order_items customers`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			format := outputFormat(opts.Format, cmdCtx.Cfg)
			rs := cmdCtx.RuleSet()
			w := cmd.OutOrStdout()

			switch len(args) {
			case 0:
				return renderEdges(w, format, rs)
			case 1:
				return renderReachable(w, format, rs, args[0])
			default:
				return renderJoinHint(w, format, rs, args[0], args[1])
			}
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format: text, json, markdown")

	return cmd
}

// resolveTable maps a possibly unqualified name to its catalog key.
func resolveTable(rs *ruleset.RuleSet, name string) (string, error) {
	schemaName, bare := "", strings.ToLower(name)
	if i := strings.IndexByte(bare, '.'); i >= 0 {
		schemaName, bare = bare[:i], bare[i+1:]
	}
	t, candidates := rs.Catalog.Resolve(schemaName, bare, rs.Policy.DefaultSchema)
	if t != nil {
		return t.QualifiedName(), nil
	}
	if len(candidates) > 0 {
		return "", fmt.Errorf("table %s exists in schemas %s; qualify it with a schema", name, strings.Join(candidates, ", "))
	}
	return "", fmt.Errorf("table %s does not exist", name)
}

type edgeRow struct {
	From       string `json:"from"`
	FromColumn string `json:"from_column"`
	To         string `json:"to"`
	ToColumn   string `json:"to_column"`
	Name       string `json:"name,omitempty"`
}

type graphSummary struct {
	Version     uint64    `json:"rule_set_version"`
	Tables      int       `json:"tables"`
	ForeignKeys int       `json:"foreign_keys"`
	CachedPaths int       `json:"cached_paths"`
	MaxDepth    int       `json:"max_depth"`
	Edges       []edgeRow `json:"edges"`
}

func renderEdges(w io.Writer, format string, rs *ruleset.RuleSet) error {
	g := rs.Graph
	summary := graphSummary{
		Version:     rs.Version,
		Tables:      g.NodeCount(),
		ForeignKeys: g.EdgeCount(),
		CachedPaths: g.PathCount(),
		MaxDepth:    g.MaxDepth(),
		Edges:       []edgeRow{},
	}
	for _, e := range g.AllEdges() {
		summary.Edges = append(summary.Edges, edgeRow{
			From: e.From, FromColumn: e.FromColumn, To: e.To, ToColumn: e.ToColumn, Name: e.Name,
		})
	}
	if format == config.OutputJSON {
		return renderJSON(w, summary)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"From", "Column", "To", "Column", "Constraint"})
	for _, e := range summary.Edges {
		t.AppendRow(table.Row{e.From, e.FromColumn, e.To, e.ToColumn, e.Name})
	}
	renderTable(t, format)
	_, _ = fmt.Fprintf(w, "%d tables, %d foreign keys, %d cached paths (max depth %d)\n",
		summary.Tables, summary.ForeignKeys, summary.CachedPaths, summary.MaxDepth)
	return nil
}

type reachRow struct {
	Table string   `json:"table"`
	Hops  int      `json:"hops"`
	Via   []string `json:"via"`
	Join  string   `json:"join"`
}

func renderReachable(w io.Writer, format string, rs *ruleset.RuleSet, name string) error {
	from, err := resolveTable(rs, name)
	if err != nil {
		return err
	}
	g := rs.Graph

	rows := []reachRow{}
	for _, to := range g.Tables() {
		p, ok := g.ValidateJoinPath(from, to)
		if !ok {
			continue
		}
		rows = append(rows, reachRow{Table: to, Hops: p.Hops(), Via: p.Tables[1 : len(p.Tables)-1], Join: g.JoinHint(from, to)})
	}
	if format == config.OutputJSON {
		return renderJSON(w, map[string]any{"table": from, "reachable": rows})
	}

	if len(rows) == 0 {
		_, _ = fmt.Fprintf(w, "%s has no foreign-key neighbours\n", from)
		return nil
	}
	t := newTable(w)
	t.SetTitle("Reachable from " + from)
	t.AppendHeader(table.Row{"Table", "Hops", "Via", "Join"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Table, r.Hops, strings.Join(r.Via, " -> "), r.Join})
	}
	renderTable(t, format)
	return nil
}

func renderJoinHint(w io.Writer, format string, rs *ruleset.RuleSet, a, b string) error {
	from, err := resolveTable(rs, a)
	if err != nil {
		return err
	}
	to, err := resolveTable(rs, b)
	if err != nil {
		return err
	}
	p, ok := rs.Graph.ValidateJoinPath(from, to)
	if !ok {
		return fmt.Errorf("no foreign-key join path between %s and %s within %d hops", from, to, rs.Graph.MaxDepth())
	}
	hint := rs.Graph.JoinHint(from, to)
	if format == config.OutputJSON {
		return renderJSON(w, map[string]any{"from": from, "to": to, "hops": p.Hops(), "path": p.Tables, "join": hint})
	}
	_, _ = fmt.Fprintf(w, "%s (%d hops)\n%s\n", strings.Join(p.Tables, " -> "), p.Hops(), hint)
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderTable(t table.Writer, format string) {
	if format == config.OutputMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}
