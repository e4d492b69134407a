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

// RulesOptions holds options for the rules command.
type RulesOptions struct {
	Format string // Output format override
}

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	opts := &RulesOptions{}
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the compiled rule set",
		Long: `Show the policies of the active rule set: limits and join thresholds,
blocked keywords, functions and join types, per-table overrides and any
warnings raised while compiling the document.`,
		Example: `  # Show the rule set
  sqlgate rules

  # Output as JSON
  sqlgate rules --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return renderRuleSet(cmd.OutOrStdout(), outputFormat(opts.Format, cmdCtx.Cfg), cmdCtx.RuleSet())
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format: text, json, markdown")

	return cmd
}

type overrideRow struct {
	Table        string      `json:"table"`
	MaxDepth     int         `json:"max_depth,omitempty"`
	MaxHops      int         `json:"max_hops,omitempty"`
	MaxLimit     int         `json:"max_limit,omitempty"`
	BlockedPairs [][2]string `json:"blocked_pairs,omitempty"`
}

type ruleSetView struct {
	Version                  uint64        `json:"version"`
	DefaultSchema            string        `json:"default_schema"`
	Tables                   int           `json:"tables"`
	DefaultLimit             int           `json:"default_limit"`
	MaxLimit                 int           `json:"max_limit"`
	MaxJoinDepth             int           `json:"max_join_depth"`
	HardCapJoinDepth         int           `json:"hard_cap_join_depth"`
	DeepJoinThreshold        int           `json:"deep_join_threshold"`
	RequireWhereForDeepJoins bool          `json:"require_where_for_deep_joins"`
	EnforceFKJoinColumns     bool          `json:"enforce_fk_join_columns"`
	BlockedKeywords          []string      `json:"blocked_keywords"`
	BlockedFunctions         []string      `json:"blocked_functions"`
	BlockedJoinTypes         []string      `json:"blocked_join_types"`
	Overrides                []overrideRow `json:"table_overrides"`
	Warnings                 []string      `json:"warnings"`
}

func newRuleSetView(rs *ruleset.RuleSet) ruleSetView {
	p := rs.Policy
	v := ruleSetView{
		Version:                  rs.Version,
		DefaultSchema:            p.DefaultSchema,
		Tables:                   rs.Catalog.Len(),
		DefaultLimit:             p.DefaultLimit,
		MaxLimit:                 p.MaxLimit,
		MaxJoinDepth:             p.MaxJoinDepth,
		HardCapJoinDepth:         p.HardCapJoinDepth,
		DeepJoinThreshold:        p.DeepJoinThreshold,
		RequireWhereForDeepJoins: p.RequireWhereForDeepJoins,
		EnforceFKJoinColumns:     p.EnforceFKJoinColumns,
		BlockedKeywords:          p.Keywords(),
		BlockedFunctions:         p.Functions(),
		BlockedJoinTypes:         p.JoinTypes(),
		Overrides:                []overrideRow{},
		Warnings:                 append([]string{}, rs.Warnings...),
	}
	for _, name := range rs.OverrideTables() {
		o, _ := rs.Override(name)
		v.Overrides = append(v.Overrides, overrideRow{
			Table: name, MaxDepth: o.MaxDepth, MaxHops: o.MaxHops, MaxLimit: o.MaxLimit, BlockedPairs: o.BlockedPairs,
		})
	}
	return v
}

func renderRuleSet(w io.Writer, format string, rs *ruleset.RuleSet) error {
	v := newRuleSetView(rs)
	if format == config.OutputJSON {
		return renderJSON(w, v)
	}

	if format == config.OutputMarkdown {
		_, _ = fmt.Fprintf(w, "# Rule set v%d\n\n", v.Version)
	} else {
		_, _ = fmt.Fprintf(w, "Rule set v%d (%d tables, default schema %s)\n\n", v.Version, v.Tables, v.DefaultSchema)
	}

	t := newTable(w)
	t.SetTitle("Policies")
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRows([]table.Row{
		{"default_schema", v.DefaultSchema},
		{"default_limit", v.DefaultLimit},
		{"max_limit", v.MaxLimit},
		{"max_join_depth", v.MaxJoinDepth},
		{"hard_cap_join_depth", v.HardCapJoinDepth},
		{"deep_join_threshold", v.DeepJoinThreshold},
		{"require_where_for_deep_joins", v.RequireWhereForDeepJoins},
		{"enforce_fk_join_columns", v.EnforceFKJoinColumns},
		{"blocked_keywords", listOrNone(v.BlockedKeywords)},
		{"blocked_functions", listOrNone(v.BlockedFunctions)},
		{"blocked_join_types", listOrNone(v.BlockedJoinTypes)},
	})
	renderTable(t, format)

	if len(v.Overrides) > 0 {
		_, _ = fmt.Fprintln(w)
		t := newTable(w)
		t.SetTitle("Table overrides")
		t.AppendHeader(table.Row{"Table", "Max depth", "Max hops", "Max limit", "Blocked pairs"})
		for _, o := range v.Overrides {
			pairs := make([]string, len(o.BlockedPairs))
			for i, p := range o.BlockedPairs {
				pairs[i] = p[0] + " / " + p[1]
			}
			t.AppendRow(table.Row{o.Table, unset(o.MaxDepth), unset(o.MaxHops), unset(o.MaxLimit), listOrNone(pairs)})
		}
		renderTable(t, format)
	}

	if len(v.Warnings) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Warnings:")
		for _, warn := range v.Warnings {
			_, _ = fmt.Fprintf(w, "- %s\n", warn)
		}
	}
	return nil
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func unset(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}
