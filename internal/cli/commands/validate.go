package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/sqlgate/pkg/guard"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Files  []string // SQL files, one query each
	Format string   // Output format override
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [sql...]",
		Short: "Validate SQL queries against the rule set",
		Long: `Check candidate SQL queries against the active rule set.

Each argument is one query. Use --file to validate queries stored in files,
or pipe a query on stdin when no arguments are given. Accepted queries are
printed in their final, possibly rewritten, form.

The command fails when any query is rejected.`,
		Example: `  # Validate a single query
  sqlgate validate "SELECT * FROM orders"

  # Validate every query file in a directory
  sqlgate validate --file queries/*.sql

  # Read the query from stdin and print JSON
  echo "SELECT id FROM customers" | sqlgate validate -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Files, "file", "f", nil, "SQL file to validate (repeatable)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format: text, json, markdown")

	return cmd
}

type query struct {
	source string
	sql    string
}

func collectQueries(cmd *cobra.Command, args []string, files []string) ([]query, error) {
	var queries []query
	for i, a := range args {
		queries = append(queries, query{source: fmt.Sprintf("query %d", i+1), sql: a})
	}
	for _, path := range files {
		data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		queries = append(queries, query{source: path, sql: string(data)})
	}
	if len(queries) > 0 {
		return queries, nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("no SQL given: pass queries as arguments, with --file, or on stdin")
	}
	return []query{{source: "stdin", sql: string(data)}}, nil
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	queries, err := collectQueries(cmd, args, opts.Files)
	if err != nil {
		return err
	}

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	// One snapshot for the whole batch.
	rs := cmdCtx.RuleSet()
	results := make([]validation, len(queries))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cmdCtx.Cfg.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger := cmdCtx.Logger.With("query_id", uuid.NewString(), "source", q.source)
			res, err := guard.ValidateWith(rs, q.sql, logger)
			if err != nil {
				return err
			}
			results[i] = validation{Source: q.source, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := renderValidations(cmd.OutOrStdout(), outputFormat(opts.Format, cmdCtx.Cfg), results); err != nil {
		return err
	}

	rejected := 0
	for _, v := range results {
		if !v.Accepted {
			rejected++
		}
	}
	if rejected > 0 {
		return fmt.Errorf("%d of %d queries rejected", rejected, len(results))
	}
	return nil
}
