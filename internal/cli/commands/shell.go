package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/pkg/guard"
	"github.com/leapstack-labs/sqlgate/pkg/ruleset"
	"github.com/spf13/cobra"
)

const (
	shellPrompt     = "sqlgate> "
	shellContPrompt = "    ...> "
)

// ShellOptions holds options for the shell command.
type ShellOptions struct {
	Format string // Output format override
}

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	opts := &ShellOptions{}
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Validate queries interactively",
		Long: `Start an interactive shell that validates each query as it is entered.

Queries end with a semicolon and may span several lines. Dot-commands
inspect the rule set; .help lists them. With watch enabled the rule-set
file is reloaded whenever it changes.`,
		Example: `  # Start the shell
  sqlgate shell

  # Reload the rule set automatically when it changes
  sqlgate shell --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format: text, json, markdown")

	return cmd
}

// lineReader is the part of *readline.Instance the shell loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

type shell struct {
	cmdCtx *CommandContext
	format string
	out    io.Writer
	errOut io.Writer
}

func runShell(cmd *cobra.Command, opts *ShellOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if cmdCtx.Cfg.Watch {
		go func() {
			if err := ruleset.Watch(ctx, cmdCtx.Cfg.Rules, cmdCtx.Holder, cmdCtx.Logger); err != nil {
				cmdCtx.Logger.Error("rule set watcher stopped", "error", err)
			}
		}()
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    newTableCompleter(cmdCtx.RuleSet()),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sh := &shell{
		cmdCtx: cmdCtx,
		format: outputFormat(opts.Format, cmdCtx.Cfg),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}
	_, _ = fmt.Fprintf(sh.out, "sqlgate shell (rules: %s, version %d)\n", cmdCtx.Cfg.Rules, cmdCtx.RuleSet().Version)
	_, _ = fmt.Fprintln(sh.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(sh.out)

	return sh.loop(ctx, rl)
}

// historyFile returns the shell history path under the user cache
// directory, or "" to disable history.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "sqlgate")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return ""
	}
	return filepath.Join(dir, "shell_history")
}

func (sh *shell) loop(ctx context.Context, rl lineReader) error {
	var buf strings.Builder
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(shellPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Dot-commands only at the start of a query
		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := sh.dotCommand(line); quit {
				return nil
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString("\n")
			rl.SetPrompt(shellContPrompt)
			continue
		}
		rl.SetPrompt(shellPrompt)

		sql := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()
		sh.validate(sql)
		_, _ = fmt.Fprintln(sh.out)
	}
}

// validate checks sql against the snapshot active when it is submitted.
func (sh *shell) validate(sql string) {
	logger := sh.cmdCtx.Logger.With("query_id", uuid.NewString(), "source", "shell")
	res, err := guard.New(sh.cmdCtx.Holder, guard.WithLogger(logger)).Validate(sql)
	if err != nil {
		_, _ = fmt.Fprintf(sh.errOut, "Error: %v\n", err)
		return
	}
	if err := renderValidations(sh.out, sh.format, []validation{{Source: "shell", Result: res}}); err != nil {
		_, _ = fmt.Fprintf(sh.errOut, "Error: %v\n", err)
	}
}

// dotCommand runs a dot-command and reports whether the shell should exit.
func (sh *shell) dotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	rs := sh.cmdCtx.RuleSet()

	var err error
	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printShellHelp(sh.out)

	case ".tables":
		err = listTables(sh.out, sh.format, rs)

	case ".graph":
		switch len(parts) {
		case 1:
			err = renderEdges(sh.out, sh.format, rs)
		case 2:
			err = renderReachable(sh.out, sh.format, rs, parts[1])
		default:
			err = renderJoinHint(sh.out, sh.format, rs, parts[1], parts[2])
		}

	case ".rules":
		err = renderRuleSet(sh.out, sh.format, rs)

	case ".reload":
		var next *ruleset.RuleSet
		next, err = ruleset.Reload(sh.cmdCtx.Cfg.Rules, sh.cmdCtx.Holder)
		if err == nil {
			_, _ = fmt.Fprintf(sh.out, "reloaded rule set version %d (%d tables)\n", next.Version, next.Catalog.Len())
		}

	default:
		_, _ = fmt.Fprintf(sh.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	if err != nil {
		_, _ = fmt.Fprintf(sh.errOut, "Error: %v\n", err)
	}
	return false
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  .help               Show this help message
  .tables             List the tables of the rule set
  .graph              List every foreign key
  .graph <t>          Tables reachable from t
  .graph <a> <b>      Join predicate between a and b
  .rules              Show policies and overrides
  .reload             Reload the rule-set file
  .quit / .exit       Exit the shell

Tips:
  - Queries must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

func listTables(w io.Writer, format string, rs *ruleset.RuleSet) error {
	type tableRow struct {
		Table       string `json:"table"`
		Columns     int    `json:"columns"`
		ForeignKeys int    `json:"foreign_keys"`
	}
	rows := []tableRow{}
	for _, t := range rs.Catalog.Tables() {
		rows = append(rows, tableRow{Table: t.QualifiedName(), Columns: len(t.Columns), ForeignKeys: len(t.ForeignKeys)})
	}
	if format == config.OutputJSON {
		return renderJSON(w, rows)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Table", "Columns", "Foreign keys"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Table, r.Columns, r.ForeignKeys})
	}
	renderTable(t, format)
	return nil
}

// newTableCompleter creates a readline completer for table names.
func newTableCompleter(rs *ruleset.RuleSet) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, t := range rs.Catalog.Tables() {
		items = append(items, readline.PcItem(t.QualifiedName()))
	}

	// Add dot-commands
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".graph"),
		readline.PcItem(".rules"),
		readline.PcItem(".reload"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
