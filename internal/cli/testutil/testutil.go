// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/internal/testutil"
	"github.com/spf13/cobra"
)

// RulesYAML is a small rule set used by CLI tests.
const RulesYAML = `version: 3
default_schema: core
tables:
  core.customers:
    columns: [customer_id, name, email]
  core.orders:
    columns: [order_id, customer_id, total]
    foreign_keys:
      - {column: customer_id, ref_table: core.customers, ref_column: customer_id, name: fk_orders_customer}
  core.order_items:
    columns: [item_id, order_id, product_id]
    foreign_keys:
      - {column: order_id, ref_table: core.orders, ref_column: order_id}
      - {column: product_id, ref_table: core.products, ref_column: product_id}
  core.products:
    columns: [product_id, name]
  core.audit_log:
    columns: [entry_id, message]
policies:
  default_limit: 100
  max_limit: 500
table_overrides:
  core.audit_log: {max_limit: 20}
`

// WriteRules writes content to a rules.yaml under a fresh temp dir and
// returns its path.
func WriteRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write rules: %v", err)
	}
	return path
}

// TestConfig returns a config pointing at rulesPath with defaults for the
// rest.
func TestConfig(rulesPath string) *config.Config {
	return &config.Config{
		Rules:       rulesPath,
		LogLevel:    "debug",
		Output:      config.OutputText,
		Concurrency: 2,
	}
}

// CommandResult captures the output of an executed command.
type CommandResult struct {
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
	Err    error
}

// Output returns the stdout output as a string.
func (r *CommandResult) Output() string {
	return r.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (r *CommandResult) ErrorOutput() string {
	return r.ErrOut.String()
}

// ExecuteCommand runs cmd with args, the given config and a logger bound
// to t in its context, capturing stdout and stderr.
func ExecuteCommand(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) *CommandResult {
	t.Helper()
	return ExecuteCommandWithInput(t, cmd, cfg, "", args...)
}

// ExecuteCommandWithInput is ExecuteCommand with stdin set to input.
func ExecuteCommandWithInput(t *testing.T, cmd *cobra.Command, cfg *config.Config, input string, args ...string) *CommandResult {
	t.Helper()

	res := &CommandResult{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	ctx := context.WithValue(context.Background(), config.ConfigKey(), cfg)
	ctx = context.WithValue(ctx, config.LoggerKey(), testutil.NewTestLogger(t))

	// The root command normally silences these; here cmd runs on its own.
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetOut(res.Out)
	cmd.SetErr(res.ErrOut)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	res.Err = cmd.ExecuteContext(ctx)
	return res
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
