package commands

import (
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesCommandText(t *testing.T) {
	res := testutil.ExecuteCommand(t, NewRulesCommand(), rulesConfig(t))
	require.NoError(t, res.Err)

	out := res.Output()
	assert.Contains(t, out, "Rule set v3 (5 tables, default schema core)")
	assert.Contains(t, out, "max_limit")
	assert.Contains(t, out, "500")
	assert.Contains(t, out, "pg_sleep*")
	assert.Contains(t, out, "core.audit_log")
	assert.NotContains(t, out, "Warnings:")
}

func TestRulesCommandJSON(t *testing.T) {
	res := testutil.ExecuteCommand(t, NewRulesCommand(), rulesConfig(t), "--format", "json")
	require.NoError(t, res.Err)

	var got ruleSetView
	require.NoError(t, json.Unmarshal(res.Out.Bytes(), &got))
	assert.Equal(t, uint64(3), got.Version)
	assert.Equal(t, 100, got.DefaultLimit)
	assert.Equal(t, 500, got.MaxLimit)
	assert.Equal(t, []string{"CROSS"}, got.BlockedJoinTypes)
	assert.Contains(t, got.BlockedKeywords, "DELETE")
	require.Len(t, got.Overrides, 1)
	assert.Equal(t, overrideRow{Table: "core.audit_log", MaxLimit: 20}, got.Overrides[0])
	assert.Empty(t, got.Warnings)
}

func TestRulesCommandMarkdownWithWarnings(t *testing.T) {
	rules := testutil.WriteRules(t, `version: 2
tables:
  core.orders:
    columns: [order_id]
    foreign_keys:
      - {column: customer_id, ref_table: core.customers, ref_column: customer_id}
`)
	cfg := testutil.TestConfig(rules)
	cfg.Output = config.OutputMarkdown

	res := testutil.ExecuteCommand(t, NewRulesCommand(), cfg)
	require.NoError(t, res.Err)

	out := res.Output()
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Rule set v2")
	assert.Contains(t, out, "| default_limit | 200 |")
	assert.Contains(t, out, "Warnings:")
	assert.Contains(t, out, "references unknown table core.customers")
}
