package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersWithCustomers = "SELECT o.order_id, c.name FROM orders o JOIN customers c ON c.customer_id = o.customer_id"

func rulesConfig(t *testing.T) *config.Config {
	t.Helper()
	return testutil.TestConfig(testutil.WriteRules(t, testutil.RulesYAML))
}

func TestValidateAccepted(t *testing.T) {
	res := testutil.ExecuteCommand(t, NewValidateCommand(), rulesConfig(t), ordersWithCustomers)
	require.NoError(t, res.Err)

	out := res.Output()
	assert.Contains(t, out, "ACCEPTED (rule set v3, join depth 1)")
	assert.Contains(t, out, "core.orders o JOIN core.customers c")
	assert.Contains(t, out, "LIMIT 100")
	assert.Contains(t, out, "warning [limit]: no LIMIT specified; added LIMIT 100")
	assert.Contains(t, out, "- returns at most 100 rows")
}

func TestValidateRejected(t *testing.T) {
	res := testutil.ExecuteCommand(t, NewValidateCommand(), rulesConfig(t), "DELETE FROM orders")
	require.Error(t, res.Err)
	assert.Equal(t, "1 of 1 queries rejected", res.Err.Error())

	out := res.Output()
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "error [select_only] NonSelectError")
	assert.NotContains(t, out, "Usage:")
	assert.NotContains(t, res.ErrorOutput(), "Usage:")
}

func TestValidateOverrideCapsDefaultLimit(t *testing.T) {
	res := testutil.ExecuteCommand(t, NewValidateCommand(), rulesConfig(t), "SELECT entry_id FROM audit_log")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output(), "SELECT entry_id FROM core.audit_log LIMIT 20")
}

func TestValidateJSON(t *testing.T) {
	t.Run("single query prints the result", func(t *testing.T) {
		res := testutil.ExecuteCommand(t, NewValidateCommand(), rulesConfig(t),
			"--format", "json", "SELECT name FROM customers LIMIT 5")
		require.NoError(t, res.Err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(res.Out.Bytes(), &got))
		assert.Equal(t, true, got["accepted"])
		assert.Equal(t, "SELECT name FROM core.customers LIMIT 5", got["final_sql"])
		assert.InDelta(t, 3, got["rule_set_version"], 0)
		assert.NotContains(t, got, "source")
	})

	t.Run("batch prints an array in input order", func(t *testing.T) {
		cfg := rulesConfig(t)
		cfg.Output = config.OutputJSON

		args := make([]string, 0, 12)
		for i := range 11 {
			args = append(args, fmt.Sprintf("SELECT customer_id FROM customers LIMIT %d", i+1))
		}
		args = append(args, "SELECT 1; SELECT 2")

		res := testutil.ExecuteCommand(t, NewValidateCommand(), cfg, args...)
		require.Error(t, res.Err)
		assert.Equal(t, "1 of 12 queries rejected", res.Err.Error())

		var got []struct {
			Source   string `json:"source"`
			Accepted bool   `json:"accepted"`
			FinalSQL string `json:"final_sql"`
			Error    *struct {
				Kind string `json:"kind"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(res.Out.Bytes(), &got), "stdout must hold only the JSON array")
		require.Len(t, got, 12)
		for i := range 11 {
			assert.Equal(t, fmt.Sprintf("query %d", i+1), got[i].Source)
			assert.True(t, got[i].Accepted)
			assert.True(t, strings.HasSuffix(got[i].FinalSQL, fmt.Sprintf("LIMIT %d", i+1)), got[i].FinalSQL)
		}
		assert.False(t, got[11].Accepted)
		require.NotNil(t, got[11].Error)
		assert.Equal(t, "MultiStatementError", got[11].Error.Kind)
	})
}

func TestValidateMarkdown(t *testing.T) {
	cfg := rulesConfig(t)
	cfg.Output = config.OutputMarkdown

	res := testutil.ExecuteCommand(t, NewValidateCommand(), cfg, ordersWithCustomers, "SELECT pg_sleep(10)")
	require.Error(t, res.Err)

	out := res.Output()
	testutil.AssertValidMarkdown(t, out)
	testutil.AssertNoANSI(t, out)
	assert.Contains(t, out, "### query 1: accepted")
	assert.Contains(t, out, "### query 2: rejected")
	assert.Contains(t, out, "```sql")
	assert.Contains(t, out, "| query 2 | rejected |")
	assert.Contains(t, strings.ToLower(out), "1/2 accepted")
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.sql")
	bad := filepath.Join(dir, "bad.sql")
	require.NoError(t, os.WriteFile(good, []byte("SELECT name\nFROM customers\nLIMIT 10;\n"), 0600))
	require.NoError(t, os.WriteFile(bad, []byte("SELECT * FROM ghosts"), 0600))

	res := testutil.ExecuteCommand(t, NewValidateCommand(), rulesConfig(t), "--file", good, "-f", bad)
	require.Error(t, res.Err)

	out := res.Output()
	assert.Contains(t, out, good+": ACCEPTED")
	assert.Contains(t, out, bad+": REJECTED")
	assert.Contains(t, out, "TableNotFoundError")
	// the summary footer is upper-cased by the table style
	assert.Contains(t, strings.ToLower(out), "1/2 accepted")
}

func TestValidateMissingFile(t *testing.T) {
	res := testutil.ExecuteCommand(t, NewValidateCommand(), rulesConfig(t), "--file", filepath.Join(t.TempDir(), "nope.sql"))
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "failed to read")
}

func TestValidateStdin(t *testing.T) {
	res := testutil.ExecuteCommandWithInput(t, NewValidateCommand(), rulesConfig(t), "SELECT name FROM customers\n")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output(), "ACCEPTED")
	assert.NotContains(t, res.Output(), "stdin:", "a single query is printed without its source")

	res = testutil.ExecuteCommandWithInput(t, NewValidateCommand(), rulesConfig(t), "  \n")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "no SQL given")
}

func TestValidateMissingRules(t *testing.T) {
	cfg := testutil.TestConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	res := testutil.ExecuteCommand(t, NewValidateCommand(), cfg, "SELECT 1")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "failed to load rule set")
}

func TestValidateInvalidRules(t *testing.T) {
	cfg := testutil.TestConfig(testutil.WriteRules(t, "policies:\n  default_limit: 0\n"))
	res := testutil.ExecuteCommand(t, NewValidateCommand(), cfg, "SELECT 1")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "policies.default_limit")
}
