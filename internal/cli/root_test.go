package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	config.ResetConfig()
	t.Chdir(t.TempDir())

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root := NewRootCmd()
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommandsRegistered(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"validate", "shell", "graph", "rules", "version", "completion"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	for _, flag := range []string{"config", "rules", "log-level", "verbose", "output", "watch", "concurrency"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootValidateWithFlags(t *testing.T) {
	rules := testutil.WriteRules(t, testutil.RulesYAML)

	out, _, err := runRoot(t, "--rules", rules, "-o", "json", "validate", "SELECT name FROM customers")
	require.NoError(t, err)

	var got struct {
		Accepted       bool   `json:"accepted"`
		FinalSQL       string `json:"final_sql"`
		RuleSetVersion uint64 `json:"rule_set_version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Accepted)
	assert.Equal(t, "SELECT name FROM core.customers LIMIT 100", got.FinalSQL)
	assert.Equal(t, uint64(3), got.RuleSetVersion)
}

func TestRootConfigFile(t *testing.T) {
	rules := testutil.WriteRules(t, testutil.RulesYAML)
	cfgPath := filepath.Join(filepath.Dir(rules), "sqlgate.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("rules: rules.yaml\noutput: markdown\n"), 0600))

	out, _, err := runRoot(t, "--config", cfgPath, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "# Rule set v3")
}

func TestRootEnvOverridesConfigFile(t *testing.T) {
	rules := testutil.WriteRules(t, testutil.RulesYAML)
	cfgPath := filepath.Join(filepath.Dir(rules), "sqlgate.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("rules: rules.yaml\noutput: markdown\n"), 0600))
	t.Setenv("SQLGATE_OUTPUT", "json")

	out, _, err := runRoot(t, "--config", cfgPath, "rules")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)), "env output format should win: %s", out)
}

func TestRootVerboseLogsToStderr(t *testing.T) {
	rules := testutil.WriteRules(t, testutil.RulesYAML)

	out, errOut, err := runRoot(t, "--rules", rules, "-v", "validate", "SELECT name FROM customers")
	require.NoError(t, err)
	assert.Contains(t, out, "ACCEPTED")
	assert.Contains(t, errOut, "rule set loaded")
	assert.Contains(t, errOut, "query accepted")
	assert.Contains(t, errOut, "query_id=")
}

func TestRootRejectionLoggedAtInfo(t *testing.T) {
	rules := testutil.WriteRules(t, testutil.RulesYAML)

	_, errOut, err := runRoot(t, "--rules", rules, "--log-level", "info", "validate", "SELECT * FROM ghosts")
	require.Error(t, err)
	assert.Contains(t, errOut, "query rejected")
	assert.Contains(t, errOut, "kind=TableNotFoundError")
	assert.NotContains(t, errOut, "stage passed")
}

func TestRootInvalidConfig(t *testing.T) {
	_, _, err := runRoot(t, "-o", "csv", "rules")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")

	_, _, err = runRoot(t, "--concurrency", "0", "rules")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency must be at least 1")
}

func TestRootCompletionSkipsConfig(t *testing.T) {
	// No rule set and an invalid output format: completion must not load config.
	t.Setenv("SQLGATE_OUTPUT", "csv")

	out, _, err := runRoot(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlgate")
}

func TestRootVersion(t *testing.T) {
	out, _, err := runRoot(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "sqlgate "+Version+"\n", out)

	out, _, err = runRoot(t, "--rules", testutil.WriteRules(t, testutil.RulesYAML), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlgate v"+Version)
}
