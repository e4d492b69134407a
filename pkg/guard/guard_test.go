package guard_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlgate/internal/testutil"
	"github.com/leapstack-labs/sqlgate/pkg/guard"
	"github.com/leapstack-labs/sqlgate/pkg/ruleset"
)

const deepChain = `SELECT * FROM core.customers c
JOIN core.orders o ON o.customer_id = c.customer_id
JOIN core.order_items oi ON oi.order_id = o.order_id
JOIN core.products p ON p.product_id = oi.product_id
JOIN core.suppliers s ON s.supplier_id = p.supplier_id
JOIN core.categories cat ON cat.category_id = p.category_id`

func loadRules(t *testing.T) *ruleset.RuleSet {
	t.Helper()
	rs, err := ruleset.LoadFile("testdata/rules.yaml")
	require.NoError(t, err)
	return rs
}

func validate(t *testing.T, sql string) *guard.Result {
	t.Helper()
	res, err := guard.ValidateWith(loadRules(t), sql, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return res
}

func requireRejected(t *testing.T, res *guard.Result, stage guard.Stage, kind guard.Kind) {
	t.Helper()
	require.False(t, res.Accepted, "expected rejection, got %q", res.FinalSQL)
	require.NotNil(t, res.Error)
	assert.Equal(t, stage, res.Error.Stage)
	assert.Equal(t, kind, res.Error.Kind)
}

func requireAccepted(t *testing.T, res *guard.Result) {
	t.Helper()
	require.True(t, res.Accepted, "expected acceptance, got %v", res.Error)
	require.Nil(t, res.Error)
}

func stageWarnings(res *guard.Result, stage guard.Stage) []string {
	var out []string
	for _, w := range res.Warnings {
		if w.Stage == stage {
			out = append(out, w.Message)
		}
	}
	return out
}

func TestOrdersWithItems(t *testing.T) {
	sql := "SELECT * FROM core.orders o JOIN core.order_items oi ON o.order_id = oi.order_id"
	res := validate(t, sql)

	requireAccepted(t, res)
	assert.Equal(t, 1, res.JoinDepth)
	assert.Equal(t, sql+" LIMIT 200", res.FinalSQL)
	assert.Equal(t, []guard.Issue{{Stage: guard.StageLimit, Message: "no LIMIT specified; added LIMIT 200"}}, res.Warnings)
	assert.Equal(t, uint64(1), res.RuleSetVersion)
}

func TestMultiStatementRejected(t *testing.T) {
	for _, sql := range []string{
		"SELECT 1; SELECT 2",
		"SELECT * FROM core.orders; DELETE FROM core.users",
		"SELECT * FROM core.nope; SELECT pg_sleep(1)",
		"SELECT 1;;SELECT 2;",
		"SELECT 1; SELECT `x`",
		"SELECT * FROM core.orders; DROP TABLE 'core",
	} {
		t.Run(sql, func(t *testing.T) {
			res := validate(t, sql)
			requireRejected(t, res, guard.StageSingleStatement, guard.KindMultiStatement)
			assert.Equal(t, sql, res.FinalSQL)
		})
	}
}

func TestSemicolonInsideLiteralIsOneStatement(t *testing.T) {
	res := validate(t, "SELECT ';' AS s, \"a;b\" FROM core.orders -- x; y\n;")
	requireAccepted(t, res)
}

func TestNonSelectRejected(t *testing.T) {
	for _, sql := range []string{
		"DELETE FROM core.users",
		"update core.orders SET status = 'x'",
		"DROP TABLE core.orders",
		"WITH gone AS (DELETE FROM core.orders RETURNING *) SELECT * FROM gone",
		"SELECT * INTO backup FROM core.orders",
		"SELECT * FROM core.orders FOR UPDATE",
	} {
		t.Run(sql, func(t *testing.T) {
			res := validate(t, sql)
			requireRejected(t, res, guard.StageSelectOnly, guard.KindNonSelect)
			assert.Zero(t, res.JoinDepth)
		})
	}
}

func TestBlockedKeywords(t *testing.T) {
	res := validate(t, "SELECT analyze FROM core.orders")
	requireRejected(t, res, guard.StageBlockedKeywords, guard.KindBlockedKeyword)
	assert.Equal(t, "keyword ANALYZE is not allowed (line 1, column 8)", res.Error.Message)

	for _, sql := range []string{
		"SELECT * FROM core.orders WHERE status = 'DELETE'",
		"SELECT * FROM core.orders -- DROP TABLE core.orders",
		"SELECT /* TRUNCATE */ * FROM core.orders",
	} {
		t.Run(sql, func(t *testing.T) {
			requireAccepted(t, validate(t, sql))
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		sql     string
		message string
	}{
		{"SELECT FROM WHERE", "line 1"},
		{"SELECT 'open", "line 1"},
		{"", "empty statement"},
		{"SELECT * FROM core.orders o JOIN core.customers o ON o.customer_id = o.customer_id", "specified more than once"},
		{"SELECT * FROM db.core.orders", "cross-database"},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			res := validate(t, tt.sql)
			requireRejected(t, res, guard.StageParse, guard.KindParse)
			assert.Contains(t, res.Error.Message, tt.message)
		})
	}
}

func TestTableExistence(t *testing.T) {
	res := validate(t, "SELECT * FROM core.nope")
	requireRejected(t, res, guard.StageTableExistence, guard.KindTableNotFound)
	assert.Equal(t, "table core.nope does not exist", res.Error.Message)

	res = validate(t, "SELECT * FROM core.orders WHERE customer_id IN (SELECT id FROM ghosts)")
	requireRejected(t, res, guard.StageTableExistence, guard.KindTableNotFound)

	res = validate(t, "WITH recent AS (SELECT * FROM core.orders) SELECT * FROM recent")
	requireAccepted(t, res)
	assert.Empty(t, stageWarnings(res, guard.StageSchemaQualification), "CTE names are not tables")
}

func TestColumnExistenceWarnsOnly(t *testing.T) {
	res := validate(t, "SELECT o.bogus, x.id, o.bogus FROM core.orders o LIMIT 5")
	requireAccepted(t, res)
	assert.Equal(t, []string{
		"column bogus not found in core.orders",
		"column x.id references an unknown table or alias",
	}, stageWarnings(res, guard.StageColumnExistence))

	res = validate(t, "SELECT nothing FROM core.orders o JOIN core.customers c ON c.customer_id = o.customer_id LIMIT 5")
	requireAccepted(t, res)
	assert.Equal(t, []string{"column nothing not found in any of core.orders, core.customers"},
		stageWarnings(res, guard.StageColumnExistence))

	res = validate(t, "SELECT status FROM core.orders o JOIN core.customers c ON c.customer_id = o.customer_id LIMIT 5")
	assert.Empty(t, stageWarnings(res, guard.StageColumnExistence))
}

func TestSchemaQualification(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			"default schema",
			"SELECT * FROM orders o JOIN order_items oi ON oi.order_id = o.order_id WHERE o.status = 'open'",
			"SELECT * FROM core.orders o JOIN core.order_items oi ON oi.order_id = o.order_id WHERE o.status = 'open' LIMIT 200",
		},
		{"only schema", "SELECT * FROM quotes", "SELECT * FROM sales.quotes LIMIT 200"},
		{"quoted name", `SELECT * FROM "quotes" q`, `SELECT * FROM sales."quotes" q LIMIT 200`},
		{"repeated table", "SELECT * FROM quotes WHERE quote_id IN (SELECT quote_id FROM quotes)",
			"SELECT * FROM sales.quotes WHERE quote_id IN (SELECT quote_id FROM sales.quotes) LIMIT 200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, tt.sql)
			requireAccepted(t, res)
			assert.Equal(t, tt.want, res.FinalSQL)
		})
	}

	res := validate(t, "SELECT * FROM quotes WHERE quote_id IN (SELECT quote_id FROM quotes)")
	assert.Equal(t, []string{"table quotes qualified as sales.quotes"}, stageWarnings(res, guard.StageSchemaQualification))

	res = validate(t, "SELECT * FROM events")
	requireRejected(t, res, guard.StageSchemaQualification, guard.KindSchemaQualification)
	assert.Equal(t, "table events exists in schemas archive, sales; qualify it with a schema", res.Error.Message)

	requireAccepted(t, validate(t, "SELECT * FROM archive.events"))
}

func TestBlockedFunctions(t *testing.T) {
	for _, sql := range []string{
		"SELECT pg_sleep(5)",
		"SELECT PG_SLEEP_FOR('1 second')",
		"SELECT * FROM core.orders WHERE pg_catalog.pg_sleep(1) IS NULL",
		"SELECT count(*) FROM core.orders GROUP BY status HAVING max(lo_import('/etc/passwd')) > 0",
	} {
		t.Run(sql, func(t *testing.T) {
			requireRejected(t, validate(t, sql), guard.StageBlockedFunctions, guard.KindBlockedFunction)
		})
	}

	res := validate(t, "SELECT pg_sleep(5)")
	assert.Equal(t, "function pg_sleep is not allowed", res.Error.Message)
	requireAccepted(t, validate(t, "SELECT count(*), lower(status) FROM core.orders GROUP BY lower(status)"))
}

func TestBlockedJoinTypes(t *testing.T) {
	res := validate(t, "SELECT * FROM core.orders o CROSS JOIN core.customers c")
	requireRejected(t, res, guard.StageBlockedJoinTypes, guard.KindBlockedJoinType)
	assert.Equal(t, "CROSS JOIN is not allowed", res.Error.Message)

	res = validate(t, "SELECT * FROM core.orders o, core.customers c WHERE o.customer_id = c.customer_id")
	requireAccepted(t, res)
	assert.Equal(t, 1, res.JoinDepth)
}

func TestCommaJoinWithoutPredicateRejected(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM core.orders o, core.customers c",
		"SELECT * FROM core.orders o, core.customers c WHERE o.status = 'open'",
		"SELECT * FROM orders, customers",
	} {
		t.Run(sql, func(t *testing.T) {
			res := validate(t, sql)
			requireRejected(t, res, guard.StageJoinPath, guard.KindJoinPath)
			assert.Contains(t, res.Error.Message, "core.customers is listed in FROM without a join condition")
			assert.Equal(t, sql, res.FinalSQL)
		})
	}
}

func TestJoinPath(t *testing.T) {
	res := validate(t, "SELECT * FROM core.customers c JOIN core.users u ON c.customer_id = u.user_id")
	requireRejected(t, res, guard.StageJoinPath, guard.KindJoinPath)
	assert.Contains(t, res.Error.Message, "core.customers and core.users")

	res = validate(t, "SELECT * FROM core.orders o JOIN core.customers c ON o.order_id = c.customer_id")
	requireRejected(t, res, guard.StageJoinPath, guard.KindJoinPath)
	assert.Contains(t, res.Error.Message, "expected core.orders.customer_id = core.customers.customer_id")

	res = validate(t, "SELECT * FROM core.audit_log a JOIN core.users u ON a.user_id = u.user_id, core.customers c")
	requireRejected(t, res, guard.StageJoinPath, guard.KindJoinPath)
}

func TestJoinDepth(t *testing.T) {
	res := validate(t, deepChain)
	requireRejected(t, res, guard.StageJoinDepth, guard.KindMissingWhereForDeepJoin)
	assert.Equal(t, 5, res.JoinDepth)
	assert.Equal(t, []string{"join depth 5 exceeds the recommended maximum of 4"}, stageWarnings(res, guard.StageJoinDepth))

	res = validate(t, deepChain+" WHERE c.customer_id = 7")
	requireAccepted(t, res)
	assert.Equal(t, 5, res.JoinDepth)

	res = validate(t, deepChain+`
JOIN core.regions r ON r.region_id = c.region_id
JOIN core.payments pay ON pay.order_id = o.order_id
WHERE c.customer_id = 7`)
	requireRejected(t, res, guard.StageJoinDepth, guard.KindJoinDepthExceeded)
	assert.Equal(t, 7, res.JoinDepth)

	res = validate(t, `SELECT * FROM core.orders o
JOIN core.customers c ON c.customer_id = o.customer_id
JOIN core.shipments sh ON sh.order_id = o.order_id`)
	requireRejected(t, res, guard.StageJoinDepth, guard.KindJoinDepthExceeded)
}

func TestCTEDoesNotInflateJoinDepth(t *testing.T) {
	res := validate(t, `WITH lines AS (
  SELECT o.order_id, p.name FROM core.orders o
  JOIN core.order_items oi ON oi.order_id = o.order_id
  JOIN core.products p ON p.product_id = oi.product_id
  JOIN core.suppliers s ON s.supplier_id = p.supplier_id
  JOIN core.categories cat ON cat.category_id = p.category_id
  JOIN core.customers c ON c.customer_id = o.customer_id
)
SELECT * FROM lines`)

	requireAccepted(t, res)
	assert.Equal(t, 0, res.JoinDepth)
}

func TestLimit(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		want    string
		warning string
	}{
		{"injected", "SELECT * FROM core.orders", "SELECT * FROM core.orders LIMIT 200", "no LIMIT specified; added LIMIT 200"},
		{"within max", "SELECT * FROM core.orders LIMIT 10", "SELECT * FROM core.orders LIMIT 10", ""},
		{"at max", "SELECT * FROM core.orders LIMIT 2000", "SELECT * FROM core.orders LIMIT 2000", ""},
		{"clamped", "SELECT * FROM core.orders LIMIT 5000", "SELECT * FROM core.orders LIMIT 2000", "LIMIT 5000 exceeds maximum 2000; capped to 2000"},
		{"limit all", "SELECT * FROM core.orders LIMIT ALL", "SELECT * FROM core.orders LIMIT 200", "LIMIT ALL replaced with LIMIT 200"},
		{"parameter", "SELECT * FROM core.orders LIMIT $1", "SELECT * FROM core.orders LIMIT 200", "non-literal LIMIT count replaced with 200"},
		{"trailing semicolon and comment", "SELECT * FROM core.orders;  -- done\n", "SELECT * FROM core.orders LIMIT 200", "no LIMIT specified; added LIMIT 200"},
		{"comments kept", "SELECT /* keep */ * FROM core.orders -- trailing", "SELECT /* keep */ * FROM core.orders LIMIT 200", "no LIMIT specified; added LIMIT 200"},
		{"before offset", "SELECT * FROM core.orders ORDER BY order_id OFFSET 10", "SELECT * FROM core.orders ORDER BY order_id LIMIT 200 OFFSET 10", "no LIMIT specified; added LIMIT 200"},
		{"fetch clamped", "SELECT * FROM core.orders FETCH FIRST 5000 ROWS ONLY", "SELECT * FROM core.orders FETCH FIRST 2000 ROWS ONLY", "FETCH FIRST 5000 exceeds maximum 2000; capped to 2000"},
		{"union", "SELECT order_id FROM core.orders UNION SELECT order_id FROM core.payments", "SELECT order_id FROM core.orders UNION SELECT order_id FROM core.payments LIMIT 200", "no LIMIT specified; added LIMIT 200"},
		{"override default", "SELECT * FROM core.audit_log", "SELECT * FROM core.audit_log LIMIT 50", "no LIMIT specified; added LIMIT 50"},
		{"override clamp", "SELECT * FROM core.audit_log LIMIT 100", "SELECT * FROM core.audit_log LIMIT 50", "LIMIT 100 exceeds maximum 50; capped to 50"},
		{"loosened override alone", "SELECT * FROM core.payments LIMIT 5000", "SELECT * FROM core.payments LIMIT 5000", ""},
		{"loosened override with other table", "SELECT * FROM core.payments p JOIN core.orders o ON o.order_id = p.order_id LIMIT 5000", "SELECT * FROM core.payments p JOIN core.orders o ON o.order_id = p.order_id LIMIT 2000", "LIMIT 5000 exceeds maximum 2000; capped to 2000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, tt.sql)
			requireAccepted(t, res)
			assert.Equal(t, tt.want, res.FinalSQL)
			warnings := stageWarnings(res, guard.StageLimit)
			if tt.warning == "" {
				assert.Empty(t, warnings)
			} else {
				assert.Equal(t, []string{tt.warning}, warnings)
			}
		})
	}
}

func TestIdempotence(t *testing.T) {
	rs := loadRules(t)
	for _, sql := range []string{
		"SELECT * FROM core.orders o JOIN core.order_items oi ON o.order_id = oi.order_id",
		"SELECT * FROM orders o JOIN order_items oi USING (order_id);",
		"SELECT * FROM quotes LIMIT ALL",
		"SELECT * FROM core.orders ORDER BY order_id OFFSET 5",
		"SELECT * FROM core.audit_log LIMIT 900",
		"SELECT * FROM core.orders FETCH FIRST $1 ROWS ONLY",
		deepChain + " WHERE c.customer_id = 7 LIMIT 99999",
	} {
		t.Run(sql, func(t *testing.T) {
			first, err := guard.ValidateWith(rs, sql, nil)
			require.NoError(t, err)
			requireAccepted(t, first)

			second, err := guard.ValidateWith(rs, first.FinalSQL, nil)
			require.NoError(t, err)
			requireAccepted(t, second)
			assert.Equal(t, first.FinalSQL, second.FinalSQL)
			assert.Empty(t, stageWarnings(second, guard.StageLimit))
			assert.Empty(t, stageWarnings(second, guard.StageSchemaQualification))
		})
	}
}

func TestDeterminism(t *testing.T) {
	rs := loadRules(t)
	for _, sql := range []string{
		deepChain,
		"SELECT o.bogus, nothing FROM orders o JOIN customers c ON c.customer_id = o.customer_id",
		"SELECT pg_sleep(1)",
	} {
		first, err := guard.ValidateWith(rs, sql, nil)
		require.NoError(t, err)
		a, err := json.Marshal(first)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			again, err := guard.ValidateWith(rs, sql, nil)
			require.NoError(t, err)
			b, err := json.Marshal(again)
			require.NoError(t, err)
			assert.Equal(t, first, again)
			assert.Equal(t, string(a), string(b))
		}
	}
}

func TestResultJSON(t *testing.T) {
	res := validate(t, "SELECT pg_sleep(5)")
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"accepted": false,
		"final_sql": "SELECT pg_sleep(5)",
		"warnings": [],
		"error": {"stage": "blocked_functions", "kind": "BlockedFunctionError", "message": "function pg_sleep is not allowed"},
		"join_depth": 0,
		"rule_set_version": 1
	}`, string(data))

	res = validate(t, "SELECT * FROM core.orders WHERE status = 'open' LIMIT 10")
	data, err = json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"error"`)
	assert.Contains(t, string(data), `"warnings":[]`)
}

func TestExplanation(t *testing.T) {
	res := validate(t, "SELECT * FROM core.orders o JOIN core.customers c ON c.customer_id = o.customer_id WHERE o.status = 'open'")
	requireAccepted(t, res)
	assert.Equal(t, []string{
		"single read-only SELECT statement",
		"reads 2 table(s): core.orders, core.customers",
		"join depth 1 (hard cap 6)",
		"filtered by a WHERE clause",
		"returns at most 200 rows",
	}, res.Explanation)

	res = validate(t, "SELECT 1 LIMIT 3")
	assert.Contains(t, res.Explanation, "reads no tables")
	assert.Contains(t, res.Explanation, "no WHERE clause")
	assert.Contains(t, res.Explanation, "returns at most 3 rows")

	assert.Empty(t, validate(t, "SELECT pg_sleep(1)").Explanation)
}

func TestValidatorUsesHolder(t *testing.T) {
	base := loadRules(t)
	holder := ruleset.NewHolder(base)
	v := guard.New(holder, guard.WithLogger(testutil.NewTestLogger(t)))

	res, err := v.Validate("SELECT * FROM core.orders LIMIT 1")
	require.NoError(t, err)
	requireAccepted(t, res)
	assert.Equal(t, base.Version, res.RuleSetVersion)

	require.NoError(t, holder.Swap(base.WithVersion(42)))
	res, err = v.Validate("SELECT * FROM core.orders LIMIT 1")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.RuleSetVersion)
}

func TestNoRuleSet(t *testing.T) {
	_, err := guard.New(ruleset.NewHolder(nil)).Validate("SELECT 1")
	require.ErrorIs(t, err, guard.ErrNoRuleSet)

	_, err = guard.ValidateWith(nil, "SELECT 1", nil)
	require.ErrorIs(t, err, guard.ErrNoRuleSet)
}

func TestConcurrentValidationDuringSwap(t *testing.T) {
	base := loadRules(t)
	holder := ruleset.NewHolder(base)
	v := guard.New(holder)

	const swaps = 50
	queries := []string{
		"SELECT * FROM core.orders o JOIN core.order_items oi ON o.order_id = oi.order_id",
		"SELECT * FROM quotes",
		"SELECT pg_sleep(1)",
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sql := queries[(i+j)%len(queries)]
				res, err := v.Validate(sql)
				if err != nil {
					t.Errorf("validate: %v", err)
					return
				}
				if res.RuleSetVersion < base.Version || res.RuleSetVersion > base.Version+swaps {
					t.Errorf("unexpected version %d", res.RuleSetVersion)
				}
				if strings.HasPrefix(sql, "SELECT pg_sleep") == res.Accepted {
					t.Errorf("unexpected outcome for %q: %+v", sql, res)
				}
			}
		}(i)
	}
	for n := uint64(1); n <= swaps; n++ {
		require.NoError(t, holder.Swap(base.WithVersion(base.Version+n)))
	}
	wg.Wait()
}

func TestStagesOrder(t *testing.T) {
	require.Len(t, guard.Stages, 12)
	assert.Equal(t, guard.StageParse, guard.Stages[0])
	assert.Equal(t, guard.StageLimit, guard.Stages[11])
}
