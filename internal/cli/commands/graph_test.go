package commands

import (
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/sqlgate/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemsToCustomers = "core.order_items.order_id = core.orders.order_id AND core.orders.customer_id = core.customers.customer_id"

func TestGraphEdges(t *testing.T) {
	res := testutil.ExecuteCommand(t, NewGraphCommand(), rulesConfig(t))
	require.NoError(t, res.Err)

	out := res.Output()
	assert.Contains(t, out, "fk_orders_customer")
	assert.Contains(t, out, "core.order_items")
	assert.Contains(t, out, "5 tables, 3 foreign keys, 12 cached paths (max depth 6)")
}

func TestGraphEdgesJSON(t *testing.T) {
	res := testutil.ExecuteCommand(t, NewGraphCommand(), rulesConfig(t), "--format", "json")
	require.NoError(t, res.Err)

	var got graphSummary
	require.NoError(t, json.Unmarshal(res.Out.Bytes(), &got))
	assert.Equal(t, uint64(3), got.Version)
	assert.Equal(t, 5, got.Tables)
	require.Len(t, got.Edges, 3)
	assert.Equal(t, edgeRow{
		From: "core.orders", FromColumn: "customer_id", To: "core.customers", ToColumn: "customer_id", Name: "fk_orders_customer",
	}, got.Edges[0])
}

func TestGraphReachable(t *testing.T) {
	t.Run("lists paths with join hints", func(t *testing.T) {
		res := testutil.ExecuteCommand(t, NewGraphCommand(), rulesConfig(t), "order_items")
		require.NoError(t, res.Err)
		assert.Contains(t, res.Output(), itemsToCustomers)
		assert.Contains(t, res.Output(), "core.products")
	})

	t.Run("json", func(t *testing.T) {
		res := testutil.ExecuteCommand(t, NewGraphCommand(), rulesConfig(t), "--format", "json", "core.order_items")
		require.NoError(t, res.Err)

		var got struct {
			Table     string     `json:"table"`
			Reachable []reachRow `json:"reachable"`
		}
		require.NoError(t, json.Unmarshal(res.Out.Bytes(), &got))
		assert.Equal(t, "core.order_items", got.Table)
		require.Len(t, got.Reachable, 3)
		assert.Equal(t, reachRow{
			Table: "core.customers", Hops: 2, Via: []string{"core.orders"}, Join: itemsToCustomers,
		}, got.Reachable[0])
	})

	t.Run("isolated table", func(t *testing.T) {
		res := testutil.ExecuteCommand(t, NewGraphCommand(), rulesConfig(t), "audit_log")
		require.NoError(t, res.Err)
		assert.Contains(t, res.Output(), "core.audit_log has no foreign-key neighbours")
	})

	t.Run("unknown table", func(t *testing.T) {
		res := testutil.ExecuteCommand(t, NewGraphCommand(), rulesConfig(t), "ghosts")
		require.Error(t, res.Err)
		assert.Equal(t, "table ghosts does not exist", res.Err.Error())
	})
}

func TestGraphJoinHint(t *testing.T) {
	res := testutil.ExecuteCommand(t, NewGraphCommand(), rulesConfig(t), "order_items", "customers")
	require.NoError(t, res.Err)
	assert.Equal(t, "core.order_items -> core.orders -> core.customers (2 hops)\n"+itemsToCustomers+"\n", res.Output())

	res = testutil.ExecuteCommand(t, NewGraphCommand(), rulesConfig(t), "audit_log", "customers")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "no foreign-key join path between core.audit_log and core.customers")
}

func TestGraphAmbiguousTable(t *testing.T) {
	rules := testutil.WriteRules(t, `version: 1
default_schema: core
tables:
  sales.events: {columns: [id]}
  archive.events: {columns: [id]}
`)
	res := testutil.ExecuteCommand(t, NewGraphCommand(), testutil.TestConfig(rules), "events")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "exists in schemas archive, sales")
}
