package schema_test

import (
	"testing"

	"github.com/leapstack-labs/sqlgate/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, def      string
		schema, name string
	}{
		{"core.orders", "core", "core", "orders"},
		{"Orders", "core", "core", "orders"},
		{"Sales.Orders", "core", "sales", "orders"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s, n := schema.SplitName(tt.in, tt.def)
			assert.Equal(t, tt.schema, s)
			assert.Equal(t, tt.name, n)
		})
	}
}

func TestCatalog(t *testing.T) {
	cat := schema.NewCatalog([]schema.Table{
		{Schema: "core", Name: "orders", Columns: []schema.Column{{Name: "id"}, {Name: "total"}}},
		{Schema: "sales", Name: "orders"},
		{Schema: "core", Name: "customers"},
	})

	assert.Equal(t, 3, cat.Len())
	assert.Equal(t, []string{"core", "sales"}, cat.SchemasFor("ORDERS"))
	assert.Equal(t, []string{"core"}, cat.SchemasFor("customers"))
	assert.Empty(t, cat.SchemasFor("missing"))

	tbl, ok := cat.Lookup("Core", "Orders")
	require.True(t, ok)
	assert.True(t, tbl.HasColumn("TOTAL"))
	assert.False(t, tbl.HasColumn("missing"))

	_, ok = cat.LookupQualified("sales.orders")
	assert.True(t, ok)

	var names []string
	for _, tbl := range cat.Tables() {
		names = append(names, tbl.QualifiedName())
	}
	assert.Equal(t, []string{"core.customers", "core.orders", "sales.orders"}, names)
}

func TestCatalogResolve(t *testing.T) {
	cat := schema.NewCatalog([]schema.Table{
		{Schema: "core", Name: "orders"},
		{Schema: "sales", Name: "orders"},
		{Schema: "archive", Name: "events"},
		{Schema: "sales", Name: "events"},
		{Schema: "sales", Name: "quotes"},
	})

	tests := []struct {
		name       string
		schema     string
		table      string
		want       string
		candidates []string
	}{
		{"qualified", "sales", "orders", "sales.orders", nil},
		{"qualified missing", "core", "quotes", "", nil},
		{"default schema wins", "", "orders", "core.orders", nil},
		{"single schema", "", "quotes", "sales.quotes", nil},
		{"ambiguous", "", "events", "", []string{"archive", "sales"}},
		{"unknown", "", "ghosts", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, candidates := cat.Resolve(tt.schema, tt.table, "core")
			if tt.want == "" {
				assert.Nil(t, tbl)
			} else {
				require.NotNil(t, tbl)
				assert.Equal(t, tt.want, tbl.QualifiedName())
			}
			assert.Equal(t, tt.candidates, candidates)
		})
	}
}
