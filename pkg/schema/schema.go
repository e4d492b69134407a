// Package schema holds the table metadata a rule set is compiled from:
// tables, their columns and their declared foreign keys.
//
// Names are stored lower-cased. Table keys are always schema-qualified.
package schema

import (
	"sort"
	"strings"
)

// Column is one column of a table.
type Column struct {
	Name string
	Type string // informational only
}

// ForeignKey is a declared foreign key from Column to RefTable.RefColumn.
type ForeignKey struct {
	Column    string
	RefTable  string // schema-qualified
	RefColumn string
	Name      string // constraint name, may be empty
}

// Table is a schema-qualified table with its columns and foreign keys.
type Table struct {
	Schema      string
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
}

// QualifiedName returns schema.name.
func (t Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// HasColumn reports whether the table declares the column.
func (t Table) HasColumn(name string) bool {
	name = strings.ToLower(name)
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// SplitName splits "schema.name" into its parts. An unqualified name gets
// defaultSchema.
func SplitName(qualified, defaultSchema string) (schemaName, name string) {
	qualified = strings.ToLower(qualified)
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return strings.ToLower(defaultSchema), qualified
}

// Catalog indexes tables by qualified and bare name.
type Catalog struct {
	tables map[string]*Table   // schema.name -> table
	byName map[string][]string // name -> sorted schemas
}

// NewCatalog builds a catalog. Later tables replace earlier ones with the
// same qualified name.
func NewCatalog(tables []Table) *Catalog {
	c := &Catalog{
		tables: make(map[string]*Table, len(tables)),
		byName: make(map[string][]string),
	}
	for i := range tables {
		t := &tables[i]
		key := t.QualifiedName()
		if _, dup := c.tables[key]; !dup {
			c.byName[t.Name] = append(c.byName[t.Name], t.Schema)
		}
		c.tables[key] = t
	}
	for _, schemas := range c.byName {
		sort.Strings(schemas)
	}
	return c
}

// Lookup returns the table schemaName.name.
func (c *Catalog) Lookup(schemaName, name string) (*Table, bool) {
	t, ok := c.tables[strings.ToLower(schemaName)+"."+strings.ToLower(name)]
	return t, ok
}

// LookupQualified returns the table for a "schema.name" key.
func (c *Catalog) LookupQualified(qualified string) (*Table, bool) {
	t, ok := c.tables[strings.ToLower(qualified)]
	return t, ok
}

// SchemasFor returns the sorted schemas that contain a table called name.
func (c *Catalog) SchemasFor(name string) []string {
	return c.byName[strings.ToLower(name)]
}

// Tables returns all tables sorted by qualified name.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName() < out[j].QualifiedName() })
	return out
}

// Len returns the number of tables.
func (c *Catalog) Len() int { return len(c.tables) }

// Resolve finds the table a reference names. A qualified reference must
// match exactly. An unqualified one resolves to defaultSchema when that
// schema has the table, else to the only schema that does. When several
// other schemas have it the result is nil and the candidates are returned.
func (c *Catalog) Resolve(schemaName, name, defaultSchema string) (*Table, []string) {
	if schemaName != "" {
		t, _ := c.Lookup(schemaName, name)
		return t, nil
	}
	if t, ok := c.Lookup(defaultSchema, name); ok {
		return t, nil
	}
	schemas := c.SchemasFor(name)
	switch len(schemas) {
	case 0:
		return nil, nil
	case 1:
		t, _ := c.Lookup(schemas[0], name)
		return t, nil
	}
	return nil, schemas
}
