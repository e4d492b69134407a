package ruleset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a rule set. JSON documents are accepted
// as well since JSON is valid YAML.
type Document struct {
	Version          uint64                 `yaml:"version"`
	DefaultSchema    string                 `yaml:"default_schema"`
	Tables           TableDocs              `yaml:"tables"`
	Policies         PolicyDoc              `yaml:"policies"`
	BlockedFunctions *[]string              `yaml:"blocked_functions"`
	BlockedKeywords  *[]string              `yaml:"blocked_keywords"`
	BlockedJoinTypes *[]string              `yaml:"blocked_join_types"`
	TableOverrides   map[string]OverrideDoc `yaml:"table_overrides"`
}

// TableDoc describes one table. Name is the mapping key it was declared
// under.
type TableDoc struct {
	Name        string          `yaml:"-"`
	Columns     []ColumnDoc     `yaml:"columns"`
	ForeignKeys []ForeignKeyDoc `yaml:"foreign_keys"`
}

// TableDocs keeps tables in declaration order.
type TableDocs []TableDoc

// UnmarshalYAML decodes a name -> table mapping, preserving key order.
func (t *TableDocs) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: tables must be a mapping of table name to definition", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var td TableDoc
		if err := n.Content[i+1].Decode(&td); err != nil {
			return err
		}
		td.Name = n.Content[i].Value
		*t = append(*t, td)
	}
	return nil
}

// ColumnDoc is a column; it may also be written as a bare name.
type ColumnDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// UnmarshalYAML accepts either {name, type} or a scalar name.
func (c *ColumnDoc) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		c.Name = n.Value
		return nil
	}
	type plain ColumnDoc
	return n.Decode((*plain)(c))
}

// ForeignKeyDoc is a declared foreign key. An unqualified ref_table is
// resolved against the default schema.
type ForeignKeyDoc struct {
	Column    string `yaml:"column"`
	RefTable  string `yaml:"ref_table"`
	RefColumn string `yaml:"ref_column"`
	Name      string `yaml:"name"`
}

// PolicyDoc holds the thresholds. Omitted fields take the built-in
// defaults.
type PolicyDoc struct {
	DefaultLimit             *int  `yaml:"default_limit"`
	MaxLimit                 *int  `yaml:"max_limit"`
	MaxJoinDepth             *int  `yaml:"max_join_depth"`
	HardCapJoinDepth         *int  `yaml:"hard_cap_join_depth"`
	DeepJoinThreshold        *int  `yaml:"deep_join_threshold"`
	RequireWhereForDeepJoins *bool `yaml:"require_where_for_deep_joins"`
	EnforceFKJoinColumns     *bool `yaml:"enforce_fk_join_columns"`
}

// OverrideDoc is a per-table override. Zero values are unset.
type OverrideDoc struct {
	MaxDepth     int        `yaml:"max_depth"`
	MaxHops      int        `yaml:"max_hops"`
	MaxLimit     int        `yaml:"max_limit"`
	BlockedPairs [][]string `yaml:"blocked_pairs"`
}

// ParseDocument decodes a YAML or JSON rule-set document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	return &doc, nil
}

// LoadFile reads, parses and compiles a rule-set document.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}
