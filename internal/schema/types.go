package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Relation says how a table's rows relate to source rows.
type Relation string

const (
	RelationUnknown     Relation = ""
	RelationPerRow      Relation = "per_row"      // one row per source row
	RelationPerDistinct Relation = "per_distinct" // one row per distinct natural-key value
)

// Column represents a database column.
type Column struct {
	Name          string
	DataType      string // PostgreSQL type name (e.g. "int4", "text"); empty before creation
	Nullable      bool
	OrdPos        int  // ordinal position (1-based)
	AutoGenerated bool // serial default or identity column
}

// ForeignKey is a single-column reference from a child column to a parent table.
type ForeignKey struct {
	Column       string
	ParentTable  string
	ParentColumn string // empty when the reference targets the parent's primary key implicitly
}

// TableSpec is one table under materialization.
type TableSpec struct {
	Name string
	DDL  string

	Columns     []Column
	ForeignKeys []ForeignKey
	// References holds the sorted, de-duplicated parent table names.
	References []string
	PrimaryKey []string
	// Unique lists columns carrying a single-column uniqueness constraint, in column order.
	Unique []string

	// ColumnMapping maps database column name to source field name.
	ColumnMapping map[string]string
	Relation      Relation
	SurrogateKey  string
	NaturalKey    string

	// Constraints tallies what the DDL declares; it is not refreshed from the live schema.
	Constraints ConstraintCounts
}

// ConstraintCounts tallies the constraints one CREATE TABLE declares.
// A SERIAL column counts as a DEFAULT.
type ConstraintCounts struct {
	PrimaryKey int
	ForeignKey int
	Unique     int
	NotNull    int
	Default    int
	Check      int
}

// Add returns the element-wise sum of c and o.
func (c ConstraintCounts) Add(o ConstraintCounts) ConstraintCounts {
	return ConstraintCounts{
		PrimaryKey: c.PrimaryKey + o.PrimaryKey,
		ForeignKey: c.ForeignKey + o.ForeignKey,
		Unique:     c.Unique + o.Unique,
		NotNull:    c.NotNull + o.NotNull,
		Default:    c.Default + o.Default,
		Check:      c.Check + o.Check,
	}
}

// String lists the non-zero counts, e.g. "PK 1, NOT NULL 2", or "none".
func (c ConstraintCounts) String() string {
	var parts []string
	for _, k := range []struct {
		label string
		n     int
	}{
		{"PK", c.PrimaryKey}, {"FK", c.ForeignKey}, {"UNIQUE", c.Unique},
		{"NOT NULL", c.NotNull}, {"DEFAULT", c.Default}, {"CHECK", c.Check},
	} {
		if k.n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", k.label, k.n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// ColumnNames returns all column names in ordinal order.
func (t *TableSpec) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or nil.
func (t *TableSpec) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// KeyColumn returns the single primary-key column, or "" for a missing or composite key.
func (t *TableSpec) KeyColumn() string {
	if len(t.PrimaryKey) != 1 {
		return ""
	}
	return t.PrimaryKey[0]
}

// IsPrimaryKey reports whether col is part of the primary key.
func (t *TableSpec) IsPrimaryKey(col string) bool {
	return slices.Contains(t.PrimaryKey, col)
}

// IsUnique reports whether col carries a single-column uniqueness constraint.
func (t *TableSpec) IsUnique(col string) bool {
	return slices.Contains(t.Unique, col)
}

// SkipOnInsert reports whether a column must never be supplied: an auto-generated primary key.
func (t *TableSpec) SkipOnInsert(col string) bool {
	c := t.Column(col)
	return c != nil && c.AutoGenerated && t.IsPrimaryKey(col)
}

// SourceField returns the source field feeding col (identity when unmapped).
func (t *TableSpec) SourceField(col string) string {
	if f, ok := t.ColumnMapping[col]; ok && f != "" {
		return f
	}
	return col
}

// ForeignKeyFor returns the foreign key declared on col, if any.
func (t *TableSpec) ForeignKeyFor(col string) (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Column == col {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// Clone returns a deep copy.
func (t *TableSpec) Clone() *TableSpec {
	c := *t
	c.Columns = slices.Clone(t.Columns)
	c.ForeignKeys = slices.Clone(t.ForeignKeys)
	c.References = slices.Clone(t.References)
	c.PrimaryKey = slices.Clone(t.PrimaryKey)
	c.Unique = slices.Clone(t.Unique)
	if t.ColumnMapping != nil {
		c.ColumnMapping = make(map[string]string, len(t.ColumnMapping))
		for k, v := range t.ColumnMapping {
			c.ColumnMapping[k] = v
		}
	}
	return &c
}
