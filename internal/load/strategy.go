package load

import "github.com/hurou927/relload/internal/schema"

// KeyStrategy picks the column and source value that identify a table's row.
// Strategies are evaluated in order; the first match wins.
type KeyStrategy interface {
	Name() string
	Match(spec *schema.TableSpec, fields Row) (Match, bool)
}

// DirectPrimaryKey matches on the table's single primary-key column when the
// source supplies a field with that exact column name.
type DirectPrimaryKey struct{}

func (DirectPrimaryKey) Name() string { return "primary_key" }

func (DirectPrimaryKey) Match(spec *schema.TableSpec, fields Row) (Match, bool) {
	col := spec.KeyColumn()
	if col == "" {
		return Match{}, false
	}
	v, ok := fields[col]
	if !ok || v == nil {
		return Match{}, false
	}
	return Match{Column: col, Value: v}, true
}

// DeclaredNaturalKey matches on the column the configuration names as the
// table's natural key, read through the column mapping.
type DeclaredNaturalKey struct{}

func (DeclaredNaturalKey) Name() string { return "natural_key" }

func (DeclaredNaturalKey) Match(spec *schema.TableSpec, fields Row) (Match, bool) {
	col := spec.NaturalKey
	if col == "" || spec.Column(col) == nil {
		return Match{}, false
	}
	v, ok := fields[spec.SourceField(col)]
	if !ok || v == nil {
		return Match{}, false
	}
	return Match{Column: col, Value: v}, true
}

// UniqueColumn matches on the first single-column unique constraint whose
// source field is present.
type UniqueColumn struct{}

func (UniqueColumn) Name() string { return "unique_column" }

func (UniqueColumn) Match(spec *schema.TableSpec, fields Row) (Match, bool) {
	for _, col := range spec.Unique {
		v, ok := fields[spec.SourceField(col)]
		if ok && v != nil {
			return Match{Column: col, Value: v}, true
		}
	}
	return Match{}, false
}

// DefaultStrategies returns the standard precedence: direct primary key,
// declared natural key, then unique column.
func DefaultStrategies() []KeyStrategy {
	return []KeyStrategy{DirectPrimaryKey{}, DeclaredNaturalKey{}, UniqueColumn{}}
}

func matchKey(strategies []KeyStrategy, spec *schema.TableSpec, fields Row) (Match, bool) {
	for _, s := range strategies {
		if m, ok := s.Match(spec, fields); ok {
			return m, true
		}
	}
	return Match{}, false
}
