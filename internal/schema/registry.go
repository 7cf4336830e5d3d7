package schema

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Refresh returns a copy of registry with the live metadata overlaid:
// columns, primary key, unique columns and foreign-key columns come from
// the database, while DDL text, mapping and traits are kept.
func Refresh(registry, live map[string]*TableSpec) (map[string]*TableSpec, error) {
	out := make(map[string]*TableSpec, len(registry))
	var missing []string
	for name, spec := range registry {
		l, ok := live[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		c := spec.Clone()
		c.Columns = l.Columns
		c.PrimaryKey = l.PrimaryKey
		c.Unique = l.Unique
		if len(l.ForeignKeys) > 0 {
			c.ForeignKeys = l.ForeignKeys
		}
		out[name] = c
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("tables not found in live schema: %v", missing)
	}
	return out, nil
}

// ValidationError reports a table whose live definition contradicts its declared traits.
type ValidationError struct {
	Table  string
	Column string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("table %q column %q: %s", e.Table, e.Column, e.Reason)
}

// ValidateSurrogates checks that every per-distinct table with a declared
// surrogate key has that column in the live schema, configured as serial or identity.
func ValidateSurrogates(registry map[string]*TableSpec) error {
	var errs []error
	for _, name := range sortedNames(registry) {
		spec := registry[name]
		if spec.Relation != RelationPerDistinct || spec.SurrogateKey == "" {
			continue
		}
		col := spec.Column(spec.SurrogateKey)
		switch {
		case col == nil:
			errs = append(errs, &ValidationError{Table: name, Column: spec.SurrogateKey, Reason: "surrogate key column not found"})
		case !col.AutoGenerated:
			errs = append(errs, &ValidationError{Table: name, Column: spec.SurrogateKey, Reason: "surrogate key is not serial or identity"})
		}
	}
	return errors.Join(errs...)
}

// ValidateNaturalKeys checks that every declared natural key names a live
// column that alone identifies a row: the single-column primary key or a
// single-column unique constraint.
func ValidateNaturalKeys(registry map[string]*TableSpec) error {
	var errs []error
	for _, name := range sortedNames(registry) {
		spec := registry[name]
		if spec.NaturalKey == "" {
			continue
		}
		switch {
		case spec.Column(spec.NaturalKey) == nil:
			errs = append(errs, &ValidationError{Table: name, Column: spec.NaturalKey, Reason: "natural key column not found"})
		case spec.KeyColumn() != spec.NaturalKey && !spec.IsUnique(spec.NaturalKey):
			errs = append(errs, &ValidationError{Table: name, Column: spec.NaturalKey, Reason: "natural key is neither the primary key nor unique"})
		}
	}
	return errors.Join(errs...)
}

// UncoveredFields returns the sorted header fields that no column of any
// table is fed from.
func UncoveredFields(header []string, registry map[string]*TableSpec) []string {
	covered := make(map[string]struct{})
	for _, spec := range registry {
		for _, c := range spec.Columns {
			covered[spec.SourceField(c.Name)] = struct{}{}
		}
	}
	var out []string
	for _, h := range header {
		if _, ok := covered[h]; !ok {
			out = append(out, h)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

func sortedNames(registry map[string]*TableSpec) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
