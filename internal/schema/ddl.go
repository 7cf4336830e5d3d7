package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/auxten/postgresql-parser/pkg/sql/parser"
	"github.com/auxten/postgresql-parser/pkg/sql/sem/tree"
)

// ErrNotCreateTable is wrapped by AnalyzeError when the statement parses but
// is not a single CREATE TABLE.
var ErrNotCreateTable = errors.New("statement is not a CREATE TABLE statement")

// AnalyzeError reports a DDL statement that could not be analyzed.
type AnalyzeError struct {
	Statement string
	Err       error
}

func (e *AnalyzeError) Error() string {
	stmt := strings.Join(strings.Fields(e.Statement), " ")
	if len(stmt) > 80 {
		stmt = stmt[:77] + "..."
	}
	return fmt.Sprintf("analyzing DDL %q: %v", stmt, e.Err)
}

func (e *AnalyzeError) Unwrap() error { return e.Err }

// AnalyzeDDL parses one CREATE TABLE statement and returns its table facts:
// name, ordered columns, foreign-key targets, and the key hints the statement
// declares. Unquoted identifiers are folded to lower case by the grammar, so
// statements differing only in formatting yield identical facts.
//
// Primary-key hints come from table-level PRIMARY KEY clauses only; the
// authoritative key metadata is read from the live schema after creation.
func AnalyzeDDL(stmt string) (*TableSpec, error) {
	stmts, err := parser.Parse(stmt)
	if err != nil {
		return nil, &AnalyzeError{Statement: stmt, Err: err}
	}
	if len(stmts) != 1 {
		return nil, &AnalyzeError{Statement: stmt, Err: fmt.Errorf("%w: got %d statements", ErrNotCreateTable, len(stmts))}
	}
	ct, ok := stmts[0].AST.(*tree.CreateTable)
	if !ok {
		return nil, &AnalyzeError{Statement: stmt, Err: ErrNotCreateTable}
	}

	spec := &TableSpec{
		Name: ct.Table.Table(),
		DDL:  strings.TrimSpace(stmt),
	}
	refs := make(map[string]bool)
	addFK := func(col, parent, parentCol string) {
		refs[parent] = true
		if col == "" {
			return
		}
		if _, dup := spec.ForeignKeyFor(col); dup {
			return
		}
		spec.ForeignKeys = append(spec.ForeignKeys, ForeignKey{Column: col, ParentTable: parent, ParentColumn: parentCol})
	}

	var unique []string
	cc := &spec.Constraints
	for _, def := range ct.Defs {
		switch d := def.(type) {
		case *tree.ColumnTableDef:
			name := string(d.Name)
			spec.Columns = append(spec.Columns, Column{
				Name:     name,
				Nullable: true,
				OrdPos:   len(spec.Columns) + 1,
			})
			if d.PrimaryKey.IsPrimaryKey {
				cc.PrimaryKey++
			}
			if d.Unique {
				unique = append(unique, name)
				cc.Unique++
			}
			if d.Nullable.Nullability == tree.NotNull {
				cc.NotNull++
			}
			if d.HasDefaultExpr() || d.IsSerial {
				cc.Default++
			}
			cc.Check += len(d.CheckExprs)
			if d.References.Table != nil {
				addFK(name, d.References.Table.Table(), string(d.References.Col))
				cc.ForeignKey++
			}
		case *tree.CheckConstraintTableDef:
			cc.Check++
		case *tree.ForeignKeyConstraintTableDef:
			cc.ForeignKey++
			parent := d.Table.Table()
			if len(d.FromCols) == 1 {
				parentCol := ""
				if len(d.ToCols) == 1 {
					parentCol = string(d.ToCols[0])
				}
				addFK(string(d.FromCols[0]), parent, parentCol)
			} else {
				addFK("", parent, "")
			}
		case *tree.UniqueConstraintTableDef:
			cols := make([]string, len(d.Columns))
			for i, c := range d.Columns {
				cols[i] = string(c.Column)
			}
			if d.PrimaryKey {
				spec.PrimaryKey = cols
				cc.PrimaryKey++
			} else {
				cc.Unique++
				if len(cols) == 1 {
					unique = append(unique, cols[0])
				}
			}
		}
	}

	if len(spec.Columns) == 0 {
		return nil, &AnalyzeError{Statement: stmt, Err: errors.New("table declares no columns")}
	}

	// keep unique hints in column order
	for _, c := range spec.Columns {
		if slices.Contains(unique, c.Name) && !slices.Contains(spec.Unique, c.Name) {
			spec.Unique = append(spec.Unique, c.Name)
		}
	}
	for parent := range refs {
		spec.References = append(spec.References, parent)
	}
	slices.Sort(spec.References)
	return spec, nil
}
