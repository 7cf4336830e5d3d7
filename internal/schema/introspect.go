package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool used for catalog queries.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Introspector reads live table metadata after the schema has been created.
type Introspector interface {
	Introspect(ctx context.Context, tables []string) (map[string]*TableSpec, error)
}

// PgIntrospector reads metadata from PostgreSQL catalogs.
type PgIntrospector struct {
	q      Querier
	schema string
}

// NewPgIntrospector returns an introspector scoped to one schema.
func NewPgIntrospector(q Querier, schema string) *PgIntrospector {
	return &PgIntrospector{q: q, schema: schema}
}

// Introspect queries PostgreSQL catalogs and returns the named tables with
// columns, PK, single-column unique constraints and single-column FKs.
func (p *PgIntrospector) Introspect(ctx context.Context, tables []string) (map[string]*TableSpec, error) {
	result, err := p.queryColumns(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}

	if err := p.queryKeys(ctx, tables, result); err != nil {
		return nil, fmt.Errorf("querying key constraints: %w", err)
	}

	if err := p.queryForeignKeys(ctx, tables, result); err != nil {
		return nil, fmt.Errorf("querying foreign keys: %w", err)
	}

	return result, nil
}

func (p *PgIntrospector) queryColumns(ctx context.Context, tables []string) (map[string]*TableSpec, error) {
	query := `
		SELECT
			c.relname AS table_name,
			a.attname AS column_name,
			t.typname AS data_type,
			NOT a.attnotnull AS is_nullable,
			a.attnum AS ordinal_position,
			(a.attidentity <> '' OR COALESCE(pg_get_expr(d.adbin, d.adrelid), '') LIKE 'nextval(%') AS auto_generated
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid
		JOIN pg_type t ON t.oid = a.atttypid
		LEFT JOIN pg_attrdef d ON d.adrelid = c.oid AND d.adnum = a.attnum
		WHERE c.relkind = 'r'
			AND a.attnum > 0
			AND NOT a.attisdropped
			AND n.nspname = $1
			AND c.relname = ANY($2)
		ORDER BY c.relname, a.attnum
	`

	rows, err := p.q.Query(ctx, query, p.schema, tables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*TableSpec)
	for rows.Next() {
		var tableName string
		var col Column
		if err := rows.Scan(&tableName, &col.Name, &col.DataType, &col.Nullable, &col.OrdPos, &col.AutoGenerated); err != nil {
			return nil, err
		}

		tbl, ok := result[tableName]
		if !ok {
			tbl = &TableSpec{Name: tableName}
			result[tableName] = tbl
		}
		tbl.Columns = append(tbl.Columns, col)
	}

	return result, rows.Err()
}

// queryKeys loads primary keys and single-column unique constraints.
func (p *PgIntrospector) queryKeys(ctx context.Context, tables []string, result map[string]*TableSpec) error {
	query := `
		SELECT
			c.relname AS table_name,
			con.contype::text AS kind,
			con.conname AS constraint_name,
			a.attname AS column_name,
			cardinality(con.conkey) AS key_width
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = u.attnum
		WHERE con.contype IN ('p', 'u')
			AND n.nspname = $1
			AND c.relname = ANY($2)
		ORDER BY c.relname, con.contype, con.conname, u.ord
	`

	rows, err := p.q.Query(ctx, query, p.schema, tables)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, kind, conName, colName string
		var width int
		if err := rows.Scan(&tableName, &kind, &conName, &colName, &width); err != nil {
			return err
		}

		tbl, ok := result[tableName]
		if !ok {
			continue
		}
		switch kind {
		case "p":
			tbl.PrimaryKey = append(tbl.PrimaryKey, colName)
		case "u":
			if width == 1 && !tbl.IsUnique(colName) {
				tbl.Unique = append(tbl.Unique, colName)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, tbl := range result {
		tbl.Unique = orderByColumns(tbl, tbl.Unique)
	}
	return nil
}

func (p *PgIntrospector) queryForeignKeys(ctx context.Context, tables []string, result map[string]*TableSpec) error {
	query := `
		SELECT
			cc.relname AS child_table,
			ca.attname AS child_column,
			pc.relname AS parent_table,
			pa.attname AS parent_column
		FROM pg_constraint con
		JOIN pg_class cc ON cc.oid = con.conrelid
		JOIN pg_namespace cn ON cn.oid = cc.relnamespace
		JOIN pg_class pc ON pc.oid = con.confrelid
		JOIN pg_attribute ca ON ca.attrelid = cc.oid AND ca.attnum = con.conkey[1]
		JOIN pg_attribute pa ON pa.attrelid = pc.oid AND pa.attnum = con.confkey[1]
		WHERE con.contype = 'f'
			AND cardinality(con.conkey) = 1
			AND cn.nspname = $1
			AND cc.relname = ANY($2)
		ORDER BY cc.relname, con.conname
	`

	rows, err := p.q.Query(ctx, query, p.schema, tables)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var fk ForeignKey
		var childTable string
		if err := rows.Scan(&childTable, &fk.Column, &fk.ParentTable, &fk.ParentColumn); err != nil {
			return err
		}
		tbl, ok := result[childTable]
		if !ok {
			continue
		}
		if _, dup := tbl.ForeignKeyFor(fk.Column); dup {
			continue
		}
		tbl.ForeignKeys = append(tbl.ForeignKeys, fk)
	}

	return rows.Err()
}

func orderByColumns(tbl *TableSpec, cols []string) []string {
	var ordered []string
	for _, c := range tbl.Columns {
		for _, u := range cols {
			if u == c.Name {
				ordered = append(ordered, u)
				break
			}
		}
	}
	return ordered
}
