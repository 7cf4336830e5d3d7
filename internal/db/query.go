package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// QualifiedName returns the quoted schema.table identifier.
func QualifiedName(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// BuildLookup builds a single-row SELECT matching column = $1.
// With an empty key the query selects a constant, for existence checks.
func BuildLookup(schema, table, column, key string) string {
	sel := "1"
	if key != "" {
		sel = quoteIdent(key)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 LIMIT 1",
		sel, QualifiedName(schema, table), quoteIdent(column))
}

// BuildInsert builds a parameterized INSERT, with RETURNING key when key is set.
func BuildInsert(schema, table string, columns []string, key string) string {
	var q string
	if len(columns) == 0 {
		q = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", QualifiedName(schema, table))
	} else {
		cols := make([]string, len(columns))
		placeholders := make([]string, len(columns))
		for i, c := range columns {
			cols[i] = quoteIdent(c)
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			QualifiedName(schema, table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	}
	if key != "" {
		q += " RETURNING " + quoteIdent(key)
	}
	return q
}

// BuildDropTable builds a DROP TABLE IF EXISTS ... CASCADE statement.
func BuildDropTable(schema, table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", QualifiedName(schema, table))
}
