// Package memdb is an in-memory db.Store for tests.
//
// It models just enough of PostgreSQL to exercise the loader and the schema
// executor: typed columns, serial keys, NOT NULL, UNIQUE, foreign keys and
// snapshot transactions. Failures are reported as *pgconn.PgError with the
// SQLSTATE and message text PostgreSQL would produce.
package memdb

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hurou927/relload/internal/db"
)

// Column types understood by the store.
const (
	TypeInt     = "int"
	TypeNumeric = "numeric"
	TypeText    = "text"
	TypeVarchar = "varchar"
)

// Column describes a column of an in-memory table.
type Column struct {
	Name       string
	Type       string
	Length     int // varchar limit
	Serial     bool
	NotNull    bool
	Unique     bool
	References string // parent table; values must match its primary key
}

// TableDef describes an in-memory table.
type TableDef struct {
	Name       string
	Columns    []Column
	PrimaryKey string
}

type table struct {
	def  TableDef
	rows []map[string]any
	seq  int64
}

func (t *table) clone() *table {
	c := &table{def: t.def, seq: t.seq, rows: make([]map[string]any, len(t.rows))}
	for i, r := range t.rows {
		c.rows[i] = maps.Clone(r)
	}
	return c
}

func (t *table) column(name string) *Column {
	for i := range t.def.Columns {
		if t.def.Columns[i].Name == name {
			return &t.def.Columns[i]
		}
	}
	return nil
}

// DB is the in-memory store. Only one transaction may be open at a time.
type DB struct {
	mu     sync.Mutex
	tables map[string]*table
	ddl    map[string]TableDef
	drops  map[string]string
	open   bool

	// Execs records every statement passed to Tx.Exec, committed or not.
	Execs []string
	// FailExec makes Tx.Exec return the mapped error for a statement.
	FailExec map[string]error
	// FailInsert, when set, is consulted before every insert.
	FailInsert func(table string, row map[string]any) error

	Begins    int
	Commits   int
	Rollbacks int
}

// New returns an empty store.
func New() *DB {
	return &DB{
		tables:   make(map[string]*table),
		ddl:      make(map[string]TableDef),
		drops:    make(map[string]string),
		FailExec: make(map[string]error),
	}
}

// Define creates a table outside of any transaction.
func (d *DB) Define(def TableDef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[def.Name] = &table{def: def}
}

// RegisterDDL makes Tx.Exec(sql) create the table described by def.
func (d *DB) RegisterDDL(sql string, def TableDef) {
	d.ddl[sql] = def
}

// RegisterDrop makes Tx.Exec(sql) drop the named table if it exists.
func (d *DB) RegisterDrop(sql, name string) {
	d.drops[sql] = name
}

// HasTable reports whether a committed table exists.
func (d *DB) HasTable(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.tables[name]
	return ok
}

// Count returns the number of committed rows in a table.
func (d *DB) Count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

// Rows returns copies of the committed rows of a table in insertion order.
func (d *DB) Rows(name string) []map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tables[name]
	if !ok {
		return nil
	}
	return t.clone().rows
}

// Begin snapshots every table into a new transaction.
func (d *DB) Begin(ctx context.Context) (db.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil, errors.New("memdb: a transaction is already open")
	}
	d.open = true
	d.Begins++
	snapshot := make(map[string]*table, len(d.tables))
	for name, t := range d.tables {
		snapshot[name] = t.clone()
	}
	return &tx{db: d, tables: snapshot}, nil
}

type tx struct {
	db     *DB
	tables map[string]*table
	done   bool
}

func (t *tx) Exec(ctx context.Context, sql string) error {
	if t.done {
		return errors.New("memdb: transaction closed")
	}
	d := t.db
	d.mu.Lock()
	d.Execs = append(d.Execs, sql)
	failErr := d.FailExec[sql]
	def, isCreate := d.ddl[sql]
	dropName, isDrop := d.drops[sql]
	d.mu.Unlock()

	if failErr != nil {
		return failErr
	}
	switch {
	case isCreate:
		if _, exists := t.tables[def.Name]; exists {
			return &pgconn.PgError{
				Severity: "ERROR", Code: "42P07",
				Message: fmt.Sprintf("relation %q already exists", def.Name),
			}
		}
		t.tables[def.Name] = &table{def: def}
	case isDrop:
		delete(t.tables, dropName)
	}
	return nil
}

func (t *tx) Lookup(ctx context.Context, tableName, column string, value any, key string) (any, bool, error) {
	if t.done {
		return nil, false, errors.New("memdb: transaction closed")
	}
	tbl, err := t.table(tableName)
	if err != nil {
		return nil, false, err
	}
	col := tbl.column(column)
	if col == nil {
		return nil, false, undefinedColumn(tableName, column)
	}
	probe, err := coerce(col, value)
	if err != nil {
		return nil, false, err
	}
	if probe == nil {
		return nil, false, nil
	}
	for _, row := range tbl.rows {
		if row[column] == probe {
			if key == "" {
				return nil, true, nil
			}
			return row[key], true, nil
		}
	}
	return nil, false, nil
}

func (t *tx) Insert(ctx context.Context, tableName string, columns []string, values []any, key string) (any, error) {
	if t.done {
		return nil, errors.New("memdb: transaction closed")
	}
	if len(columns) != len(values) {
		return nil, fmt.Errorf("memdb: %d columns but %d values", len(columns), len(values))
	}
	tbl, err := t.table(tableName)
	if err != nil {
		return nil, err
	}

	row := make(map[string]any, len(tbl.def.Columns))
	for i, name := range columns {
		col := tbl.column(name)
		if col == nil {
			return nil, undefinedColumn(tableName, name)
		}
		v, err := coerce(col, values[i])
		if err != nil {
			return nil, err
		}
		row[name] = v
	}

	seq := tbl.seq
	for _, col := range tbl.def.Columns {
		if !col.Serial {
			continue
		}
		if v, ok := row[col.Name]; ok && v != nil {
			if n, isInt := v.(int64); isInt && n > seq {
				seq = n
			}
			continue
		}
		seq++
		row[col.Name] = seq
	}

	if d := t.db; d.FailInsert != nil {
		if err := d.FailInsert(tableName, row); err != nil {
			return nil, err
		}
	}

	for _, col := range tbl.def.Columns {
		v := row[col.Name]
		if v == nil {
			if col.NotNull || col.Name == tbl.def.PrimaryKey {
				return nil, &pgconn.PgError{
					Severity: "ERROR", Code: "23502", TableName: tableName, ColumnName: col.Name,
					Message: fmt.Sprintf("null value in column %q of relation %q violates not-null constraint", col.Name, tableName),
				}
			}
			continue
		}
		if col.Unique || col.Name == tbl.def.PrimaryKey {
			for _, existing := range tbl.rows {
				if existing[col.Name] == v {
					constraint := tableName + "_" + col.Name + "_key"
					if col.Name == tbl.def.PrimaryKey {
						constraint = tableName + "_pkey"
					}
					return nil, &pgconn.PgError{
						Severity: "ERROR", Code: "23505", TableName: tableName, ConstraintName: constraint,
						Message: fmt.Sprintf("duplicate key value violates unique constraint %q", constraint),
					}
				}
			}
		}
		if col.References != "" && !t.hasKey(col.References, v) {
			constraint := tableName + "_" + col.Name + "_fkey"
			return nil, &pgconn.PgError{
				Severity: "ERROR", Code: "23503", TableName: tableName, ConstraintName: constraint,
				Message: fmt.Sprintf("insert or update on table %q violates foreign key constraint %q", tableName, constraint),
			}
		}
	}

	tbl.seq = seq
	tbl.rows = append(tbl.rows, row)
	if key == "" {
		return nil, nil
	}
	return row[key], nil
}

func (t *tx) hasKey(tableName string, v any) bool {
	parent, ok := t.tables[tableName]
	if !ok || parent.def.PrimaryKey == "" {
		return false
	}
	for _, row := range parent.rows {
		if row[parent.def.PrimaryKey] == v {
			return true
		}
	}
	return false
}

func (t *tx) table(name string) (*table, error) {
	tbl, ok := t.tables[name]
	if !ok {
		return nil, &pgconn.PgError{
			Severity: "ERROR", Code: "42P01",
			Message: fmt.Sprintf("relation %q does not exist", name),
		}
	}
	return tbl, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("memdb: transaction closed")
	}
	t.done = true
	d := t.db
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables = t.tables
	d.open = false
	d.Commits++
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	d := t.db
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.Rollbacks++
	return nil
}

func undefinedColumn(table, column string) error {
	return &pgconn.PgError{
		Severity: "ERROR", Code: "42703", TableName: table,
		Message: fmt.Sprintf("column %q of relation %q does not exist", column, table),
	}
}

// coerce converts a parameter to the column's storage type the way the
// server's input functions would.
func coerce(col *Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, invalidInput("integer", v)
		}
		return n, nil
	case TypeNumeric:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, invalidInput("numeric", v)
		}
		return f, nil
	case TypeVarchar:
		s := fmt.Sprint(v)
		if col.Length > 0 && len([]rune(s)) > col.Length {
			return nil, &pgconn.PgError{
				Severity: "ERROR", Code: "22001",
				Message: fmt.Sprintf("value too long for type character varying(%d)", col.Length),
			}
		}
		return s, nil
	default:
		return fmt.Sprint(v), nil
	}
}

func invalidInput(typ string, v any) error {
	return &pgconn.PgError{
		Severity: "ERROR", Code: "22P02",
		Message: fmt.Sprintf("invalid input syntax for type %s: %q", typ, fmt.Sprint(v)),
	}
}
