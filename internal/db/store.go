package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is one open transaction against the target database.
// Table names are unqualified; the store applies its schema.
type Tx interface {
	// Exec runs a statement that returns no rows (DDL).
	Exec(ctx context.Context, sql string) error
	// Lookup finds a row whose column equals value and returns its key column.
	// With an empty key it only reports existence.
	Lookup(ctx context.Context, table, column string, value any, key string) (any, bool, error)
	// Insert adds a row and returns the value of the key column, or nil when key is empty.
	Insert(ctx context.Context, table string, columns []string, values []any, key string) (any, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens transactions.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// PgStore is a Store backed by a pgx pool.
type PgStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPgStore returns a store that qualifies every table with schema.
func NewPgStore(pool *pgxpool.Pool, schema string) *PgStore {
	return &PgStore{pool: pool, schema: schema}
}

// Begin starts a transaction on a pooled connection.
func (s *PgStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &pgTx{tx: tx, schema: s.schema}, nil
}

type pgTx struct {
	tx     pgx.Tx
	schema string
}

func (t *pgTx) Exec(ctx context.Context, sql string) error {
	_, err := t.tx.Exec(ctx, sql)
	return err
}

func (t *pgTx) Lookup(ctx context.Context, table, column string, value any, key string) (any, bool, error) {
	var v any
	err := t.tx.QueryRow(ctx, BuildLookup(t.schema, table, column, key), value).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if key == "" {
		return nil, true, nil
	}
	return v, true, nil
}

func (t *pgTx) Insert(ctx context.Context, table string, columns []string, values []any, key string) (any, error) {
	query := BuildInsert(t.schema, table, columns, key)
	if key == "" {
		_, err := t.tx.Exec(ctx, query, values...)
		return nil, err
	}
	var v any
	if err := t.tx.QueryRow(ctx, query, values...).Scan(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
