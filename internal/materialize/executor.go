// Package materialize creates and drops the planned tables.
package materialize

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hurou927/relload/internal/db"
	"github.com/hurou927/relload/internal/logging"
	"github.com/hurou927/relload/internal/schema"
)

// SchemaExecutionError reports a DDL failure. The whole schema transaction
// was rolled back, so no table from the run exists.
type SchemaExecutionError struct {
	// Table is the table whose statement failed; empty when the commit failed.
	Table string
	Err   error
}

func (e *SchemaExecutionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("creating schema: %v", e.Err)
	}
	return fmt.Sprintf("creating table %q: %v", e.Table, e.Err)
}

func (e *SchemaExecutionError) Unwrap() error { return e.Err }

// Create executes each table's DDL in order inside one transaction.
// Either every table is created or none is.
func Create(ctx context.Context, store db.Store, order []string, registry map[string]*schema.TableSpec, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	for _, name := range order {
		if _, ok := registry[name]; !ok {
			return &SchemaExecutionError{Table: name, Err: errors.New("no definition for table")}
		}
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		return &SchemaExecutionError{Err: err}
	}

	for _, name := range order {
		logger.Debug("executing DDL", zap.String("table", name))
		if err := tx.Exec(ctx, registry[name].DDL); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Warn("rolling back schema transaction", zap.Error(rbErr))
			}
			return &SchemaExecutionError{Table: name, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &SchemaExecutionError{Err: err}
	}
	logger.Info("schema created", zap.Int("tables", len(order)), zap.Strings("order", order))
	return nil
}

// DropAll drops the tables in reverse creation order inside one transaction.
// Missing tables are ignored.
func DropAll(ctx context.Context, store db.Store, schemaName string, order []string, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	tx, err := store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	for i := len(order) - 1; i >= 0; i-- {
		if err := tx.Exec(ctx, db.BuildDropTable(schemaName, order[i])); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("dropping table %q: %w", order[i], err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	logger.Info("tables dropped", zap.Int("tables", len(order)))
	return nil
}
