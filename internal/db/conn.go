package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hurou927/relload/internal/config"
)

// ApplicationName identifies relload sessions in pg_stat_activity.
const ApplicationName = "relload"

// NewPool creates a pgx connection pool whose sessions resolve unqualified
// table names in schema, so DDL proposed without a schema lands there.
func NewPool(ctx context.Context, cfg *config.Connection, schema string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	params := poolCfg.ConnConfig.RuntimeParams
	params["application_name"] = ApplicationName
	if schema != "" {
		params["search_path"] = schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
