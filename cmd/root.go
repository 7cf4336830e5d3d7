package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurou927/relload/internal/config"
	"github.com/hurou927/relload/internal/db"
	"github.com/hurou927/relload/internal/logging"
	"github.com/hurou927/relload/internal/pipeline"
	"github.com/hurou927/relload/internal/schema"
)

var (
	cfgPath  string
	logLevel string
	cfg      *config.Config
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "relload",
	Short: "Create a relational schema in dependency order and load flat rows into it",
	Long: `relload analyzes proposed CREATE TABLE statements, orders them so every
referenced table is created before the tables that reference it, creates them in
one transaction, and loads a flat source file into the new tables while keeping
foreign keys consistent.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			return fmt.Errorf("--config is required")
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger, err = logging.New(level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (required)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect opens the pool and wires the pipeline's database collaborators.
func connect(ctx context.Context) (*pgxpool.Pool, pipeline.Deps, error) {
	if err := cfg.ValidateConnection(); err != nil {
		return nil, pipeline.Deps{}, err
	}
	pool, err := db.NewPool(ctx, &cfg.Connection, cfg.Schema)
	if err != nil {
		return nil, pipeline.Deps{}, fmt.Errorf("connecting to database: %w", err)
	}
	deps := pipeline.Deps{
		Store:        db.NewPgStore(pool, cfg.Schema),
		Introspector: schema.NewPgIntrospector(pool, cfg.Schema),
		Logger:       logger,
	}
	return pool, deps, nil
}
