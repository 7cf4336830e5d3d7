// Package pipeline runs the materialization stages in order: analyze DDL,
// build the dependency graph, schedule, create, introspect and load.
package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hurou927/relload/internal/config"
	"github.com/hurou927/relload/internal/db"
	"github.com/hurou927/relload/internal/graph"
	"github.com/hurou927/relload/internal/load"
	"github.com/hurou927/relload/internal/logging"
	"github.com/hurou927/relload/internal/materialize"
	"github.com/hurou927/relload/internal/schema"
)

// Plan is the analyzed and scheduled table set of one run. Building it
// touches no database.
type Plan struct {
	Graph    *graph.Graph
	Order    []string
	Registry map[string]*schema.TableSpec
}

// Analyze parses every table's DDL and builds the dependency graph.
func Analyze(tables []config.Table) (*graph.Graph, error) {
	specs := make([]*schema.TableSpec, 0, len(tables))
	for i, t := range tables {
		spec, err := schema.AnalyzeDDL(t.DDL)
		if err != nil {
			return nil, fmt.Errorf("tables[%d]: %w", i, err)
		}
		spec.ColumnMapping = t.ColumnMapping
		spec.Relation = schema.Relation(t.Relation)
		spec.SurrogateKey = t.SurrogateKey
		spec.NaturalKey = t.NaturalKey
		specs = append(specs, spec)
	}
	return graph.Build(specs)
}

// BuildPlan analyzes the tables and schedules their creation. The declared
// universe defaults to the analyzed table names.
func BuildPlan(tables []config.Table, declared []string) (*Plan, error) {
	g, err := Analyze(tables)
	if err != nil {
		return nil, err
	}
	if len(declared) == 0 {
		for name := range g.Tables {
			declared = append(declared, name)
		}
		slices.Sort(declared)
	}
	order, err := graph.Schedule(g, declared)
	if err != nil {
		return nil, err
	}
	return &Plan{Graph: g, Order: order, Registry: g.Tables}, nil
}

// Deps are the external collaborators of a run.
type Deps struct {
	Store        db.Store
	Introspector schema.Introspector
	Logger       *zap.Logger
}

// Result summarizes a run.
type Result struct {
	RunID string
	Order []string
	// Registry holds the table metadata read back after creation.
	Registry map[string]*schema.TableSpec
	Stats    *load.Stats
	// Uncovered lists source header fields no table column is fed from.
	Uncovered []string
}

// Summary returns one line per table with its load counts.
func (r *Result) Summary() []string {
	if r.Stats == nil {
		return nil
	}
	lines := make([]string, 0, len(r.Order))
	for _, name := range r.Order {
		t := r.Stats.Table(name)
		lines = append(lines, fmt.Sprintf("  %s: %d attempted, %d dropped", name, t.Attempted, t.Dropped))
	}
	return lines
}

type runner struct {
	deps Deps
	cfg  *config.Config
	log  *zap.Logger
	res  *Result
}

func newRunner(deps Deps, cfg *config.Config) *runner {
	id := uuid.NewString()
	return &runner{
		deps: deps,
		cfg:  cfg,
		log:  logging.OrNop(deps.Logger).With(zap.String("run_id", id)),
		res:  &Result{RunID: id},
	}
}

// Materialize plans the tables and creates them, dropping them first when
// reset is configured. Planning failures abort before any statement runs.
func Materialize(ctx context.Context, deps Deps, cfg *config.Config) (*Result, error) {
	r := newRunner(deps, cfg)
	if _, err := r.materialize(ctx); err != nil {
		return r.res, err
	}
	return r.res, nil
}

// Run materializes the tables and loads records into them. Header fields
// that feed no column are reported in the result and logged, not rejected.
func Run(ctx context.Context, deps Deps, cfg *config.Config, header []string, records []load.Record) (*Result, error) {
	r := newRunner(deps, cfg)
	plan, err := r.materialize(ctx)
	if err != nil {
		return r.res, err
	}

	r.res.Uncovered = schema.UncoveredFields(header, r.res.Registry)
	if len(r.res.Uncovered) > 0 {
		r.log.Warn("source fields not loaded into any table", zap.Strings("fields", r.res.Uncovered))
	}

	if n := cfg.Load.StopAfter; n > 0 && n < len(records) {
		records = records[:n]
	}

	retries := cfg.Load.Retries()
	loader, err := load.New(deps.Store, plan.Order, r.res.Registry, load.Options{
		MaxRetries:     &retries,
		SampleLimit:    cfg.Load.SampleLimit,
		MessageLimit:   cfg.Load.MessageLimit,
		TruncateLength: cfg.Load.TruncateLength,
		Logger:         r.log,
	})
	if err != nil {
		return r.res, err
	}

	r.log.Info("loading rows", zap.Int("rows", len(records)))
	stats, err := loader.Run(ctx, records)
	r.res.Stats = stats
	if err != nil {
		return r.res, fmt.Errorf("loading rows: %w", err)
	}
	attempted, dropped := stats.Totals()
	r.log.Info("load complete", zap.Int("attempted", attempted), zap.Int("dropped", dropped))
	return r.res, nil
}

// Reset drops the planned tables in reverse creation order.
func Reset(ctx context.Context, deps Deps, cfg *config.Config) error {
	plan, err := BuildPlan(cfg.Tables, cfg.DeclaredTables)
	if err != nil {
		return err
	}
	return materialize.DropAll(ctx, deps.Store, cfg.Schema, plan.Order, deps.Logger)
}

func (r *runner) materialize(ctx context.Context) (*Plan, error) {
	plan, err := BuildPlan(r.cfg.Tables, r.cfg.DeclaredTables)
	if err != nil {
		return nil, err
	}
	r.res.Order = plan.Order
	r.log.Info("creation order", zap.Strings("order", plan.Order))

	if r.cfg.Reset {
		if err := materialize.DropAll(ctx, r.deps.Store, r.cfg.Schema, plan.Order, r.log); err != nil {
			return nil, err
		}
	}
	if err := materialize.Create(ctx, r.deps.Store, plan.Order, plan.Registry, r.log); err != nil {
		return nil, err
	}

	live, err := r.deps.Introspector.Introspect(ctx, plan.Order)
	if err != nil {
		return nil, fmt.Errorf("introspecting created tables: %w", err)
	}
	registry, err := schema.Refresh(plan.Registry, live)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateSurrogates(registry); err != nil {
		return nil, err
	}
	if err := schema.ValidateNaturalKeys(registry); err != nil {
		return nil, err
	}
	r.res.Registry = registry
	return plan, nil
}
