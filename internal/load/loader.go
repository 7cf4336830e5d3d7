package load

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/hurou927/relload/internal/db"
	"github.com/hurou927/relload/internal/schema"
)

// DefaultMaxRetries is the number of cleaned retries after a first failed attempt.
const DefaultMaxRetries = 2

// Options tunes a Loader. Zero values select the defaults.
type Options struct {
	// MaxRetries bounds retries per row; nil selects DefaultMaxRetries.
	MaxRetries   *int
	SampleLimit  int
	MessageLimit int
	// TruncateLength is the limit used by the default length rule.
	TruncateLength int
	Strategies     []KeyStrategy
	Cleaner        *Cleaner
	Logger         *zap.Logger
}

// Loader writes source rows into tables in creation order, one transaction
// per row, resolving foreign keys through a run-scoped key cache.
type Loader struct {
	store      db.Store
	order      []string
	tables     map[string]*schema.TableSpec
	strategies []KeyStrategy
	cleaner    *Cleaner
	maxRetries int

	cache *KeyCache
	stats *Stats
	log   *zap.Logger
}

// New returns a loader for tables in the given creation order.
// Every ordered table must have metadata in the registry.
func New(store db.Store, order []string, registry map[string]*schema.TableSpec, opts Options) (*Loader, error) {
	for _, name := range order {
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("no metadata for table %q", name)
		}
	}

	l := &Loader{
		store:      store,
		order:      slices.Clone(order),
		tables:     registry,
		strategies: opts.Strategies,
		cleaner:    opts.Cleaner,
		maxRetries: DefaultMaxRetries,
		cache:      NewKeyCache(),
		log:        opts.Logger,
	}
	if opts.MaxRetries != nil {
		l.maxRetries = max(*opts.MaxRetries, 0)
	}
	if len(l.strategies) == 0 {
		l.strategies = DefaultStrategies()
	}
	if l.cleaner == nil {
		l.cleaner = NewCleaner(DefaultRules(opts.TruncateLength, l.sourceFieldsFor)...)
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	sampleLimit, messageLimit := opts.SampleLimit, opts.MessageLimit
	if sampleLimit <= 0 {
		sampleLimit = 5
	}
	if messageLimit <= 0 {
		messageLimit = 200
	}
	l.stats = NewStats(order, sampleLimit, messageLimit)
	return l, nil
}

// Stats returns the statistics accumulated so far.
func (l *Loader) Stats() *Stats { return l.stats }

// Cache returns the run's key cache.
func (l *Loader) Cache() *KeyCache { return l.cache }

// Run loads every record in order. Row failures are recorded in the stats,
// never returned; only context cancellation stops the run early.
func (l *Loader) Run(ctx context.Context, records []Record) (*Stats, error) {
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return l.stats, err
		}
		if err := l.LoadRow(ctx, rec); err != nil {
			return l.stats, err
		}
	}

	for _, name := range l.stats.Tables() {
		t := l.stats.Table(name)
		l.log.Info("table loaded",
			zap.String("table", name),
			zap.Int("attempted", t.Attempted),
			zap.Int("dropped", t.Dropped),
		)
	}
	return l.stats, nil
}

// LoadRow loads one source row across all tables atomically. Integrity
// failures are cleaned and retried up to the retry bound; the row is dropped
// after that, or at once for any other failure.
func (l *Loader) LoadRow(ctx context.Context, rec Record) error {
	var overlay Row
	for attempt := 0; ; attempt++ {
		fields := rec.Fields.With(overlay)
		touched, err := l.attempt(ctx, rec.Index, fields)
		if err == nil {
			for _, name := range touched {
				l.stats.Attempt(name)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var integrity *RowIntegrityError
		if !errors.As(err, &integrity) {
			l.drop(rec.Index, touched, ReasonUnexpected, err)
			return nil
		}
		if attempt >= l.maxRetries {
			l.drop(rec.Index, touched, Reason(err), err)
			return nil
		}

		cleaned, rule := l.cleaner.Clean(fields, err)
		overlay = overlay.With(cleaned)
		l.log.Debug("retrying row",
			zap.Int("row", rec.Index),
			zap.Int("attempt", attempt+1),
			zap.String("table", integrity.Table),
			zap.String("rule", rule),
			zap.Error(integrity.Err),
		)
	}
}

func (l *Loader) drop(row int, touched []string, reason string, err error) {
	msg := rowMessage(err)
	for _, name := range touched {
		l.stats.Attempt(name)
		l.stats.Drop(name, reason, row, msg)
	}
	l.log.Warn("row dropped",
		zap.Int("row", row),
		zap.Strings("tables", touched),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

// rowMessage strips the row and table prefix so samples carry the cause.
func rowMessage(err error) string {
	var integrity *RowIntegrityError
	if errors.As(err, &integrity) {
		return integrity.Err.Error()
	}
	var unexpected *UnexpectedRowError
	if errors.As(err, &unexpected) {
		return unexpected.Err.Error()
	}
	return err.Error()
}

// rowState is the per-attempt view of one row inside its transaction.
type rowState struct {
	tx      db.Tx
	fields  Row
	staged  *KeyCache
	touched []string
}

func (s *rowState) touch(table string) {
	if !slices.Contains(s.touched, table) {
		s.touched = append(s.touched, table)
	}
}

// attempt runs one transaction for a row. Keys resolved inside it are staged
// and reach the run cache only after commit.
func (l *Loader) attempt(ctx context.Context, rowIdx int, fields Row) ([]string, error) {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		// no table was reached; the failure is charged to the first one
		return slices.Clone(l.order[:min(len(l.order), 1)]), &UnexpectedRowError{Row: rowIdx, Err: fmt.Errorf("beginning transaction: %w", err)}
	}
	st := &rowState{tx: tx, fields: fields, staged: NewKeyCache()}

	for _, name := range l.order {
		if err := l.loadTable(ctx, st, l.tables[name]); err != nil {
			st.touch(name)
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				l.log.Warn("rollback failed", zap.Int("row", rowIdx), zap.Error(rbErr))
			}
			return st.touched, classify(rowIdx, name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return st.touched, classify(rowIdx, "", fmt.Errorf("committing row: %w", err))
	}
	l.cache.Merge(st.staged)
	return st.touched, nil
}

// loadTable writes the row's share of one table. Tables with no non-key
// value in the row are skipped.
func (l *Loader) loadTable(ctx context.Context, st *rowState, spec *schema.TableSpec) error {
	cols, values, own := l.candidate(spec, st.fields)
	if !own {
		return nil
	}
	st.touch(spec.Name)
	if err := l.resolveForeignKeys(ctx, st, spec, values); err != nil {
		return err
	}
	_, err := l.upsert(ctx, st, spec, cols, values)
	return err
}

// candidate builds the insert columns and values for a table. Auto-generated
// keys are left to the database; foreign-key columns are always included so
// they can be filled by resolution.
func (l *Loader) candidate(spec *schema.TableSpec, fields Row) ([]string, map[string]any, bool) {
	var cols []string
	values := make(map[string]any)
	own := false
	for _, c := range spec.Columns {
		if spec.SkipOnInsert(c.Name) {
			continue
		}
		_, isFK := spec.ForeignKeyFor(c.Name)
		v, present := fields[spec.SourceField(c.Name)]
		if !present && !isFK {
			continue
		}
		cols = append(cols, c.Name)
		values[c.Name] = v
		if v != nil && !isFK {
			own = true
		}
	}
	return cols, values, own
}

func (l *Loader) resolveForeignKeys(ctx context.Context, st *rowState, spec *schema.TableSpec, values map[string]any) error {
	for _, fk := range spec.ForeignKeys {
		if values[fk.Column] != nil {
			continue
		}
		parent, ok := l.tables[fk.ParentTable]
		if !ok || parent == spec {
			continue
		}
		v, ok, err := l.resolveParent(ctx, st, parent, fk)
		if err != nil {
			return err
		}
		if ok {
			values[fk.Column] = v
		}
	}
	return nil
}

// resolveParent returns the value a child's foreign-key column should hold:
// the parent's key from the cache, else from a lookup, else from inserting
// the parent built from the same row.
func (l *Loader) resolveParent(ctx context.Context, st *rowState, parent *schema.TableSpec, fk schema.ForeignKey) (any, bool, error) {
	m, ok := matchKey(l.strategies, parent, st.fields)
	if !ok {
		return nil, false, nil
	}
	key, hit := l.cached(st, parent.Name, m)
	if !hit {
		st.touch(parent.Name)
		cols, values, _ := l.candidate(parent, st.fields)
		if err := l.resolveForeignKeys(ctx, st, parent, values); err != nil {
			return nil, false, err
		}
		var err error
		if key, err = l.upsert(ctx, st, parent, cols, values); err != nil {
			return nil, false, err
		}
	}

	// a reference to a non-key unique column carries that column's value
	if fk.ParentColumn != "" && fk.ParentColumn != parent.KeyColumn() {
		v := st.fields[parent.SourceField(fk.ParentColumn)]
		return v, v != nil, nil
	}
	return key, key != nil, nil
}

// upsert returns the key of the row matching the table's natural key,
// inserting the candidate when no such row exists yet.
func (l *Loader) upsert(ctx context.Context, st *rowState, spec *schema.TableSpec, cols []string, values map[string]any) (any, error) {
	keyCol := spec.KeyColumn()
	m, hasMatch := matchKey(l.strategies, spec, st.fields)
	if hasMatch {
		if key, ok := l.cached(st, spec.Name, m); ok {
			return key, nil
		}
		key, found, err := st.tx.Lookup(ctx, spec.Name, m.Column, m.Value, keyCol)
		if err != nil {
			return nil, fmt.Errorf("looking up %s by %s: %w", spec.Name, m.Column, err)
		}
		if found {
			st.staged.Put(spec.Name, m, key)
			return key, nil
		}
	}

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	key, err := st.tx.Insert(ctx, spec.Name, cols, args, keyCol)
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", spec.Name, err)
	}
	if hasMatch {
		st.staged.Put(spec.Name, m, key)
	}
	return key, nil
}

func (l *Loader) cached(st *rowState, table string, m Match) (any, bool) {
	if key, ok := st.staged.Get(table, m); ok {
		return key, true
	}
	return l.cache.Get(table, m)
}

func (l *Loader) sourceFieldsFor(column string) []string {
	var fields []string
	for _, name := range l.order {
		spec := l.tables[name]
		if spec.Column(column) == nil {
			continue
		}
		if f := spec.SourceField(column); !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields
}
