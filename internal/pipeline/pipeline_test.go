package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hurou927/relload/internal/config"
	"github.com/hurou927/relload/internal/db"
	"github.com/hurou927/relload/internal/db/memdb"
	"github.com/hurou927/relload/internal/graph"
	"github.com/hurou927/relload/internal/load"
	"github.com/hurou927/relload/internal/schema"
)

const (
	artistsDDL = "CREATE TABLE artists (artist_id SERIAL PRIMARY KEY, artist_name TEXT UNIQUE NOT NULL)"
	tracksDDL  = "CREATE TABLE tracks (track_id SERIAL PRIMARY KEY, track_name TEXT, artist_id INT REFERENCES artists (artist_id))"
)

// staticIntrospector returns fixed live metadata.
type staticIntrospector map[string]*schema.TableSpec

func (s staticIntrospector) Introspect(_ context.Context, tables []string) (map[string]*schema.TableSpec, error) {
	out := make(map[string]*schema.TableSpec)
	for _, name := range tables {
		if spec, ok := s[name]; ok {
			out[name] = spec.Clone()
		}
	}
	return out, nil
}

func liveSpecs() staticIntrospector {
	return staticIntrospector{
		"artists": {
			Name: "artists",
			Columns: []schema.Column{
				{Name: "artist_id", DataType: "int4", OrdPos: 1, AutoGenerated: true},
				{Name: "artist_name", DataType: "text", OrdPos: 2},
			},
			PrimaryKey: []string{"artist_id"},
			Unique:     []string{"artist_name"},
		},
		"tracks": {
			Name: "tracks",
			Columns: []schema.Column{
				{Name: "track_id", DataType: "int4", OrdPos: 1, AutoGenerated: true},
				{Name: "track_name", DataType: "text", Nullable: true, OrdPos: 2},
				{Name: "artist_id", DataType: "int4", Nullable: true, OrdPos: 3},
			},
			PrimaryKey:  []string{"track_id"},
			ForeignKeys: []schema.ForeignKey{{Column: "artist_id", ParentTable: "artists", ParentColumn: "artist_id"}},
		},
	}
}

func newStore() *memdb.DB {
	mdb := memdb.New()
	mdb.RegisterDDL(artistsDDL, memdb.TableDef{
		Name:       "artists",
		PrimaryKey: "artist_id",
		Columns: []memdb.Column{
			{Name: "artist_id", Type: memdb.TypeInt, Serial: true},
			{Name: "artist_name", Type: memdb.TypeText, NotNull: true, Unique: true},
		},
	})
	mdb.RegisterDDL(tracksDDL, memdb.TableDef{
		Name:       "tracks",
		PrimaryKey: "track_id",
		Columns: []memdb.Column{
			{Name: "track_id", Type: memdb.TypeInt, Serial: true},
			{Name: "track_name", Type: memdb.TypeText},
			{Name: "artist_id", Type: memdb.TypeInt, References: "artists"},
		},
	})
	return mdb
}

func newConfig() *config.Config {
	return &config.Config{
		Schema: "public",
		Tables: []config.Table{
			// listed child first: creation order must not depend on input order
			{DDL: tracksDDL, ColumnMapping: map[string]string{"track_name": "track"}, Relation: config.RelationPerRow},
			{DDL: artistsDDL, ColumnMapping: map[string]string{"artist_name": "artist"}, Relation: config.RelationPerDistinct, SurrogateKey: "artist_id", NaturalKey: "artist_name"},
		},
	}
}

var header = []string{"artist", "track"}

func rows() []load.Record {
	return []load.Record{
		{Index: 0, Fields: load.Row{"artist": "A", "track": "x"}},
		{Index: 1, Fields: load.Row{"artist": "A", "track": "y"}},
		{Index: 2, Fields: load.Row{"artist": "B", "track": "z"}},
	}
}

func TestBuildPlan(t *testing.T) {
	plan, err := BuildPlan(newConfig().Tables, nil)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if want := []string{"artists", "tracks"}; !reflect.DeepEqual(plan.Order, want) {
		t.Errorf("Order = %v, want %v", plan.Order, want)
	}
	tracks := plan.Registry["tracks"]
	if tracks.SourceField("track_name") != "track" || tracks.Relation != schema.RelationPerRow {
		t.Errorf("tracks traits not attached: %+v", tracks)
	}
}

func TestRun(t *testing.T) {
	mdb := newStore()
	deps := Deps{Store: mdb, Introspector: liveSpecs()}

	res, err := Run(context.Background(), deps, newConfig(), []string{"artist", "year", "track"}, rows())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if want := []string{"year"}; !reflect.DeepEqual(res.Uncovered, want) {
		t.Errorf("Uncovered = %v, want %v", res.Uncovered, want)
	}
	if want := []string{artistsDDL, tracksDDL}; !reflect.DeepEqual(mdb.Execs, want) {
		t.Errorf("executed %v, want %v", mdb.Execs, want)
	}
	if got := mdb.Count("artists"); got != 2 {
		t.Errorf("artists rows = %d, want 2", got)
	}
	if got := mdb.Count("tracks"); got != 3 {
		t.Errorf("tracks rows = %d, want 3", got)
	}
	want := []string{"  artists: 3 attempted, 0 dropped", "  tracks: 3 attempted, 0 dropped"}
	if got := res.Summary(); !reflect.DeepEqual(got, want) {
		t.Errorf("Summary() = %v, want %v", got, want)
	}
}

func TestRun_StopAfter(t *testing.T) {
	mdb := newStore()
	cfg := newConfig()
	cfg.Load.StopAfter = 1

	if _, err := Run(context.Background(), Deps{Store: mdb, Introspector: liveSpecs()}, cfg, header, rows()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := mdb.Count("tracks"); got != 1 {
		t.Errorf("tracks rows = %d, want 1", got)
	}
}

func TestRun_FatalPlanErrorsRunNoStatements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(t *testing.T, err error)
	}{
		{
			name: "universe mismatch",
			mutate: func(c *config.Config) {
				c.DeclaredTables = []string{"albums", "artists", "tracks"}
			},
			check: func(t *testing.T, err error) {
				var ce *graph.ConfigurationError
				if !errors.As(err, &ce) || !reflect.DeepEqual(ce.Missing, []string{"albums"}) {
					t.Errorf("error = %v, want ConfigurationError missing albums", err)
				}
			},
		},
		{
			name: "cycle",
			mutate: func(c *config.Config) {
				c.Tables = []config.Table{
					{DDL: "CREATE TABLE a (id INT PRIMARY KEY, b_id INT REFERENCES b (id))"},
					{DDL: "CREATE TABLE b (id INT PRIMARY KEY, a_id INT REFERENCES a (id))"},
				}
			},
			check: func(t *testing.T, err error) {
				var ce *graph.CycleError
				if !errors.As(err, &ce) || !reflect.DeepEqual(ce.Tables, []string{"a", "b"}) {
					t.Errorf("error = %v, want CycleError for [a b]", err)
				}
			},
		},
		{
			name: "not a create table",
			mutate: func(c *config.Config) {
				c.Tables = append(c.Tables, config.Table{DDL: "DROP TABLE artists"})
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, schema.ErrNotCreateTable) {
					t.Errorf("error = %v, want ErrNotCreateTable", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mdb := newStore()
			cfg := newConfig()
			cfg.Reset = true
			tt.mutate(cfg)

			_, err := Run(context.Background(), Deps{Store: mdb, Introspector: liveSpecs()}, cfg, header, rows())
			tt.check(t, err)
			if len(mdb.Execs) != 0 || mdb.Begins != 0 {
				t.Errorf("executed %v in %d transactions, want nothing", mdb.Execs, mdb.Begins)
			}
		})
	}
}

func TestRun_SurrogateKeyMustBeGenerated(t *testing.T) {
	mdb := newStore()
	live := liveSpecs()
	live["artists"].Columns[0].AutoGenerated = false

	_, err := Run(context.Background(), Deps{Store: mdb, Introspector: live}, newConfig(), header, rows())
	var ve *schema.ValidationError
	if !errors.As(err, &ve) || ve.Table != "artists" || ve.Column != "artist_id" {
		t.Fatalf("Run() error = %v, want ValidationError for artists.artist_id", err)
	}
	if mdb.Begins != 1 {
		t.Errorf("Begins = %d, want 1 (schema only, no rows loaded)", mdb.Begins)
	}
}

func TestRun_NaturalKeyMustIdentifyRows(t *testing.T) {
	mdb := newStore()
	live := liveSpecs()
	live["artists"].Unique = nil

	_, err := Run(context.Background(), Deps{Store: mdb, Introspector: live}, newConfig(), header, rows())
	var ve *schema.ValidationError
	if !errors.As(err, &ve) || ve.Table != "artists" || ve.Column != "artist_name" {
		t.Fatalf("Run() error = %v, want ValidationError for artists.artist_name", err)
	}
	if got := mdb.Count("artists"); got != 0 {
		t.Errorf("artists rows = %d, want 0", got)
	}
}

func TestRun_Reset(t *testing.T) {
	mdb := newStore()
	dropTracks := db.BuildDropTable("public", "tracks")
	dropArtists := db.BuildDropTable("public", "artists")
	mdb.RegisterDrop(dropTracks, "tracks")
	mdb.RegisterDrop(dropArtists, "artists")
	deps := Deps{Store: mdb, Introspector: liveSpecs()}

	if _, err := Run(context.Background(), deps, newConfig(), header, rows()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	cfg := newConfig()
	cfg.Reset = true
	mdb.Execs = nil
	if _, err := Run(context.Background(), deps, cfg, header, rows()[:1]); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	want := []string{dropTracks, dropArtists, artistsDDL, tracksDDL}
	if !reflect.DeepEqual(mdb.Execs, want) {
		t.Errorf("executed %v, want %v", mdb.Execs, want)
	}
	if got := mdb.Count("artists"); got != 1 {
		t.Errorf("artists rows = %d, want 1 after reset", got)
	}
}

func TestReset(t *testing.T) {
	mdb := newStore()
	mdb.RegisterDrop(db.BuildDropTable("public", "tracks"), "tracks")
	mdb.RegisterDrop(db.BuildDropTable("public", "artists"), "artists")
	deps := Deps{Store: mdb, Introspector: liveSpecs()}

	if _, err := Materialize(context.Background(), deps, newConfig()); err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if err := Reset(context.Background(), deps, newConfig()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if mdb.HasTable("artists") || mdb.HasTable("tracks") {
		t.Error("tables still exist after Reset()")
	}
}
