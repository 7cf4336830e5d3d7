package schema

import (
	"errors"
	"reflect"
	"testing"
)

func TestAnalyzeDDL(t *testing.T) {
	tests := []struct {
		name        string
		ddl         string
		wantName    string
		wantColumns []string
		wantRefs    []string
		wantFKs     []ForeignKey
		wantUnique  []string
		wantPK      []string
		wantCounts  ConstraintCounts
	}{
		{
			name:        "surrogate parent",
			ddl:         "CREATE TABLE artists (artist_id SERIAL PRIMARY KEY, artist_name VARCHAR(255) UNIQUE NOT NULL)",
			wantName:    "artists",
			wantColumns: []string{"artist_id", "artist_name"},
			wantUnique:  []string{"artist_name"},
			wantCounts:  ConstraintCounts{PrimaryKey: 1, Unique: 1, NotNull: 1, Default: 1},
		},
		{
			name: "column level reference",
			ddl: `CREATE TABLE tracks (
				track_id SERIAL PRIMARY KEY,
				artist_id INTEGER REFERENCES artists(artist_id),
				track_name TEXT NOT NULL
			)`,
			wantName:    "tracks",
			wantColumns: []string{"track_id", "artist_id", "track_name"},
			wantRefs:    []string{"artists"},
			wantFKs:     []ForeignKey{{Column: "artist_id", ParentTable: "artists", ParentColumn: "artist_id"}},
			wantCounts:  ConstraintCounts{PrimaryKey: 1, ForeignKey: 1, NotNull: 1, Default: 1},
		},
		{
			name: "table level constraints",
			ddl: `create table Plays (
				play_id serial,
				track_id int not null,
				venue_id int,
				played_at text,
				PRIMARY KEY (play_id),
				UNIQUE (played_at),
				FOREIGN KEY (venue_id) REFERENCES venues (venue_id),
				CONSTRAINT plays_track_fk FOREIGN KEY (track_id) REFERENCES tracks (track_id)
			)`,
			wantName:    "plays",
			wantColumns: []string{"play_id", "track_id", "venue_id", "played_at"},
			wantRefs:    []string{"tracks", "venues"},
			wantFKs: []ForeignKey{
				{Column: "venue_id", ParentTable: "venues", ParentColumn: "venue_id"},
				{Column: "track_id", ParentTable: "tracks", ParentColumn: "track_id"},
			},
			wantUnique: []string{"played_at"},
			wantPK:     []string{"play_id"},
			wantCounts: ConstraintCounts{PrimaryKey: 1, ForeignKey: 2, Unique: 1, NotNull: 1, Default: 1},
		},
		{
			name:        "quoted identifiers keep case",
			ddl:         `CREATE TABLE "Albums" ("AlbumId" SERIAL PRIMARY KEY, title TEXT)`,
			wantName:    "Albums",
			wantColumns: []string{"AlbumId", "title"},
			wantCounts:  ConstraintCounts{PrimaryKey: 1, Default: 1},
		},
		{
			name: "checks and defaults",
			ddl: `CREATE TABLE prices (
				price_id INT PRIMARY KEY,
				amount NUMERIC DEFAULT 0 CHECK (amount >= 0),
				currency TEXT NOT NULL DEFAULT 'USD',
				CHECK (currency <> ''),
				UNIQUE (price_id, currency)
			)`,
			wantName:    "prices",
			wantColumns: []string{"price_id", "amount", "currency"},
			wantCounts:  ConstraintCounts{PrimaryKey: 1, Unique: 1, NotNull: 1, Default: 2, Check: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AnalyzeDDL(tt.ddl)
			if err != nil {
				t.Fatalf("AnalyzeDDL() error = %v", err)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if !reflect.DeepEqual(got.ColumnNames(), tt.wantColumns) {
				t.Errorf("Columns = %v, want %v", got.ColumnNames(), tt.wantColumns)
			}
			if !reflect.DeepEqual(got.References, tt.wantRefs) {
				t.Errorf("References = %v, want %v", got.References, tt.wantRefs)
			}
			if !reflect.DeepEqual(got.ForeignKeys, tt.wantFKs) {
				t.Errorf("ForeignKeys = %+v, want %+v", got.ForeignKeys, tt.wantFKs)
			}
			if !reflect.DeepEqual(got.Unique, tt.wantUnique) {
				t.Errorf("Unique = %v, want %v", got.Unique, tt.wantUnique)
			}
			if !reflect.DeepEqual(got.PrimaryKey, tt.wantPK) {
				t.Errorf("PrimaryKey = %v, want %v", got.PrimaryKey, tt.wantPK)
			}
			if got.Constraints != tt.wantCounts {
				t.Errorf("Constraints = %+v, want %+v", got.Constraints, tt.wantCounts)
			}
		})
	}
}

func TestAnalyzeDDL_StableAcrossFormatting(t *testing.T) {
	a, err := AnalyzeDDL("CREATE TABLE tracks (track_id SERIAL PRIMARY KEY, artist_id INT REFERENCES artists (artist_id))")
	if err != nil {
		t.Fatal(err)
	}
	b, err := AnalyzeDDL("create   table TRACKS (\n  TRACK_ID serial primary key,\n  Artist_Id int references Artists(Artist_Id)\n);")
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != b.Name || !reflect.DeepEqual(a.ColumnNames(), b.ColumnNames()) || !reflect.DeepEqual(a.References, b.References) {
		t.Errorf("facts differ:\n  a = %s %v %v\n  b = %s %v %v",
			a.Name, a.ColumnNames(), a.References, b.Name, b.ColumnNames(), b.References)
	}
}

func TestAnalyzeDDL_Errors(t *testing.T) {
	tests := []struct {
		name         string
		ddl          string
		wantNotTable bool
	}{
		{name: "unparseable", ddl: "CREATE TABLE (", wantNotTable: false},
		{name: "not a create table", ddl: "SELECT 1", wantNotTable: true},
		{name: "two statements", ddl: "CREATE TABLE a (id INT); CREATE TABLE b (id INT)", wantNotTable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AnalyzeDDL(tt.ddl)
			var ae *AnalyzeError
			if !errors.As(err, &ae) {
				t.Fatalf("AnalyzeDDL() error = %v, want *AnalyzeError", err)
			}
			if got := errors.Is(err, ErrNotCreateTable); got != tt.wantNotTable {
				t.Errorf("errors.Is(err, ErrNotCreateTable) = %v, want %v", got, tt.wantNotTable)
			}
		})
	}
}

func TestConstraintCountsString(t *testing.T) {
	c := ConstraintCounts{PrimaryKey: 1, NotNull: 2}.Add(ConstraintCounts{ForeignKey: 1, NotNull: 1})
	if got, want := c.String(), "PK 1, FK 1, NOT NULL 3"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := (ConstraintCounts{}).String(); got != "none" {
		t.Errorf("String() = %q, want none", got)
	}
}
