package db

import "testing"

func TestBuildLookup(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		table  string
		column string
		key    string
		want   string
	}{
		{
			name: "returns key", schema: "public", table: "artists", column: "artist_name", key: "artist_id",
			want: `SELECT "artist_id" FROM "public"."artists" WHERE "artist_name" = $1 LIMIT 1`,
		},
		{
			name: "existence only", schema: "", table: "tags", column: "label", key: "",
			want: `SELECT 1 FROM "tags" WHERE "label" = $1 LIMIT 1`,
		},
		{
			name: "quoted identifiers", schema: "public", table: "Artists", column: `we"ird`, key: "ID",
			want: `SELECT "ID" FROM "public"."Artists" WHERE "we""ird" = $1 LIMIT 1`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildLookup(tt.schema, tt.table, tt.column, tt.key); got != tt.want {
				t.Errorf("BuildLookup() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildInsert(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		key     string
		want    string
	}{
		{
			name: "returning", columns: []string{"artist_id", "track_name"}, key: "track_id",
			want: `INSERT INTO "public"."tracks" ("artist_id", "track_name") VALUES ($1, $2) RETURNING "track_id"`,
		},
		{
			name: "no key", columns: []string{"track_name"}, key: "",
			want: `INSERT INTO "public"."tracks" ("track_name") VALUES ($1)`,
		},
		{
			name: "default values", columns: nil, key: "track_id",
			want: `INSERT INTO "public"."tracks" DEFAULT VALUES RETURNING "track_id"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildInsert("public", "tracks", tt.columns, tt.key); got != tt.want {
				t.Errorf("BuildInsert() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDropTable(t *testing.T) {
	want := `DROP TABLE IF EXISTS "public"."tracks" CASCADE`
	if got := BuildDropTable("public", "tracks"); got != want {
		t.Errorf("BuildDropTable() = %q, want %q", got, want)
	}
}
