package load

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestStripNumericSeparators(t *testing.T) {
	fields := Row{
		"price":  "1,234",
		"total":  " 12 500.75 ",
		"swiss":  "1'000",
		"name":   "Smith, John",
		"plain":  "42",
		"number": 7,
		"empty":  nil,
	}
	got := stripNumericSeparators(fields, nil)
	want := Row{"price": "1234", "total": "12500.75", "swiss": "1000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stripNumericSeparators() = %v, want %v", got, want)
	}
}

func TestCleaner_LengthRuleUsesNamedColumn(t *testing.T) {
	long := "abcdefghijkl"
	fieldsFor := func(column string) []string {
		if column == "track_name" {
			return []string{"track"}
		}
		return nil
	}
	c := NewCleaner(DefaultRules(5, fieldsFor)...)
	err := &pgconn.PgError{Code: "22001", ColumnName: "track_name", Message: "value too long for type character varying(5)"}

	got, rule := c.Clean(Row{"track": long, "artist": long}, err)
	if rule != "value_length" {
		t.Errorf("rule = %q, want value_length", rule)
	}
	if want := (Row{"track": "abcde"}); !reflect.DeepEqual(got, want) {
		t.Errorf("Clean() = %v, want %v", got, want)
	}
}

func TestCleaner_LengthRuleWithoutColumn(t *testing.T) {
	c := NewCleaner(DefaultRules(3, nil)...)
	err := errors.New("value too long for type character varying(3)")

	got, _ := c.Clean(Row{"a": "héllo", "b": "ok", "c": 12345}, err)
	if want := (Row{"a": "hél"}); !reflect.DeepEqual(got, want) {
		t.Errorf("Clean() = %v, want %v", got, want)
	}
}

func TestCleaner_NoMatchingRule(t *testing.T) {
	c := NewCleaner(DefaultRules(0, nil)...)
	err := &pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "artists_pkey"`}
	got, rule := c.Clean(Row{"price": "1,234"}, err)
	if got != nil || rule != "" {
		t.Errorf("Clean() = %v, %q, want nil overlay and no rule", got, rule)
	}
}

func TestIsIntegrity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"data exception", &pgconn.PgError{Code: "22P02"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: "relation \"x\" does not exist"}, false},
		{"text fallback", errors.New("value too long for type character varying(4)"), true},
		{"other", errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIntegrity(tt.err); got != tt.want {
				t.Errorf("IsIntegrity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "strips offending value",
			err:  &RowIntegrityError{Err: &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type integer: "x1"`}},
			want: "invalid input syntax for type integer",
		},
		{
			name: "keeps constraint name",
			err:  &RowIntegrityError{Err: &pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "artists_pkey"`}},
			want: `duplicate key value violates unique constraint "artists_pkey"`,
		},
		{
			name: "plain error uses the innermost cause",
			err:  &RowIntegrityError{Row: 4, Table: "t", Err: fmt.Errorf("inserting into t: %w", errors.New("value too long for type character varying(3)"))},
			want: "value too long for type character varying(3)",
		},
		{
			name: "unexpected",
			err:  &UnexpectedRowError{Err: errors.New("boom")},
			want: ReasonUnexpected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reason(tt.err); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}
