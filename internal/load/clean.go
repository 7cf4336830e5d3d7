package load

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultTruncateLength bounds string values rewritten by the length rule.
const DefaultTruncateLength = 255

// CleaningRule rewrites source fields after an attempt failed with an error
// whose text matches Pattern. Rewrite returns only the fields it changed.
type CleaningRule struct {
	Name    string
	Pattern *regexp.Regexp
	Rewrite func(fields Row, err error) Row
}

// Cleaner applies the first cleaning rule matching an error.
type Cleaner struct {
	rules []CleaningRule
}

// NewCleaner returns a cleaner evaluating rules in order.
func NewCleaner(rules ...CleaningRule) *Cleaner {
	return &Cleaner{rules: rules}
}

// Clean returns the rewritten fields and the name of the rule applied.
// An error matching no rule yields a nil overlay and an empty name.
func (c *Cleaner) Clean(fields Row, err error) (Row, string) {
	msg := errorText(err)
	for _, r := range c.rules {
		if r.Pattern.MatchString(msg) {
			return r.Rewrite(fields, err), r.Name
		}
	}
	return nil, ""
}

// DefaultRules returns the numeric-format rule and the length rule.
// fieldsFor maps a database column to the source fields that feed it.
func DefaultRules(truncateLength int, fieldsFor func(column string) []string) []CleaningRule {
	if truncateLength <= 0 {
		truncateLength = DefaultTruncateLength
	}
	return []CleaningRule{
		{
			Name:    "numeric_format",
			Pattern: regexp.MustCompile(`(?i)invalid input syntax for (?:type )?(?:numeric|integer|bigint|smallint|real|double precision|decimal)`),
			Rewrite: stripNumericSeparators,
		},
		{
			Name:    "value_length",
			Pattern: regexp.MustCompile(`(?i)value too long for type`),
			Rewrite: func(fields Row, err error) Row {
				return truncateFields(fields, err, truncateLength, fieldsFor)
			},
		},
	}
}

var (
	numericLike      = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?$`)
	numericSeparator = strings.NewReplacer(",", "", "_", "", "'", "", " ", "", "\u00a0", "", "\u202f", "", "\u2009", "")
	columnInMessage  = regexp.MustCompile(`column "([^"]+)"`)
)

// stripNumericSeparators removes thousands separators and surrounding
// whitespace from string fields that become numeric once stripped.
func stripNumericSeparators(fields Row, _ error) Row {
	out := make(Row)
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			continue
		}
		cleaned := strings.TrimSpace(numericSeparator.Replace(s))
		if cleaned != s && numericLike.MatchString(cleaned) {
			out[k] = cleaned
		}
	}
	return out
}

// truncateFields shortens the fields feeding the column named by the error.
// When the error names no column, every string field over the limit is cut.
func truncateFields(fields Row, err error, limit int, fieldsFor func(string) []string) Row {
	var targets []string
	if col := columnFromError(err); col != "" && fieldsFor != nil {
		for _, f := range fieldsFor(col) {
			if _, ok := fields[f]; ok {
				targets = append(targets, f)
			}
		}
	}
	if len(targets) == 0 {
		for k := range fields {
			targets = append(targets, k)
		}
	}

	out := make(Row)
	for _, k := range targets {
		s, ok := fields[k].(string)
		if !ok {
			continue
		}
		if r := []rune(s); len(r) > limit {
			out[k] = string(r[:limit])
		}
	}
	return out
}

func columnFromError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := columnInMessage.FindStringSubmatch(errorText(err)); m != nil {
		return m[1]
	}
	return ""
}

func errorText(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}
	return err.Error()
}
