// Package load loads source rows into the created tables, resolving foreign
// keys by natural-key lookup-or-insert.
package load

// Row is one source row: field name → value. A nil value is SQL NULL.
type Row map[string]any

// Record is a source row with its original 0-based position in the source.
type Record struct {
	Index  int
	Fields Row
}

// With returns a copy of r with overlay's fields replacing r's.
func (r Row) With(overlay Row) Row {
	out := make(Row, len(r)+len(overlay))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
