// Package output renders load statistics.
package output

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/hurou927/relload/internal/load"
)

// Report formats.
const (
	FormatText = "text"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Writer writes load statistics reports.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new report writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write renders stats in the named format.
func (rw *Writer) Write(stats *load.Stats, format string) error {
	switch format {
	case "", FormatText:
		return rw.WriteText(stats)
	case FormatYAML:
		return rw.WriteYAML(stats)
	case FormatJSON:
		return rw.WriteJSON(stats)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteYAML writes the per-table statistics mapping as YAML.
func (rw *Writer) WriteYAML(stats *load.Stats) error {
	enc := yaml.NewEncoder(rw.w)
	enc.SetIndent(2)
	if err := enc.Encode(stats.Map()); err != nil {
		return err
	}
	return enc.Close()
}

// WriteJSON writes the per-table statistics mapping as indented JSON.
func (rw *Writer) WriteJSON(stats *load.Stats) error {
	enc := json.NewEncoder(rw.w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats.Map())
}

// WriteText writes a human-readable summary in creation order.
func (rw *Writer) WriteText(stats *load.Stats) error {
	if _, err := fmt.Fprintln(rw.w, "Load summary:"); err != nil {
		return err
	}
	for _, name := range stats.Tables() {
		if err := rw.writeTable(name, stats.Table(name)); err != nil {
			return err
		}
	}
	attempted, dropped := stats.Totals()
	_, err := fmt.Fprintf(rw.w, "Total: %d attempted, %d dropped\n", attempted, dropped)
	return err
}

func (rw *Writer) writeTable(name string, t *load.TableStats) error {
	pct := 0.0
	if t.Attempted > 0 {
		pct = float64(t.Dropped) / float64(t.Attempted) * 100
	}
	_, err := fmt.Fprintf(rw.w, "  %s: %d attempted, %d dropped (%.1f%%)\n", name, t.Attempted, t.Dropped, pct)
	if err != nil {
		return err
	}

	reasons := make([]string, 0, len(t.Errors))
	for r := range t.Errors {
		reasons = append(reasons, r)
	}
	// most frequent first
	slices.SortFunc(reasons, func(a, b string) int {
		if d := t.Errors[b].Count - t.Errors[a].Count; d != 0 {
			return d
		}
		return cmp.Compare(a, b)
	})

	for _, r := range reasons {
		rs := t.Errors[r]
		if _, err := fmt.Fprintf(rw.w, "    %s: %d\n", r, rs.Count); err != nil {
			return err
		}
		for _, s := range rs.Sample {
			if _, err := fmt.Fprintf(rw.w, "      row %d: %s\n", s.RowIdx, escapeString(s.Msg)); err != nil {
				return err
			}
		}
	}
	return nil
}
