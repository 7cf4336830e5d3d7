// Package source reads delimited source files into loader records.
package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hurou927/relload/internal/load"
)

// Options controls how a delimited file is read.
type Options struct {
	Delimiter rune
	// NullValues lists raw cell values read as SQL NULL.
	NullValues map[string]bool
}

// Table is a parsed source: its header and the non-empty rows.
type Table struct {
	Header  []string
	Records []load.Record
	// Skipped counts rows whose every cell was null.
	Skipped int
}

// ReadFile reads a delimited file from disk.
func ReadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, opts)
}

// ReadCSV parses a header row followed by data rows. Record indexes are the
// 0-based data row positions, so rows skipped for being empty leave gaps.
func ReadCSV(r io.Reader, opts Options) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("\uFFFD"))
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("source is empty: a header row is required")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate header column %q", h)
		}
		seen[h] = true
		header[i] = h
	}

	t := &Table{Header: header}
	for idx := 0; ; idx++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", idx, err)
		}

		fields := make(load.Row, len(header))
		empty := true
		for i, name := range header {
			if i >= len(cells) || opts.NullValues[cells[i]] {
				fields[name] = nil
				continue
			}
			fields[name] = cells[i]
			empty = false
		}
		if empty {
			t.Skipped++
			continue
		}
		t.Records = append(t.Records, load.Record{Index: idx, Fields: fields})
	}
	return t, nil
}
