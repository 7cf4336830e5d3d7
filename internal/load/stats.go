package load

// Sample is one dropped row kept as an example of a drop reason.
type Sample struct {
	RowIdx int    `json:"row_idx" yaml:"row_idx"`
	Msg    string `json:"msg" yaml:"msg"`
}

// ReasonStats counts drops for one reason and keeps a bounded set of samples.
type ReasonStats struct {
	Count  int      `json:"count" yaml:"count"`
	Sample []Sample `json:"sample" yaml:"sample"`
}

// TableStats is the load outcome for one table.
type TableStats struct {
	Attempted int                     `json:"attempted" yaml:"attempted"`
	Dropped   int                     `json:"dropped" yaml:"dropped"`
	Errors    map[string]*ReasonStats `json:"errors" yaml:"errors"`
}

// Stats accumulates per-table attempt and drop accounting for one run.
type Stats struct {
	order        []string
	tables       map[string]*TableStats
	sampleLimit  int
	messageLimit int
}

// NewStats returns empty statistics for the given tables.
func NewStats(order []string, sampleLimit, messageLimit int) *Stats {
	s := &Stats{
		order:        append([]string(nil), order...),
		tables:       make(map[string]*TableStats, len(order)),
		sampleLimit:  sampleLimit,
		messageLimit: messageLimit,
	}
	for _, name := range order {
		s.tables[name] = &TableStats{Errors: make(map[string]*ReasonStats)}
	}
	return s
}

// Tables returns table names in creation order.
func (s *Stats) Tables() []string {
	return append([]string(nil), s.order...)
}

// Table returns the statistics for one table, or nil if it is unknown.
func (s *Stats) Table(name string) *TableStats {
	return s.tables[name]
}

// Map returns the per-table statistics keyed by table name.
func (s *Stats) Map() map[string]*TableStats {
	return s.tables
}

// Totals sums attempts and drops across tables.
func (s *Stats) Totals() (attempted, dropped int) {
	for _, t := range s.tables {
		attempted += t.Attempted
		dropped += t.Dropped
	}
	return attempted, dropped
}

func (s *Stats) table(name string) *TableStats {
	t, ok := s.tables[name]
	if !ok {
		t = &TableStats{Errors: make(map[string]*ReasonStats)}
		s.tables[name] = t
		s.order = append(s.order, name)
	}
	return t
}

// Attempt counts one row that touched table.
func (s *Stats) Attempt(table string) {
	s.table(table).Attempted++
}

// Drop counts one dropped row under reason, keeping it as a sample while
// the reason has room.
func (s *Stats) Drop(table, reason string, row int, msg string) {
	t := s.table(table)
	t.Dropped++
	rs, ok := t.Errors[reason]
	if !ok {
		rs = &ReasonStats{}
		t.Errors[reason] = rs
	}
	rs.Count++
	if len(rs.Sample) < s.sampleLimit {
		rs.Sample = append(rs.Sample, Sample{RowIdx: row, Msg: truncateRunes(msg, s.messageLimit)})
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
