package load

import "fmt"

// Match identifies a table row by one column value taken from the source.
type Match struct {
	Column string
	Value  any
}

func (m Match) cacheKey() string {
	return m.Column + "\x00" + fmt.Sprint(m.Value)
}

// KeyCache maps table → natural-key match → resolved primary key.
// One cache belongs to one loader run and is never shared.
type KeyCache struct {
	tables map[string]map[string]any
}

// NewKeyCache returns an empty cache.
func NewKeyCache() *KeyCache {
	return &KeyCache{tables: make(map[string]map[string]any)}
}

// Get returns the cached key for a match.
func (c *KeyCache) Get(table string, m Match) (any, bool) {
	k, ok := c.tables[table][m.cacheKey()]
	return k, ok
}

// Put records the key resolved for a match.
func (c *KeyCache) Put(table string, m Match, key any) {
	entries, ok := c.tables[table]
	if !ok {
		entries = make(map[string]any)
		c.tables[table] = entries
	}
	entries[m.cacheKey()] = key
}

// Merge copies every entry of other into c.
func (c *KeyCache) Merge(other *KeyCache) {
	for table, entries := range other.tables {
		for k, v := range entries {
			if c.tables[table] == nil {
				c.tables[table] = make(map[string]any, len(entries))
			}
			c.tables[table][k] = v
		}
	}
}

// Len returns the number of cached entries for a table.
func (c *KeyCache) Len(table string) int {
	return len(c.tables[table])
}
