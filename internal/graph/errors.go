package graph

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a mismatch between the declared table universe
// and the nodes of the dependency graph.
type ConfigurationError struct {
	// Missing are declared tables absent from the graph.
	Missing []string
	// Extra are graph nodes (tables or referenced parents) that were not declared.
	Extra []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("declared but not defined: %v", e.Missing))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("defined or referenced but not declared: %v", e.Extra))
	}
	return "table universe mismatch: " + strings.Join(parts, "; ")
}

// CycleError reports the tables that could not be ordered because of a dependency cycle.
type CycleError struct {
	Tables []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected among tables: %v", e.Tables)
}
