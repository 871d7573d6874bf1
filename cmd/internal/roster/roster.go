// Package roster supplies the contact addresses alerts are fanned out to.
package roster

import (
	"context"
	"strings"
)

// Static is a fixed roster, typically from configuration.
type Static []string

// ParseStatic splits a comma-separated list, dropping blank entries.
func ParseStatic(raw string) Static {
	var out Static
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Contacts returns a copy of the list.
func (s Static) Contacts(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}
