package bundle

import (
	"maps"
	"slices"
	"strings"
)

// Clause is one comma separated entry of a manifest header such as
// `org.jboss.logging;version="[3.3,4)";resolution:=optional`.
type Clause struct {
	Names      []string
	Attrs      map[string]string
	Directives map[string]string
}

// ParseClauses splits a header value into clauses. Quoted values may contain
// commas and semicolons.
func ParseClauses(value string) []Clause {
	var clauses []Clause
	for _, raw := range splitQuoted(value, ',') {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		c := Clause{Attrs: map[string]string{}, Directives: map[string]string{}}
		for _, part := range splitQuoted(raw, ';') {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if k, v, ok := strings.Cut(part, ":="); ok {
				c.Directives[strings.TrimSpace(k)] = unquote(v)
				continue
			}
			if k, v, ok := strings.Cut(part, "="); ok {
				c.Attrs[strings.TrimSpace(k)] = unquote(v)
				continue
			}
			c.Names = append(c.Names, part)
		}
		if len(c.Names) > 0 {
			clauses = append(clauses, c)
		}
	}
	return clauses
}

// FirstName returns the first name of the first clause in value, which is how
// single-valued headers like Bundle-SymbolicName and Fragment-Host are read.
func FirstName(value string) string {
	cs := ParseClauses(value)
	if len(cs) == 0 {
		return ""
	}
	return cs[0].Names[0]
}

func splitQuoted(s string, sep byte) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
