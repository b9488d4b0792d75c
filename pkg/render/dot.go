package render

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/cfboot/pkg/dag"
)

// Options configures DOT generation.
type Options struct {
	// Detailed adds the node metadata to each label.
	Detailed bool
}

var stateColors = map[string]string{
	"active":    "palegreen",
	"resolved":  "lightyellow",
	"installed": "lightsalmon",
	"starting":  "lightblue",
	"stopping":  "lightblue",
}

// ToDOT converts a module graph to Graphviz DOT.
func ToDOT(g *dag.DAG, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph modules {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		attrs := []string{fmt.Sprintf("label=%q", label(*n, opts.Detailed))}
		if state, ok := n.Meta["state"].(string); ok {
			if c, ok := stateColors[state]; ok {
				attrs = append(attrs, "fillcolor="+c)
			}
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		if e.Kind == "package" {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func label(n dag.Node, detailed bool) string {
	if !detailed {
		return n.ID
	}
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
	}
	return n.ID + "\n" + strings.Join(parts, "\n")
}
