package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/matzehuels/cfboot/pkg/dag"
)

type jsonGraph struct {
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

type jsonNode struct {
	ID   string       `json:"id"`
	Meta dag.Metadata `json:"meta,omitempty"`
}

type jsonEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind,omitempty"`
}

// WriteJSON encodes the module graph as {"nodes": [...], "edges": [...]},
// nodes sorted by id and edges in insertion order.
func WriteJSON(g *dag.DAG, w io.Writer) error {
	nodes := g.Nodes()
	edges := g.Edges()
	out := jsonGraph{
		Nodes: make([]jsonNode, len(nodes)),
		Edges: make([]jsonEdge, len(edges)),
	}
	for i, n := range nodes {
		out.Nodes[i] = jsonNode{ID: n.ID, Meta: n.Meta}
	}
	for i, e := range edges {
		out.Edges[i] = jsonEdge{From: e.From, To: e.To, Kind: e.Kind}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
