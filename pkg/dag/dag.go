package dag

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [DAG.Validate] and [DAG.TopoOrder]
	// when a cycle is detected.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes or the graph,
// such as a module's version, state or location.
type Metadata map[string]any

// Node is a module in the requirement graph.
type Node struct {
	ID   string   // Unique identifier, "name:version" for modules
	Meta Metadata // Never nil after AddNode
}

// Edge points from a module to a module it requires.
type Edge struct {
	From string
	To   string
	// Kind tells how the requirement was declared ("bundle" or "package").
	Kind string
}

// DAG is a directed graph of module requirements.
//
// Edges point from the requiring module to the required one, so a
// topological order lists dependents before their dependencies.
//
// The zero value is not usable; use New. DAG is not safe for concurrent use.
type DAG struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string
	incoming map[string][]string
	meta     Metadata
}

// New creates an empty graph with optional graph-level metadata.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Meta returns the graph-level metadata map.
func (d *DAG) Meta() Metadata { return d.meta }

// AddNode adds a node. It returns ErrInvalidNodeID for an empty ID and
// ErrDuplicateNodeID if the ID is taken.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	d.nodes[n.ID] = &n
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Duplicate edges
// and self loops are ignored.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if e.From == e.To || slices.Contains(d.outgoing[e.From], e.To) {
		return nil
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// RemoveEdge removes the edge from→to if it exists.
func (d *DAG) RemoveEdge(from, to string) {
	d.edges = slices.DeleteFunc(d.edges, func(e Edge) bool { return e.From == from && e.To == to })
	d.outgoing[from] = slices.DeleteFunc(d.outgoing[from], func(s string) bool { return s == to })
	d.incoming[to] = slices.DeleteFunc(d.incoming[to], func(s string) bool { return s == from })
}

// Nodes returns all nodes sorted by ID. The pointers refer to the graph's
// nodes.
func (d *DAG) Nodes() []*Node {
	nodes := make([]*Node, 0, len(d.nodes))
	for _, id := range d.ids() {
		nodes = append(nodes, d.nodes[id])
	}
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

func (d *DAG) NodeCount() int { return len(d.nodes) }
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the modules id requires. The slice must not be modified.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the modules requiring id. The slice must not be modified.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// Node returns the node with the given ID.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Sources returns the nodes nothing requires, sorted by ID.
func (d *DAG) Sources() []*Node {
	var out []*Node
	for _, id := range d.ids() {
		if len(d.incoming[id]) == 0 {
			out = append(out, d.nodes[id])
		}
	}
	return out
}

// Sinks returns the nodes that require nothing, sorted by ID.
func (d *DAG) Sinks() []*Node {
	var out []*Node
	for _, id := range d.ids() {
		if len(d.outgoing[id]) == 0 {
			out = append(out, d.nodes[id])
		}
	}
	return out
}

// Validate returns ErrGraphHasCycle if the graph is not acyclic.
func (d *DAG) Validate() error {
	if len(d.backEdges()) > 0 {
		return ErrGraphHasCycle
	}
	return nil
}

// TopoOrder returns the node IDs with every module before the modules it
// requires. Ties are broken by ID so the order is stable.
func (d *DAG) TopoOrder() ([]string, error) {
	indeg := make(map[string]int, len(d.nodes))
	for id := range d.nodes {
		indeg[id] = len(d.incoming[id])
	}
	var ready []string
	for _, id := range d.ids() {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(d.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		var next []string
		for _, child := range d.outgoing[id] {
			indeg[child]--
			if indeg[child] == 0 {
				next = append(next, child)
			}
		}
		slices.Sort(next)
		ready = append(ready, next...)
	}
	if len(order) != len(d.nodes) {
		return nil, ErrGraphHasCycle
	}
	return order, nil
}

// BreakCycles removes back edges found by a depth-first search from the
// sources, then from any remaining node, and returns how many were removed.
func (d *DAG) BreakCycles() int {
	back := d.backEdges()
	for _, e := range back {
		d.RemoveEdge(e[0], e[1])
	}
	return len(back)
}

func (d *DAG) backEdges() [][2]string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(d.nodes))
	var back [][2]string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				back = append(back, [2]string{id, child})
			}
		}
		color[id] = black
	}

	for _, n := range d.Sources() {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	for _, id := range d.ids() {
		if color[id] == white {
			dfs(id)
		}
	}
	return back
}

func (d *DAG) ids() []string { return slices.Sorted(maps.Keys(d.nodes)) }

// NodeIDs extracts the ID from each node.
func NodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
