// Package dag provides the module requirement graph.
//
// # Overview
//
// Nodes are modules, keyed by "name:version". An edge from A to B means A
// requires B, either through Require-Bundle or because B exports a package
// A imports. The graph drives two things:
//
//   - shutdown order: [DAG.TopoOrder] lists dependents before their
//     dependencies, so modules are stopped before what they rely on
//   - the `cfboot graph` command, which renders it with Graphviz
//
// # Cycles
//
// Module requirements may be cyclic. [DAG.Validate] and [DAG.TopoOrder]
// report [ErrGraphHasCycle]; [DAG.BreakCycles] removes the back edges of a
// depth-first search so a usable order exists afterwards.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "app:1.0.0"})
//	g.AddNode(dag.Node{ID: "lib:2.0.0"})
//	g.AddEdge(dag.Edge{From: "app:1.0.0", To: "lib:2.0.0", Kind: "bundle"})
//	order, _ := g.TopoOrder() // [app:1.0.0 lib:2.0.0]
package dag
