// Package render draws the module requirement graph.
//
// # Overview
//
// [ToDOT] turns a [dag.DAG] built from the installed modules into Graphviz
// DOT source. Nodes are coloured by lifecycle state and package edges are
// dashed, so unresolved or stuck modules stand out:
//
//	dot := render.ToDOT(g, render.Options{Detailed: true})
//	svg, err := render.RenderSVG(dot)
//
// # Format Conversion
//
// [RenderSVG] renders in-process with [github.com/goccy/go-graphviz].
// [ToPDF] and [ToPNG] convert SVG with the external rsvg-convert tool (from
// librsvg):
//
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
package render
