// Package nodelink renders package dependency graphs as node-link diagrams.
//
// # Usage
//
// Convert a graph to DOT, then lay it out with Graphviz:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := nodelink.Render(ctx, dot, nodelink.FormatPNG)
//
// The generated DOT uses a top-to-bottom layout with rounded box nodes, one
// per package, ranked by discovery depth.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz], which embeds Graphviz
// as WebAssembly, so no external binaries are required.
package nodelink
