package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/nugallery/pkg/dag"
	"github.com/matzehuels/nugallery/pkg/graph"
)

// Format is an output format produced by [Render].
type Format string

// Supported output formats.
const (
	FormatDOT Format = "dot"
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat maps a user supplied format name to a [Format].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatDOT, FormatSVG, FormatPNG:
		return f, nil
	case "":
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want dot, svg or png)", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	default:
		return "text/vnd.graphviz; charset=utf-8"
	}
}

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the resolved version and framework to node labels and
	// the declared version range to edges. When false, only the package id
	// and version are shown.
	Detailed bool
}

// ToDOT converts a package graph to Graphviz DOT format.
//
// The requested package is drawn bold; packages that could not be loaded
// are drawn dashed with a red fill.
func ToDOT(g *dag.DAG, opts Options) string {
	root := g.Meta().String(graph.MetaRoot)

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		attrs := fmtAttrs(*n, fmtLabel(*n, opts.Detailed), n.ID == root)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		spec := e.Meta.String(graph.MetaVersionSpec)
		if opts.Detailed && spec != "" {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.From, e.To, spec)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n dag.Node, detailed bool) string {
	lines := []string{n.DisplayLabel()}
	if v := n.Meta.String(graph.MetaVersion); v != "" {
		lines = append(lines, v)
	}
	if detailed {
		if fw := n.Meta.String(graph.MetaFramework); fw != "" {
			lines = append(lines, fw)
		}
		if msg := n.Meta.String(graph.MetaError); msg != "" {
			lines = append(lines, msg)
		}
	}
	return strings.Join(lines, "\n")
}

func fmtAttrs(n dag.Node, label string, root bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case n.Meta.String(graph.MetaError) != "":
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=mistyrose")
	case root:
		attrs = append(attrs, "style=\"rounded,filled,bold\"", "fillcolor=aliceblue")
	}
	return attrs
}

// Render lays out a DOT graph with Graphviz and returns it in the requested
// format. [FormatDOT] returns the input unchanged.
func Render(ctx context.Context, dot string, format Format) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		gvFormat = graphviz.SVG
	case FormatPNG:
		gvFormat = graphviz.PNG
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if format == FormatSVG {
		return normalizeViewBox(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	return Render(ctx, dot, FormatSVG)
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root svg tag so the image scales from a
// zero origin with pixel dimensions matching the viewBox.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
