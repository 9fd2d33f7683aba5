package graph

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/matzehuels/nugallery/pkg/dag"
)

// =============================================================================
// Metadata Keys - Single Source of Truth
// =============================================================================

// Node metadata keys.
const (
	MetaVersion   = "version"   // Resolved package version
	MetaFramework = "framework" // Moniker of the target framework followed
	MetaError     = "error"     // Why the package could not be loaded
)

// MetaVersionSpec is the edge metadata key holding the declared version range.
const MetaVersionSpec = "version_spec"

// Graph metadata keys.
const (
	MetaRoot    = "root"    // Node ID of the requested package
	MetaMoniker = "moniker" // Moniker requested for the walk
)

// =============================================================================
// Graph - Dependency Graph Serialization
// =============================================================================

// Graph is the serialization format for package dependency graphs, used for
// API responses and the CLI's JSON output.
type Graph struct {
	Root    string `json:"root,omitempty"`
	Moniker string `json:"moniker,omitempty"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Node is one package of the closure.
type Node struct {
	ID        string         `json:"id"`
	Label     string         `json:"label,omitempty"` // Display label (defaults to ID)
	Row       int            `json:"row"`             // Discovery depth
	Version   string         `json:"version,omitempty"`
	Framework string         `json:"framework,omitempty"`
	Error     string         `json:"error,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// DisplayLabel returns the label if set, otherwise the ID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge is a declared dependency between two packages.
type Edge struct {
	From        string `json:"from"`
	To          string `json:"to"`
	VersionSpec string `json:"version_spec,omitempty"`
}

// =============================================================================
// DAG ↔ Graph Conversion
// =============================================================================

// FromDAG converts a DAG to its serialization format.
// Nodes keep the row-then-ID order of [dag.DAG.Nodes].
func FromDAG(g *dag.DAG) Graph {
	nodes := g.Nodes()
	edges := g.Edges()

	out := Graph{
		Root:    g.Meta().String(MetaRoot),
		Moniker: g.Meta().String(MetaMoniker),
		Nodes:   make([]Node, len(nodes)),
		Edges:   make([]Edge, len(edges)),
	}
	for i, n := range nodes {
		out.Nodes[i] = nodeFromDAG(n)
	}
	for i, e := range edges {
		out.Edges[i] = Edge{From: e.From, To: e.To, VersionSpec: e.Meta.String(MetaVersionSpec)}
	}
	return out
}

// ToDAG converts a Graph back to a DAG.
func ToDAG(gj Graph) (*dag.DAG, error) {
	meta := dag.Metadata{}
	if gj.Root != "" {
		meta[MetaRoot] = gj.Root
	}
	if gj.Moniker != "" {
		meta[MetaMoniker] = gj.Moniker
	}
	d := dag.New(meta)

	for _, nj := range gj.Nodes {
		n := dag.Node{
			ID:    nj.ID,
			Label: nj.Label,
			Row:   nj.Row,
			Meta:  dag.Metadata{},
		}
		maps.Copy(n.Meta, nj.Meta)
		setIf(n.Meta, MetaVersion, nj.Version)
		setIf(n.Meta, MetaFramework, nj.Framework)
		setIf(n.Meta, MetaError, nj.Error)
		if err := d.AddNode(n); err != nil {
			return nil, fmt.Errorf("add node %s: %w", nj.ID, err)
		}
	}

	for _, ej := range gj.Edges {
		e := dag.Edge{From: ej.From, To: ej.To, Meta: dag.Metadata{}}
		setIf(e.Meta, MetaVersionSpec, ej.VersionSpec)
		if err := d.AddEdge(e); err != nil {
			return nil, fmt.Errorf("add edge %s→%s: %w", ej.From, ej.To, err)
		}
	}

	return d, nil
}

// UnmarshalGraph deserializes JSON bytes to a Graph.
func UnmarshalGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, err
	}
	return g, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

func nodeFromDAG(n *dag.Node) Node {
	node := Node{
		ID:        n.ID,
		Label:     n.Label,
		Row:       n.Row,
		Version:   n.Meta.String(MetaVersion),
		Framework: n.Meta.String(MetaFramework),
		Error:     n.Meta.String(MetaError),
	}
	for k, v := range n.Meta {
		switch k {
		case MetaVersion, MetaFramework, MetaError:
			continue
		}
		if node.Meta == nil {
			node.Meta = make(map[string]any)
		}
		node.Meta[k] = v
	}
	return node
}

func setIf(m dag.Metadata, key, value string) {
	if value != "" {
		m[key] = value
	}
}
