package dag

import (
	"cmp"
	"errors"
	"maps"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrDuplicateEdge is returned by [DAG.AddEdge] when the same From/To
	// pair was already added.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrInvalidEdgeEndpoint is returned by [DAG.Validate] when an edge
	// references a node that doesn't exist.
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a directed cycle
	// is detected.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes, edges or the
// graph itself. Package graphs store the resolved version, the matched
// target framework and any per-package failure here.
type Metadata map[string]any

// String returns the value stored under key if it is a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Node is a vertex of the dependency graph. Row is the depth at which the
// node was first discovered (0 = the root package).
type Node struct {
	ID    string   // Unique identifier
	Label string   // Display label, defaults to ID
	Row   int      // Discovery depth
	Meta  Metadata // Never nil after AddNode
}

// DisplayLabel returns Label if set, otherwise ID.
func (n Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge is a directed dependency from a package to one of its dependencies.
type Edge struct {
	From string   // Dependent node ID
	To   string   // Dependency node ID
	Meta Metadata // Never nil after AddEdge
}

// DAG is a directed dependency graph. Despite the name it tolerates cycles,
// which do occur between published packages; use [DAG.Validate] to detect
// them.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string // nodeID -> children IDs
	incoming map[string][]string // nodeID -> parent IDs
	meta     Metadata
}

// New creates an empty DAG with optional graph-level metadata.
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

// AddNode adds a node to the graph.
// Returns ErrInvalidNodeID if the node ID is empty, or ErrDuplicateNodeID
// if a node with the same ID already exists.
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

// AddEdge adds a directed edge between two existing nodes.
// Self-edges are allowed; a second edge between the same pair is not.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if slices.Contains(d.outgoing[e.From], e.To) {
		return ErrDuplicateEdge
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// HasNode reports whether a node with the given ID exists.
func (d *DAG) HasNode(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// Nodes returns all nodes ordered by row, then by ID.
// The returned pointers refer to the graph's own nodes.
func (d *DAG) Nodes() []*Node {
	nodes := slices.Collect(maps.Values(d.nodes))
	slices.SortFunc(nodes, func(a, b *Node) int {
		return cmp.Or(cmp.Compare(a.Row, b.Row), cmp.Compare(a.ID, b.ID))
	})
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the IDs of the node's dependencies in insertion order.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs of the node's dependents in insertion order.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// Node returns the node with the given ID and true, or nil and false if not found.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// MaxRow returns the deepest row, or 0 for an empty graph.
func (d *DAG) MaxRow() int {
	row := 0
	for _, n := range d.nodes {
		row = max(row, n.Row)
	}
	return row
}

// Sources returns nodes with no incoming edges, ordered like [DAG.Nodes].
func (d *DAG) Sources() []*Node {
	return slices.DeleteFunc(d.Nodes(), func(n *Node) bool { return len(d.incoming[n.ID]) > 0 })
}

// Sinks returns nodes with no outgoing edges, ordered like [DAG.Nodes].
func (d *DAG) Sinks() []*Node {
	return slices.DeleteFunc(d.Nodes(), func(n *Node) bool { return len(d.outgoing[n.ID]) > 0 })
}

// Validate checks that every edge connects existing nodes and that the
// graph is acyclic. Returns ErrInvalidEdgeEndpoint or ErrGraphHasCycle.
func (d *DAG) Validate() error {
	for _, e := range d.edges {
		if !d.HasNode(e.From) || !d.HasNode(e.To) {
			return ErrInvalidEdgeEndpoint
		}
	}
	if len(d.Cycle()) > 0 {
		return ErrGraphHasCycle
	}
	return nil
}

// Cycle returns the node IDs of one directed cycle, starting and ending with
// the same ID, or nil if the graph is acyclic. Traversal follows
// [DAG.Nodes] order so the result is deterministic.
func (d *DAG) Cycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var stack, cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				start := slices.Index(stack, child)
				cycle = append(slices.Clone(stack[start:]), child)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, n := range d.Nodes() {
		if color[n.ID] == white && dfs(n.ID) {
			return cycle
		}
	}
	return nil
}

// NodeIDs extracts the ID from each node in a slice.
func NodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
