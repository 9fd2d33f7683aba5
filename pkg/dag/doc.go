// Package dag provides the directed graph used to represent a package's
// transitive dependency closure.
//
// # Overview
//
// Each node is one package id; each edge points from a package to one of
// the dependencies declared by its selected target framework. Nodes carry a
// Row equal to the depth at which the crawl first reached them, which the
// renderers use as the rank:
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "app", Row: 0})
//	g.AddNode(dag.Node{ID: "lib", Row: 1})
//	g.AddEdge(dag.Edge{From: "app", To: "lib"})
//
// Published packages occasionally depend on each other in a loop, so the
// graph accepts cycles. [DAG.Validate] and [DAG.Cycle] report them.
//
// # Metadata
//
// Nodes, edges and the graph itself carry [Metadata] maps. The gallery
// stores the resolved version and framework of a node there, the declared
// version range of an edge, and the requested moniker of the graph.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use. Builders that crawl in
// parallel must serialize mutations.
package dag
